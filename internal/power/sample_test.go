package power

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSampleRoundsPerField(t *testing.T) {
	s := NewSample(time.Unix(0, 0), Reading{
		VoltageV:    230.456,
		CurrentA:    1.23456,
		PowerW:      284.129,
		Energy:      0.0123456,
		FrequencyHz: 49.987,
		PowerFactor: 0.9549,
		Alarm:       1,
	}, KilowattHour)

	assert.Equal(t, 230.46, s.VoltageV)
	assert.Equal(t, 1.235, s.CurrentA)
	assert.Equal(t, 284.13, s.PowerW)
	assert.Equal(t, 0.012, s.Energy)
	assert.Equal(t, 49.99, s.FrequencyHz)
	assert.Equal(t, 0.95, s.PowerFactor)
	assert.Equal(t, 1, s.Alarm)
	assert.Equal(t, KilowattHour, s.EnergyUnit)
}

func TestParseEnergyUnit(t *testing.T) {
	u, err := ParseEnergyUnit("Wh")
	require.NoError(t, err)
	assert.Equal(t, WattHour, u)

	u, err = ParseEnergyUnit("kWh")
	require.NoError(t, err)
	assert.Equal(t, KilowattHour, u)

	_, err = ParseEnergyUnit("MWh")
	assert.Error(t, err)
}
