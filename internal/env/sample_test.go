package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewSampleDerivesAndRounds(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewSample(ts, 20.004, 50.0)

	assert.Equal(t, ts, s.Timestamp)
	assert.Equal(t, 20.0, s.TemperatureC)
	assert.Equal(t, 50.0, s.HumidityPct)
	assert.Equal(t, 9.26, s.DewPointC)
	assert.Equal(t, 20.0, s.HeatIndexC)
}

func TestNewSampleHeatIndexAboveThreshold(t *testing.T) {
	s := NewSample(time.Now(), 32, 70)
	assert.Equal(t, 40.41, s.HeatIndexC)
	assert.LessOrEqual(t, s.DewPointC, s.TemperatureC)
}

func TestNewSampleZeroHumidity(t *testing.T) {
	s := NewSample(time.Now(), 25, 0)
	assert.Equal(t, 0.0, s.DewPointC)
}
