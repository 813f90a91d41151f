package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDewPointReference(t *testing.T) {
	assert.InDelta(t, 9.26, DewPoint(20, 50), 0.01)
	assert.InDelta(t, 20.0, DewPoint(20, 100), 1e-9)
}

func TestDewPointGuardsNonPositiveHumidity(t *testing.T) {
	assert.Equal(t, 0.0, DewPoint(25, 0))
	assert.Equal(t, 0.0, DewPoint(25, -3))
}

func TestDewPointNotAboveTemperature(t *testing.T) {
	for temp := -10.0; temp <= 50; temp += 5 {
		for hum := 5.0; hum <= 100; hum += 5 {
			assert.LessOrEqual(t, DewPoint(temp, hum), temp+1e-9, "T=%v H=%v", temp, hum)
		}
	}
}

func TestHeatIndex(t *testing.T) {
	tests := []struct {
		name  string
		temp  float64
		hum   float64
		want  float64
		delta float64
	}{
		{"below threshold passthrough", 20, 90, 20, 0},
		{"just below threshold", 26.99, 80, 26.99, 0},
		{"hot and humid", 32, 70, 40.41, 0.01},
		{"threshold dry air drops below T", 27, 40, 26.86, 0.01},
		{"warm", 30, 60, 32.83, 0.01},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, HeatIndex(tt.temp, tt.hum), tt.delta)
		})
	}
}

func TestRound(t *testing.T) {
	assert.Equal(t, 9.25, Round(9.254294, 2))
	assert.Equal(t, 1.5, Round(1.5004, 3))
	assert.Equal(t, -2.5, Round(-2.4999, 1))
	assert.Equal(t, 230.0, Round(230.0000001, 2))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 50.0, Clamp(51, -10, 50))
	assert.Equal(t, -10.0, Clamp(-11, -10, 50))
	assert.Equal(t, 3.0, Clamp(3, -10, 50))
}
