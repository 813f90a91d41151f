// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package env

import (
	"time"

	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/units"
)

// Sample represents a single environmental measurement (DHT22).
// Values are rounded to 2 decimals when the sample is built.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`

	TemperatureC float64 `json:"temperature_c"` // °C
	HumidityPct  float64 `json:"humidity_pct"`  // %RH, 0-100
	DewPointC    float64 `json:"dew_point_c"`   // °C, Magnus
	HeatIndexC   float64 `json:"heat_index_c"`  // °C, Rothfusz
}

// NewSample derives dew point and heat index from the raw temperature and
// humidity and returns the rounded record.
func NewSample(ts time.Time, tempC, humidityPct float64) Sample {
	return Sample{
		Timestamp:    ts,
		TemperatureC: units.Round(tempC, 2),
		HumidityPct:  units.Round(humidityPct, 2),
		DewPointC:    units.Round(units.DewPoint(tempC, humidityPct), 2),
		HeatIndexC:   units.Round(units.HeatIndex(tempC, humidityPct), 2),
	}
}
