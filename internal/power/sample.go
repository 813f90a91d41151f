// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package power

import (
	"fmt"
	"time"

	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/units"
)

// EnergyUnit names the unit of Sample.Energy. PZEM-004T firmware variants
// report the energy counter either in Wh or in kWh.
type EnergyUnit string

const (
	WattHour     EnergyUnit = "Wh"
	KilowattHour EnergyUnit = "kWh"
)

// ParseEnergyUnit accepts "Wh" or "kWh" (case sensitive, as printed on the
// device datasheets).
func ParseEnergyUnit(s string) (EnergyUnit, error) {
	switch EnergyUnit(s) {
	case WattHour, KilowattHour:
		return EnergyUnit(s), nil
	default:
		return "", fmt.Errorf("unsupported energy unit %q (want Wh or kWh)", s)
	}
}

// Reading holds unrounded electrical values as decoded or simulated.
type Reading struct {
	VoltageV    float64
	CurrentA    float64
	PowerW      float64
	Energy      float64
	FrequencyHz float64
	PowerFactor float64
	Alarm       int
}

// Sample represents a single electrical measurement (PZEM-004T).
type Sample struct {
	Timestamp time.Time `json:"timestamp"`

	VoltageV    float64    `json:"voltage_v"`
	CurrentA    float64    `json:"current_a"`
	PowerW      float64    `json:"power_w"`
	Energy      float64    `json:"energy"`      // cumulative counter
	EnergyUnit  EnergyUnit `json:"energy_unit"` // "Wh" or "kWh"
	FrequencyHz float64    `json:"frequency_hz"`
	PowerFactor float64    `json:"power_factor"` // 0-1
	Alarm       int        `json:"alarm"`        // 0 = none
}

// NewSample rounds r to the stored precision: 2 decimals for V, W, Hz and
// PF, 3 decimals for A and energy.
func NewSample(ts time.Time, r Reading, unit EnergyUnit) Sample {
	return Sample{
		Timestamp:   ts,
		VoltageV:    units.Round(r.VoltageV, 2),
		CurrentA:    units.Round(r.CurrentA, 3),
		PowerW:      units.Round(r.PowerW, 2),
		Energy:      units.Round(r.Energy, 3),
		EnergyUnit:  unit,
		FrequencyHz: units.Round(r.FrequencyHz, 2),
		PowerFactor: units.Round(r.PowerFactor, 2),
		Alarm:       r.Alarm,
	}
}
