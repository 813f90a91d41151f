// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/power"
)

// EnvironmentalStats aggregates environmental samples over a window.
type EnvironmentalStats struct {
	Count           int64   `json:"count"`
	AvgTemperatureC float64 `json:"avg_temperature_c"`
	MinTemperatureC float64 `json:"min_temperature_c"`
	MaxTemperatureC float64 `json:"max_temperature_c"`
	AvgHumidityPct  float64 `json:"avg_humidity_pct"`
	MinHumidityPct  float64 `json:"min_humidity_pct"`
	MaxHumidityPct  float64 `json:"max_humidity_pct"`
}

// ElectricalStats aggregates electrical samples over a window.
// TotalEnergy sums the cumulative counter readings as stored; EnergyDelta is
// the counter increase across the window.
type ElectricalStats struct {
	Count          int64            `json:"count"`
	AvgVoltageV    float64          `json:"avg_voltage_v"`
	AvgCurrentA    float64          `json:"avg_current_a"`
	AvgPowerW      float64          `json:"avg_power_w"`
	MaxPowerW      float64          `json:"max_power_w"`
	TotalEnergy    float64          `json:"total_energy"`
	EnergyDelta    float64          `json:"energy_delta"`
	EnergyUnit     power.EnergyUnit `json:"energy_unit"`
	AvgFrequencyHz float64          `json:"avg_frequency_hz"`
	AvgPowerFactor float64          `json:"avg_power_factor"`
}

// Statistics bundles both aggregates for one window.
type Statistics struct {
	WindowHours   float64            `json:"window_hours"`
	Environmental EnvironmentalStats `json:"environmental"`
	Electrical    ElectricalStats    `json:"electrical"`
}

func (s *Store) cutoff(window time.Duration) string {
	return formatTimestamp(s.now().Add(-window))
}

// EnvironmentalStats aggregates rows strictly newer than now-window.
// An empty window yields a zero value with Count 0.
func (s *Store) EnvironmentalStats(ctx context.Context, window time.Duration) (EnvironmentalStats, error) {
	var (
		st               EnvironmentalStats
		avgT, minT, maxT sql.NullFloat64
		avgH, minH, maxH sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, s.d.rebind(`
		SELECT COUNT(*),
			AVG(temperature_c), MIN(temperature_c), MAX(temperature_c),
			AVG(humidity_pct), MIN(humidity_pct), MAX(humidity_pct)
		FROM environmental_samples
		WHERE timestamp > ?`), s.cutoff(window),
	).Scan(&st.Count, &avgT, &minT, &maxT, &avgH, &minH, &maxH)
	if err != nil {
		return EnvironmentalStats{}, fmt.Errorf("store: environmental stats: %w", err)
	}
	st.AvgTemperatureC = avgT.Float64
	st.MinTemperatureC = minT.Float64
	st.MaxTemperatureC = maxT.Float64
	st.AvgHumidityPct = avgH.Float64
	st.MinHumidityPct = minH.Float64
	st.MaxHumidityPct = maxH.Float64
	return st, nil
}

// ElectricalStats aggregates rows strictly newer than now-window.
func (s *Store) ElectricalStats(ctx context.Context, window time.Duration) (ElectricalStats, error) {
	var (
		st                 ElectricalStats
		avgV, avgA, avgW   sql.NullFloat64
		maxW, sumE, deltaE sql.NullFloat64
		avgHz, avgPF       sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, s.d.rebind(`
		SELECT COUNT(*),
			AVG(voltage_v), AVG(current_a), AVG(power_w), MAX(power_w),
			SUM(energy), MAX(energy) - MIN(energy),
			AVG(frequency_hz), AVG(power_factor)
		FROM electrical_samples
		WHERE timestamp > ?`), s.cutoff(window),
	).Scan(&st.Count, &avgV, &avgA, &avgW, &maxW, &sumE, &deltaE, &avgHz, &avgPF)
	if err != nil {
		return ElectricalStats{}, fmt.Errorf("store: electrical stats: %w", err)
	}
	st.AvgVoltageV = avgV.Float64
	st.AvgCurrentA = avgA.Float64
	st.AvgPowerW = avgW.Float64
	st.MaxPowerW = maxW.Float64
	st.TotalEnergy = sumE.Float64
	st.EnergyDelta = deltaE.Float64
	st.EnergyUnit = s.unit
	st.AvgFrequencyHz = avgHz.Float64
	st.AvgPowerFactor = avgPF.Float64
	return st, nil
}

// Statistics returns both aggregates for window.
func (s *Store) Statistics(ctx context.Context, window time.Duration) (Statistics, error) {
	e, err := s.EnvironmentalStats(ctx, window)
	if err != nil {
		return Statistics{}, err
	}
	p, err := s.ElectricalStats(ctx, window)
	if err != nil {
		return Statistics{}, err
	}
	return Statistics{WindowHours: window.Hours(), Environmental: e, Electrical: p}, nil
}
