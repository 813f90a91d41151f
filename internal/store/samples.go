// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package store

import (
	"context"
	"fmt"

	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/env"
	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/power"
)

// AppendEnvironmental stores s and returns its id.
func (s *Store) AppendEnvironmental(ctx context.Context, e env.Sample) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id int64
	err := s.db.QueryRowContext(ctx, s.d.rebind(`
		INSERT INTO environmental_samples
			(timestamp, temperature_c, humidity_pct, dew_point_c, heat_index_c)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`),
		formatTimestamp(e.Timestamp), e.TemperatureC, e.HumidityPct, e.DewPointC, e.HeatIndexC,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: insert environmental sample: %w", err)
	}
	return id, nil
}

// AppendElectrical stores p and returns its id. The sample's energy unit
// must match the store's.
func (s *Store) AppendElectrical(ctx context.Context, p power.Sample) (int64, error) {
	if p.EnergyUnit != s.unit {
		return 0, fmt.Errorf("store: %w: sample in %q, store in %q", ErrUnitMismatch, p.EnergyUnit, s.unit)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var id int64
	err := s.db.QueryRowContext(ctx, s.d.rebind(`
		INSERT INTO electrical_samples
			(timestamp, voltage_v, current_a, power_w, energy, energy_unit, frequency_hz, power_factor, alarm)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`),
		formatTimestamp(p.Timestamp), p.VoltageV, p.CurrentA, p.PowerW, p.Energy, string(p.EnergyUnit),
		p.FrequencyHz, p.PowerFactor, p.Alarm,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: insert electrical sample: %w", err)
	}
	return id, nil
}

// RecentEnvironmental returns up to limit samples, newest first.
func (s *Store) RecentEnvironmental(ctx context.Context, limit int) ([]env.Sample, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, s.d.rebind(`
		SELECT timestamp, temperature_c, humidity_pct, dew_point_c, heat_index_c
		FROM environmental_samples
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("store: select environmental samples: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]env.Sample, 0, limit)
	for rows.Next() {
		var (
			e  env.Sample
			ts string
		)
		if err := rows.Scan(&ts, &e.TemperatureC, &e.HumidityPct, &e.DewPointC, &e.HeatIndexC); err != nil {
			return nil, fmt.Errorf("store: scan environmental sample: %w", err)
		}
		if e.Timestamp, err = parseTimestamp(ts); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// RecentElectrical returns up to limit samples, newest first.
func (s *Store) RecentElectrical(ctx context.Context, limit int) ([]power.Sample, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, s.d.rebind(`
		SELECT timestamp, voltage_v, current_a, power_w, energy, energy_unit, frequency_hz, power_factor, alarm
		FROM electrical_samples
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("store: select electrical samples: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]power.Sample, 0, limit)
	for rows.Next() {
		var (
			p    power.Sample
			ts   string
			unit string
		)
		if err := rows.Scan(&ts, &p.VoltageV, &p.CurrentA, &p.PowerW, &p.Energy, &unit,
			&p.FrequencyHz, &p.PowerFactor, &p.Alarm); err != nil {
			return nil, fmt.Errorf("store: scan electrical sample: %w", err)
		}
		if p.Timestamp, err = parseTimestamp(ts); err != nil {
			return nil, err
		}
		p.EnergyUnit = power.EnergyUnit(unit)
		out = append(out, p)
	}
	return out, rows.Err()
}
