// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package dashboard assembles the read-side views served to clients.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/buffer"
	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/env"
	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/power"
	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/store"
)

const (
	Day  = 24 * time.Hour
	Week = 7 * Day
)

// History limits.
const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 1000
)

// Channel kinds accepted by History.
const (
	KindEnvironmental = "environmental"
	KindElectrical    = "electrical"
)

// ErrBadHistoryQuery is returned for an unknown kind or an out of range limit.
var ErrBadHistoryQuery = errors.New("dashboard: bad history query")

// HistorySource returns the newest persisted samples, newest first.
type HistorySource interface {
	RecentEnvironmental(ctx context.Context, limit int) ([]env.Sample, error)
	RecentElectrical(ctx context.Context, limit int) ([]power.Sample, error)
}

// PersistedSource is the store side of the dashboard.
type PersistedSource interface {
	StatsSource
	HistorySource
}

// StatsSource answers windowed statistics.
type StatsSource interface {
	Statistics(ctx context.Context, window time.Duration) (store.Statistics, error)
}

// SampleSource returns copies of the buffered samples.
type SampleSource interface {
	Snapshot() buffer.Snapshot
}

// Snapshot is the live view: buffered samples plus 24h statistics.
type Snapshot struct {
	Environmental []env.Sample      `json:"environmental"`
	Electrical    []power.Sample    `json:"electrical"`
	Stats24h      store.Statistics  `json:"stats_24h"`
	Sources       map[string]string `json:"sources,omitempty"`
	GeneratedAt   time.Time         `json:"generated_at"`
}

// Statistics holds the 24 hour and 7 day aggregates.
type Statistics struct {
	Stats24h    store.Statistics `json:"stats_24h"`
	Stats7d     store.Statistics `json:"stats_7d"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// History holds persisted samples, newest first. A channel not asked for
// is omitted.
type History struct {
	Environmental []env.Sample   `json:"environmental,omitempty"`
	Electrical    []power.Sample `json:"electrical,omitempty"`
	Limit         int            `json:"limit"`
	GeneratedAt   time.Time      `json:"generated_at"`
}

// Dashboard is safe for concurrent use; it only reads.
type Dashboard struct {
	samples SampleSource
	stats   PersistedSource
	sources map[string]string
	now     func() time.Time
}

// New returns a dashboard. sources maps channel kind to its mode and is
// reported as-is.
func New(samples SampleSource, stats PersistedSource, sources map[string]string) *Dashboard {
	return &Dashboard{samples: samples, stats: stats, sources: sources, now: time.Now}
}

// Snapshot returns the buffered samples and the last 24 hours of statistics.
func (d *Dashboard) Snapshot(ctx context.Context) (Snapshot, error) {
	st, err := d.stats.Statistics(ctx, Day)
	if err != nil {
		return Snapshot{}, fmt.Errorf("dashboard: %w", err)
	}
	buf := d.samples.Snapshot()
	return Snapshot{
		Environmental: buf.Environmental,
		Electrical:    buf.Electrical,
		Stats24h:      st,
		Sources:       d.sources,
		GeneratedAt:   d.now().UTC(),
	}, nil
}

// Statistics returns the 24 hour and 7 day aggregates.
func (d *Dashboard) Statistics(ctx context.Context) (Statistics, error) {
	day, err := d.stats.Statistics(ctx, Day)
	if err != nil {
		return Statistics{}, fmt.Errorf("dashboard: %w", err)
	}
	week, err := d.stats.Statistics(ctx, Week)
	if err != nil {
		return Statistics{}, fmt.Errorf("dashboard: %w", err)
	}
	return Statistics{Stats24h: day, Stats7d: week, GeneratedAt: d.now().UTC()}, nil
}

// History returns up to limit persisted samples of kind, or of both kinds
// when kind is empty. limit 0 means DefaultHistoryLimit.
func (d *Dashboard) History(ctx context.Context, kind string, limit int) (History, error) {
	if limit == 0 {
		limit = DefaultHistoryLimit
	}
	if limit < 0 || limit > MaxHistoryLimit {
		return History{}, fmt.Errorf("%w: limit %d not in 1..%d", ErrBadHistoryQuery, limit, MaxHistoryLimit)
	}
	if kind != "" && kind != KindEnvironmental && kind != KindElectrical {
		return History{}, fmt.Errorf("%w: unknown kind %q", ErrBadHistoryQuery, kind)
	}

	h := History{Limit: limit, GeneratedAt: d.now().UTC()}
	var err error
	if kind == "" || kind == KindEnvironmental {
		if h.Environmental, err = d.stats.RecentEnvironmental(ctx, limit); err != nil {
			return History{}, fmt.Errorf("dashboard: %w", err)
		}
	}
	if kind == "" || kind == KindElectrical {
		if h.Electrical, err = d.stats.RecentElectrical(ctx, limit); err != nil {
			return History{}, fmt.Errorf("dashboard: %w", err)
		}
	}
	return h, nil
}
