// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package store persists environmental and electrical samples and answers
// recent-sample and windowed-statistics queries. SQLite (pure Go) is the
// default backend; PostgreSQL is available through the pgx stdlib driver.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/power"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	defaultPath = "surveillance.db"
	metaUnitKey = "energy_unit"

	// timestampLayout is fixed width so text order equals time order.
	timestampLayout = "2006-01-02T15:04:05.000000Z"
)

// ErrUnitMismatch is returned when an electrical sample, or the configured
// unit at open time, disagrees with the energy unit recorded in the store.
var ErrUnitMismatch = errors.New("energy unit does not match store")

// Config selects and locates the backend.
type Config struct {
	Driver     string // "sqlite" (default) or "postgres"
	Path       string // sqlite file
	DSN        string // postgres connection string
	EnergyUnit power.EnergyUnit
}

type dialect struct {
	name     string
	driver   string
	idColumn string
	real     string
	dollar   bool
}

var dialects = map[string]dialect{
	DriverSQLite:   {name: DriverSQLite, driver: "sqlite", idColumn: "INTEGER PRIMARY KEY AUTOINCREMENT", real: "REAL"},
	DriverPostgres: {name: DriverPostgres, driver: "pgx", idColumn: "BIGSERIAL PRIMARY KEY", real: "DOUBLE PRECISION", dollar: true},
}

// rebind rewrites ? placeholders as $1, $2, ... where the backend needs it.
func (d dialect) rebind(query string) string {
	if !d.dollar {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Store is the sole writer of the measurement tables.
type Store struct {
	db   *sql.DB
	d    dialect
	unit power.EnergyUnit
	log  logrus.FieldLogger
	now  func() time.Time

	mu sync.Mutex // serializes appends
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the clock used to compute statistics windows.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Store) { s.log = l }
}

// Open connects to the backend and creates the schema if needed.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	if cfg.Driver == "" {
		cfg.Driver = DriverSQLite
	}
	d, ok := dialects[cfg.Driver]
	if !ok {
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
	}

	var dsn string
	switch d.name {
	case DriverSQLite:
		path := cfg.Path
		if path == "" {
			path = defaultPath
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("store: create dirs: %w", err)
		}
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	case DriverPostgres:
		if cfg.DSN == "" {
			return nil, errors.New("store: postgres requires a DSN")
		}
		dsn = cfg.DSN
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", d.name, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping %s: %w", d.name, err)
	}

	s := &Store{db: db, d: d, now: time.Now, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.loadUnit(ctx, cfg.EnergyUnit); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"driver": d.name, "energy_unit": s.unit}).Info("store ready")
	return s, nil
}

// EnergyUnit returns the unit recorded for the electrical table.
func (s *Store) EnergyUnit() power.EnergyUnit { return s.unit }

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS environmental_samples (
			id %[1]s,
			timestamp TEXT NOT NULL,
			temperature_c %[2]s NOT NULL,
			humidity_pct %[2]s NOT NULL,
			dew_point_c %[2]s NOT NULL,
			heat_index_c %[2]s NOT NULL
		)`, s.d.idColumn, s.d.real),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS electrical_samples (
			id %[1]s,
			timestamp TEXT NOT NULL,
			voltage_v %[2]s NOT NULL,
			current_a %[2]s NOT NULL,
			power_w %[2]s NOT NULL,
			energy %[2]s NOT NULL,
			energy_unit TEXT NOT NULL,
			frequency_hz %[2]s NOT NULL,
			power_factor %[2]s NOT NULL,
			alarm INTEGER NOT NULL DEFAULT 0
		)`, s.d.idColumn, s.d.real),
		`CREATE INDEX IF NOT EXISTS idx_env_timestamp ON environmental_samples (timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_elec_timestamp ON electrical_samples (timestamp)`,
		`CREATE TABLE IF NOT EXISTS store_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: create schema: %w", err)
		}
	}
	return nil
}

// loadUnit records want as the store's energy unit on first use, and
// otherwise checks it against the recorded one. An empty want adopts
// whatever is recorded (Wh for a new store).
func (s *Store) loadUnit(ctx context.Context, want power.EnergyUnit) error {
	initial := want
	if initial == "" {
		initial = power.WattHour
	}
	if _, err := power.ParseEnergyUnit(string(initial)); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		s.d.rebind(`INSERT INTO store_meta (key, value) VALUES (?, ?) ON CONFLICT (key) DO NOTHING`),
		metaUnitKey, string(initial)); err != nil {
		return fmt.Errorf("store: record energy unit: %w", err)
	}
	var recorded string
	if err := s.db.QueryRowContext(ctx,
		s.d.rebind(`SELECT value FROM store_meta WHERE key = ?`), metaUnitKey).Scan(&recorded); err != nil {
		return fmt.Errorf("store: read energy unit: %w", err)
	}
	if want != "" && power.EnergyUnit(recorded) != want {
		return fmt.Errorf("store: %w: configured %s, recorded %s", ErrUnitMismatch, want, recorded)
	}
	s.unit = power.EnergyUnit(recorded)
	return nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("store: bad timestamp %q: %w", s, err)
	}
	return t, nil
}
