// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package acquisition runs the periodic read, persist and buffer cycle.
package acquisition

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/env"
	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/power"
	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/sensors"
)

// DefaultInterval is the pause between cycles.
const DefaultInterval = 2 * time.Second

var (
	ErrStopped        = errors.New("acquisition: scheduler stopped")
	ErrAlreadyRunning = errors.New("acquisition: scheduler already running")
)

// State is the scheduler lifecycle: Idle, then Running, then Stopped.
type State int32

const (
	Idle State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Store is the persistence the scheduler writes to.
type Store interface {
	AppendEnvironmental(ctx context.Context, s env.Sample) (int64, error)
	AppendElectrical(ctx context.Context, s power.Sample) (int64, error)
}

// Buffer receives every successful sample.
type Buffer interface {
	PushEnvironmental(s env.Sample)
	PushElectrical(s power.Sample)
}

// CycleResult reports what happened in one cycle. A nil sample means the
// channel read failed and the matching Err field says why.
type CycleResult struct {
	Cycle     uint64
	StartedAt time.Time
	Duration  time.Duration

	Environmental         *env.Sample
	EnvironmentalErr      error
	EnvironmentalStoreErr error

	Electrical         *power.Sample
	ElectricalErr      error
	ElectricalStoreErr error
}

// Observer is notified after every cycle, on the scheduler goroutine.
type Observer interface {
	ObserveCycle(CycleResult)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(CycleResult)

func (f ObserverFunc) ObserveCycle(r CycleResult) { f(r) }

// Config holds scheduler dependencies.
type Config struct {
	Interval      time.Duration
	Environmental sensors.EnvironmentalChannel
	Electrical    sensors.ElectricalChannel
	Store         Store
	Buffer        Buffer
	Observers     []Observer
	Logger        logrus.FieldLogger

	// NewTicker defaults to a time.Ticker.
	NewTicker func(time.Duration) Ticker
}

// Scheduler reads both channels once per cycle. Cycles never overlap.
type Scheduler struct {
	cfg Config
	log logrus.FieldLogger

	state    atomic.Int32
	stopFlag atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	cycles   uint64
}

// New validates cfg and returns an Idle scheduler.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Environmental == nil || cfg.Electrical == nil {
		return nil, errors.New("acquisition: both sensor channels are required")
	}
	if cfg.Store == nil || cfg.Buffer == nil {
		return nil, errors.New("acquisition: store and buffer are required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.NewTicker == nil {
		cfg.NewTicker = NewTimeTicker
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scheduler{
		cfg:    cfg,
		log:    log.WithField("component", "scheduler"),
		stopCh: make(chan struct{}),
	}, nil
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State { return State(s.state.Load()) }

// Run moves Idle to Running, runs one cycle immediately and then one per
// tick until Stop is called or ctx is done. It returns nil on a normal exit.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(Idle), int32(Running)) {
		if s.State() == Stopped {
			return ErrStopped
		}
		return ErrAlreadyRunning
	}
	defer s.state.Store(int32(Stopped))

	ticker := s.cfg.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.log.WithFields(logrus.Fields{
		"interval":      s.cfg.Interval,
		"environmental": s.cfg.Environmental.Mode(),
		"electrical":    s.cfg.Electrical.Mode(),
	}).Info("acquisition started")

	for {
		if s.stopFlag.Load() {
			s.log.WithField("cycles", s.cycles).Info("acquisition stopped")
			return nil
		}
		s.runCycle(ctx)

		select {
		case <-ctx.Done():
			s.log.WithField("cycles", s.cycles).Infof("acquisition stopped: %v", ctx.Err())
			return nil
		case <-s.stopCh:
		case <-ticker.C():
		}
	}
}

// Stop asks the loop to exit at the next cycle boundary. An in-flight cycle
// completes first. Stopping an Idle scheduler makes it Stopped.
func (s *Scheduler) Stop() {
	s.stopFlag.Store(true)
	s.state.CompareAndSwap(int32(Idle), int32(Stopped))
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *Scheduler) runCycle(ctx context.Context) {
	s.cycles++
	res := CycleResult{Cycle: s.cycles, StartedAt: time.Now()}

	if e, err := s.cfg.Environmental.Read(); err != nil {
		res.EnvironmentalErr = err
		s.logReadError("environmental", err)
	} else {
		res.Environmental = &e
		if _, err := s.cfg.Store.AppendEnvironmental(ctx, e); err != nil {
			res.EnvironmentalStoreErr = err
			s.log.WithError(err).WithField("kind", "environmental").Error("store append failed")
		}
		s.cfg.Buffer.PushEnvironmental(e)
	}

	if p, err := s.cfg.Electrical.Read(); err != nil {
		res.ElectricalErr = err
		s.logReadError("electrical", err)
	} else {
		res.Electrical = &p
		if _, err := s.cfg.Store.AppendElectrical(ctx, p); err != nil {
			res.ElectricalStoreErr = err
			s.log.WithError(err).WithField("kind", "electrical").Error("store append failed")
		}
		s.cfg.Buffer.PushElectrical(p)
	}

	res.Duration = time.Since(res.StartedAt)
	for _, o := range s.cfg.Observers {
		o.ObserveCycle(res)
	}
}

func (s *Scheduler) logReadError(channel string, err error) {
	entry := s.log.WithError(err).WithField("channel", channel)
	if sensors.IsTransient(err) {
		entry.Debug("no sample this cycle")
		return
	}
	entry.Warn("read failed")
}
