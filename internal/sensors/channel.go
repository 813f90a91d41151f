// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/env"
	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/power"
)

// Mode tells whether a channel talks to hardware or simulates it.
type Mode string

const (
	ModeHardware  Mode = "hardware"
	ModeSimulated Mode = "simulated"
)

var (
	// ErrNoData marks a transient miss: the sensor produced no usable
	// reading this time. The next cycle simply tries again.
	ErrNoData = errors.New("sensor returned no data")

	// ErrChecksum is a DHT22 frame whose checksum byte does not match.
	ErrChecksum = fmt.Errorf("%w: checksum mismatch", ErrNoData)

	// ErrUnsupportedPin is a configuration fault.
	ErrUnsupportedPin = errors.New("unsupported GPIO pin")
)

// IsTransient reports whether err is an expected, non-fatal miss.
func IsTransient(err error) bool {
	return errors.Is(err, ErrNoData)
}

// EnvironmentalChannel produces temperature/humidity samples.
// Read returns either a fully populated sample or an error, never both.
type EnvironmentalChannel interface {
	Read() (env.Sample, error)
	Mode() Mode
	Close() error
}

// ElectricalChannel produces electrical samples.
type ElectricalChannel interface {
	Read() (power.Sample, error)
	Mode() Mode
	Close() error
}

// Option customizes channel construction.
type Option func(*options)

type options struct {
	now func() time.Time
	rnd *rand.Rand
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithRand sets the random source for simulated channels.
func WithRand(r *rand.Rand) Option {
	return func(o *options) { o.rnd = r }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rnd == nil {
		o.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return o
}

// spread returns a uniform value in [-width, width].
func spread(r *rand.Rand, width float64) float64 {
	return (r.Float64()*2 - 1) * width
}
