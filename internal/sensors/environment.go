// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"sync"
	"time"

	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/env"
	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/units"
)

// HumiditySensor is the raw device behind an environmental channel.
type HumiditySensor interface {
	ReadRaw() (humidity, temperature float64, err error)
	Halt() error
}

// DHT22Channel wraps a humidity sensor into an EnvironmentalChannel.
type DHT22Channel struct {
	dev HumiditySensor
	now func() time.Time
}

// NewDHT22Channel returns a hardware channel over dev.
func NewDHT22Channel(dev HumiditySensor, opts ...Option) *DHT22Channel {
	o := buildOptions(opts)
	return &DHT22Channel{dev: dev, now: o.now}
}

// Read takes one measurement. A failed transaction yields an error wrapping
// ErrNoData; there is no retry inside a cycle.
func (c *DHT22Channel) Read() (env.Sample, error) {
	h, t, err := c.dev.ReadRaw()
	if err != nil {
		return env.Sample{}, fmt.Errorf("dht22 read: %w", err)
	}
	return env.NewSample(c.now(), t, h), nil
}

func (c *DHT22Channel) Mode() Mode { return ModeHardware }

func (c *DHT22Channel) Close() error { return c.dev.Halt() }

// Simulated environment random-walk parameters.
const (
	simTemperatureStart = 22.0
	simTemperatureStep  = 0.5
	simTemperatureMin   = -10.0
	simTemperatureMax   = 50.0
	simHumidityStart    = 50.0
	simHumidityStep     = 2.0
	simHumidityMin      = 1.0 // keeps the dew point defined
	simHumidityMax      = 100.0
)

// SimulatedEnvironment random-walks temperature and humidity from a
// room-like starting point.
type SimulatedEnvironment struct {
	mu       sync.Mutex
	o        options
	temp     float64
	humidity float64
}

// NewSimulatedEnvironment returns a simulated environmental channel.
func NewSimulatedEnvironment(opts ...Option) *SimulatedEnvironment {
	return &SimulatedEnvironment{
		o:        buildOptions(opts),
		temp:     simTemperatureStart,
		humidity: simHumidityStart,
	}
}

// Read never fails.
func (s *SimulatedEnvironment) Read() (env.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.temp = units.Clamp(s.temp+spread(s.o.rnd, simTemperatureStep), simTemperatureMin, simTemperatureMax)
	s.humidity = units.Clamp(s.humidity+spread(s.o.rnd, simHumidityStep), simHumidityMin, simHumidityMax)
	return env.NewSample(s.o.now(), s.temp, s.humidity), nil
}

func (s *SimulatedEnvironment) Mode() Mode { return ModeSimulated }

func (s *SimulatedEnvironment) Close() error { return nil }
