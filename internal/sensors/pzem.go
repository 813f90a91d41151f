// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"sync"
	"time"

	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/modbus"
	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/power"
	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/units"
)

const (
	// PZEMRegisterCount is the number of input registers read per cycle.
	PZEMRegisterCount = 10
	pzemMinRegisters  = 9
)

// RegisterReader is the Modbus transaction used by PZEMChannel.
// *modbus.Client satisfies it.
type RegisterReader interface {
	ReadInputRegisters(address, quantity uint16) ([]uint16, error)
	Close() error
}

func word32(lo, hi uint16) uint32 {
	return uint32(lo) | uint32(hi)<<16
}

// DecodeRegisters converts raw PZEM input registers into engineering units.
// The alarm register is optional; fewer than 9 registers is an error.
func DecodeRegisters(regs []uint16, unit power.EnergyUnit) (power.Reading, error) {
	if len(regs) < pzemMinRegisters {
		return power.Reading{}, fmt.Errorf("pzem: decode needs at least %d registers, got %d", pzemMinRegisters, len(regs))
	}
	r := power.Reading{
		VoltageV:    float64(regs[0]) / 10,
		CurrentA:    float64(word32(regs[1], regs[2])) / 1000,
		PowerW:      float64(word32(regs[3], regs[4])) / 10,
		Energy:      float64(word32(regs[5], regs[6])),
		FrequencyHz: float64(regs[7]) / 10,
		PowerFactor: float64(regs[8]) / 100,
	}
	switch unit {
	case power.WattHour:
	case power.KilowattHour:
		r.Energy /= 1000
	default:
		return power.Reading{}, fmt.Errorf("pzem: unsupported energy unit %q", unit)
	}
	if len(regs) >= PZEMRegisterCount {
		r.Alarm = int(regs[9])
	}
	return r, nil
}

// PZEMChannel reads a PZEM-004T over Modbus-RTU.
type PZEMChannel struct {
	client RegisterReader
	unit   power.EnergyUnit
	now    func() time.Time
}

// NewPZEMChannel wraps an already open register reader.
func NewPZEMChannel(client RegisterReader, unit power.EnergyUnit, opts ...Option) *PZEMChannel {
	o := buildOptions(opts)
	return &PZEMChannel{client: client, unit: unit, now: o.now}
}

// OpenPZEM opens the serial link once and returns a hardware channel.
func OpenPZEM(cfg modbus.SerialConfig, slave byte, unit power.EnergyUnit, opts ...Option) (*PZEMChannel, error) {
	if _, err := power.ParseEnergyUnit(string(unit)); err != nil {
		return nil, err
	}
	client, err := modbus.Dial(cfg, slave)
	if err != nil {
		return nil, fmt.Errorf("pzem: %w", err)
	}
	return NewPZEMChannel(client, unit, opts...), nil
}

// Read issues one read-input-registers transaction. Failures are returned as
// is; the link is not reopened.
func (c *PZEMChannel) Read() (power.Sample, error) {
	regs, err := c.client.ReadInputRegisters(0, PZEMRegisterCount)
	if err != nil {
		return power.Sample{}, fmt.Errorf("pzem read: %w", err)
	}
	r, err := DecodeRegisters(regs, c.unit)
	if err != nil {
		return power.Sample{}, err
	}
	return power.NewSample(c.now(), r, c.unit), nil
}

// ReadRegisters returns the raw registers, for diagnostics.
func (c *PZEMChannel) ReadRegisters() ([]uint16, error) {
	return c.client.ReadInputRegisters(0, PZEMRegisterCount)
}

func (c *PZEMChannel) Mode() Mode { return ModeHardware }

// Close releases the serial port.
func (c *PZEMChannel) Close() error { return c.client.Close() }

// Simulated power random-walk parameters.
const (
	simVoltageStart = 230.0
	simVoltageStep  = 2.0
	simVoltageMin   = 200.0
	simVoltageMax   = 250.0
	simCurrentStart = 1.5
	simCurrentStep  = 0.1
	simCurrentMax   = 10.0
	simFrequency    = 50.0
	simFrequencyDev = 0.5
	simPowerFactor  = 0.95
	simPFDev        = 0.05
	secondsPerHour  = 3600.0
)

// SimulatedPower fakes a PZEM on a lightly loaded circuit. Each Read
// integrates one second of the current power into the energy counter.
type SimulatedPower struct {
	mu      sync.Mutex
	o       options
	unit    power.EnergyUnit
	voltage float64
	current float64
	energy  float64
}

// NewSimulatedPower returns a simulated electrical channel reporting energy in unit.
func NewSimulatedPower(unit power.EnergyUnit, opts ...Option) *SimulatedPower {
	return &SimulatedPower{
		o:       buildOptions(opts),
		unit:    unit,
		voltage: simVoltageStart,
		current: simCurrentStart,
	}
}

// Read never fails.
func (s *SimulatedPower) Read() (power.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.voltage = units.Clamp(s.voltage+spread(s.o.rnd, simVoltageStep), simVoltageMin, simVoltageMax)
	s.current = units.Clamp(s.current+spread(s.o.rnd, simCurrentStep), 0, simCurrentMax)
	p := s.voltage * s.current

	wh := p / secondsPerHour
	if s.unit == power.KilowattHour {
		s.energy += wh / 1000
	} else {
		s.energy += wh
	}

	r := power.Reading{
		VoltageV:    s.voltage,
		CurrentA:    s.current,
		PowerW:      p,
		Energy:      s.energy,
		FrequencyHz: simFrequency + spread(s.o.rnd, simFrequencyDev),
		PowerFactor: units.Clamp(simPowerFactor+spread(s.o.rnd, simPFDev), 0, 1),
	}
	return power.NewSample(s.o.now(), r, s.unit), nil
}

func (s *SimulatedPower) Mode() Mode { return ModeSimulated }

func (s *SimulatedPower) Close() error { return nil }
