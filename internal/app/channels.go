// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/config"
	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/modbus"
	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/power"
	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/sensors"
)

// Hardware openers, replaced in tests.
var (
	openDHT22 = func(gpio int) (sensors.HumiditySensor, error) { return sensors.OpenDHT22(gpio) }
	openPZEM  = sensors.OpenPZEM
)

// NewEnvironmentalChannel selects the DHT22 or its simulation. An
// unsupported pin is always fatal; other open failures fall back to
// simulation when cfg.SimulationFallback is set.
func NewEnvironmentalChannel(cfg *config.Config, log logrus.FieldLogger) (sensors.EnvironmentalChannel, error) {
	log = component(log, "dht22")
	if cfg.DHTSimulate {
		log.Info("using simulated environment")
		return sensors.NewSimulatedEnvironment(), nil
	}
	if err := sensors.ValidateDHTPin(cfg.DHTGPIO); err != nil {
		return nil, err
	}
	dev, err := openDHT22(cfg.DHTGPIO)
	if err != nil {
		if cfg.SimulationFallback && !errors.Is(err, sensors.ErrUnsupportedPin) {
			log.WithError(err).Warn("DHT22 unavailable, falling back to simulation")
			return sensors.NewSimulatedEnvironment(), nil
		}
		return nil, fmt.Errorf("open DHT22 on GPIO%d: %w", cfg.DHTGPIO, err)
	}
	log.WithField("gpio", cfg.DHTGPIO).Info("DHT22 initialized")
	return sensors.NewDHT22Channel(dev), nil
}

// NewElectricalChannel selects the PZEM-004T or its simulation.
func NewElectricalChannel(cfg *config.Config, log logrus.FieldLogger) (sensors.ElectricalChannel, error) {
	log = component(log, "pzem")
	unit, err := power.ParseEnergyUnit(cfg.PZEMEnergyUnit)
	if err != nil {
		return nil, err
	}
	if cfg.PZEMSimulate {
		log.Info("using simulated power meter")
		return sensors.NewSimulatedPower(unit), nil
	}
	serialCfg := modbus.SerialConfig{
		PortName: cfg.PZEMPort,
		BaudRate: uint(cfg.PZEMBaudRate),
		Timeout:  cfg.PZEMTimeout(),
	}
	ch, err := openPZEM(serialCfg, byte(cfg.PZEMSlaveID), unit)
	if err != nil {
		if cfg.SimulationFallback {
			log.WithError(err).Warn("PZEM unavailable, falling back to simulation")
			return sensors.NewSimulatedPower(unit), nil
		}
		return nil, fmt.Errorf("open PZEM on %s: %w", cfg.PZEMPort, err)
	}
	log.WithFields(logrus.Fields{"port": cfg.PZEMPort, "slave": cfg.PZEMSlaveID, "energy_unit": unit}).Info("PZEM-004T initialized")
	return ch, nil
}
