// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/config"
	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/modbus"
	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/power"
	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/sensors"
)

// RegisterValue is one raw input register.
type RegisterValue struct {
	Address uint16 `json:"address"`
	Name    string `json:"name"`
	Raw     uint16 `json:"raw"`
}

// PZEMDump is a raw register read and its decoded form.
type PZEMDump struct {
	Registers []RegisterValue  `json:"registers"`
	Reading   power.Reading    `json:"reading"`
	Unit      power.EnergyUnit `json:"energy_unit"`
}

// RegisterSource returns the raw PZEM input register block.
// *sensors.PZEMChannel satisfies it.
type RegisterSource interface {
	ReadRegisters() ([]uint16, error)
}

// DumpPZEM reads the full input register block once.
func DumpPZEM(src RegisterSource, unit power.EnergyUnit) (*PZEMDump, error) {
	regs, err := src.ReadRegisters()
	if err != nil {
		return nil, err
	}
	reading, err := sensors.DecodeRegisters(regs, unit)
	if err != nil {
		return nil, err
	}
	d := &PZEMDump{Reading: reading, Unit: unit}
	for i, v := range regs {
		addr := uint16(i)
		d.Registers = append(d.Registers, RegisterValue{Address: addr, Name: sensors.RegisterName(addr), Raw: v})
	}
	return d, nil
}

// Render prints the register table followed by the decoded values.
func (d *PZEMDump) Render() string {
	var b strings.Builder
	for _, r := range d.Registers {
		fmt.Fprintf(&b, "0x%04X  %-16s 0x%04X  %6d\n", r.Address, r.Name, r.Raw, r.Raw)
	}
	rd := d.Reading
	fmt.Fprintf(&b, "=> %.1f V  %.3f A  %.1f W  %.3f %s  %.1f Hz  PF %.2f  alarm %d",
		rd.VoltageV, rd.CurrentA, rd.PowerW, rd.Energy, d.Unit, rd.FrequencyHz, rd.PowerFactor, rd.Alarm)
	return b.String()
}

// RunPZEMDebug opens the configured meter and dumps its registers every
// interval. count <= 0 keeps going until ctx is done.
func RunPZEMDebug(ctx context.Context, cfg *config.Config, log logrus.FieldLogger, out io.Writer, count int, interval time.Duration) error {
	log = component(log, "pzem_debug")
	unit, err := power.ParseEnergyUnit(cfg.PZEMEnergyUnit)
	if err != nil {
		return err
	}
	ch, err := sensors.OpenPZEM(modbus.SerialConfig{
		PortName: cfg.PZEMPort,
		BaudRate: uint(cfg.PZEMBaudRate),
		Timeout:  cfg.PZEMTimeout(),
	}, byte(cfg.PZEMSlaveID), unit)
	if err != nil {
		return fmt.Errorf("open %s: %w", cfg.PZEMPort, err)
	}
	defer ch.Close()
	log.WithFields(logrus.Fields{"port": cfg.PZEMPort, "slave": cfg.PZEMSlaveID}).Info("pzem_debug: port open")
	return dumpLoop(ctx, ch, unit, out, count, interval, log)
}

func dumpLoop(ctx context.Context, src RegisterSource, unit power.EnergyUnit, out io.Writer, count int, interval time.Duration, log logrus.FieldLogger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for n := 0; count <= 0 || n < count; n++ {
		if n > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
		d, err := DumpPZEM(src, unit)
		if err != nil {
			log.WithError(err).Warn("pzem_debug: read failed")
			continue
		}
		fmt.Fprintf(out, "--- %s\n%s\n", time.Now().Format("15:04:05.000"), d.Render())
	}
	return nil
}
