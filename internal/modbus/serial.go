// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package modbus

import (
	"fmt"
	"io"
	"time"

	serial "github.com/jacobsa/go-serial/serial"
)

// SerialConfig describes the RTU line. PZEM-004T uses 9600 8-N-1.
type SerialConfig struct {
	PortName string
	BaudRate uint
	Timeout  time.Duration
}

// OpenSerial opens the port 8-N-1 in timeout mode: a read returns whatever
// arrived once the line has been silent for Timeout. The driver works in
// 100ms steps, so Timeout is rounded down to a multiple of 100ms (minimum
// 100ms).
func OpenSerial(cfg SerialConfig) (io.ReadWriteCloser, error) {
	timeoutMS := uint(cfg.Timeout/time.Millisecond) / 100 * 100
	if timeoutMS == 0 {
		timeoutMS = 100
	}

	opts := serial.OpenOptions{
		PortName:              cfg.PortName,
		BaudRate:              cfg.BaudRate,
		DataBits:              8,
		StopBits:              1,
		ParityMode:            serial.PARITY_NONE,
		MinimumReadSize:       0,
		InterCharacterTimeout: timeoutMS,
	}

	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.PortName, err)
	}
	return port, nil
}

// Dial opens the serial port and returns a client for slave.
func Dial(cfg SerialConfig, slave byte) (*Client, error) {
	port, err := OpenSerial(cfg)
	if err != nil {
		return nil, err
	}
	return NewClient(port, slave), nil
}
