// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package modbus implements the subset of Modbus-RTU needed to poll a
// PZEM-004T meter: function 0x04 (read input registers) over a serial line.
package modbus

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
)

// FuncReadInputRegisters is the Modbus function code for "read input registers".
const FuncReadInputRegisters byte = 0x04

// maxReadRegisters is the protocol limit for one read request.
const maxReadRegisters = 125

var (
	// ErrCRC is returned when a response frame fails its CRC check.
	ErrCRC = errors.New("modbus: crc mismatch")
	// ErrTimeout is returned when the device stops answering mid-frame or
	// not at all within the serial read timeout.
	ErrTimeout = errors.New("modbus: response timeout")
	// ErrInvalidResponse covers frames with the wrong slave, function or length.
	ErrInvalidResponse = errors.New("modbus: invalid response")
)

// ExceptionError is a Modbus exception response (function | 0x80).
type ExceptionError struct {
	Function byte
	Code     byte
}

func (e *ExceptionError) Error() string {
	return fmt.Sprintf("modbus: exception 0x%02X for function 0x%02X (%s)", e.Code, e.Function, exceptionText(e.Code))
}

func exceptionText(code byte) string {
	switch code {
	case 0x01:
		return "illegal function"
	case 0x02:
		return "illegal data address"
	case 0x03:
		return "illegal data value"
	case 0x04:
		return "slave device failure"
	default:
		return "unknown"
	}
}

// CRC16 computes the Modbus CRC (poly 0xA001 reflected, init 0xFFFF).
// On the wire the low byte goes first.
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&0x0001 != 0 {
				crc = (crc >> 1) ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

// appendCRC appends the CRC of frame in wire order.
func appendCRC(frame []byte) []byte {
	crc := CRC16(frame)
	return append(frame, byte(crc), byte(crc>>8))
}

func checkCRC(frame []byte) bool {
	if len(frame) < 3 {
		return false
	}
	body := frame[:len(frame)-2]
	want := binary.LittleEndian.Uint16(frame[len(frame)-2:])
	return CRC16(body) == want
}

// ReadInputRegistersRequest builds the RTU request frame.
func ReadInputRegistersRequest(slave byte, address, quantity uint16) []byte {
	frame := make([]byte, 6, 8)
	frame[0] = slave
	frame[1] = FuncReadInputRegisters
	binary.BigEndian.PutUint16(frame[2:], address)
	binary.BigEndian.PutUint16(frame[4:], quantity)
	return appendCRC(frame)
}

// Client is a Modbus-RTU master bound to one slave on one serial port.
// Transactions are serialized.
type Client struct {
	mu    sync.Mutex
	port  io.ReadWriteCloser
	slave byte
	// dirty is set after a failed transaction; the line may still carry
	// the rest of a late frame.
	dirty bool
}

// NewClient wraps an already opened port.
func NewClient(port io.ReadWriteCloser, slave byte) *Client {
	return &Client{port: port, slave: slave}
}

// Slave returns the slave address this client talks to.
func (c *Client) Slave() byte { return c.slave }

// ReadInputRegisters performs one function 0x04 transaction and returns the
// register values in order.
func (c *Client) ReadInputRegisters(address, quantity uint16) ([]uint16, error) {
	if quantity == 0 || quantity > maxReadRegisters {
		return nil, fmt.Errorf("modbus: invalid register quantity %d", quantity)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.port == nil {
		return nil, errors.New("modbus: client closed")
	}

	if c.dirty {
		drain(c.port)
		c.dirty = false
	}

	regs, err := c.transact(address, quantity)
	var exc *ExceptionError
	if err != nil && !errors.As(err, &exc) {
		c.dirty = true
		drain(c.port)
	}
	return regs, err
}

func (c *Client) transact(address, quantity uint16) ([]uint16, error) {
	req := ReadInputRegistersRequest(c.slave, address, quantity)
	if _, err := c.port.Write(req); err != nil {
		return nil, fmt.Errorf("modbus: write request: %w", err)
	}

	// slave, function, byte count (or exception code)
	header := make([]byte, 3)
	if err := readFull(c.port, header); err != nil {
		return nil, err
	}
	if header[0] != c.slave {
		return nil, fmt.Errorf("%w: slave 0x%02X, want 0x%02X", ErrInvalidResponse, header[0], c.slave)
	}

	if header[1] == FuncReadInputRegisters|0x80 {
		crc := make([]byte, 2)
		if err := readFull(c.port, crc); err != nil {
			return nil, err
		}
		if !checkCRC(append(header, crc...)) {
			return nil, ErrCRC
		}
		return nil, &ExceptionError{Function: FuncReadInputRegisters, Code: header[2]}
	}
	if header[1] != FuncReadInputRegisters {
		return nil, fmt.Errorf("%w: function 0x%02X", ErrInvalidResponse, header[1])
	}

	byteCount := int(header[2])
	if byteCount != int(quantity)*2 {
		return nil, fmt.Errorf("%w: byte count %d, want %d", ErrInvalidResponse, byteCount, quantity*2)
	}

	rest := make([]byte, byteCount+2)
	if err := readFull(c.port, rest); err != nil {
		return nil, err
	}
	frame := append(header, rest...)
	if !checkCRC(frame) {
		return nil, ErrCRC
	}

	return DecodeRegisterWords(rest[:byteCount]), nil
}

// DecodeRegisterWords splits big-endian register bytes into 16-bit values.
func DecodeRegisterWords(data []byte) []uint16 {
	regs := make([]uint16, len(data)/2)
	for i := range regs {
		regs[i] = binary.BigEndian.Uint16(data[2*i:])
	}
	return regs
}

// Close releases the serial port. It is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.port == nil {
		return nil
	}
	err := c.port.Close()
	c.port = nil
	return err
}

// drain discards pending input until the line goes quiet: a read returns
// no data, EOF or an error.
func drain(r io.Reader) {
	const maxDrainReads = 64

	buf := make([]byte, 256)
	for i := 0; i < maxDrainReads; i++ {
		k, err := r.Read(buf)
		if k == 0 || err != nil {
			return
		}
	}
}

// readFull reads len(buf) bytes. A serial port in timeout mode reports an
// expired timeout as a zero-length read or io.EOF.
func readFull(r io.Reader, buf []byte) error {
	const maxEmptyReads = 3

	n, empty := 0, 0
	for n < len(buf) {
		k, err := r.Read(buf[n:])
		n += k
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ErrTimeout
			}
			return fmt.Errorf("modbus: read response: %w", err)
		}
		if k == 0 {
			empty++
			if empty >= maxEmptyReads {
				return ErrTimeout
			}
		}
	}
	return nil
}
