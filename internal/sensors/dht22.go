// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// DHT22 single-wire protocol timing.
const (
	dhtStartLow      = 1100 * time.Microsecond
	dhtEdgeTimeout   = 2 * time.Millisecond
	dhtBitThreshold  = 50 * time.Microsecond
	dhtFrameBits     = 40
	dhtMaxEdges      = 2*dhtFrameBits + 8
	dhtMinReadPeriod = 2 * time.Second
)

// supportedDHTPins lists the BCM GPIO numbers the data line may use.
var supportedDHTPins = map[int]bool{4: true, 17: true, 22: true, 23: true, 24: true, 27: true}

// SupportedDHTPins returns the accepted BCM GPIO numbers in ascending order.
func SupportedDHTPins() []int {
	pins := make([]int, 0, len(supportedDHTPins))
	for p := range supportedDHTPins {
		pins = append(pins, p)
	}
	sort.Ints(pins)
	return pins
}

// ValidateDHTPin rejects pins outside the supported set.
func ValidateDHTPin(bcm int) error {
	if !supportedDHTPins[bcm] {
		return fmt.Errorf("%w: GPIO%d (supported: %v)", ErrUnsupportedPin, bcm, SupportedDHTPins())
	}
	return nil
}

type edge struct {
	at    time.Time
	level gpio.Level
}

// DHT22 drives a DHT22/AM2302 on a single GPIO line.
type DHT22 struct {
	mu       sync.Mutex
	pin      gpio.PinIO
	lastRead time.Time
}

// OpenDHT22 initializes the periph host and claims the data pin.
func OpenDHT22(bcm int) (*DHT22, error) {
	if err := ValidateDHTPin(bcm); err != nil {
		return nil, err
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("dht22: periph host init: %w", err)
	}
	name := fmt.Sprintf("GPIO%d", bcm)
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("dht22: pin %q not found", name)
	}
	if err := pin.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("dht22: configure %s: %w", name, err)
	}
	return &DHT22{pin: pin}, nil
}

// ReadRaw performs one transaction and returns humidity (%) and temperature (°C).
// Calls closer together than the sensor's minimum period are delayed.
func (d *DHT22) ReadRaw() (humidity, temperature float64, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if wait := dhtMinReadPeriod - time.Since(d.lastRead); wait > 0 && !d.lastRead.IsZero() {
		time.Sleep(wait)
	}
	edges, err := d.capture()
	d.lastRead = time.Now()
	if err != nil {
		return 0, 0, err
	}
	frame, err := FrameFromPulses(highPulses(edges))
	if err != nil {
		return 0, 0, err
	}
	return DecodeFrame(frame)
}

// capture sends the start signal and records every edge of the reply.
func (d *DHT22) capture() ([]edge, error) {
	if err := d.pin.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("dht22: start signal: %w", err)
	}
	time.Sleep(dhtStartLow)
	if err := d.pin.In(gpio.PullUp, gpio.BothEdges); err != nil {
		return nil, fmt.Errorf("dht22: release line: %w", err)
	}
	defer d.pin.In(gpio.PullUp, gpio.NoEdge)

	edges := make([]edge, 0, dhtMaxEdges)
	for len(edges) < dhtMaxEdges {
		if !d.pin.WaitForEdge(dhtEdgeTimeout) {
			break
		}
		edges = append(edges, edge{at: time.Now(), level: d.pin.Read()})
	}
	if len(edges) == 0 {
		return nil, fmt.Errorf("%w: no response on data line", ErrNoData)
	}
	return edges, nil
}

// Halt releases the pin.
func (d *DHT22) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pin.Halt()
}

// highPulses converts rising/falling edge pairs into high-pulse durations.
func highPulses(edges []edge) []time.Duration {
	var out []time.Duration
	for i := 0; i+1 < len(edges); i++ {
		if edges[i].level == gpio.High && edges[i+1].level == gpio.Low {
			out = append(out, edges[i+1].at.Sub(edges[i].at))
		}
	}
	return out
}

// FrameFromPulses turns the high-pulse widths of a reply into the 5-byte
// frame. The last 40 pulses are the data bits; anything before them is the
// sensor's response preamble.
func FrameFromPulses(pulses []time.Duration) ([5]byte, error) {
	var frame [5]byte
	if len(pulses) < dhtFrameBits {
		return frame, fmt.Errorf("%w: got %d of %d bits", ErrNoData, len(pulses), dhtFrameBits)
	}
	bits := pulses[len(pulses)-dhtFrameBits:]
	for i, p := range bits {
		frame[i/8] <<= 1
		if p > dhtBitThreshold {
			frame[i/8] |= 1
		}
	}
	return frame, nil
}

// DecodeFrame validates the checksum and decodes humidity and temperature.
// Bit 15 of the temperature word is a sign flag, not two's complement.
func DecodeFrame(frame [5]byte) (humidity, temperature float64, err error) {
	sum := frame[0] + frame[1] + frame[2] + frame[3]
	if sum != frame[4] {
		return 0, 0, fmt.Errorf("%w (got %#02x, want %#02x)", ErrChecksum, frame[4], sum)
	}
	humidity = float64(uint16(frame[0])<<8|uint16(frame[1])) / 10
	temperature = float64(uint16(frame[2]&0x7F)<<8|uint16(frame[3])) / 10
	if frame[2]&0x80 != 0 {
		temperature = -temperature
	}
	if humidity > 100 || temperature < -40 || temperature > 80 {
		return 0, 0, fmt.Errorf("%w: out of range (%.1f %%RH, %.1f °C)", ErrNoData, humidity, temperature)
	}
	return humidity, temperature, nil
}
