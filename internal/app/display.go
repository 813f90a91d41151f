package app

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/env"
	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/power"
)

// DisplayAddr is the only I2C address the upstream ssd1306 driver talks to.
const DisplayAddr = 0x3C

const (
	displayW = 128
	displayH = 64
)

// LatestSource returns the newest sample of each kind.
type LatestSource interface {
	Latest() (e env.Sample, hasEnv bool, p power.Sample, hasPower bool)
}

// RunDisplay shows the latest readings on an SSD1306 OLED until ctx is done.
func RunDisplay(ctx context.Context, busName string, interval time.Duration, src LatestSource, log logrus.FieldLogger) error {
	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	defer dev.Halt()
	log.Infof("display: initialized at 0x%02X", DisplayAddr)

	if err := dev.Draw(dev.Bounds(), RenderSplash(), image.Point{}); err != nil {
		log.WithError(err).Warn("display: error showing splash")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		e, hasEnv, p, hasPower := src.Latest()
		if err := dev.Draw(dev.Bounds(), RenderStatus(e, hasEnv, p, hasPower), image.Point{}); err != nil {
			log.WithError(err).Warn("display: error updating")
		}
	}
}

func newCanvas() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayW, displayH))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	return img, drawer
}

func drawLine(d *font.Drawer, x, y int, s string) {
	d.Dot = fixed.P(x, y)
	d.DrawString(s)
}

// RenderSplash draws the startup screen.
func RenderSplash() *image1bit.VerticalLSB {
	img, d := newCanvas()
	drawLine(d, 10, 26, "Surveillance")
	drawLine(d, 10, 43, "DHT22 + PZEM")
	return img
}

// RenderStatus draws four lines: temperature/humidity, dew point/heat
// index, voltage/current and power/frequency.
func RenderStatus(e env.Sample, hasEnv bool, p power.Sample, hasPower bool) *image1bit.VerticalLSB {
	img, d := newCanvas()
	if hasEnv {
		drawLine(d, 0, 13, fmt.Sprintf("%5.1fC  %5.1f%%", e.TemperatureC, e.HumidityPct))
		drawLine(d, 0, 26, fmt.Sprintf("DP%5.1f HI%5.1f", e.DewPointC, e.HeatIndexC))
	} else {
		drawLine(d, 0, 13, "DHT22")
		drawLine(d, 0, 26, "Waiting...")
	}
	if hasPower {
		drawLine(d, 0, 39, fmt.Sprintf("%5.1fV %6.3fA", p.VoltageV, p.CurrentA))
		drawLine(d, 0, 52, fmt.Sprintf("%6.1fW %4.1fHz", p.PowerW, p.FrequencyHz))
	} else {
		drawLine(d, 0, 39, "PZEM")
		drawLine(d, 0, 52, "Waiting...")
	}
	return img
}
