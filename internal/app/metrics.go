// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/acquisition"
)

// Metrics exports acquisition counters and the latest readings.
type Metrics struct {
	registry *prometheus.Registry

	cycles        prometheus.Counter
	readFailures  *prometheus.CounterVec
	storeErrors   *prometheus.CounterVec
	cycleDuration prometheus.Histogram

	temperature prometheus.Gauge
	humidity    prometheus.Gauge
	dewPoint    prometheus.Gauge
	heatIndex   prometheus.Gauge
	voltage     prometheus.Gauge
	current     prometheus.Gauge
	power       prometheus.Gauge
	energy      prometheus.Gauge
	frequency   prometheus.Gauge
	powerFactor prometheus.Gauge
}

// NewMetrics registers all collectors on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	gauge := func(name, help string) prometheus.Gauge {
		return f.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	}
	return &Metrics{
		registry: reg,
		cycles: f.NewCounter(prometheus.CounterOpts{
			Name: "surveillance_cycles_total",
			Help: "Acquisition cycles run",
		}),
		readFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "surveillance_read_failures_total",
			Help: "Sensor reads that produced no sample",
		}, []string{"channel"}),
		storeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "surveillance_store_errors_total",
			Help: "Samples that could not be persisted",
		}, []string{"kind"}),
		cycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "surveillance_cycle_duration_seconds",
			Help:    "Time spent in one acquisition cycle",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		}),
		temperature: gauge("surveillance_temperature_celsius", "Latest temperature"),
		humidity:    gauge("surveillance_humidity_percent", "Latest relative humidity"),
		dewPoint:    gauge("surveillance_dew_point_celsius", "Latest dew point"),
		heatIndex:   gauge("surveillance_heat_index_celsius", "Latest heat index"),
		voltage:     gauge("surveillance_voltage_volts", "Latest line voltage"),
		current:     gauge("surveillance_current_amperes", "Latest current"),
		power:       gauge("surveillance_power_watts", "Latest active power"),
		energy:      gauge("surveillance_energy", "Latest energy counter, in the store's unit"),
		frequency:   gauge("surveillance_frequency_hertz", "Latest line frequency"),
		powerFactor: gauge("surveillance_power_factor", "Latest power factor"),
	}
}

// ObserveCycle implements acquisition.Observer.
func (m *Metrics) ObserveCycle(r acquisition.CycleResult) {
	m.cycles.Inc()
	m.cycleDuration.Observe(r.Duration.Seconds())

	if r.EnvironmentalErr != nil {
		m.readFailures.WithLabelValues("environmental").Inc()
	}
	if r.ElectricalErr != nil {
		m.readFailures.WithLabelValues("electrical").Inc()
	}
	if r.EnvironmentalStoreErr != nil {
		m.storeErrors.WithLabelValues("environmental").Inc()
	}
	if r.ElectricalStoreErr != nil {
		m.storeErrors.WithLabelValues("electrical").Inc()
	}

	if e := r.Environmental; e != nil {
		m.temperature.Set(e.TemperatureC)
		m.humidity.Set(e.HumidityPct)
		m.dewPoint.Set(e.DewPointC)
		m.heatIndex.Set(e.HeatIndexC)
	}
	if p := r.Electrical; p != nil {
		m.voltage.Set(p.VoltageV)
		m.current.Set(p.CurrentA)
		m.power.Set(p.PowerW)
		m.energy.Set(p.Energy)
		m.frequency.Set(p.FrequencyHz)
		m.powerFactor.Set(p.PowerFactor)
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
