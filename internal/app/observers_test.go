package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/acquisition"
	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/env"
	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/power"
	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/sensors"
)

func sampleCycle() acquisition.CycleResult {
	ts := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	e := env.NewSample(ts, 32, 70)
	p := power.NewSample(ts, power.Reading{VoltageV: 230, CurrentA: 1.5, PowerW: 345, Energy: 12.5, FrequencyHz: 50, PowerFactor: 0.95}, power.WattHour)
	return acquisition.CycleResult{Cycle: 7, StartedAt: ts, Duration: 15 * time.Millisecond, Environmental: &e, Electrical: &p}
}

func TestMetricsObserveCycle(t *testing.T) {
	m := NewMetrics()
	m.ObserveCycle(sampleCycle())
	m.ObserveCycle(acquisition.CycleResult{
		EnvironmentalErr: sensors.ErrChecksum,
		ElectricalErr:    errors.New("timeout"),
	})
	failed := sampleCycle()
	failed.ElectricalStoreErr = errors.New("disk full")
	m.ObserveCycle(failed)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.cycles))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.readFailures.WithLabelValues("environmental")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.readFailures.WithLabelValues("electrical")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeErrors.WithLabelValues("electrical")))
	assert.Equal(t, 32.0, testutil.ToFloat64(m.temperature))
	assert.Equal(t, 40.41, testutil.ToFloat64(m.heatIndex))
	assert.Equal(t, 345.0, testutil.ToFloat64(m.power))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `surveillance_read_failures_total{channel="electrical"} 1`)
}

type fakeToken struct {
	err error
}

func (fakeToken) Wait() bool                       { return true }
func (fakeToken) WaitTimeout(time.Duration) bool   { return true }
func (fakeToken) Done() <-chan struct{}            { ch := make(chan struct{}); close(ch); return ch }
func (t fakeToken) Error() error                   { return t.err }

type published struct {
	topic    string
	retained bool
	payload  []byte
}

type fakeMQTT struct {
	mu  sync.Mutex
	msg []published
	err error
}

func (f *fakeMQTT) Publish(topic string, _ byte, retained bool, payload interface{}) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msg = append(f.msg, published{topic: topic, retained: retained, payload: payload.([]byte)})
	return fakeToken{err: f.err}
}

func TestPublisherSendsRetainedJSON(t *testing.T) {
	log, _ := test.NewNullLogger()
	client := &fakeMQTT{}
	p := newPublisher(client, "surveillance/environment", "surveillance/electrical", log)

	p.ObserveCycle(sampleCycle())
	p.ObserveCycle(acquisition.CycleResult{EnvironmentalErr: sensors.ErrNoData})
	p.Close()

	require.Len(t, client.msg, 2)
	assert.Equal(t, "surveillance/environment", client.msg[0].topic)
	assert.True(t, client.msg[0].retained)
	var e env.Sample
	require.NoError(t, json.Unmarshal(client.msg[0].payload, &e))
	assert.Equal(t, 32.0, e.TemperatureC)

	assert.Equal(t, "surveillance/electrical", client.msg[1].topic)
	var s power.Sample
	require.NoError(t, json.Unmarshal(client.msg[1].payload, &s))
	assert.Equal(t, power.WattHour, s.EnergyUnit)
	assert.Equal(t, 12.5, s.Energy)
}

func TestPublisherLogsErrors(t *testing.T) {
	log, hook := test.NewNullLogger()
	p := newPublisher(&fakeMQTT{err: errors.New("not connected")}, "a", "b", log)
	p.ObserveCycle(sampleCycle())
	p.Close()
	require.Len(t, hook.AllEntries(), 2)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

// stalledToken never completes until release is closed.
type stalledToken struct {
	release chan struct{}
}

func (t stalledToken) Wait() bool { <-t.release; return true }
func (t stalledToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.release:
		return true
	case <-time.After(d):
		return false
	}
}
func (t stalledToken) Done() <-chan struct{} { return t.release }
func (stalledToken) Error() error            { return nil }

type stalledMQTT struct {
	release chan struct{}
}

func (s stalledMQTT) Publish(string, byte, bool, interface{}) mqtt.Token {
	return stalledToken{release: s.release}
}

func TestPublisherNeverBlocksCycle(t *testing.T) {
	log, hook := test.NewNullLogger()
	release := make(chan struct{})
	p := newPublisher(stalledMQTT{release: release}, "a", "b", log)

	start := time.Now()
	for i := 0; i < publishQueueSize; i++ {
		p.ObserveCycle(sampleCycle())
	}
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	var dropped int
	for _, e := range hook.AllEntries() {
		if strings.Contains(e.Message, "queue full") {
			dropped++
		}
	}
	assert.Positive(t, dropped)

	close(release)
	p.Close()
	p.Close()
	p.ObserveCycle(sampleCycle())
}

func TestMQTTClientIDIsUnique(t *testing.T) {
	a, b := mqttClientID("surveillance"), mqttClientID("surveillance")
	assert.True(t, strings.HasPrefix(a, "surveillance-"))
	assert.Len(t, a, len("surveillance-")+8)
	assert.NotEqual(t, a, b)
}

func TestRenderCycle(t *testing.T) {
	out := RenderCycle(sampleCycle())
	assert.Contains(t, out, "cycle 7")
	assert.Contains(t, out, "32.00 °C")
	assert.Contains(t, out, "230.00 V")
	assert.Contains(t, out, "12.500 Wh")

	failed := RenderCycle(acquisition.CycleResult{Cycle: 8, EnvironmentalErr: sensors.ErrChecksum})
	assert.Contains(t, failed, "no sample: sensor returned no data: checksum mismatch")
	assert.Contains(t, failed, "no sample: unknown")

	bad := sampleCycle()
	bad.EnvironmentalStoreErr = errors.New("disk full")
	assert.Contains(t, RenderCycle(bad), "not stored")
}

func TestReporterWrites(t *testing.T) {
	var buf bytes.Buffer
	NewReporter(&buf).ObserveCycle(sampleCycle())
	assert.Contains(t, buf.String(), "cycle 7")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLogger("debug", "json", &buf)
	require.NoError(t, err)
	component(log, "store").Debug("hello")
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "store", entry["component"])
	assert.Equal(t, "hello", entry["msg"])

	_, err = NewLogger("loud", "text", &buf)
	assert.Error(t, err)
	_, err = NewLogger("info", "xml", &buf)
	assert.Error(t, err)
}
