package acquisition

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/buffer"
	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/env"
	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/power"
	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/sensors"
)

type fakeTicker struct {
	ch      chan time.Time
	stopped bool
}

func (f *fakeTicker) C() <-chan time.Time { return f.ch }
func (f *fakeTicker) Stop()               { f.stopped = true }

type envChannel struct {
	err error
}

func (c envChannel) Read() (env.Sample, error) {
	if c.err != nil {
		return env.Sample{}, c.err
	}
	return env.NewSample(time.Now(), 21, 40), nil
}
func (envChannel) Mode() sensors.Mode { return sensors.ModeSimulated }
func (envChannel) Close() error       { return nil }

type elecChannel struct {
	err error
}

func (c elecChannel) Read() (power.Sample, error) {
	if c.err != nil {
		return power.Sample{}, c.err
	}
	return power.NewSample(time.Now(), power.Reading{VoltageV: 230, CurrentA: 1}, power.WattHour), nil
}
func (elecChannel) Mode() sensors.Mode { return sensors.ModeSimulated }
func (elecChannel) Close() error       { return nil }

type memStore struct {
	mu   sync.Mutex
	envs []env.Sample
	pwr  []power.Sample
	err  error
}

func (m *memStore) AppendEnvironmental(_ context.Context, s env.Sample) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.envs = append(m.envs, s)
	return int64(len(m.envs)), nil
}

func (m *memStore) AppendElectrical(_ context.Context, s power.Sample) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.pwr = append(m.pwr, s)
	return int64(len(m.pwr)), nil
}

func (m *memStore) counts() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.envs), len(m.pwr)
}

type harness struct {
	sched   *Scheduler
	ticker  *fakeTicker
	store   *memStore
	buf     *buffer.Recent
	results chan CycleResult
}

func newHarness(t *testing.T, envCh sensors.EnvironmentalChannel, elecCh sensors.ElectricalChannel, st *memStore) *harness {
	t.Helper()
	log, _ := test.NewNullLogger()
	h := &harness{
		ticker:  &fakeTicker{ch: make(chan time.Time)},
		store:   st,
		buf:     buffer.NewRecent(buffer.DefaultCapacity),
		results: make(chan CycleResult, 16),
	}
	s, err := New(Config{
		Interval:      time.Second,
		Environmental: envCh,
		Electrical:    elecCh,
		Store:         st,
		Buffer:        h.buf,
		Logger:        log,
		Observers:     []Observer{ObserverFunc(func(r CycleResult) { h.results <- r })},
		NewTicker:     func(time.Duration) Ticker { return h.ticker },
	})
	require.NoError(t, err)
	h.sched = s
	return h
}

func (h *harness) start(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	go func() { done <- h.sched.Run(ctx) }()
	return done
}

func (h *harness) next(t *testing.T) CycleResult {
	t.Helper()
	select {
	case r := <-h.results:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for cycle")
		return CycleResult{}
	}
}

func wait(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not exit")
		return nil
	}
}

func TestRunCyclesOnTicksUntilStopped(t *testing.T) {
	h := newHarness(t, envChannel{}, elecChannel{}, &memStore{})
	assert.Equal(t, Idle, h.sched.State())

	done := h.start(context.Background())
	first := h.next(t)
	assert.Equal(t, uint64(1), first.Cycle)
	require.NotNil(t, first.Environmental)
	require.NotNil(t, first.Electrical)
	assert.Equal(t, Running, h.sched.State())

	h.ticker.ch <- time.Now()
	assert.Equal(t, uint64(2), h.next(t).Cycle)
	h.ticker.ch <- time.Now()
	assert.Equal(t, uint64(3), h.next(t).Cycle)

	h.sched.Stop()
	require.NoError(t, wait(t, done))
	assert.Equal(t, Stopped, h.sched.State())
	assert.True(t, h.ticker.stopped)

	envs, pwr := h.store.counts()
	assert.Equal(t, 3, envs)
	assert.Equal(t, 3, pwr)
	snap := h.buf.Snapshot()
	assert.Len(t, snap.Environmental, 3)
	assert.Len(t, snap.Electrical, 3)

	assert.ErrorIs(t, h.sched.Run(context.Background()), ErrStopped)
}

func TestRunTwiceIsRejected(t *testing.T) {
	h := newHarness(t, envChannel{}, elecChannel{}, &memStore{})
	done := h.start(context.Background())
	h.next(t)

	assert.ErrorIs(t, h.sched.Run(context.Background()), ErrAlreadyRunning)

	h.sched.Stop()
	require.NoError(t, wait(t, done))
}

func TestStopBeforeRun(t *testing.T) {
	h := newHarness(t, envChannel{}, elecChannel{}, &memStore{})
	h.sched.Stop()
	assert.Equal(t, Stopped, h.sched.State())
	assert.ErrorIs(t, h.sched.Run(context.Background()), ErrStopped)
}

func TestContextCancelExits(t *testing.T) {
	h := newHarness(t, envChannel{}, elecChannel{}, &memStore{})
	ctx, cancel := context.WithCancel(context.Background())
	done := h.start(ctx)
	h.next(t)
	cancel()
	require.NoError(t, wait(t, done))
	assert.Equal(t, Stopped, h.sched.State())
}

func TestChannelFailureDoesNotBlockTheOther(t *testing.T) {
	h := newHarness(t, envChannel{err: sensors.ErrChecksum}, elecChannel{}, &memStore{})
	done := h.start(context.Background())

	r := h.next(t)
	assert.Nil(t, r.Environmental)
	assert.ErrorIs(t, r.EnvironmentalErr, sensors.ErrNoData)
	require.NotNil(t, r.Electrical)
	assert.NoError(t, r.ElectricalErr)

	h.sched.Stop()
	require.NoError(t, wait(t, done))

	envs, pwr := h.store.counts()
	assert.Equal(t, 0, envs)
	assert.Equal(t, 1, pwr)
	snap := h.buf.Snapshot()
	assert.Empty(t, snap.Environmental)
	assert.Len(t, snap.Electrical, 1)
}

func TestTransportFailureKeepsLooping(t *testing.T) {
	boom := errors.New("serial: broken pipe")
	h := newHarness(t, envChannel{}, elecChannel{err: boom}, &memStore{})
	done := h.start(context.Background())

	for i := 0; i < 3; i++ {
		if i > 0 {
			h.ticker.ch <- time.Now()
		}
		r := h.next(t)
		assert.ErrorIs(t, r.ElectricalErr, boom)
		assert.NotNil(t, r.Environmental)
	}
	h.sched.Stop()
	require.NoError(t, wait(t, done))
}

func TestStoreErrorStillBuffers(t *testing.T) {
	diskFull := errors.New("database or disk is full")
	h := newHarness(t, envChannel{}, elecChannel{}, &memStore{err: diskFull})
	done := h.start(context.Background())

	r := h.next(t)
	assert.ErrorIs(t, r.EnvironmentalStoreErr, diskFull)
	assert.ErrorIs(t, r.ElectricalStoreErr, diskFull)

	h.sched.Stop()
	require.NoError(t, wait(t, done))

	snap := h.buf.Snapshot()
	assert.Len(t, snap.Environmental, 1)
	assert.Len(t, snap.Electrical, 1)
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Config{Electrical: elecChannel{}, Store: &memStore{}, Buffer: buffer.NewRecent(1)})
	assert.Error(t, err)
	_, err = New(Config{Environmental: envChannel{}, Electrical: elecChannel{}})
	assert.Error(t, err)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "stopped", Stopped.String())
}
