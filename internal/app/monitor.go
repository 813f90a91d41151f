// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/acquisition"
	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/buffer"
	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/config"
	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/dashboard"
	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/power"
	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/sensors"
	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/store"
)

// System is the assembled service.
type System struct {
	Env       sensors.EnvironmentalChannel
	Elec      sensors.ElectricalChannel
	Store     *store.Store
	Recent    *buffer.Recent
	Dashboard *dashboard.Dashboard
	Scheduler *acquisition.Scheduler
	Metrics   *Metrics
	Web       *WebServer

	publisher *Publisher
}

// Build opens the store and both channels and wires the scheduler and its
// observers. Configuration faults are returned before anything runs.
func Build(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*System, error) {
	unit, err := power.ParseEnergyUnit(cfg.PZEMEnergyUnit)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, store.Config{
		Driver:     cfg.DBDriver,
		Path:       cfg.DBPath,
		DSN:        cfg.DBDSN,
		EnergyUnit: unit,
	}, store.WithLogger(component(log, "store")))
	if err != nil {
		return nil, err
	}

	sys := &System{Store: st, Recent: buffer.NewRecent(buffer.DefaultCapacity), Metrics: NewMetrics()}

	if sys.Env, err = NewEnvironmentalChannel(cfg, log); err != nil {
		sys.Close()
		return nil, err
	}
	if sys.Elec, err = NewElectricalChannel(cfg, log); err != nil {
		sys.Close()
		return nil, err
	}

	observers := []acquisition.Observer{sys.Metrics}
	if cfg.TerminalReport {
		observers = append(observers, NewReporter(os.Stdout))
	}
	if cfg.MQTTBroker != "" {
		pub, err := DialPublisher(cfg.MQTTBroker, cfg.MQTTClientID, cfg.TopicEnvironment, cfg.TopicElectrical, component(log, "mqtt"))
		if err != nil {
			sys.Close()
			return nil, err
		}
		sys.publisher = pub
		observers = append(observers, pub)
	}

	sys.Scheduler, err = acquisition.New(acquisition.Config{
		Interval:      cfg.SampleInterval(),
		Environmental: sys.Env,
		Electrical:    sys.Elec,
		Store:         st,
		Buffer:        sys.Recent,
		Observers:     observers,
		Logger:        log,
	})
	if err != nil {
		sys.Close()
		return nil, err
	}

	sys.Dashboard = dashboard.New(sys.Recent, st, map[string]string{
		"environmental": string(sys.Env.Mode()),
		"electrical":    string(sys.Elec.Mode()),
	})
	sys.Web = NewWebServer(sys.Dashboard, sys.Metrics.Handler(), cfg.WebStaticDir, cfg.WSUpdateInterval(), component(log, "web"))
	return sys, nil
}

// Close releases channels, the MQTT connection and the store.
func (s *System) Close() {
	if s.Env != nil {
		_ = s.Env.Close()
	}
	if s.Elec != nil {
		_ = s.Elec.Close()
	}
	if s.publisher != nil {
		s.publisher.Close()
	}
	if s.Store != nil {
		_ = s.Store.Close()
	}
}

// RunMonitor builds the system and runs acquisition, the web server and the
// optional display until ctx is done.
func RunMonitor(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	sys, err := Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer sys.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 3)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := sys.Scheduler.Run(ctx); err != nil {
			errCh <- fmt.Errorf("acquisition: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		addr := ":" + strconv.Itoa(cfg.WebServerPort)
		if err := sys.Web.ListenAndServe(ctx, addr); err != nil {
			errCh <- fmt.Errorf("web: %w", err)
		}
	}()

	if cfg.DisplayI2CAddr != 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dlog := component(log, "display")
			if err := RunDisplay(ctx, cfg.DisplayI2CBus, cfg.DisplayUpdateInterval(), sys.Recent, dlog); err != nil {
				// The display is optional; acquisition keeps going.
				dlog.WithError(err).Error("display stopped")
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}
	log.Info("shutting down")
	sys.Scheduler.Stop()
	cancel()
	wg.Wait()
	return runErr
}
