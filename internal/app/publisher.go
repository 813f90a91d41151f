// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/acquisition"
)

const (
	publishTimeout = 2 * time.Second
	// Samples waiting for the broker; newer ones are dropped when full.
	publishQueueSize = 32
)

// mqttPublisher is the part of mqtt.Client the publisher needs.
type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

type outbound struct {
	topic   string
	payload []byte
}

// Publisher forwards every fresh sample to MQTT as retained JSON. Publishing
// happens on its own goroutine so a slow broker never delays a cycle.
type Publisher struct {
	client     mqttPublisher
	envTopic   string
	elecTopic  string
	log        logrus.FieldLogger
	disconnect func()

	mu     sync.Mutex
	closed bool
	queue  chan outbound
	done   chan struct{}
}

// mqttClientID appends a random suffix so several instances can share a broker.
func mqttClientID(base string) string {
	return fmt.Sprintf("%s-%s", base, uuid.NewString()[:8])
}

// DialPublisher connects to broker and returns a Publisher.
func DialPublisher(broker, clientID, envTopic, elecTopic string, log logrus.FieldLogger) (*Publisher, error) {
	id := mqttClientID(clientID)
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(id).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.WithError(err).Warn("mqtt: connection lost")
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.WithField("broker", broker).Warn("mqtt: broker not reachable yet, retrying in background")
	} else if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, err)
	} else {
		log.WithFields(logrus.Fields{"broker": broker, "client_id": id}).Info("mqtt: connected")
	}

	p := newPublisher(client, envTopic, elecTopic, log)
	p.disconnect = func() { client.Disconnect(250) }
	return p, nil
}

func newPublisher(client mqttPublisher, envTopic, elecTopic string, log logrus.FieldLogger) *Publisher {
	p := &Publisher{
		client:     client,
		envTopic:   envTopic,
		elecTopic:  elecTopic,
		log:        log,
		disconnect: func() {},
		queue:      make(chan outbound, publishQueueSize),
		done:       make(chan struct{}),
	}
	go p.run()
	return p
}

// ObserveCycle implements acquisition.Observer. It only queues.
func (p *Publisher) ObserveCycle(r acquisition.CycleResult) {
	if r.Environmental != nil {
		p.enqueue(p.envTopic, r.Environmental)
	}
	if r.Electrical != nil {
		p.enqueue(p.elecTopic, r.Electrical)
	}
}

func (p *Publisher) enqueue(topic string, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		p.log.WithError(err).WithField("topic", topic).Error("mqtt: marshal")
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- outbound{topic: topic, payload: payload}:
	default:
		p.log.WithField("topic", topic).Warn("mqtt: publish queue full, dropping sample")
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	for msg := range p.queue {
		p.publish(msg)
	}
}

func (p *Publisher) publish(msg outbound) {
	topic := msg.topic
	token := p.client.Publish(topic, 0, true, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		p.log.WithField("topic", topic).Warn("mqtt: publish timed out")
		return
	}
	if err := token.Error(); err != nil {
		p.log.WithError(err).WithField("topic", topic).Warn("mqtt: publish")
	}
}

// Close flushes queued samples and disconnects from the broker. It is safe
// to call more than once.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	<-p.done
	p.disconnect()
}
