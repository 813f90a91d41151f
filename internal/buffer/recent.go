// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package buffer

import (
	"sync"

	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/env"
	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/power"
)

// DefaultCapacity is the number of samples kept per kind.
const DefaultCapacity = 100

// Snapshot is a point-in-time copy of both sequences, oldest first.
type Snapshot struct {
	Environmental []env.Sample   `json:"environmental"`
	Electrical    []power.Sample `json:"electrical"`
}

// Recent holds the latest samples of both kinds behind one lock.
type Recent struct {
	mu   sync.RWMutex
	envs *Ring[env.Sample]
	pwr  *Ring[power.Sample]
}

// NewRecent returns a buffer with capacity samples per kind.
func NewRecent(capacity int) *Recent {
	return &Recent{envs: NewRing[env.Sample](capacity), pwr: NewRing[power.Sample](capacity)}
}

func (r *Recent) PushEnvironmental(s env.Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envs.Push(s)
}

func (r *Recent) PushElectrical(s power.Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pwr.Push(s)
}

// Snapshot copies both sequences; callers may keep or modify the result.
func (r *Recent) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Snapshot{Environmental: r.envs.Items(), Electrical: r.pwr.Items()}
}

// Latest returns the newest sample of each kind, if any.
func (r *Recent) Latest() (e env.Sample, hasEnv bool, p power.Sample, hasPower bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, hasEnv = r.envs.Last()
	p, hasPower = r.pwr.Last()
	return
}
