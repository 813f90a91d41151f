// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package buffer keeps the most recent samples in memory for the dashboard.
package buffer

// Ring is a fixed-capacity FIFO; pushing onto a full ring evicts the oldest
// item. Ring is not safe for concurrent use on its own.
type Ring[T any] struct {
	items []T
	head  int // index of the oldest item once full
	size  int
}

// NewRing returns an empty ring holding at most capacity items.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{items: make([]T, 0, capacity), size: capacity}
}

// Push appends v, evicting the oldest item when full.
func (r *Ring[T]) Push(v T) {
	if len(r.items) < r.size {
		r.items = append(r.items, v)
		return
	}
	r.items[r.head] = v
	r.head = (r.head + 1) % r.size
}

// Items returns a copy in arrival order, oldest first.
func (r *Ring[T]) Items() []T {
	out := make([]T, 0, len(r.items))
	out = append(out, r.items[r.head:]...)
	return append(out, r.items[:r.head]...)
}

// Last returns the newest item.
func (r *Ring[T]) Last() (T, bool) {
	var zero T
	if len(r.items) == 0 {
		return zero, false
	}
	i := r.head - 1
	if i < 0 {
		i = len(r.items) - 1
	}
	return r.items[i], true
}

func (r *Ring[T]) Len() int { return len(r.items) }

