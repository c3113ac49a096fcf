// Copyright 2018-2019 The logrange Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package inmem contains in-memory implementation of indices.Indices
package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/logrange/irange/pkg/indices"
)

type (
	// Engine keeps per-index timestamp statistics in memory. New indices are
	// ready unless SetReady(name, false) is called.
	Engine struct {
		lock    sync.Mutex
		indices map[string]*index
	}

	index struct {
		stats indices.TimestampStats
		count int
		ready chan struct{}
	}
)

// New creates the new Engine
func New() *Engine {
	e := new(Engine)
	e.indices = make(map[string]*index)
	return e
}

// Write adds records with the timestamps provided into the index. The index
// is created if it doesn't exist.
func (e *Engine) Write(name string, tss ...time.Time) {
	e.lock.Lock()
	defer e.lock.Unlock()

	idx := e.getOrCreate(name)
	for _, ts := range tss {
		ts = ts.UTC()
		if idx.count == 0 || ts.Before(idx.stats.Min) {
			idx.stats.Min = ts
		}
		if idx.count == 0 || ts.After(idx.stats.Max) {
			idx.stats.Max = ts
		}
		idx.count++
	}
}

// Create makes an empty index
func (e *Engine) Create(name string) {
	e.lock.Lock()
	e.getOrCreate(name)
	e.lock.Unlock()
}

// Delete removes the index
func (e *Engine) Delete(name string) {
	e.lock.Lock()
	delete(e.indices, name)
	e.lock.Unlock()
}

// SetReady changes the index readiness state. Goroutines blocked in
// WaitForRecovery are released when the index becomes ready.
func (e *Engine) SetReady(name string, ready bool) {
	e.lock.Lock()
	defer e.lock.Unlock()

	idx := e.getOrCreate(name)
	select {
	case <-idx.ready:
		if !ready {
			idx.ready = make(chan struct{})
		}
	default:
		if ready {
			close(idx.ready)
		}
	}
}

// Indices returns names of known indices
func (e *Engine) Indices() []string {
	e.lock.Lock()
	defer e.lock.Unlock()
	res := make([]string, 0, len(e.indices))
	for n := range e.indices {
		res = append(res, n)
	}
	return res
}

// TimestampStats is part of indices.Indices
func (e *Engine) TimestampStats(ctx context.Context, name string) (indices.TimestampStats, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	idx, ok := e.indices[name]
	if !ok {
		return indices.TimestampStats{}, indices.ErrNoIndex
	}
	if idx.count == 0 {
		return indices.TimestampStats{}, indices.ErrEmptyIndex
	}
	return idx.stats, nil
}

// WaitForRecovery is part of indices.Indices
func (e *Engine) WaitForRecovery(ctx context.Context, name string) error {
	e.lock.Lock()
	idx, ok := e.indices[name]
	if !ok {
		e.lock.Unlock()
		return indices.ErrNoIndex
	}
	ready := idx.ready
	e.lock.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) getOrCreate(name string) *index {
	idx, ok := e.indices[name]
	if !ok {
		idx = &index{ready: make(chan struct{})}
		close(idx.ready)
		e.indices[name] = idx
	}
	return idx
}
