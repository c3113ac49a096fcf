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

/*
Package lifecycle keeps stored index ranges consistent with the index engine.
The Manager listens to the index lifecycle events: ranges of deleted and closed
indices are removed, ranges of reopened indices are recalculated as soon as
the indices are ready.

Operations on one index are applied in the order they were submitted, no
matter whether they come from the event bus or from direct calls. Different
indices are processed independently, a failure on one index never stops
processing of the others.
*/
package lifecycle

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jrivets/log4g"
	"github.com/logrange/irange/pkg/events"
	"github.com/logrange/irange/pkg/indices"
	"github.com/logrange/irange/pkg/model"
	"github.com/logrange/irange/pkg/ranges"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"
)

type (
	// RangeStore is the part of ranges.Service used by the Manager
	RangeStore interface {
		Save(ctx context.Context, ir model.IndexRange) error
		Delete(ctx context.Context, index string) error
	}

	// RangeCalculator is implemented by ranges.Calculator
	RangeCalculator interface {
		CalculateRange(ctx context.Context, index string) (model.IndexRange, error)
	}

	// Manager handles index lifecycle events
	Manager struct {
		Config  *Config           `inject:""`
		Events  events.Subscriber `inject:"events"`
		Ranges  RangeStore        `inject:"ranges"`
		Calc    RangeCalculator   `inject:"calculator"`
		Indices indices.Indices   `inject:"indices"`

		logger log4g.Logger
		ready  indices.Indices

		// resLock makes reservation of a batch atomic
		resLock sync.Mutex
		// tails keeps the completion channel of the last operation
		// submitted for an index
		tails *xsync.MapOf[string, chan struct{}]
		// wg counts batches in progress
		wg sync.WaitGroup

		ctx    context.Context
		cancel context.CancelFunc
	}

	// Report describes the result of processing an event
	Report struct {
		// Op is the operation applied: "delete", "recalculate"
		Op string
		// Processed contains indices processed successfully
		Processed []string
		// Failed contains errors for indices which couldn't be processed
		Failed map[string]error
	}

	indexOp func(ctx context.Context, index string) error

	task struct {
		index string
		prev  chan struct{}
		done  chan struct{}
	}
)

const (
	OpDelete      = "delete"
	OpRecalculate = "recalculate"
)

// ErrShutdown is reported for indices submitted after the Manager is shut down
var ErrShutdown = fmt.Errorf("lifecycle manager is shut down")

// NewManager returns the new Manager. The Manager created with the function
// is ready to be used without Init(), it is not subscribed to any events
// then.
func NewManager(cfg *Config, rs RangeStore, calc RangeCalculator, ix indices.Indices) *Manager {
	m := new(Manager)
	m.Config = cfg
	m.Ranges = rs
	m.Calc = calc
	m.Indices = ix
	m.PostConstruct()
	return m
}

// PostConstruct is part of linker.PostConstructor
func (m *Manager) PostConstruct() {
	m.logger = log4g.GetLogger("lifecycle.Manager")
	if m.Config == nil {
		m.Config = NewDefaultConfig()
	}
	m.ready = indices.WithSettleDelay(m.Indices, m.Config.SettleDelay)
	m.tails = xsync.NewMapOf[string, chan struct{}]()
	m.ctx, m.cancel = context.WithCancel(context.Background())
}

// Init is part of linker.Initializer. It subscribes the Manager to the
// lifecycle events.
func (m *Manager) Init(ctx context.Context) error {
	if err := m.Config.Check(); err != nil {
		return errors.Wrapf(err, "invalid lifecycle config")
	}
	m.logger.Info("Init(): config=", m.Config)
	if m.Events != nil {
		m.Events.SubscribeOrdered("lifecycle.Manager", m.onEvent)
	}
	return nil
}

// Shutdown is part of linker.Shutdowner. Operations started by events are
// interrupted, the call returns when all batches in progress are over.
func (m *Manager) Shutdown() {
	m.logger.Info("Shutdown()")
	m.resLock.Lock()
	m.cancel()
	m.resLock.Unlock()
	m.wg.Wait()
}

// HandleIndicesDeleted removes ranges of the indices
func (m *Manager) HandleIndicesDeleted(ctx context.Context, ev events.IndicesDeleted) Report {
	return <-m.submit(ctx, OpDelete, ev.Indices, m.delete)
}

// HandleIndicesClosed removes ranges of the indices. Closed indices cannot be
// queried, so their ranges are not kept.
func (m *Manager) HandleIndicesClosed(ctx context.Context, ev events.IndicesClosed) Report {
	return <-m.submit(ctx, OpDelete, ev.Indices, m.delete)
}

// HandleIndicesReopened recalculates and saves ranges of the indices. Every
// index is waited to be ready first.
func (m *Manager) HandleIndicesReopened(ctx context.Context, ev events.IndicesReopened) Report {
	return <-m.submit(ctx, OpRecalculate, ev.Indices, m.recalculate)
}

// Recalculate recalculates and saves ranges of the indices. The indices are
// expected to be ready, no readiness wait is done.
func (m *Manager) Recalculate(ctx context.Context, idxs ...string) Report {
	return <-m.submit(ctx, OpRecalculate, idxs, m.calculateAndSave)
}

// Delete removes ranges of the indices. The removal is ordered with the other
// operations on the same indices.
func (m *Manager) Delete(ctx context.Context, idxs ...string) Report {
	return <-m.submit(ctx, OpDelete, idxs, m.delete)
}

func (m *Manager) onEvent(_ context.Context, ev events.Event) {
	if m.ctx.Err() != nil {
		m.logger.Debug("Shut down, ignoring ", ev)
		return
	}
	switch p := ev.Payload.(type) {
	case events.IndicesDeleted:
		m.submit(m.ctx, OpDelete, p.Indices, m.delete)
	case events.IndicesClosed:
		m.submit(m.ctx, OpDelete, p.Indices, m.delete)
	case events.IndicesReopened:
		m.submit(m.ctx, OpRecalculate, p.Indices, m.recalculate)
	}
}

// submit reserves the place in the queue of every index synchronously, so the
// operations on an index are applied in the submission order, and runs op
// asynchronously. The report is sent to the returned channel. After Shutdown
// every index is reported failed with ErrShutdown.
func (m *Manager) submit(ctx context.Context, name string, idxs []string, op indexOp) <-chan Report {
	res := make(chan Report, 1)
	tasks := make([]task, 0, len(idxs))
	seen := make(map[string]bool, len(idxs))
	m.resLock.Lock()
	if m.ctx.Err() != nil {
		m.resLock.Unlock()
		r := Report{Op: name, Failed: make(map[string]error)}
		for _, idx := range idxs {
			if idx != "" {
				r.Failed[idx] = ErrShutdown
			}
		}
		res <- r
		return res
	}
	for _, idx := range idxs {
		if idx == "" || seen[idx] {
			continue
		}
		seen[idx] = true
		tasks = append(tasks, m.reserve(idx))
	}
	m.wg.Add(1)
	m.resLock.Unlock()

	go func() {
		defer m.wg.Done()
		r := m.run(ctx, name, tasks, op)
		m.logReport(r)
		res <- r
	}()
	return res
}

func (m *Manager) reserve(index string) task {
	t := task{index: index, done: make(chan struct{})}
	m.tails.Compute(index, func(prev chan struct{}, loaded bool) (chan struct{}, bool) {
		t.prev = prev
		return t.done, false
	})
	return t
}

func (m *Manager) release(t task) {
	close(t.done)
	m.tails.Compute(t.index, func(cur chan struct{}, loaded bool) (chan struct{}, bool) {
		// the last one in the queue removes the entry
		return cur, loaded && cur == t.done
	})
}

func (m *Manager) run(ctx context.Context, name string, tasks []task, op indexOp) Report {
	r := Report{Op: name, Failed: make(map[string]error)}
	var lock sync.Mutex

	var g errgroup.Group
	g.SetLimit(m.Config.MaxParallel)
	for _, t := range tasks {
		t := t
		g.Go(func() error {
			defer m.release(t)
			if t.prev != nil {
				<-t.prev
			}

			err := ctx.Err()
			if err == nil {
				err = op(ctx, t.index)
			}

			lock.Lock()
			if err != nil {
				r.Failed[t.index] = err
			} else {
				r.Processed = append(r.Processed, t.index)
			}
			lock.Unlock()
			return nil
		})
	}
	g.Wait()

	sort.Strings(r.Processed)
	opsProcessed.WithLabelValues(name).Add(float64(len(r.Processed)))
	opsFailed.WithLabelValues(name).Add(float64(len(r.Failed)))
	return r
}

func (m *Manager) delete(ctx context.Context, index string) error {
	return m.Ranges.Delete(ctx, index)
}

func (m *Manager) recalculate(ctx context.Context, index string) error {
	start := time.Now()
	wctx, cancel := context.WithTimeout(ctx, m.Config.RecoveryTimeout)
	err := m.ready.WaitForRecovery(wctx, index)
	cancel()
	recoveryWait.Observe(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() == nil && wctx.Err() == context.DeadlineExceeded {
			return ranges.NewReadinessTimeoutError(index, err)
		}
		return errors.Wrapf(err, "waiting for %s recovery failed", index)
	}
	return m.calculateAndSave(ctx, index)
}

func (m *Manager) calculateAndSave(ctx context.Context, index string) error {
	ir, err := m.Calc.CalculateRange(ctx, index)
	if err != nil {
		return err
	}
	return m.Ranges.Save(ctx, ir)
}

func (m *Manager) logReport(r Report) {
	if len(r.Processed) > 0 {
		m.logger.Info(r.Op, " done for ", r.Processed)
	}
	for idx, err := range r.Failed {
		m.logger.Warn(r.Op, " failed for ", idx, ", err=", err)
	}
}

// Err returns nil if all indices were processed, or an error describing the
// first (by index name) failure otherwise
func (r Report) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	idxs := r.FailedIndices()
	return errors.Wrapf(r.Failed[idxs[0]], "%s failed for %d index(es) %v", r.Op, len(idxs), idxs)
}

// FailedIndices returns sorted names of the failed indices
func (r Report) FailedIndices() []string {
	res := make([]string, 0, len(r.Failed))
	for idx := range r.Failed {
		res = append(res, idx)
	}
	sort.Strings(res)
	return res
}

func (r Report) String() string {
	return fmt.Sprintf("{op=%s, processed=%v, failed=%v}", r.Op, r.Processed, r.FailedIndices())
}
