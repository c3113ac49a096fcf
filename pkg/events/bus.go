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

package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrivets/log4g"
	"golang.org/x/sync/semaphore"
)

type (
	// Bus delivers published events to all subscribers. Every delivery runs
	// in its own go-routine, the number of handlers running at the same time
	// is limited. Ordered subscribers receive events one by one in the
	// publishing order.
	Bus struct {
		logger log4g.Logger
		sema   *semaphore.Weighted
		wg     sync.WaitGroup

		lock   sync.RWMutex
		subs   []*subscriber
		closed bool
	}

	subscriber struct {
		name    string
		h       Handler
		ordered bool

		// ordered subscribers only
		lock    sync.Mutex
		pending []Event
		running bool
	}
)

// DefaultMaxDeliveries is the default number of events delivered concurrently
const DefaultMaxDeliveries = 16

// NewBus creates the Bus which runs at most maxDeliveries handlers at a time
func NewBus(maxDeliveries int) *Bus {
	if maxDeliveries <= 0 {
		maxDeliveries = DefaultMaxDeliveries
	}
	b := new(Bus)
	b.logger = log4g.GetLogger("events.Bus")
	b.sema = semaphore.NewWeighted(int64(maxDeliveries))
	return b
}

// Subscribe registers the handler h. Subscriptions are kept until the bus
// is closed.
func (b *Bus) Subscribe(name string, h Handler) {
	b.subscribe(&subscriber{name: name, h: h})
}

// SubscribeOrdered registers the handler h, which is called for one event at
// a time in the order the events were published. The handler should return
// quickly, it holds up delivery of the following events to it.
func (b *Bus) SubscribeOrdered(name string, h Handler) {
	b.subscribe(&subscriber{name: name, h: h, ordered: true})
}

func (b *Bus) subscribe(s *subscriber) {
	b.lock.Lock()
	b.subs = append(b.subs, s)
	b.lock.Unlock()
	b.logger.Info("New subscriber ", s.name, ", ordered=", s.ordered)
}

// Publish is part of Publisher. It never blocks, the event is delivered to
// every subscriber asynchronously. Handlers may publish new events.
func (b *Bus) Publish(ctx context.Context, payload interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ev := Event{Id: uuid.New().String(), At: time.Now(), Payload: payload}

	b.lock.RLock()
	defer b.lock.RUnlock()
	if b.closed {
		return ErrClosed
	}

	b.logger.Debug("Publishing ", ev, " to ", len(b.subs), " subscriber(s)")
	b.wg.Add(len(b.subs))
	for _, s := range b.subs {
		if !s.ordered {
			go b.deliver(s, ev)
			continue
		}

		s.lock.Lock()
		s.pending = append(s.pending, ev)
		start := !s.running
		s.running = true
		s.lock.Unlock()
		if start {
			go b.drain(s)
		}
	}
	return nil
}

// Close stops accepting new events and waits until all deliveries are over
func (b *Bus) Close() {
	b.lock.Lock()
	if b.closed {
		b.lock.Unlock()
		return
	}
	b.closed = true
	b.lock.Unlock()

	b.wg.Wait()
	b.logger.Info("Closed")
}

// Shutdown is part of linker.Shutdowner
func (b *Bus) Shutdown() {
	b.Close()
}

func (b *Bus) drain(s *subscriber) {
	for {
		s.lock.Lock()
		if len(s.pending) == 0 {
			s.running = false
			s.lock.Unlock()
			return
		}
		ev := s.pending[0]
		s.pending[0] = Event{}
		s.pending = s.pending[1:]
		s.lock.Unlock()

		b.deliver(s, ev)
	}
}

func (b *Bus) deliver(s *subscriber, ev Event) {
	defer b.wg.Done()
	if err := b.sema.Acquire(context.Background(), 1); err != nil {
		return
	}
	defer b.sema.Release(1)
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Subscriber ", s.name, " panicked on ", ev, ": ", fmt.Sprint(r))
		}
	}()
	s.h(context.Background(), ev)
}
