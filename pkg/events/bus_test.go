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
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversToAllSubscribers(t *testing.T) {
	b := NewBus(2)
	var lock sync.Mutex
	got := map[string][]interface{}{}
	for _, n := range []string{"s1", "s2"} {
		name := n
		b.Subscribe(name, func(ctx context.Context, ev Event) {
			lock.Lock()
			got[name] = append(got[name], ev.Payload)
			lock.Unlock()
		})
	}

	require.NoError(t, b.Publish(context.Background(), IndicesClosed{Indices: []string{"a"}}))
	require.NoError(t, b.Publish(context.Background(), RangeUpdated{IndexName: "a"}))
	b.Close()

	assert.Len(t, got["s1"], 2)
	assert.Len(t, got["s2"], 2)
	assert.Contains(t, got["s1"], RangeUpdated{IndexName: "a"})
	assert.Equal(t, ErrClosed, b.Publish(context.Background(), RangeUpdated{IndexName: "b"}))
}

func TestBusLimitsConcurrentDeliveries(t *testing.T) {
	b := NewBus(2)
	var cur, max int32
	b.Subscribe("slow", func(ctx context.Context, ev Event) {
		n := atomic.AddInt32(&cur, 1)
		for {
			m := atomic.LoadInt32(&max)
			if n <= m || atomic.CompareAndSwapInt32(&max, m, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&cur, -1)
	})

	for i := 0; i < 10; i++ {
		require.NoError(t, b.Publish(context.Background(), IndicesReopened{}))
	}
	b.Close()
	assert.True(t, atomic.LoadInt32(&max) <= 2)
	assert.True(t, atomic.LoadInt32(&max) >= 1)
}

func TestBusNestedPublishAndPanics(t *testing.T) {
	b := NewBus(1)
	var updates int32
	b.Subscribe("reopen", func(ctx context.Context, ev Event) {
		if _, ok := ev.Payload.(IndicesReopened); ok {
			_ = b.Publish(ctx, RangeUpdated{IndexName: "a"})
			panic("boom")
		}
	})
	b.Subscribe("updates", func(ctx context.Context, ev Event) {
		if _, ok := ev.Payload.(RangeUpdated); ok {
			atomic.AddInt32(&updates, 1)
		}
	})

	require.NoError(t, b.Publish(context.Background(), IndicesReopened{Indices: []string{"a"}}))
	// the nested event is published from a delivery go-routine
	time.Sleep(50 * time.Millisecond)
	b.Close()
	assert.Equal(t, int32(1), atomic.LoadInt32(&updates))
}

func TestBusPublishCancelledCtx(t *testing.T) {
	b := NewBus(1)
	defer b.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, b.Publish(ctx, RangeUpdated{}))
}

func TestBusOrderedSubscriber(t *testing.T) {
	b := NewBus(4)
	var lock sync.Mutex
	var got []string
	var active, overlapped int32
	b.SubscribeOrdered("ordered", func(ctx context.Context, ev Event) {
		if atomic.AddInt32(&active, 1) > 1 {
			atomic.StoreInt32(&overlapped, 1)
		}
		time.Sleep(time.Millisecond)
		lock.Lock()
		got = append(got, ev.Payload.(RangeUpdated).IndexName)
		lock.Unlock()
		atomic.AddInt32(&active, -1)
	})

	var exp []string
	for i := 0; i < 20; i++ {
		n := string(rune('a' + i))
		exp = append(exp, n)
		require.NoError(t, b.Publish(context.Background(), RangeUpdated{IndexName: n}))
	}
	b.Close()
	assert.Equal(t, exp, got)
	assert.Equal(t, int32(0), atomic.LoadInt32(&overlapped))
}
