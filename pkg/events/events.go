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
Package events contains the index lifecycle and range notifications together
with Bus, the in-process publish-subscribe channel they are delivered through.
External event sources (see the feed sub-package) adapt their notifications to
the payload types below and publish them into the Bus.
*/
package events

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type (
	// IndicesDeleted is published when indices are deleted
	IndicesDeleted struct {
		Indices []string
	}

	// IndicesClosed is published when indices are closed
	IndicesClosed struct {
		Indices []string
	}

	// IndicesReopened is published when closed indices are opened again
	IndicesReopened struct {
		Indices []string
	}

	// RangeUpdated is published every time a range is saved for the index
	RangeUpdated struct {
		IndexName string
	}

	// Event is the envelope delivered to subscribers
	Event struct {
		// Id is a unique event identifier
		Id string
		// At contains the publishing time
		At time.Time
		// Payload is one of the types above
		Payload interface{}
	}

	// Publisher allows to publish payloads
	Publisher interface {
		Publish(ctx context.Context, payload interface{}) error
	}

	// Subscriber allows to register handlers for published events
	Subscriber interface {
		Subscribe(name string, h Handler)
		SubscribeOrdered(name string, h Handler)
	}

	// Handler is called for every event published. Handlers can be called
	// concurrently.
	Handler func(ctx context.Context, ev Event)
)

// Lifecycle event kinds, used by external event sources
const (
	KindDeleted  = "deleted"
	KindClosed   = "closed"
	KindReopened = "reopened"
)

var (
	ErrClosed = fmt.Errorf("the event bus is closed")
)

// NewLifecycleEvent returns the lifecycle event payload by its kind
func NewLifecycleEvent(kind string, indices []string) (interface{}, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindDeleted:
		return IndicesDeleted{Indices: indices}, nil
	case KindClosed:
		return IndicesClosed{Indices: indices}, nil
	case KindReopened:
		return IndicesReopened{Indices: indices}, nil
	}
	return nil, fmt.Errorf("unknown event=%q, expecting one of %s, %s, %s", kind, KindDeleted, KindClosed, KindReopened)
}

func (e Event) String() string {
	return fmt.Sprintf("{id=%s, payload=%T%+v}", e.Id, e.Payload, e.Payload)
}
