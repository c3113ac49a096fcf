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

package feed

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/logrange/irange/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPublisher struct {
	lock sync.Mutex
	evs  []interface{}
}

func (tp *testPublisher) Publish(ctx context.Context, payload interface{}) error {
	tp.lock.Lock()
	tp.evs = append(tp.evs, payload)
	tp.lock.Unlock()
	return nil
}

func TestParseLine(t *testing.T) {
	ev, err := ParseLine("event=deleted indices=a,b")
	require.NoError(t, err)
	assert.Equal(t, events.IndicesDeleted{Indices: []string{"a", "b"}}, ev)

	ev, err = ParseLine("event=CLOSED index=graylog_3")
	require.NoError(t, err)
	assert.Equal(t, events.IndicesClosed{Indices: []string{"graylog_3"}}, ev)

	ev, err = ParseLine(`event=reopened indices="x, y" index=z`)
	require.NoError(t, err)
	assert.Equal(t, events.IndicesReopened{Indices: []string{"x", "y", "z"}}, ev)

	_, err = ParseLine("event=rolled index=a")
	assert.Error(t, err)

	_, err = ParseLine("event=closed")
	assert.Error(t, err)
}

func TestReadSkipsBadLines(t *testing.T) {
	tp := &testPublisher{}
	s := NewSource(Config{Path: "-"}, tp)
	input := "# comment\n\nevent=deleted index=a\nbroken line\nevent=reopened indices=graylog_12"

	require.NoError(t, s.Read(context.Background(), strings.NewReader(input)))
	assert.Equal(t, []interface{}{
		events.IndicesDeleted{Indices: []string{"a"}},
		events.IndicesReopened{Indices: []string{"graylog_12"}},
	}, tp.evs)
}
