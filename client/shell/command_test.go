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

package shell

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/logrange/irange/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClient struct {
	queries []string
	deleted []string
	recalc  []string
	events  []api.LifecycleEvent
	ranges  map[string]api.Range
}

func newTestClient() *testClient {
	return &testClient{ranges: map[string]api.Range{
		"graylog_12": {IndexName: "graylog_12", Begin: 1000, End: 5000, CalculatedAt: 6000, TookMs: 3},
	}}
}

func (tc *testClient) Ranges(ctx context.Context, query string) ([]api.Range, error) {
	tc.queries = append(tc.queries, query)
	return []api.Range{tc.ranges["graylog_12"]}, nil
}

func (tc *testClient) Get(ctx context.Context, index string) (api.Range, error) {
	r, ok := tc.ranges[index]
	if !ok {
		return r, api.ErrNotFound
	}
	return r, nil
}

func (tc *testClient) Delete(ctx context.Context, index string) error {
	tc.deleted = append(tc.deleted, index)
	return nil
}

func (tc *testClient) Recalculate(ctx context.Context, indices ...string) (api.Report, error) {
	tc.recalc = append(tc.recalc, indices...)
	return api.Report{Op: "recalculate", Processed: indices[:1], Failed: map[string]string{"b": "no index"}}, nil
}

func (tc *testClient) PostEvent(ctx context.Context, ev api.LifecycleEvent) error {
	tc.events = append(tc.events, ev)
	return nil
}

func (tc *testClient) Close() error {
	return nil
}

func exec(t *testing.T, tc *testClient, input string) (string, error) {
	var buf bytes.Buffer
	err := execCmd(context.Background(), input, &config{cli: tc, out: &buf})
	return buf.String(), err
}

func TestRangesCommand(t *testing.T) {
	tc := newTestClient()
	out, err := exec(t, tc, "all")
	require.NoError(t, err)
	assert.Contains(t, out, "graylog_12")
	assert.Contains(t, out, "1970-01-01T00:00:01.000Z")
	assert.Contains(t, out, "4s")
	assert.Contains(t, out, "total: 1")

	_, err = exec(t, tc, "last 2h")
	require.NoError(t, err)
	_, err = exec(t, tc, "from '2019-03-11 12:34:43' to now")
	require.NoError(t, err)
	_, err = exec(t, tc, "index graylog_12")
	require.NoError(t, err)
	assert.Equal(t, []string{"ALL", "LAST 2h", `FROM "2019-03-11 12:34:43" TO now`, "INDEX graylog_12"}, tc.queries)

	_, err = exec(t, tc, "from")
	assert.Error(t, err)
}

func TestGetCommand(t *testing.T) {
	tc := newTestClient()
	out, err := exec(t, tc, "get graylog_12")
	require.NoError(t, err)
	assert.Contains(t, out, "graylog_12")

	_, err = exec(t, tc, "get graylog_1")
	assert.Error(t, err)

	_, err = exec(t, tc, "get")
	assert.Error(t, err)
}

func TestIndicesCommands(t *testing.T) {
	tc := newTestClient()
	out, err := exec(t, tc, "delete a, b c")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, tc.deleted)
	assert.Contains(t, out, "3 range(s) deleted")

	out, err = exec(t, tc, "recalc a,b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tc.recalc)
	assert.Contains(t, out, "1 processed, 1 failed")
	assert.Contains(t, out, "b: no index")

	_, err = exec(t, tc, "event Reopened graylog_12")
	require.NoError(t, err)
	require.Len(t, tc.events, 1)
	assert.Equal(t, api.LifecycleEvent{Event: "reopened", Indices: []string{"graylog_12"}}, tc.events[0])
}

func TestUnknownCommand(t *testing.T) {
	_, err := exec(t, newTestClient(), "select limit 1")
	assert.Error(t, err)

	out, err := exec(t, newTestClient(), "help")
	require.NoError(t, err)
	for _, c := range commands {
		assert.Contains(t, out, c.name, fmt.Sprint("help must mention ", c.name))
	}
}

func TestExec(t *testing.T) {
	tc := newTestClient()
	require.NoError(t, Exec(context.Background(), []string{"delete a", " recalc b "}, tc))
	assert.Equal(t, []string{"a"}, tc.deleted)
	assert.Equal(t, []string{"b"}, tc.recalc)
	assert.Error(t, Exec(context.Background(), []string{"unknown"}, tc))
}
