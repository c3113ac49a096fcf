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

package rest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/logrange/irange/api"
	"github.com/logrange/irange/pkg/docstore/kvstore"
	"github.com/logrange/irange/pkg/events"
	"github.com/logrange/irange/pkg/indices/inmem"
	"github.com/logrange/irange/pkg/lifecycle"
	"github.com/logrange/irange/pkg/model"
	"github.com/logrange/irange/pkg/ranges"
	kvinmem "github.com/logrange/range/pkg/kv/inmem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testPublisher struct {
	lock     sync.Mutex
	payloads []interface{}
}

func (tp *testPublisher) Publish(ctx context.Context, payload interface{}) error {
	tp.lock.Lock()
	tp.payloads = append(tp.payloads, payload)
	tp.lock.Unlock()
	return nil
}

func (tp *testPublisher) get() []interface{} {
	tp.lock.Lock()
	defer tp.lock.Unlock()
	return append([]interface{}{}, tp.payloads...)
}

type testEnv struct {
	engine *inmem.Engine
	svc    *ranges.Service
	pub    *testPublisher
	mgr    *lifecycle.Manager
	srv    *httptest.Server
	cli    *Client
}

func newTestEnv(t *testing.T) *testEnv {
	te := new(testEnv)
	te.engine = inmem.New()
	te.pub = &testPublisher{}
	te.svc = ranges.NewService(kvstore.New(kvinmem.New(), "index_ranges"), te.pub)

	s := NewServer()
	s.Ranges = te.svc
	te.mgr = lifecycle.NewManager(lifecycle.NewDefaultConfig(), te.svc, ranges.NewCalculator(te.engine), te.engine)
	s.Manager = te.mgr
	s.Events = te.pub
	s.MetricsPath = "/metrics"

	te.srv = httptest.NewServer(s.router())
	t.Cleanup(te.srv.Close)

	var err error
	te.cli, err = NewClient(te.srv.URL, time.Second)
	require.NoError(t, err)
	return te
}

func (te *testEnv) save(t *testing.T, index string, begin, end int64) {
	ir := model.NewIndexRange(index, model.FromMillis(begin), model.FromMillis(end), model.FromMillis(100), 5*time.Millisecond)
	require.NoError(t, te.svc.Save(context.Background(), ir))
}

func TestGetAndDelete(t *testing.T) {
	te := newTestEnv(t)
	ctx := context.Background()

	_, err := te.cli.Get(ctx, "a")
	assert.Equal(t, api.ErrNotFound, err)

	te.save(t, "a", 0, 10)
	r, err := te.cli.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, api.Range{IndexName: "a", Begin: 0, End: 10, CalculatedAt: 100, TookMs: 5}, r)

	require.NoError(t, te.cli.Delete(ctx, "a"))
	_, err = te.cli.Get(ctx, "a")
	assert.Equal(t, api.ErrNotFound, err)
	require.NoError(t, te.cli.Delete(ctx, "a"))
}

func TestDeleteIsDoneByManager(t *testing.T) {
	te := newTestEnv(t)
	ctx := context.Background()
	te.save(t, "a", 0, 10)

	te.mgr.Shutdown()
	err := te.cli.Delete(ctx, "a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), lifecycle.ErrShutdown.Error())

	_, err = te.cli.Get(ctx, "a")
	assert.NoError(t, err)
}

func TestRanges(t *testing.T) {
	te := newTestEnv(t)
	ctx := context.Background()
	te.save(t, "a", 0, 10)
	te.save(t, "b", 20, 30)

	names := func(q string) []string {
		rs, err := te.cli.Ranges(ctx, q)
		require.NoError(t, err, q)
		res := []string{}
		for _, r := range rs {
			res = append(res, r.IndexName)
		}
		return res
	}

	assert.Equal(t, []string{"a", "b"}, names(""))
	assert.Equal(t, []string{"a", "b"}, names("all"))
	assert.Equal(t, []string{"b"}, names("index b"))
	assert.Equal(t, []string{}, names("index c"))
	assert.Equal(t, []string{"a", "b"}, names("FROM 5 TO 25"))
	assert.Equal(t, []string{}, names("FROM 11 TO 19"))

	_, err := te.cli.Ranges(ctx, "SELECT everything")
	assert.Error(t, err)
}

func TestRecalculate(t *testing.T) {
	te := newTestEnv(t)
	ctx := context.Background()
	te.engine.Write("graylog_12", model.FromMillis(1000), model.FromMillis(5000))

	rep, err := te.cli.Recalculate(ctx, "graylog_12", "missing")
	require.NoError(t, err)
	assert.Equal(t, []string{"graylog_12"}, rep.Processed)
	assert.Contains(t, rep.Failed, "missing")

	r, err := te.cli.Get(ctx, "graylog_12")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), r.Begin)
	assert.Equal(t, int64(5000), r.End)

	_, err = te.cli.Recalculate(ctx)
	assert.Error(t, err)
}

func TestPostEvent(t *testing.T) {
	te := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, te.cli.PostEvent(ctx, api.LifecycleEvent{Event: "closed", Indices: []string{"a", "b"}}))
	assert.Equal(t, []interface{}{events.IndicesClosed{Indices: []string{"a", "b"}}}, te.pub.get())

	assert.Error(t, te.cli.PostEvent(ctx, api.LifecycleEvent{Event: "created", Indices: []string{"a"}}))
	assert.Error(t, te.cli.PostEvent(ctx, api.LifecycleEvent{Event: "closed"}))
	assert.Len(t, te.pub.get(), 1)
}

func TestHealthAndMetrics(t *testing.T) {
	te := newTestEnv(t)
	for _, p := range []string{"/health", "/metrics"} {
		resp, err := http.Get(te.srv.URL + p)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, p)
		assert.NotEmpty(t, body)
	}
}

func TestNewClient(t *testing.T) {
	c, err := NewClient("127.0.0.1:9367", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9367", c.base)

	_, err = NewClient("http://", time.Second)
	assert.Error(t, err)
}
