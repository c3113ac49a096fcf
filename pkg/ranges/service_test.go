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

package ranges

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/logrange/irange/pkg/docstore"
	"github.com/logrange/irange/pkg/docstore/boltstore"
	"github.com/logrange/irange/pkg/docstore/kvstore"
	"github.com/logrange/irange/pkg/events"
	"github.com/logrange/irange/pkg/model"
	"github.com/logrange/range/pkg/kv/inmem"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

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

// observedCollection calls afterRemove every time documents are removed
type observedCollection struct {
	docstore.Collection
	afterRemove func()
}

func (oc *observedCollection) Remove(ctx context.Context, q docstore.Query) (int, error) {
	n, err := oc.Collection.Remove(ctx, q)
	if oc.afterRemove != nil {
		oc.afterRemove()
	}
	return n, err
}

var collections = map[string]func(t *testing.T) docstore.Collection{
	"kv": func(t *testing.T) docstore.Collection {
		return kvstore.New(inmem.New(), "index_ranges")
	},
	"bolt": func(t *testing.T) docstore.Collection {
		db, err := boltstore.Open(filepath.Join(t.TempDir(), "irange.db"), boltstore.WithNoSync(true))
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		c, err := db.Collection("index_ranges", FieldIndexName)
		require.NoError(t, err)
		return c
	},
}

func forEachCollection(t *testing.T, f func(t *testing.T, s *Service, tp *testPublisher)) {
	for name, nc := range collections {
		t.Run(name, func(t *testing.T) {
			tp := &testPublisher{}
			f(t, NewService(nc(t), tp), tp)
		})
	}
}

func newRange(index string, begin, end int64, calcAt int64) model.IndexRange {
	return model.NewIndexRange(index, model.FromMillis(begin), model.FromMillis(end), model.FromMillis(calcAt), 12*time.Millisecond)
}

func TestGetSaveDelete(t *testing.T) {
	forEachCollection(t, func(t *testing.T, s *Service, tp *testPublisher) {
		ctx := context.Background()
		_, err := s.Get(ctx, "graylog_12")
		assert.Equal(t, ErrNotFound, err)

		ir := newRange("graylog_12", 1000, 5000, 7000)
		require.NoError(t, s.Save(ctx, ir))
		res, err := s.Get(ctx, "graylog_12")
		require.NoError(t, err)
		assert.Equal(t, ir, res)
		assert.Equal(t, []interface{}{events.RangeUpdated{IndexName: "graylog_12"}}, tp.get())

		require.NoError(t, s.Delete(ctx, "graylog_12"))
		_, err = s.Get(ctx, "graylog_12")
		assert.Equal(t, ErrNotFound, err)

		// absent
		require.NoError(t, s.Delete(ctx, "graylog_12"))
		assert.Len(t, tp.get(), 1)
	})
}

func TestSaveTwiceKeepsLatest(t *testing.T) {
	forEachCollection(t, func(t *testing.T, s *Service, tp *testPublisher) {
		ctx := context.Background()
		require.NoError(t, s.Save(ctx, newRange("a", 0, 10, 100)))
		require.NoError(t, s.Save(ctx, newRange("a", 0, 15, 200)))

		all, err := s.FindAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, model.FromMillis(200), all[0].CalculatedAt)
		assert.Equal(t, model.FromMillis(15), all[0].End)

		docs, err := s.Coll.Find(ctx, nil)
		require.NoError(t, err)
		assert.Len(t, docs, 1)
		assert.Len(t, tp.get(), 2)
	})
}

func TestFind(t *testing.T) {
	forEachCollection(t, func(t *testing.T, s *Service, tp *testPublisher) {
		ctx := context.Background()
		require.NoError(t, s.Save(ctx, newRange("c", 40, 50, 1)))
		require.NoError(t, s.Save(ctx, newRange("b", 20, 30, 1)))
		require.NoError(t, s.Save(ctx, newRange("a", 0, 10, 1)))

		find := func(b, e int64) []string {
			res, err := s.Find(ctx, model.FromMillis(b), model.FromMillis(e))
			require.NoError(t, err)
			return res.Names()
		}

		assert.Equal(t, []string{"a", "b"}, find(5, 25))
		assert.Equal(t, []string{}, find(11, 19))
		assert.Equal(t, []string{"a"}, find(10, 10))
		assert.Equal(t, []string{"b", "c"}, find(30, 40))
		assert.Equal(t, []string{"a", "b", "c"}, find(-100, 100))

		all, err := s.FindAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, all.Names())
	})
}

func TestFindOrdersByBeginThenName(t *testing.T) {
	forEachCollection(t, func(t *testing.T, s *Service, tp *testPublisher) {
		ctx := context.Background()
		require.NoError(t, s.Save(ctx, newRange("y", 0, 10, 1)))
		require.NoError(t, s.Save(ctx, newRange("x", 0, 5, 1)))
		require.NoError(t, s.Save(ctx, newRange("w", -5, 0, 1)))

		all, err := s.FindAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"w", "x", "y"}, all.Names())
	})
}

func TestLegacyDocumentsIgnored(t *testing.T) {
	forEachCollection(t, func(t *testing.T, s *Service, tp *testPublisher) {
		ctx := context.Background()
		legacy := []docstore.Document{
			{FieldIndexName: "old", FieldLegacyStart: int64(0), FieldEnd: int64(100)},
			{FieldIndexName: "mixed", FieldLegacyStart: int64(0), FieldBegin: int64(0), FieldEnd: int64(100), FieldCalculatedAt: int64(1)},
			{FieldIndexName: "broken", FieldBegin: "yesterday", FieldEnd: int64(100), FieldCalculatedAt: int64(1)},
			{FieldIndexName: "no_calc", FieldBegin: int64(0), FieldEnd: int64(100)},
		}
		for _, d := range legacy {
			_, err := s.Coll.Insert(ctx, d)
			require.NoError(t, err)
		}
		require.NoError(t, s.Save(ctx, newRange("new", 0, 100, 1)))

		for _, d := range legacy {
			n, _ := d.StringField(FieldIndexName)
			_, err := s.Get(ctx, n)
			assert.Equal(t, ErrNotFound, err, n)
		}

		res, err := s.Find(ctx, model.FromMillis(0), model.FromMillis(100))
		require.NoError(t, err)
		assert.Equal(t, []string{"new"}, res.Names())

		all, err := s.FindAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"new"}, all.Names())
	})
}

func TestSaveLeavesEmptyWindowWithoutReplacer(t *testing.T) {
	ctx := context.Background()
	oc := &observedCollection{Collection: kvstore.New(inmem.New(), "index_ranges")}
	s := NewService(oc, &testPublisher{})
	require.NoError(t, s.Save(ctx, newRange("a", 0, 10, 1)))

	var seen error
	oc.afterRemove = func() {
		_, seen = s.Get(ctx, "a")
	}
	require.NoError(t, s.Save(ctx, newRange("a", 0, 20, 2)))
	assert.Equal(t, ErrNotFound, seen)

	ir, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, model.FromMillis(20), ir.End)
}

func TestSaveUsesReplacer(t *testing.T) {
	ctx := context.Background()
	c := collections["bolt"](t)
	_, ok := c.(docstore.Replacer)
	require.True(t, ok)

	s := NewService(c, &testPublisher{})
	require.NoError(t, s.Save(ctx, newRange("a", 0, 10, 1)))
	require.NoError(t, s.Save(ctx, newRange("a", 0, 20, 2)))

	docs, err := c.Find(ctx, docstore.And(docstore.Is(FieldIndexName, "a")))
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestSaveInvertedRange(t *testing.T) {
	forEachCollection(t, func(t *testing.T, s *Service, tp *testPublisher) {
		ctx := context.Background()
		ir := newRange("inv", 50, 10, 1)
		require.NoError(t, s.Save(ctx, ir))
		res, err := s.Get(ctx, "inv")
		require.NoError(t, err)
		assert.False(t, res.Valid())
	})
}

// brokenCollection fails every operation with err
type brokenCollection struct {
	err error
}

func (bc *brokenCollection) Name() string { return "broken" }

func (bc *brokenCollection) Insert(ctx context.Context, doc docstore.Document) (string, error) {
	return "", bc.err
}

func (bc *brokenCollection) Find(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	return nil, bc.err
}

func (bc *brokenCollection) FindOne(ctx context.Context, q docstore.Query) (docstore.Document, error) {
	return nil, bc.err
}

func (bc *brokenCollection) Remove(ctx context.Context, q docstore.Query) (int, error) {
	return 0, bc.err
}

// brokenReplacer is brokenCollection which is a docstore.Replacer
type brokenReplacer struct {
	brokenCollection
}

func (br *brokenReplacer) Replace(ctx context.Context, q docstore.Query, doc docstore.Document) (string, error) {
	return "", br.err
}

func TestStorageErrorsArePropagated(t *testing.T) {
	errStore := fmt.Errorf("storage is unavailable")
	for name, coll := range map[string]docstore.Collection{
		"plain":    &brokenCollection{err: errStore},
		"replacer": &brokenReplacer{brokenCollection{err: errStore}},
	} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			tp := &testPublisher{}
			s := NewService(coll, tp)

			_, err := s.Get(ctx, "a")
			require.Error(t, err)
			assert.NotEqual(t, ErrNotFound, err)
			assert.Equal(t, errStore, errors.Cause(err))

			_, err = s.Find(ctx, model.FromMillis(0), model.FromMillis(10))
			assert.Equal(t, errStore, errors.Cause(err))

			_, err = s.FindAll(ctx)
			assert.Equal(t, errStore, errors.Cause(err))

			err = s.Save(ctx, newRange("a", 0, 10, 1))
			assert.Equal(t, errStore, errors.Cause(err))
			assert.Empty(t, tp.get())

			err = s.Delete(ctx, "a")
			assert.Equal(t, errStore, errors.Cause(err))
		})
	}
}

func TestFindSubMillisecondBounds(t *testing.T) {
	forEachCollection(t, func(t *testing.T, s *Service, tp *testPublisher) {
		ctx := context.Background()
		require.NoError(t, s.Save(ctx, newRange("a", 0, 1000, 1)))

		begin := model.FromMillis(1000).Add(500 * time.Microsecond)
		res, err := s.Find(ctx, begin, model.FromMillis(2000))
		require.NoError(t, err)
		assert.Empty(t, res)

		res, err = s.Find(ctx, model.FromMillis(1000), model.FromMillis(2000))
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, res.Names())

		// end is truncated, a range beginning in the same millisecond matches
		res, err = s.Find(ctx, model.FromMillis(-10), time.UnixMilli(0).Add(500*time.Microsecond))
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, res.Names())
	})
}
