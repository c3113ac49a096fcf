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

// Package docstoretest contains the behaviour checks every docstore.Collection
// implementation must pass.
package docstoretest

import (
	"context"
	"sort"
	"testing"

	"github.com/logrange/irange/pkg/docstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunCollectionTests runs the checks against collections created by newColl.
// Every call of newColl must return an empty collection.
func RunCollectionTests(t *testing.T, newColl func(t *testing.T) docstore.Collection) {
	t.Run("InsertFind", func(t *testing.T) { testInsertFind(t, newColl(t)) })
	t.Run("FindOne", func(t *testing.T) { testFindOne(t, newColl(t)) })
	t.Run("Remove", func(t *testing.T) { testRemove(t, newColl(t)) })
	t.Run("RangePredicates", func(t *testing.T) { testRangePredicates(t, newColl(t)) })
	t.Run("Replace", func(t *testing.T) { testReplace(t, newColl(t)) })
}

func testInsertFind(t *testing.T, c docstore.Collection) {
	ctx := context.Background()
	docs, err := c.Find(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, docs, 0)

	id1, err := c.Insert(ctx, docstore.Document{"index_name": "a", "begin": int64(0), "end": int64(10)})
	require.NoError(t, err)
	id2, err := c.Insert(ctx, docstore.Document{"index_name": "b", "begin": int64(20), "end": int64(30)})
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	docs, err = c.Find(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names(docs))

	docs, err = c.Find(ctx, docstore.And(docstore.Is("index_name", "b")))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, id2, docs[0].Id())
	end, _ := docs[0].Int64("end")
	assert.Equal(t, int64(30), end)
}

func testFindOne(t *testing.T, c docstore.Collection) {
	ctx := context.Background()
	_, err := c.FindOne(ctx, docstore.And(docstore.Is("index_name", "a")))
	assert.Equal(t, docstore.ErrNotFound, err)

	_, err = c.Insert(ctx, docstore.Document{"index_name": "a", "start": int64(1)})
	require.NoError(t, err)
	_, err = c.Insert(ctx, docstore.Document{"index_name": "a", "begin": int64(2)})
	require.NoError(t, err)

	d, err := c.FindOne(ctx, docstore.And(docstore.NotExists("start"), docstore.Is("index_name", "a")))
	require.NoError(t, err)
	begin, ok := d.Int64("begin")
	assert.True(t, ok)
	assert.Equal(t, int64(2), begin)
}

func testRemove(t *testing.T, c docstore.Collection) {
	ctx := context.Background()
	n, err := c.Remove(ctx, docstore.And(docstore.In("index_name", "a")))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	for _, in := range []string{"a", "a", "b", "c"} {
		_, err = c.Insert(ctx, docstore.Document{"index_name": in})
		require.NoError(t, err)
	}

	n, err = c.Remove(ctx, docstore.And(docstore.In("index_name", "a", "c")))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	docs, err := c.Find(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, names(docs))
}

func testRangePredicates(t *testing.T, c docstore.Collection) {
	ctx := context.Background()
	for i, in := range []string{"a", "b", "c", "d"} {
		_, err := c.Insert(ctx, docstore.Document{"index_name": in, "begin": int64(i * 10), "end": int64(i*10 + 9)})
		require.NoError(t, err)
	}

	docs, err := c.Find(ctx, docstore.And(docstore.LessThanEquals("begin", 25), docstore.GreaterThanEquals("end", 15)))
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, names(docs))

	docs, err = c.Find(ctx, docstore.And(docstore.LessThanEquals("begin", -1)))
	require.NoError(t, err)
	assert.Len(t, docs, 0)
}

func testReplace(t *testing.T, c docstore.Collection) {
	r, ok := c.(docstore.Replacer)
	if !ok {
		t.Skip("the collection doesn't support atomic replace")
	}

	ctx := context.Background()
	_, err := c.Insert(ctx, docstore.Document{"index_name": "a", "begin": int64(1)})
	require.NoError(t, err)

	_, err = r.Replace(ctx, docstore.And(docstore.Is("index_name", "a")), docstore.Document{"index_name": "a", "begin": int64(2)})
	require.NoError(t, err)

	docs, err := c.Find(ctx, docstore.And(docstore.Is("index_name", "a")))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	begin, _ := docs[0].Int64("begin")
	assert.Equal(t, int64(2), begin)
}

func names(docs []docstore.Document) []string {
	res := make([]string, 0, len(docs))
	for _, d := range docs {
		in, _ := d.StringField("index_name")
		res = append(res, in)
	}
	sort.Strings(res)
	return res
}
