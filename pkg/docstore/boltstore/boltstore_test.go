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

package boltstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/logrange/irange/pkg/docstore"
	"github.com/logrange/irange/pkg/docstore/docstoretest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	db, err := Open(filepath.Join(t.TempDir(), "db", "irange.db"), WithNoSync(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestCollection(t *testing.T) {
	docstoretest.RunCollectionTests(t, func(t *testing.T) docstore.Collection {
		c, err := openTestDB(t).Collection("index_ranges", "index_name")
		require.NoError(t, err)
		return c
	})
}

func TestCollectionWithoutIndex(t *testing.T) {
	docstoretest.RunCollectionTests(t, func(t *testing.T) docstore.Collection {
		c, err := openTestDB(t).Collection("index_ranges")
		require.NoError(t, err)
		return c
	})
}

func TestIndexIsBuiltForExistingDocuments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "irange.db")
	ctx := context.Background()

	db, err := Open(path, WithNoSync(true))
	require.NoError(t, err)
	c, err := db.Collection("ranges")
	require.NoError(t, err)
	_, err = c.Insert(ctx, docstore.Document{"index_name": "a", "begin": int64(1)})
	require.NoError(t, err)
	_, err = c.Insert(ctx, docstore.Document{"index_name": "b", "begin": int64(2)})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path, WithNoSync(true))
	require.NoError(t, err)
	defer db.Close()
	c, err = db.Collection("ranges", "index_name")
	require.NoError(t, err)

	d, err := c.FindOne(ctx, docstore.And(docstore.Is("index_name", "b")))
	require.NoError(t, err)
	begin, _ := d.Int64("begin")
	assert.Equal(t, int64(2), begin)

	n, err := c.Remove(ctx, docstore.And(docstore.Is("index_name", "a")))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = c.FindOne(ctx, docstore.And(docstore.Is("index_name", "a")))
	assert.Equal(t, docstore.ErrNotFound, err)
}

func TestCollectionIsCached(t *testing.T) {
	db := openTestDB(t)
	c1, err := db.Collection("ranges", "index_name")
	require.NoError(t, err)
	c2, err := db.Collection("ranges")
	require.NoError(t, err)
	assert.True(t, c1 == c2)
	assert.Equal(t, "ranges", c1.Name())
}
