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

// Package boltstore implements docstore.Collection on top of a bbolt database
// file. A collection is a bucket of documents keyed by the document id.
// Collections can maintain secondary indexes for fields which are used in
// equality queries (docstore.Is, docstore.In).
package boltstore

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrivets/log4g"
	"github.com/logrange/irange/pkg/docstore"
	"github.com/logrange/range/pkg/utils/fileutil"
	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

type (
	// DB wraps the bbolt database which keeps collections
	DB struct {
		db     *bbolt.DB
		logger log4g.Logger
		noSync bool

		lock  sync.Mutex
		colls map[string]*Collection
	}

	// Option configures DB
	Option func(*DB)

	// Collection implements docstore.Collection and docstore.Replacer
	Collection struct {
		db      *bbolt.DB
		name    []byte
		indexes map[string][]byte
		logger  log4g.Logger
	}
)

const (
	indexBucketSeparator = "#"
	indexKeySeparator    = 0
)

// WithNoSync disables fsync per transaction, for tests only.
func WithNoSync(noSync bool) Option {
	return func(d *DB) {
		d.noSync = noSync
	}
}

// Open opens or creates the database file. The file directory is created if
// it doesn't exist.
func Open(path string, opts ...Option) (*DB, error) {
	d := new(DB)
	d.logger = log4g.GetLogger("docstore.boltstore")
	d.colls = make(map[string]*Collection)
	for _, opt := range opts {
		opt(d)
	}

	if err := fileutil.EnsureDirExists(filepath.Dir(path)); err != nil {
		return nil, errors.Wrapf(err, "could not create dir for %s", path)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second, NoSync: d.noSync})
	if err != nil {
		return nil, errors.Wrapf(err, "could not open database %s", path)
	}
	d.db = db
	d.logger.Info("Opened ", path, ", noSync=", d.noSync)
	return d, nil
}

// Close closes the database
func (d *DB) Close() error {
	d.logger.Info("Closing the database")
	return d.db.Close()
}

// Shutdown is part of linker.Shutdowner
func (d *DB) Shutdown() {
	if err := d.Close(); err != nil {
		d.logger.Error("Could not close the database, err=", err)
	}
}

// Collection returns the collection by its name. The collection buckets and
// index buckets for the fields provided are created if needed. The indexed
// fields of a collection are defined by the first call for the name.
func (d *DB) Collection(name string, indexedFields ...string) (*Collection, error) {
	d.lock.Lock()
	defer d.lock.Unlock()

	if c, ok := d.colls[name]; ok {
		return c, nil
	}

	c := &Collection{
		db:      d.db,
		name:    []byte(name),
		indexes: make(map[string][]byte, len(indexedFields)),
		logger:  d.logger.WithId("{" + name + "}").(log4g.Logger),
	}
	for _, f := range indexedFields {
		c.indexes[f] = []byte(name + indexBucketSeparator + f)
	}

	err := d.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(c.name); err != nil {
			return errors.Wrapf(err, "could not create bucket %s", name)
		}
		for f, bn := range c.indexes {
			if tx.Bucket(bn) != nil {
				continue
			}
			ib, err := tx.CreateBucket(bn)
			if err != nil {
				return errors.Wrapf(err, "could not create index bucket for %s", f)
			}
			if err = c.rebuildIndex(tx, f, ib); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	d.colls[name] = c
	return c, nil
}

// Name is part of docstore.Collection
func (c *Collection) Name() string {
	return string(c.name)
}

// Insert is part of docstore.Collection
func (c *Collection) Insert(ctx context.Context, doc docstore.Document) (id string, err error) {
	err = c.db.Update(func(tx *bbolt.Tx) error {
		id, err = c.insert(tx, doc)
		return err
	})
	return id, err
}

// Find is part of docstore.Collection
func (c *Collection) Find(ctx context.Context, q docstore.Query) (res []docstore.Document, err error) {
	err = c.db.View(func(tx *bbolt.Tx) error {
		res, err = c.find(tx, q)
		return err
	})
	return res, err
}

// FindOne is part of docstore.Collection
func (c *Collection) FindOne(ctx context.Context, q docstore.Query) (docstore.Document, error) {
	docs, err := c.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, docstore.ErrNotFound
	}
	return docs[0], nil
}

// Remove is part of docstore.Collection
func (c *Collection) Remove(ctx context.Context, q docstore.Query) (n int, err error) {
	err = c.db.Update(func(tx *bbolt.Tx) error {
		n, err = c.remove(tx, q)
		return err
	})
	return n, err
}

// Replace is part of docstore.Replacer. Removal of the documents matching q
// and inserting doc happen in one transaction.
func (c *Collection) Replace(ctx context.Context, q docstore.Query, doc docstore.Document) (id string, err error) {
	err = c.db.Update(func(tx *bbolt.Tx) error {
		if _, err := c.remove(tx, q); err != nil {
			return err
		}
		id, err = c.insert(tx, doc)
		return err
	})
	return id, err
}

func (c *Collection) insert(tx *bbolt.Tx, doc docstore.Document) (string, error) {
	d := doc.Copy()
	id := uuid.New().String()
	d[docstore.IdField] = id

	val, err := docstore.Encode(d)
	if err != nil {
		return "", err
	}

	if err = tx.Bucket(c.name).Put([]byte(id), val); err != nil {
		return "", errors.Wrapf(err, "could not put document into %s", c.name)
	}

	for f, bn := range c.indexes {
		if v, ok := d[f]; ok {
			if err = tx.Bucket(bn).Put(indexKey(v, id), nil); err != nil {
				return "", errors.Wrapf(err, "could not update index %s", f)
			}
		}
	}
	return id, nil
}

func (c *Collection) find(tx *bbolt.Tx, q docstore.Query) ([]docstore.Document, error) {
	ids, indexed := c.lookupIds(tx, q)
	b := tx.Bucket(c.name)
	res := make([]docstore.Document, 0, 10)

	visit := func(k, v []byte) {
		d, err := docstore.Decode(v)
		if err != nil {
			c.logger.Warn("skipping document id=", string(k), ", err=", err)
			return
		}
		if q.Match(d) {
			res = append(res, d)
		}
	}

	if indexed {
		for _, id := range ids {
			if v := b.Get(id); v != nil {
				visit(id, v)
			}
		}
		return res, nil
	}

	err := b.ForEach(func(k, v []byte) error {
		visit(k, v)
		return nil
	})
	return res, err
}

func (c *Collection) remove(tx *bbolt.Tx, q docstore.Query) (int, error) {
	docs, err := c.find(tx, q)
	if err != nil {
		return 0, err
	}

	b := tx.Bucket(c.name)
	for _, d := range docs {
		id := d.Id()
		if err = b.Delete([]byte(id)); err != nil {
			return 0, errors.Wrapf(err, "could not delete document %s", id)
		}
		for f, bn := range c.indexes {
			if v, ok := d[f]; ok {
				if err = tx.Bucket(bn).Delete(indexKey(v, id)); err != nil {
					return 0, errors.Wrapf(err, "could not update index %s", f)
				}
			}
		}
	}
	return len(docs), nil
}

// lookupIds returns document ids for the query using an index. The second
// value is false if no index could be used.
func (c *Collection) lookupIds(tx *bbolt.Tx, q docstore.Query) ([][]byte, bool) {
	for f, bn := range c.indexes {
		vals, ok := q.EqualityValues(f)
		if !ok {
			continue
		}

		var ids [][]byte
		cur := tx.Bucket(bn).Cursor()
		for _, v := range vals {
			pfx := indexPrefix(v)
			for k, _ := cur.Seek(pfx); k != nil && bytes.HasPrefix(k, pfx); k, _ = cur.Next() {
				id := make([]byte, len(k)-len(pfx))
				copy(id, k[len(pfx):])
				ids = append(ids, id)
			}
		}
		return ids, true
	}
	return nil, false
}

func (c *Collection) rebuildIndex(tx *bbolt.Tx, field string, ib *bbolt.Bucket) error {
	c.logger.Info("Building index for field ", field)
	return tx.Bucket(c.name).ForEach(func(k, v []byte) error {
		d, err := docstore.Decode(v)
		if err != nil {
			return nil
		}
		if fv, ok := d[field]; ok {
			return ib.Put(indexKey(fv, string(k)), nil)
		}
		return nil
	})
}

func indexPrefix(v interface{}) []byte {
	return append([]byte(fmt.Sprintf("%v", v)), indexKeySeparator)
}

func indexKey(v interface{}, id string) []byte {
	return append(indexPrefix(v), id...)
}
