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

// Package kvstore implements docstore.Collection on top of kv.Storage. Every
// document is stored as a separate record with the key <collection>/<id>, so
// queries scan the collection key range and filter the documents.
package kvstore

import (
	"context"

	"github.com/google/uuid"
	"github.com/jrivets/log4g"
	"github.com/logrange/irange/pkg/docstore"
	"github.com/logrange/range/pkg/kv"
	"github.com/pkg/errors"
)

type (
	// Collection implements docstore.Collection using kv.Storage
	Collection struct {
		storage kv.Storage
		name    string
		logger  log4g.Logger
	}
)

const keySeparator = "/"

// New returns the collection name stored in s.
func New(s kv.Storage, name string) *Collection {
	c := new(Collection)
	c.storage = s
	c.name = name
	c.logger = log4g.GetLogger("docstore.kvstore").WithId("{" + name + "}").(log4g.Logger)
	return c
}

// Name is part of docstore.Collection
func (c *Collection) Name() string {
	return c.name
}

// Insert is part of docstore.Collection
func (c *Collection) Insert(ctx context.Context, doc docstore.Document) (string, error) {
	d := doc.Copy()
	id := uuid.New().String()
	d[docstore.IdField] = id

	val, err := docstore.Encode(d)
	if err != nil {
		return "", err
	}

	if _, err = c.storage.Create(ctx, kv.Record{Key: c.key(id), Value: val}); err != nil {
		return "", errors.Wrapf(err, "could not insert document into %s", c.name)
	}
	return id, nil
}

// Find is part of docstore.Collection
func (c *Collection) Find(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	recs, err := c.storage.GetRange(ctx, c.startKey(), c.endKey())
	if err != nil {
		return nil, errors.Wrapf(err, "could not read documents of %s", c.name)
	}

	res := make([]docstore.Document, 0, len(recs))
	for _, r := range recs {
		d, err := docstore.Decode(r.Value)
		if err != nil {
			c.logger.Warn("skipping the record key=", r.Key, ", err=", err)
			continue
		}
		if q.Match(d) {
			res = append(res, d)
		}
	}
	return res, nil
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

// Remove is part of docstore.Collection. Documents removed concurrently by
// somebody else are not counted.
func (c *Collection) Remove(ctx context.Context, q docstore.Query) (int, error) {
	docs, err := c.Find(ctx, q)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, d := range docs {
		err = c.storage.Delete(ctx, c.key(d.Id()))
		if err == kv.ErrNotFound {
			continue
		}
		if err != nil {
			return n, errors.Wrapf(err, "could not remove document %s from %s", d.Id(), c.name)
		}
		n++
	}
	return n, nil
}

func (c *Collection) key(id string) kv.Key {
	return kv.Key(c.name + keySeparator + id)
}

func (c *Collection) startKey() kv.Key {
	return kv.Key(c.name + keySeparator)
}

func (c *Collection) endKey() kv.Key {
	return kv.Key(c.name + keySeparator + "\xff")
}
