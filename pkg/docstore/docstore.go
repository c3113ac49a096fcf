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
Package docstore defines a small document collection abstraction. A document is
a flat map of field names to values, collections support filtered queries with
equality, "in", "less or equal", "greater or equal" and (non-)existence
predicates on fields. The kvstore and boltstore sub-packages contain the
implementations.
*/
package docstore

import (
	"context"
	"fmt"
)

type (
	// Document is a stored unit. Values must be JSON friendly: strings, numbers
	// and booleans are supported by the predicates.
	Document map[string]interface{}

	// Collection is a set of documents. Every document gets an unique
	// identifier in the IdField when it is inserted.
	Collection interface {
		// Name returns the collection name
		Name() string

		// Insert adds the new document to the collection and returns its id
		Insert(ctx context.Context, doc Document) (string, error)

		// Find returns all documents matching q. Empty result is not an error.
		Find(ctx context.Context, q Query) ([]Document, error)

		// FindOne returns first document matching q or ErrNotFound
		FindOne(ctx context.Context, q Query) (Document, error)

		// Remove deletes all documents matching q and returns the number of
		// documents removed.
		Remove(ctx context.Context, q Query) (int, error)
	}

	// Replacer can be implemented by a Collection that is able to remove
	// documents matching q and insert doc atomically.
	Replacer interface {
		Replace(ctx context.Context, q Query, doc Document) (string, error)
	}
)

// IdField contains the name of the document identifier field
const IdField = "_id"

var (
	ErrNotFound = fmt.Errorf("the document is not found")
)

// Copy returns shallow copy of the document
func (d Document) Copy() Document {
	res := make(Document, len(d))
	for k, v := range d {
		res[k] = v
	}
	return res
}

// Id returns the document identifier, or empty string if it is not assigned
func (d Document) Id() string {
	id, _ := d[IdField].(string)
	return id
}

// Int64 returns the field value as int64. The second value is false if the
// field is not set or it is not a number
func (d Document) Int64(field string) (int64, bool) {
	v, ok := d[field]
	if !ok {
		return 0, false
	}
	n, ok := toNumber(v)
	if !ok {
		return 0, false
	}
	return n.int64(), true
}

// StringField returns the field value if it is a string
func (d Document) StringField(field string) (string, bool) {
	s, ok := d[field].(string)
	return s, ok
}
