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

package docstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredicates(t *testing.T) {
	d := Document{"index_name": "a", "begin": int64(10), "end": 20, "ratio": 0.5}

	assert.True(t, Is("index_name", "a").Match(d))
	assert.False(t, Is("index_name", "b").Match(d))
	assert.True(t, In("index_name", "b", "a").Match(d))
	assert.False(t, In("index_name").Match(d))
	assert.True(t, LessThanEquals("begin", 10).Match(d))
	assert.False(t, LessThanEquals("begin", 9).Match(d))
	assert.True(t, GreaterThanEquals("end", int64(20)).Match(d))
	assert.True(t, GreaterThanEquals("end", 19.5).Match(d))
	assert.False(t, GreaterThanEquals("end", 21).Match(d))
	assert.True(t, LessThanEquals("ratio", 1).Match(d))
	assert.True(t, Exists("begin").Match(d))
	assert.False(t, Exists("start").Match(d))
	assert.True(t, NotExists("start").Match(d))

	// type mismatch never matches
	assert.False(t, Is("index_name", 1).Match(d))
	assert.False(t, LessThanEquals("index_name", 1).Match(d))
	// absent field doesn't match value predicates
	assert.False(t, LessThanEquals("start", 100).Match(d))
}

func TestQueryMatch(t *testing.T) {
	d := Document{"index_name": "a", "begin": int64(10), "end": int64(20)}
	assert.True(t, Query(nil).Match(d))
	assert.True(t, And(Exists("begin"), NotExists("start"), LessThanEquals("begin", 25), GreaterThanEquals("end", 5)).Match(d))
	assert.False(t, And(Exists("begin"), Exists("start")).Match(d))

	vals, ok := And(Exists("begin"), In("index_name", "a", "b")).EqualityValues("index_name")
	assert.True(t, ok)
	assert.Equal(t, []interface{}{"a", "b"}, vals)
	_, ok = And(Exists("begin")).EqualityValues("index_name")
	assert.False(t, ok)
}

func TestEncodeDecode(t *testing.T) {
	d := Document{IdField: "id1", "index_name": "a", "begin": int64(1577836800000), "ratio": 0.25, "ok": true}
	buf, err := Encode(d)
	require.NoError(t, err)

	d2, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, d, d2)
	assert.Equal(t, "id1", d2.Id())

	v, ok := d2.Int64("begin")
	assert.True(t, ok)
	assert.Equal(t, int64(1577836800000), v)
	_, ok = d2.Int64("index_name")
	assert.False(t, ok)

	_, err = Decode([]byte("{bad json"))
	assert.Error(t, err)
}
