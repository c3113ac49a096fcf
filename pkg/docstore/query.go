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
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

type (
	// Op is a predicate operation
	Op int

	// Predicate is a condition applied to one field of a document
	Predicate struct {
		Field  string
		Op     Op
		Values []interface{}
	}

	// Query is a conjunction of predicates. Empty query matches everything.
	Query []Predicate

	number struct {
		i     int64
		f     float64
		isInt bool
	}
)

const (
	OpEq Op = iota
	OpIn
	OpLte
	OpGte
	OpExists
	OpNotExists
)

// And combines predicates into a query
func And(preds ...Predicate) Query {
	return Query(preds)
}

// Is matches documents where field equals v
func Is(field string, v interface{}) Predicate {
	return Predicate{Field: field, Op: OpEq, Values: []interface{}{v}}
}

// In matches documents where field equals one of vals
func In(field string, vals ...interface{}) Predicate {
	return Predicate{Field: field, Op: OpIn, Values: vals}
}

// LessThanEquals matches documents where field <= v
func LessThanEquals(field string, v interface{}) Predicate {
	return Predicate{Field: field, Op: OpLte, Values: []interface{}{v}}
}

// GreaterThanEquals matches documents where field >= v
func GreaterThanEquals(field string, v interface{}) Predicate {
	return Predicate{Field: field, Op: OpGte, Values: []interface{}{v}}
}

// Exists matches documents which have the field
func Exists(field string) Predicate {
	return Predicate{Field: field, Op: OpExists}
}

// NotExists matches documents which don't have the field
func NotExists(field string) Predicate {
	return Predicate{Field: field, Op: OpNotExists}
}

// Match returns whether the document d satisfies all predicates of q
func (q Query) Match(d Document) bool {
	for _, p := range q {
		if !p.Match(d) {
			return false
		}
	}
	return true
}

// EqualityValues returns values the field must be equal to (one of) if the
// query contains Is or In predicate for the field. The result is used by
// implementations which maintain an index for the field.
func (q Query) EqualityValues(field string) ([]interface{}, bool) {
	for _, p := range q {
		if p.Field == field && (p.Op == OpEq || p.Op == OpIn) {
			return p.Values, true
		}
	}
	return nil, false
}

// Match returns whether d satisfies the predicate
func (p Predicate) Match(d Document) bool {
	v, ok := d[p.Field]
	switch p.Op {
	case OpExists:
		return ok
	case OpNotExists:
		return !ok
	}

	if !ok || len(p.Values) == 0 {
		return false
	}

	switch p.Op {
	case OpEq, OpIn:
		for _, pv := range p.Values {
			if c, ok := compareValues(v, pv); ok && c == 0 {
				return true
			}
		}
		return false
	case OpLte:
		c, ok := compareValues(v, p.Values[0])
		return ok && c <= 0
	case OpGte:
		c, ok := compareValues(v, p.Values[0])
		return ok && c >= 0
	}
	return false
}

func (p Predicate) String() string {
	switch p.Op {
	case OpEq:
		return fmt.Sprintf("%s=%v", p.Field, p.Values[0])
	case OpIn:
		return fmt.Sprintf("%s in %v", p.Field, p.Values)
	case OpLte:
		return fmt.Sprintf("%s<=%v", p.Field, p.Values[0])
	case OpGte:
		return fmt.Sprintf("%s>=%v", p.Field, p.Values[0])
	case OpExists:
		return fmt.Sprintf("exists(%s)", p.Field)
	case OpNotExists:
		return fmt.Sprintf("notExists(%s)", p.Field)
	}
	return fmt.Sprintf("unknown op %d for %s", p.Op, p.Field)
}

func (q Query) String() string {
	ss := make([]string, len(q))
	for i, p := range q {
		ss[i] = p.String()
	}
	return strings.Join(ss, " AND ")
}

// compareValues compares 2 values of same kind (numbers, strings or booleans).
// The second result is false if the values cannot be compared.
func compareValues(a, b interface{}) (int, bool) {
	if na, ok := toNumber(a); ok {
		nb, ok := toNumber(b)
		if !ok {
			return 0, false
		}
		return na.compare(nb), true
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		if av == bv {
			return 0, true
		}
		if !av {
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

func toNumber(v interface{}) (number, bool) {
	switch n := v.(type) {
	case int:
		return number{i: int64(n), isInt: true}, true
	case int8:
		return number{i: int64(n), isInt: true}, true
	case int16:
		return number{i: int64(n), isInt: true}, true
	case int32:
		return number{i: int64(n), isInt: true}, true
	case int64:
		return number{i: n, isInt: true}, true
	case uint:
		return number{i: int64(n), isInt: true}, true
	case uint8:
		return number{i: int64(n), isInt: true}, true
	case uint16:
		return number{i: int64(n), isInt: true}, true
	case uint32:
		return number{i: int64(n), isInt: true}, true
	case uint64:
		if n > math.MaxInt64 {
			return number{f: float64(n)}, true
		}
		return number{i: int64(n), isInt: true}, true
	case float32:
		return number{f: float64(n)}, true
	case float64:
		return number{f: n}, true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return number{i: i, isInt: true}, true
		}
		if f, err := n.Float64(); err == nil {
			return number{f: f}, true
		}
	}
	return number{}, false
}

func (n number) float64() float64 {
	if n.isInt {
		return float64(n.i)
	}
	return n.f
}

func (n number) int64() int64 {
	if n.isInt {
		return n.i
	}
	return int64(n.f)
}

func (n number) compare(other number) int {
	if n.isInt && other.isInt {
		switch {
		case n.i < other.i:
			return -1
		case n.i > other.i:
			return 1
		}
		return 0
	}

	f1, f2 := n.float64(), other.float64()
	switch {
	case f1 < f2:
		return -1
	case f1 > f2:
		return 1
	}
	return 0
}
