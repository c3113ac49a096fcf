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
rql package contains the parser for the Range Query Language (RQL), used by
the shell and the command line client for looking up index ranges. The RQL
supports the following constructions:
	ALL
	INDEX <index name>
	LAST <duration>
	FROM <timestamp> [TO <timestamp>]

The timestamps could be absolute ('2019-03-01 12:34:55', 2019-03-01T12:34:55Z,
unix milliseconds), relative to the current time (-1.5h, -30m, -2d) or one of
the constants: now, minute, hour, day, week.
*/
package rql

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alecthomas/participle"
	"github.com/alecthomas/participle/lexer"
	"github.com/logrange/irange/pkg/model"
	"github.com/logrange/irange/pkg/ranges"
	"github.com/pkg/errors"
)

var (
	rqlLexer = lexer.Must(lexer.Regexp(`(\s+)` +
		`|(?P<Keyword>(?i)\b(ALL|INDEX|LAST|FROM|TO)\b)` +
		`|(?P<String>"([^\\"]|\\.)*"|'([^\\']|\\.)*')` +
		`|(?P<Ident>[a-zA-Z_][a-zA-Z0-9_\-\.]*)` +
		`|(?P<Value>[0-9\-+][a-zA-Z0-9_\-:\.+]*)`,
	))

	parser = participle.MustBuild(
		&Query{},
		participle.Lexer(rqlLexer),
		participle.Unquote("String"),
		participle.CaseInsensitive("Keyword"),
	)
)

type (
	// Query is the parsed RQL statement, only one of the fields is set
	Query struct {
		All      bool      `  @"ALL"`
		Index    *string   `| "INDEX" (@String|@Ident|@Value)`
		Last     *string   `| "LAST" (@Value|@Ident|@String)`
		Interval *Interval `| @@`
	}

	// Interval is FROM ... TO ...
	Interval struct {
		From string  `"FROM" (@String|@Value|@Ident)`
		To   *string `("TO" (@String|@Value|@Ident))?`
	}

	// Finder is implemented by ranges.Service
	Finder interface {
		Get(ctx context.Context, index string) (model.IndexRange, error)
		Find(ctx context.Context, begin, end time.Time) (model.IndexRanges, error)
		FindAll(ctx context.Context) (model.IndexRanges, error)
	}
)

// Parse parses the RQL statement
func Parse(rql string) (*Query, error) {
	if strings.TrimSpace(rql) == "" {
		return nil, fmt.Errorf("empty query")
	}
	q := &Query{}
	if err := parser.ParseString(rql, q); err != nil {
		return nil, errors.Wrapf(err, "could not parse %q", rql)
	}
	return q, nil
}

// TimeRange returns the interval for LAST and FROM queries. The second
// value is false for other queries.
func (q *Query) TimeRange(now time.Time) (model.TimeRange, bool, error) {
	var tr model.TimeRange
	switch {
	case q.Last != nil:
		d, err := parseDuration(*q.Last)
		if err != nil {
			return tr, true, err
		}
		tr.Begin, tr.End = now.Add(-d), now
	case q.Interval != nil:
		var err error
		if tr.Begin, err = parseDateTime(q.Interval.From, now); err != nil {
			return tr, true, err
		}
		tr.End = now
		if q.Interval.To != nil {
			if tr.End, err = parseDateTime(*q.Interval.To, now); err != nil {
				return tr, true, err
			}
		}
		if tr.End.Before(tr.Begin) {
			return tr, true, fmt.Errorf("the interval end %s is before its begin %s", tr.End, tr.Begin)
		}
	default:
		return tr, false, nil
	}
	tr.Begin, tr.End = tr.Begin.UTC(), tr.End.UTC()
	return tr, true, nil
}

// Execute runs the query against f. INDEX query for an unknown index returns
// empty result.
func (q *Query) Execute(ctx context.Context, f Finder) (model.IndexRanges, error) {
	if q.Index != nil {
		ir, err := f.Get(ctx, *q.Index)
		if err == ranges.ErrNotFound {
			return model.IndexRanges{}, nil
		}
		if err != nil {
			return nil, err
		}
		return model.IndexRanges{ir}, nil
	}

	tr, ok, err := q.TimeRange(time.Now())
	if err != nil {
		return nil, err
	}
	if ok {
		return f.Find(ctx, tr.Begin, tr.End)
	}
	return f.FindAll(ctx)
}

func (q *Query) String() string {
	switch {
	case q.All:
		return "ALL"
	case q.Index != nil:
		return "INDEX " + quoteIfNeeded(*q.Index)
	case q.Last != nil:
		return "LAST " + *q.Last
	case q.Interval != nil:
		s := "FROM " + quoteIfNeeded(q.Interval.From)
		if q.Interval.To != nil {
			s += " TO " + quoteIfNeeded(*q.Interval.To)
		}
		return s
	}
	return ""
}

func quoteIfNeeded(s string) string {
	if strings.ContainsAny(s, " \t'\"") || s == "" {
		return fmt.Sprintf("%q", s)
	}
	return s
}
