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

// Package api contains structures and data-type definitions that could be used
// for accessing the irange service using the api.Client interface.
//
// This is version v1 of the api and the following rules must be obeyed when
// a change is needed:
//  - Names of existing data-types cannot be changed
//  - Names of struct fields must be capitalized and cannot be changed
//  - Types of already existing fields cannot be changed
//  - New fields could be added to the existing data structures
//  - New types, structures and functions could be added
package api

import (
	"context"
	"fmt"
)

type (
	// Range describes the timestamps interval of an index. All timestamps
	// are unix milliseconds (UTC).
	Range struct {
		// IndexName contains the index name
		IndexName string `json:"indexName"`
		// Begin is the earliest record timestamp in the index
		Begin int64 `json:"begin"`
		// End is the latest record timestamp in the index
		End int64 `json:"end"`
		// CalculatedAt contains when the range was calculated
		CalculatedAt int64 `json:"calculatedAt"`
		// TookMs contains how long the calculation took in milliseconds
		TookMs int `json:"tookMs"`
	}

	// RangesResult is returned by the ranges query
	RangesResult struct {
		Ranges []Range `json:"ranges"`
	}

	// Report describes the result of an operation applied to several indices
	Report struct {
		Op        string            `json:"op"`
		Processed []string          `json:"processed"`
		Failed    map[string]string `json:"failed,omitempty"`
	}

	// LifecycleEvent is an index lifecycle notification
	LifecycleEvent struct {
		// Event is one of "deleted", "closed" or "reopened"
		Event   string   `json:"event"`
		Indices []string `json:"indices"`
	}

	// RecalculateRequest lists indices which ranges should be recalculated
	RecalculateRequest struct {
		Indices []string `json:"indices"`
	}

	// Error is returned in the body of non-2xx responses
	Error struct {
		Error string `json:"error"`
	}

	// Client is the irange service client
	Client interface {
		// Ranges runs the Range Query Language query (ALL, INDEX x, LAST 2h,
		// FROM t1 TO t2)
		Ranges(ctx context.Context, query string) ([]Range, error)

		// Get returns the range for the index or ErrNotFound
		Get(ctx context.Context, index string) (Range, error)

		// Delete removes the range of the index
		Delete(ctx context.Context, index string) error

		// Recalculate recalculates ranges of the indices. The returned error
		// is about the request itself, failures of particular indices are
		// reported in Report.Failed
		Recalculate(ctx context.Context, indices ...string) (Report, error)

		// PostEvent notifies the service about the index lifecycle event
		PostEvent(ctx context.Context, ev LifecycleEvent) error

		// Close releases the client resources
		Close() error
	}
)

var (
	ErrNotFound = fmt.Errorf("not found")
)

func (r Range) String() string {
	return fmt.Sprintf("{IndexName=%s, Begin=%d, End=%d, CalculatedAt=%d, TookMs=%d}", r.IndexName, r.Begin, r.End,
		r.CalculatedAt, r.TookMs)
}
