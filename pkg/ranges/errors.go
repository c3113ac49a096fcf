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
Package ranges contains the index ranges repository (Service) and the range
calculator (Calculator). A range record tells what timestamps interval an index
holds, so time-bounded queries can be routed only to the indices which may
contain matching records.

Records are stored as documents in a docstore.Collection, one document per
index. Documents which don't look like the current schema (no "begin" field,
or the legacy "start" field present) are ignored by all read operations.
*/
package ranges

import (
	"fmt"
)

var (
	// ErrNotFound is returned by Service.Get when there is no range for the index
	ErrNotFound = fmt.Errorf("index range not found")

	// ErrStatisticsUnavailable is matched (errors.Is) by errors returned from
	// Calculator.CalculateRange when the index engine could not provide
	// timestamp statistics for the index
	ErrStatisticsUnavailable = fmt.Errorf("index timestamp statistics unavailable")

	// ErrReadinessTimeout is matched by errors reported when an index didn't
	// become ready within the configured timeout
	ErrReadinessTimeout = fmt.Errorf("index readiness timeout")
)

// indexError keeps the index name and the cause of a failure, it matches
// both the kind sentinel and the cause.
type indexError struct {
	kind  error
	index string
	cause error
}

// NewReadinessTimeoutError returns an error which matches ErrReadinessTimeout
// and the cause
func NewReadinessTimeoutError(index string, cause error) error {
	return &indexError{kind: ErrReadinessTimeout, index: index, cause: cause}
}

func newStatisticsError(index string, cause error) error {
	return &indexError{kind: ErrStatisticsUnavailable, index: index, cause: cause}
}

func (e *indexError) Error() string {
	return fmt.Sprintf("%s for %s: %v", e.kind, e.index, e.cause)
}

func (e *indexError) Is(target error) bool {
	return target == e.kind
}

func (e *indexError) Unwrap() error {
	return e.cause
}
