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

package model

import (
	"fmt"
	"time"
)

type (
	// TimeRange struct defines a closed time interval [Begin, End].
	TimeRange struct {
		// Begin contains the earliest time point of the interval
		Begin time.Time
		// End contains the latest time point of the interval
		End time.Time
	}
)

// NewTimeRange returns the TimeRange for the unix milliseconds provided.
func NewTimeRange(beginMs, endMs int64) TimeRange {
	return TimeRange{Begin: FromMillis(beginMs), End: FromMillis(endMs)}
}

// Overlaps returns whether tr and other have at least one common time point. Both
// intervals are inclusive, so touching intervals overlap.
func (tr TimeRange) Overlaps(other TimeRange) bool {
	return !tr.Begin.After(other.End) && !tr.End.Before(other.Begin)
}

// Contains returns true if the time point t is in the interval
func (tr TimeRange) Contains(t time.Time) bool {
	return !t.Before(tr.Begin) && !t.After(tr.End)
}

// Valid returns true if Begin is not after End
func (tr TimeRange) Valid() bool {
	return !tr.Begin.After(tr.End)
}

func (tr TimeRange) String() string {
	return fmt.Sprintf("[%s, %s]", tr.Begin.Format(time.RFC3339Nano), tr.End.Format(time.RFC3339Nano))
}

// FromMillis turns unix milliseconds to UTC time
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// ToMillis returns unix milliseconds for t
func ToMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// ToMillisCeil returns unix milliseconds for t rounded up, so the result is
// never before t
func ToMillisCeil(t time.Time) int64 {
	ms := t.UnixMilli()
	if t.After(FromMillis(ms)) {
		ms++
	}
	return ms
}
