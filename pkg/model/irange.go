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
	"math"
	"sort"
	"strings"
	"time"
)

type (
	// IndexRange describes the known timestamp span of one index. The record
	// is identified by IndexName, the storage keeps at most one record per
	// index name.
	IndexRange struct {
		// IndexName is the index identifier
		IndexName string
		TimeRange
		// CalculatedAt contains the time when the range was (re)computed
		CalculatedAt time.Time
		// CalculationDuration contains how long the computation took in
		// milliseconds. Diagnostic only.
		CalculationDuration int
	}

	// IndexRanges is a list of ranges. The sort.Interface implementation
	// orders the list by Begin, ties are broken by IndexName
	IndexRanges []IndexRange
)

// NewIndexRange creates the IndexRange. The times are converted to UTC and
// the duration is saturated to the int32 range.
func NewIndexRange(index string, begin, end, calculatedAt time.Time, took time.Duration) IndexRange {
	return IndexRange{
		IndexName:           index,
		TimeRange:           TimeRange{Begin: begin.UTC(), End: end.UTC()},
		CalculatedAt:        calculatedAt.UTC(),
		CalculationDuration: SaturatedMillis(took),
	}
}

// SaturatedMillis returns d in milliseconds cut to [0..math.MaxInt32]
func SaturatedMillis(d time.Duration) int {
	ms := d.Milliseconds()
	if ms < 0 {
		return 0
	}
	if ms > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(ms)
}

// CompareRanges returns negative value if r1 goes before r2, 0 if they are
// at the same position and positive value otherwise.
func CompareRanges(r1, r2 IndexRange) int {
	if r1.Begin.Before(r2.Begin) {
		return -1
	}
	if r1.Begin.After(r2.Begin) {
		return 1
	}
	return strings.Compare(r1.IndexName, r2.IndexName)
}

// SortRanges orders irs and removes records with same index name, the record
// with the latest CalculatedAt is kept. The result reuses irs memory.
func SortRanges(irs IndexRanges) IndexRanges {
	if len(irs) == 0 {
		return irs
	}

	latest := make(map[string]int, len(irs))
	res := irs[:0]
	for _, ir := range irs {
		if idx, ok := latest[ir.IndexName]; ok {
			if ir.CalculatedAt.After(res[idx].CalculatedAt) {
				res[idx] = ir
			}
			continue
		}
		latest[ir.IndexName] = len(res)
		res = append(res, ir)
	}

	sort.Sort(res)
	return res
}

// Len is part of sort.Interface.
func (irs IndexRanges) Len() int {
	return len(irs)
}

// Swap is part of sort.Interface.
func (irs IndexRanges) Swap(i, j int) {
	irs[i], irs[j] = irs[j], irs[i]
}

// Less is part of sort.Interface.
func (irs IndexRanges) Less(i, j int) bool {
	return CompareRanges(irs[i], irs[j]) < 0
}

// Names returns index names in the order of irs
func (irs IndexRanges) Names() []string {
	res := make([]string, len(irs))
	for i, ir := range irs {
		res[i] = ir.IndexName
	}
	return res
}

func (ir IndexRange) String() string {
	return fmt.Sprintf("{index=%s, range=%s, calculatedAt=%s, took=%dms}", ir.IndexName, ir.TimeRange,
		ir.CalculatedAt.Format(time.RFC3339), ir.CalculationDuration)
}
