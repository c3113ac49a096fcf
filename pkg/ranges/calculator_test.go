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

package ranges

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/logrange/irange/pkg/indices"
	"github.com/logrange/irange/pkg/indices/inmem"
	"github.com/logrange/irange/pkg/model"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepClock returns start, start+step, start+2*step...
func stepClock(start time.Time, step time.Duration) func() time.Time {
	cur := start.Add(-step)
	return func() time.Time {
		cur = cur.Add(step)
		return cur
	}
}

func TestCalculateRange(t *testing.T) {
	e := inmem.New()
	e.Write("graylog_12", model.FromMillis(3000), model.FromMillis(1000), model.FromMillis(5000))

	c := NewCalculator(e)
	start := time.Date(2019, 3, 1, 10, 0, 0, 0, time.UTC)
	c.now = stepClock(start, 1500*time.Millisecond)

	ir, err := c.CalculateRange(context.Background(), "graylog_12")
	require.NoError(t, err)
	assert.Equal(t, "graylog_12", ir.IndexName)
	assert.Equal(t, model.FromMillis(1000), ir.Begin)
	assert.Equal(t, model.FromMillis(5000), ir.End)
	assert.Equal(t, start, ir.CalculatedAt)
	assert.Equal(t, 1500, ir.CalculationDuration)
}

func TestCalculateRangeSaturatesDuration(t *testing.T) {
	e := inmem.New()
	e.Write("a", model.FromMillis(1))

	c := NewCalculator(e)
	c.now = stepClock(time.Now(), time.Duration(math.MaxInt32+10)*time.Millisecond)
	ir, err := c.CalculateRange(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt32, ir.CalculationDuration)
}

func TestCalculateRangeFailures(t *testing.T) {
	e := inmem.New()
	e.Create("empty")
	c := NewCalculator(e)

	_, err := c.CalculateRange(context.Background(), "empty")
	assert.True(t, errors.Is(err, ErrStatisticsUnavailable))
	assert.True(t, errors.Is(err, indices.ErrEmptyIndex))

	_, err = c.CalculateRange(context.Background(), "absent")
	assert.True(t, errors.Is(err, ErrStatisticsUnavailable))
	assert.True(t, errors.Is(err, indices.ErrNoIndex))
	assert.False(t, errors.Is(err, ErrReadinessTimeout))
	assert.Contains(t, err.Error(), "absent")
}

func TestReadinessTimeoutError(t *testing.T) {
	err := NewReadinessTimeoutError("a", context.DeadlineExceeded)
	assert.True(t, errors.Is(err, ErrReadinessTimeout))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.False(t, errors.Is(err, ErrStatisticsUnavailable))
}
