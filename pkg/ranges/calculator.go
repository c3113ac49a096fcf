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
	"time"

	"github.com/jrivets/log4g"
	"github.com/logrange/irange/pkg/indices"
	"github.com/logrange/irange/pkg/model"
)

// Calculator computes index ranges from the index engine statistics. It never
// writes to the storage, use Service.Save for that.
type Calculator struct {
	Indices indices.Indices `inject:"indices"`

	logger log4g.Logger
	now    func() time.Time
}

// NewCalculator creates the new Calculator which uses ix
func NewCalculator(ix indices.Indices) *Calculator {
	c := new(Calculator)
	c.Indices = ix
	c.PostConstruct()
	return c
}

// PostConstruct is part of linker.PostConstructor
func (c *Calculator) PostConstruct() {
	c.logger = log4g.GetLogger("ranges.Calculator")
	c.now = time.Now
}

// CalculateRange returns fresh range for the index. The returned error
// matches ErrStatisticsUnavailable if the engine could not provide the
// statistics, the engine error (indices.ErrNoIndex etc.) is matched as well.
func (c *Calculator) CalculateRange(ctx context.Context, index string) (model.IndexRange, error) {
	start := c.now()
	st, err := c.Indices.TimestampStats(ctx, index)
	took := c.now().Sub(start)
	if err != nil {
		calcFailures.Inc()
		return model.IndexRange{}, newStatisticsError(index, err)
	}

	calcDuration.Observe(took.Seconds())
	ir := model.NewIndexRange(index, st.Min, st.Max, start, took)
	c.logger.Info("Calculated range of ", index, " in ", ir.CalculationDuration, "ms: ", ir.TimeRange)
	return ir, nil
}
