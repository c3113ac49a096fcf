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
Package indices defines the capabilities of the index engine, which stores the
raw log records, used for computing index ranges. The es sub-package talks to an
Elasticsearch cluster, the inmem one keeps everything in memory and is used for
tests and local runs.
*/
package indices

import (
	"context"
	"fmt"
	"time"

	"github.com/jrivets/log4g"
)

type (
	// TimestampStats contains the minimum and maximum timestamps of records
	// stored in an index
	TimestampStats struct {
		Min time.Time
		Max time.Time
	}

	// Indices is the index engine interface
	Indices interface {
		// TimestampStats returns timestamps statistics for the index. It
		// returns ErrNoIndex if the index doesn't exist and ErrEmptyIndex if
		// there is no data in the index.
		TimestampStats(ctx context.Context, index string) (TimestampStats, error)

		// WaitForRecovery blocks until the index is ready to serve requests
		// or ctx is closed.
		WaitForRecovery(ctx context.Context, index string) error
	}

	settled struct {
		Indices
		delay  time.Duration
		logger log4g.Logger
	}
)

var (
	ErrNoIndex    = fmt.Errorf("the index doesn't exist")
	ErrEmptyIndex = fmt.Errorf("the index contains no data")
)

// WithSettleDelay returns Indices which WaitForRecovery waits additional
// delay after the index is reported ready. The engine can report an index
// healthy a bit before it is able to serve statistics queries, the delay
// compensates that.
func WithSettleDelay(ix Indices, delay time.Duration) Indices {
	if delay <= 0 {
		return ix
	}
	return &settled{Indices: ix, delay: delay, logger: log4g.GetLogger("indices.settled")}
}

func (s *settled) WaitForRecovery(ctx context.Context, index string) error {
	if err := s.Indices.WaitForRecovery(ctx, index); err != nil {
		return err
	}

	s.logger.Debug("Index ", index, " is recovered, waiting ", s.delay, " more")
	tmr := time.NewTimer(s.delay)
	defer tmr.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-tmr.C:
	}
	return nil
}
