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

package indices

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type readyIndices struct {
	waits int
}

func (ri *readyIndices) TimestampStats(ctx context.Context, index string) (TimestampStats, error) {
	return TimestampStats{}, ErrNoIndex
}

func (ri *readyIndices) WaitForRecovery(ctx context.Context, index string) error {
	ri.waits++
	return nil
}

func TestWithSettleDelay(t *testing.T) {
	ri := &readyIndices{}
	assert.True(t, WithSettleDelay(ri, 0) == Indices(ri))

	ix := WithSettleDelay(ri, 50*time.Millisecond)
	start := time.Now()
	assert.NoError(t, ix.WaitForRecovery(context.Background(), "a"))
	assert.True(t, time.Since(start) >= 50*time.Millisecond)
	assert.Equal(t, 1, ri.waits)

	_, err := ix.TimestampStats(context.Background(), "a")
	assert.Equal(t, ErrNoIndex, err)
}

func TestWithSettleDelayCtxClosed(t *testing.T) {
	ix := WithSettleDelay(&readyIndices{}, time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Equal(t, context.DeadlineExceeded, ix.WaitForRecovery(ctx, "a"))
}
