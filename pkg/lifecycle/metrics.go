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

package lifecycle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	opsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "irange",
		Subsystem: "lifecycle",
		Name:      "indices_processed_total",
		Help:      "Number of indices processed by operation",
	}, []string{"op"})

	opsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "irange",
		Subsystem: "lifecycle",
		Name:      "indices_failed_total",
		Help:      "Number of indices failed to process by operation",
	}, []string{"op"})

	recoveryWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "irange",
		Subsystem: "lifecycle",
		Name:      "recovery_wait_seconds",
		Help:      "Time spent waiting for reopened indices to become ready",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})
)
