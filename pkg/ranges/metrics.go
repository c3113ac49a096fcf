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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rangesSaved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "irange",
		Subsystem: "ranges",
		Name:      "saved_total",
		Help:      "Number of index ranges saved",
	})

	rangesDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "irange",
		Subsystem: "ranges",
		Name:      "deleted_total",
		Help:      "Number of index range documents removed",
	})

	skippedDocs = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "irange",
		Subsystem: "ranges",
		Name:      "skipped_documents_total",
		Help:      "Number of stored documents ignored because they could not be read as index ranges",
	})

	calcDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "irange",
		Subsystem: "ranges",
		Name:      "calculation_duration_seconds",
		Help:      "Index range calculation latency",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
	})

	calcFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "irange",
		Subsystem: "ranges",
		Name:      "calculation_failures_total",
		Help:      "Number of index range calculations failed",
	})
)
