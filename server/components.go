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

package server

import (
	"context"

	"github.com/jrivets/log4g"
	"github.com/logrange/irange/pkg/events"
	"github.com/logrange/irange/pkg/events/feed"
	"github.com/logrange/irange/pkg/lifecycle"
	"github.com/logrange/irange/pkg/ranges"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type (
	// rangeUpdates consumes events.RangeUpdated notifications
	rangeUpdates struct {
		Events events.Subscriber `inject:"events"`
		Ranges *ranges.Service   `inject:"ranges"`

		logger log4g.Logger
	}

	// feeds runs the configured lifecycle event sources. It depends on the
	// lifecycle.Manager, so the events are read when the manager is
	// subscribed already.
	feeds struct {
		Events  events.Publisher   `inject:"events"`
		Manager *lifecycle.Manager `inject:""`

		cfgs   []*feed.Config
		logger log4g.Logger
		cancel context.CancelFunc
	}
)

var rangeUpdatesTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "irange_server_range_updates_total",
	Help: "The number of range updated notifications received",
})

func newRangeUpdates() *rangeUpdates {
	ru := new(rangeUpdates)
	ru.logger = log4g.GetLogger("server.rangeUpdates")
	return ru
}

// Init is part of linker.Initializer
func (ru *rangeUpdates) Init(ctx context.Context) error {
	ru.Events.Subscribe("server.rangeUpdates", ru.onEvent)
	return nil
}

func (ru *rangeUpdates) onEvent(ctx context.Context, ev events.Event) {
	upd, ok := ev.Payload.(events.RangeUpdated)
	if !ok {
		return
	}
	rangeUpdatesTotal.Inc()
	ir, err := ru.Ranges.Get(ctx, upd.IndexName)
	if err != nil {
		// the range could be removed already
		ru.logger.Debug("Range of ", upd.IndexName, " is updated, but could not be read, err=", err)
		return
	}
	ru.logger.Info("Range updated ", ir)
}

func newFeeds(cfgs []*feed.Config) *feeds {
	f := new(feeds)
	f.cfgs = cfgs
	f.logger = log4g.GetLogger("server.feeds")
	return f
}

// Init is part of linker.Initializer
func (f *feeds) Init(ctx context.Context) error {
	var fctx context.Context
	fctx, f.cancel = context.WithCancel(context.Background())
	for _, cfg := range f.cfgs {
		src := feed.NewSource(*cfg, f.Events)
		go func(path string) {
			if err := src.Run(fctx); err != nil && fctx.Err() == nil {
				f.logger.Error("Events feed ", path, " is over with err=", err)
				return
			}
			f.logger.Info("Events feed ", path, " is over")
		}(cfg.Path)
	}
	return nil
}

// Shutdown is part of linker.Shutdowner. Feeds blocked on reading are not
// waited for.
func (f *feeds) Shutdown() {
	f.cancel()
}
