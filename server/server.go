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
	"github.com/logrange/irange/api/rest"
	"github.com/logrange/irange/pkg/docstore"
	"github.com/logrange/irange/pkg/docstore/boltstore"
	"github.com/logrange/irange/pkg/docstore/kvstore"
	"github.com/logrange/irange/pkg/events"
	"github.com/logrange/irange/pkg/indices"
	"github.com/logrange/irange/pkg/indices/es"
	"github.com/logrange/irange/pkg/indices/inmem"
	"github.com/logrange/irange/pkg/lifecycle"
	"github.com/logrange/irange/pkg/ranges"
	"github.com/logrange/linker"
	kvinmem "github.com/logrange/range/pkg/kv/inmem"
	"github.com/pkg/errors"
)

// Start starts the irange server using the configuration provided. It will
// stop it as soon as ctx is closed
func Start(ctx context.Context, cfg *Config) error {
	log := log4g.GetLogger("server")
	if err := cfg.Check(); err != nil {
		return errors.Wrapf(err, "invalid config")
	}
	log.Info("Start with config:", cfg)

	coll, closeStore, err := newCollection(cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	ix, err := newIndices(cfg.Indices)
	if err != nil {
		return err
	}

	injector := linker.New()
	injector.SetLogger(log4g.GetLogger("injector"))
	injector.Register(
		linker.Component{Name: "mainCtx", Value: ctx},
		linker.Component{Name: "", Value: cfg.Lifecycle},
		linker.Component{Name: "rangesCollection", Value: coll},
		linker.Component{Name: "indices", Value: ix},
		linker.Component{Name: "events", Value: events.NewBus(cfg.Events.MaxDeliveries)},
		linker.Component{Name: "ranges", Value: ranges.NewService(nil, nil)},
		linker.Component{Name: "calculator", Value: ranges.NewCalculator(nil)},
		linker.Component{Name: "", Value: new(lifecycle.Manager)},
		linker.Component{Name: "httpListenAddr", Value: cfg.Http.ListenAddr},
		linker.Component{Name: "metricsPath", Value: cfg.Http.MetricsPath},
		linker.Component{Name: "", Value: rest.NewServer()},
		linker.Component{Name: "", Value: newRangeUpdates()},
		linker.Component{Name: "", Value: newFeeds(cfg.Events.Feeds)},
	)
	injector.Init(ctx)

	<-ctx.Done()
	injector.Shutdown()

	return nil
}

func newCollection(sc *StoreConfig) (docstore.Collection, func(), error) {
	switch sc.Type {
	case StoreTypeInmem:
		return kvstore.New(kvinmem.New(), sc.Collection), func() {}, nil
	case StoreTypeBolt:
		bp, err := sc.BoltParams()
		if err != nil {
			return nil, nil, err
		}
		db, err := boltstore.Open(bp.Path, boltstore.WithNoSync(bp.NoSync))
		if err != nil {
			return nil, nil, err
		}
		coll, err := db.Collection(sc.Collection, ranges.FieldIndexName)
		if err != nil {
			db.Shutdown()
			return nil, nil, err
		}
		return coll, db.Shutdown, nil
	}
	return nil, nil, errors.Errorf("unknown store type %q", sc.Type)
}

func newIndices(ic *IndicesConfig) (indices.Indices, error) {
	switch ic.Type {
	case IndicesTypeInmem:
		return inmem.New(), nil
	case IndicesTypeES:
		ecfg, err := es.ConfigFromParams(ic.Params)
		if err != nil {
			return nil, err
		}
		ec, err := es.New(ecfg, nil)
		if err != nil {
			return nil, err
		}
		return ec, nil
	}
	return nil, errors.Errorf("unknown indices type %q", ic.Type)
}
