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
Package feed adapts a stream of text notifications to the events.Bus. Every line
of the stream is a logfmt record describing an index lifecycle event:

	event=deleted indices=graylog_1,graylog_2
	event=closed index=graylog_3
	event=reopened indices="graylog_4, graylog_5"

Empty lines and lines starting with '#' are ignored.
*/
package feed

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jrivets/log4g"
	"github.com/kr/logfmt"
	"github.com/logrange/irange/pkg/events"
	"github.com/pkg/errors"
)

type (
	// Config defines the feed source
	Config struct {
		// Path contains the file name to read events from, "-" means stdin
		Path string `json:"path" yaml:"path"`
		// Follow makes the reader wait for new lines when the end of the
		// file is reached
		Follow bool `json:"follow" yaml:"follow"`
		// PollInterval is how often to check the file for new lines in the
		// Follow mode
		PollInterval time.Duration `json:"pollInterval" yaml:"pollInterval"`
	}

	// Source reads lifecycle events and publishes them
	Source struct {
		cfg    Config
		pub    events.Publisher
		logger log4g.Logger
	}

	record map[string]string
)

const (
	fieldEvent   = "event"
	fieldIndex   = "index"
	fieldIndices = "indices"
)

// NewSource creates the Source which will publish events to pub
func NewSource(cfg Config, pub events.Publisher) *Source {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Source{cfg: cfg, pub: pub, logger: log4g.GetLogger("events.feed")}
}

// Run reads the configured file until the end (or until ctx is closed in the
// Follow mode).
func (s *Source) Run(ctx context.Context) error {
	var r io.Reader
	if s.cfg.Path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(s.cfg.Path)
		if err != nil {
			return errors.Wrapf(err, "could not open events feed %s", s.cfg.Path)
		}
		defer f.Close()
		r = f
	}
	s.logger.Info("Reading events from ", s.cfg.Path, ", follow=", s.cfg.Follow)
	return s.Read(ctx, r)
}

// Read publishes events read from r. Lines which could not be parsed are
// logged and skipped.
func (s *Source) Read(ctx context.Context, r io.Reader) error {
	br := bufio.NewReader(r)
	var partial string
	for {
		line, err := br.ReadString('\n')
		if err == io.EOF {
			partial += line
			if !s.cfg.Follow {
				return s.handleLine(ctx, partial)
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(s.cfg.PollInterval):
			}
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "could not read events feed")
		}

		line = partial + line
		partial = ""
		if err = s.handleLine(ctx, line); err != nil {
			return err
		}
	}
}

func (s *Source) handleLine(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}

	ev, err := ParseLine(line)
	if err != nil {
		s.logger.Warn("Skipping line \"", line, "\", err=", err)
		return nil
	}

	s.logger.Debug("Publishing ", ev)
	err = s.pub.Publish(ctx, ev)
	if err == events.ErrClosed || ctx.Err() != nil {
		return nil
	}
	return err
}

// ParseLine turns the logfmt line into one of events.IndicesDeleted,
// events.IndicesClosed or events.IndicesReopened
func ParseLine(line string) (interface{}, error) {
	rec := make(record)
	if err := logfmt.Unmarshal([]byte(line), rec); err != nil {
		return nil, errors.Wrapf(err, "could not parse logfmt")
	}

	indices := splitIndices(rec[fieldIndices])
	if in := strings.TrimSpace(rec[fieldIndex]); in != "" {
		indices = append(indices, in)
	}
	if len(indices) == 0 {
		return nil, fmt.Errorf("no indices in the line, expecting %s=<name> or %s=<name1>,<name2>", fieldIndex, fieldIndices)
	}

	return events.NewLifecycleEvent(rec[fieldEvent], indices)
}

// HandleLogfmt is part of logfmt.Handler
func (r record) HandleLogfmt(key, val []byte) error {
	r[string(key)] = string(val)
	return nil
}

func splitIndices(s string) []string {
	var res []string
	for _, in := range strings.Split(s, ",") {
		if in = strings.TrimSpace(in); in != "" {
			res = append(res, in)
		}
	}
	return res
}
