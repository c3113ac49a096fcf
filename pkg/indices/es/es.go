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

// Package es contains indices.Indices implementation which talks to an
// Elasticsearch cluster via the official go-elasticsearch client.
package es

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	"github.com/jrivets/log4g"
	"github.com/logrange/irange/pkg/indices"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

type (
	// Config contains the Elasticsearch adapter settings
	Config struct {
		// Url is the cluster base address, like http://localhost:9200
		Url string
		// TimestampField is the records field which contains the timestamp
		TimestampField string
		// WaitForStatus is the index health status considered recovered
		WaitForStatus string
		// HealthPollTimeout bounds one health request, the request is
		// repeated until the index is recovered or the context is closed.
		HealthPollTimeout time.Duration
		Username          string
		Password          string
	}

	// Client implements indices.Indices
	Client struct {
		cfg    Config
		es     *elasticsearch.Client
		logger log4g.Logger
	}

	healthResp struct {
		Status   string `json:"status"`
		TimedOut bool   `json:"timed_out"`
	}

	aggValue struct {
		Value *float64 `json:"value"`
	}

	searchResp struct {
		Aggregations struct {
			Min aggValue `json:"ts_min"`
			Max aggValue `json:"ts_max"`
		} `json:"aggregations"`
	}
)

const (
	aggMin = "ts_min"
	aggMax = "ts_max"
)

// NewDefaultConfig returns the default adapter settings
func NewDefaultConfig() Config {
	return Config{
		Url:               "http://127.0.0.1:9200",
		TimestampField:    "timestamp",
		WaitForStatus:     "yellow",
		HealthPollTimeout: 5 * time.Second,
	}
}

// ConfigFromParams decodes params over the default settings. Durations can
// be specified as strings ("5s") or nanoseconds.
func ConfigFromParams(params map[string]interface{}) (Config, error) {
	cfg := NewDefaultConfig()
	dc := &mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           &cfg,
	}
	d, err := mapstructure.NewDecoder(dc)
	if err != nil {
		return cfg, err
	}
	if err := d.Decode(params); err != nil {
		return cfg, errors.Wrapf(err, "could not decode elasticsearch params %v", params)
	}
	return cfg, cfg.Check()
}

// Check validates the config
func (c Config) Check() error {
	u, err := url.Parse(c.Url)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid elasticsearch Url=%q", c.Url)
	}
	if c.TimestampField == "" {
		return fmt.Errorf("TimestampField must be specified")
	}
	if c.HealthPollTimeout < time.Second {
		return fmt.Errorf("HealthPollTimeout=%s must be 1s or more", c.HealthPollTimeout)
	}
	return nil
}

// New creates the new Client. rt can be nil, http.DefaultTransport is used
// then.
func New(cfg Config, rt http.RoundTripper) (*Client, error) {
	cfg.Url = strings.TrimRight(cfg.Url, "/")
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.Url},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: rt,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "could not create elasticsearch client for %s", cfg.Url)
	}

	c := new(Client)
	c.cfg = cfg
	c.es = es
	c.logger = log4g.GetLogger("indices.es")
	return c, nil
}

// TimestampStats is part of indices.Indices
func (c *Client) TimestampStats(ctx context.Context, index string) (indices.TimestampStats, error) {
	var res indices.TimestampStats
	body := map[string]interface{}{
		"aggs": map[string]interface{}{
			aggMin: map[string]interface{}{"min": map[string]string{"field": c.cfg.TimestampField}},
			aggMax: map[string]interface{}{"max": map[string]string{"field": c.cfg.TimestampField}},
		},
	}

	s := c.es.Search
	resp, err := s(
		s.WithContext(ctx),
		s.WithIndex(index),
		s.WithSize(0),
		s.WithBody(esutil.NewJSONReader(body)),
	)
	if err != nil {
		return res, errors.Wrapf(err, "search in %s failed", index)
	}

	var sr searchResp
	if err := decode(resp, &sr, false); err != nil {
		return res, err
	}

	mn, mx := sr.Aggregations.Min.Value, sr.Aggregations.Max.Value
	if mn == nil || mx == nil || math.IsInf(*mn, 0) || math.IsInf(*mx, 0) {
		return res, indices.ErrEmptyIndex
	}
	res.Min = time.UnixMilli(int64(*mn)).UTC()
	res.Max = time.UnixMilli(int64(*mx)).UTC()
	return res, nil
}

// WaitForRecovery is part of indices.Indices
func (c *Client) WaitForRecovery(ctx context.Context, index string) error {
	h := c.es.Cluster.Health
	for {
		resp, err := h(
			h.WithContext(ctx),
			h.WithIndex(index),
			h.WithWaitForStatus(c.cfg.WaitForStatus),
			h.WithTimeout(c.cfg.HealthPollTimeout),
		)
		if err != nil {
			return errors.Wrapf(err, "health request for %s failed", index)
		}

		var hr healthResp
		// health requests which timed out are reported with 408
		if err := decode(resp, &hr, true); err != nil {
			return err
		}
		if !hr.TimedOut {
			c.logger.Debug("Index ", index, " is ", hr.Status)
			return nil
		}
		c.logger.Info("Index ", index, " is still ", hr.Status, ", waiting for ", c.cfg.WaitForStatus)
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// decode reads the resp body into res and closes it. 404 is reported as
// indices.ErrNoIndex.
func decode(resp *esapi.Response, res interface{}, allowTimeout bool) error {
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return indices.ErrNoIndex
	}
	if resp.IsError() && !(allowTimeout && resp.StatusCode == http.StatusRequestTimeout) {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(msg))
	}
	if err := json.NewDecoder(resp.Body).Decode(res); err != nil {
		return errors.Wrapf(err, "could not decode response, status %d", resp.StatusCode)
	}
	return nil
}
