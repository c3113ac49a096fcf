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

package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/logrange/irange/api"
	"github.com/pkg/errors"
)

type (
	// Client implements api.Client over HTTP
	Client struct {
		base string
		hc   *http.Client
	}
)

// NewClient returns the new client for the server listening on addr, which
// is either host:port or an URL.
func NewClient(addr string, timeout time.Duration) (*Client, error) {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid server address %q", addr)
	}
	return &Client{base: strings.TrimRight(u.String(), "/"), hc: &http.Client{Timeout: timeout}}, nil
}

// Ranges is part of api.Client
func (c *Client) Ranges(ctx context.Context, query string) ([]api.Range, error) {
	var res api.RangesResult
	path := cPathRanges + "?" + url.Values{cParamQuery: []string{query}}.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return res.Ranges, nil
}

// Get is part of api.Client
func (c *Client) Get(ctx context.Context, index string) (api.Range, error) {
	var res api.Range
	err := c.do(ctx, http.MethodGet, cPathRanges+"/"+url.PathEscape(index), nil, &res)
	return res, err
}

// Delete is part of api.Client
func (c *Client) Delete(ctx context.Context, index string) error {
	return c.do(ctx, http.MethodDelete, cPathRanges+"/"+url.PathEscape(index), nil, nil)
}

// Recalculate is part of api.Client
func (c *Client) Recalculate(ctx context.Context, indices ...string) (api.Report, error) {
	var res api.Report
	err := c.do(ctx, http.MethodPost, cPathRecalculate, api.RecalculateRequest{Indices: indices}, &res)
	return res, err
}

// PostEvent is part of api.Client
func (c *Client) PostEvent(ctx context.Context, ev api.LifecycleEvent) error {
	return c.do(ctx, http.MethodPost, cPathEvents, ev, nil)
}

// Close is part of api.Client
func (c *Client) Close() error {
	c.hc.CloseIdleConnections()
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, res interface{}) error {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s failed", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return api.ErrNotFound
	}
	if resp.StatusCode >= 300 {
		var ae api.Error
		if json.NewDecoder(resp.Body).Decode(&ae) == nil && ae.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, ae.Error)
		}
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if res == nil {
		return nil
	}
	return errors.Wrapf(json.NewDecoder(resp.Body).Decode(res), "could not decode response of %s %s", method, path)
}
