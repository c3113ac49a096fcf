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
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"strings"
	"time"

	"github.com/jrivets/log4g"
	"github.com/logrange/irange/pkg/events"
	"github.com/logrange/irange/pkg/events/feed"
	"github.com/logrange/irange/pkg/indices/es"
	"github.com/logrange/irange/pkg/lifecycle"
	"github.com/logrange/irange/pkg/utils"
	"github.com/mitchellh/mapstructure"
	"github.com/mohae/deepcopy"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

type (
	// Config struct defines the irange server settings
	Config struct {
		Store     *StoreConfig      `json:"store" yaml:"store"`
		Indices   *IndicesConfig    `json:"indices" yaml:"indices"`
		Lifecycle *lifecycle.Config `json:"lifecycle" yaml:"lifecycle"`
		Events    *EventsConfig     `json:"events" yaml:"events"`
		Http      *HttpConfig       `json:"http" yaml:"http"`
	}

	// Params contains backend specific settings
	Params map[string]interface{}

	// StoreConfig defines where index ranges are persisted
	StoreConfig struct {
		// Type is one of StoreTypeBolt or StoreTypeInmem
		Type string `json:"type" yaml:"type"`
		// Collection is the name of the ranges collection
		Collection string `json:"collection" yaml:"collection"`
		// Params for StoreTypeBolt are decoded to BoltParams
		Params Params `json:"params" yaml:"params"`
	}

	// BoltParams are the bbolt store settings
	BoltParams struct {
		Path   string
		NoSync bool
	}

	// IndicesConfig defines the index engine
	IndicesConfig struct {
		// Type is one of IndicesTypeES or IndicesTypeInmem
		Type string `json:"type" yaml:"type"`
		// Params for IndicesTypeES are decoded to es.Config
		Params Params `json:"params" yaml:"params"`
	}

	// EventsConfig contains the event bus settings
	EventsConfig struct {
		// MaxDeliveries is the number of event handlers run at a time
		MaxDeliveries int `json:"maxDeliveries" yaml:"maxDeliveries"`
		// Feeds contains lifecycle events sources
		Feeds []*feed.Config `json:"feeds" yaml:"feeds"`
	}

	// HttpConfig contains the REST API and the prometheus endpoint settings
	HttpConfig struct {
		// ListenAddr is the address of the HTTP endpoint
		ListenAddr string `json:"listenAddr" yaml:"listenAddr"`
		// MetricsPath is where the prometheus metrics are exposed, empty
		// value turns the metrics endpoint off
		MetricsPath string `json:"metricsPath" yaml:"metricsPath"`
	}
)

const (
	StoreTypeBolt  = "bolt"
	StoreTypeInmem = "inmem"

	IndicesTypeES    = "es"
	IndicesTypeInmem = "inmem"

	// DefaultListenAddr is the default REST API address
	DefaultListenAddr = "127.0.0.1:9367"

	cDefaultBoltPath   = "/opt/irange/irange.db"
	cDefaultCollection = "index_ranges"
)

var configLog = log4g.GetLogger("server.Config")

// NewDefaultConfig returns the default server settings
func NewDefaultConfig() *Config {
	return &Config{
		Store: &StoreConfig{
			Type:       StoreTypeBolt,
			Collection: cDefaultCollection,
			Params:     Params{"Path": cDefaultBoltPath},
		},
		Indices: &IndicesConfig{
			Type: IndicesTypeES,
		},
		Lifecycle: lifecycle.NewDefaultConfig(),
		Events: &EventsConfig{
			MaxDeliveries: events.DefaultMaxDeliveries,
		},
		Http: &HttpConfig{
			ListenAddr:  DefaultListenAddr,
			MetricsPath: "/metrics",
		},
	}
}

// LoadCfgFromFile reads the config from the file. YAML is expected if the
// file name ends with "yaml" or "yml", JSON otherwise.
func LoadCfgFromFile(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	toLower := strings.ToLower(path)
	if strings.HasSuffix(toLower, "yaml") || strings.HasSuffix(toLower, "yml") {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "could not unmarshal config from %s", path)
	}
	configLog.Info("Configuration read from ", path)
	return cfg, nil
}

// ReadConfigFromFile reads config from filename. It returns nil, if filename
// is empty or not found.
func ReadConfigFromFile(filename string) (*Config, error) {
	if filename == "" {
		return nil, nil
	}
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		configLog.Warn("There is no file ", filename, " for reading irange config, will use default configuration.")
		return nil, nil
	}
	return LoadCfgFromFile(filename)
}

// Apply overrides c's properties by non-default values from other
func (c *Config) Apply(other *Config) {
	if other == nil {
		return
	}
	c.Store.Apply(other.Store)
	c.Indices.Apply(other.Indices)
	c.Lifecycle.Apply(other.Lifecycle)
	c.Events.Apply(other.Events)
	c.Http.Apply(other.Http)
}

// Check validates the config
func (c *Config) Check() error {
	if err := c.Store.Check(); err != nil {
		return errors.Wrapf(err, "invalid Store=%s", c.Store)
	}
	if err := c.Indices.Check(); err != nil {
		return errors.Wrapf(err, "invalid Indices=%s", c.Indices)
	}
	if err := c.Lifecycle.Check(); err != nil {
		return errors.Wrapf(err, "invalid Lifecycle=%s", c.Lifecycle)
	}
	if c.Http.ListenAddr == "" {
		return fmt.Errorf("the Http ListenAddr must be specified")
	}
	for _, f := range c.Events.Feeds {
		if f == nil || f.Path == "" {
			return fmt.Errorf("invalid Events feed %v, the Path must be specified", f)
		}
	}
	return nil
}

func (c *Config) String() string {
	return utils.ToJsonStr(c)
}

//===================== StoreConfig =====================

// Apply overrides fields by non-default values from other
func (sc *StoreConfig) Apply(other *StoreConfig) {
	if other == nil {
		return
	}
	if other.Type != "" {
		sc.Type = other.Type
	}
	if other.Collection != "" {
		sc.Collection = other.Collection
	}
	if len(other.Params) != 0 {
		sc.Params = deepcopy.Copy(other.Params).(Params)
	}
}

// Check validates the config
func (sc *StoreConfig) Check() error {
	if sc.Collection == "" {
		return fmt.Errorf("the Collection must be specified")
	}
	switch sc.Type {
	case StoreTypeInmem:
		return nil
	case StoreTypeBolt:
		bp, err := sc.BoltParams()
		if err != nil {
			return err
		}
		if bp.Path == "" {
			return fmt.Errorf("the Path param must be specified for %s store", sc.Type)
		}
		return nil
	}
	return fmt.Errorf("unknown store Type=%q, expected %s or %s", sc.Type, StoreTypeBolt, StoreTypeInmem)
}

// BoltParams decodes Params for the bolt store
func (sc *StoreConfig) BoltParams() (BoltParams, error) {
	var bp BoltParams
	if err := mapstructure.WeakDecode(sc.Params, &bp); err != nil {
		return bp, errors.Wrapf(err, "unable to decode Params=%v", sc.Params)
	}
	return bp, nil
}

func (sc *StoreConfig) String() string {
	return utils.ToJsonStr(sc)
}

//===================== IndicesConfig =====================

// Apply overrides fields by non-default values from other
func (ic *IndicesConfig) Apply(other *IndicesConfig) {
	if other == nil {
		return
	}
	if other.Type != "" {
		ic.Type = other.Type
	}
	if len(other.Params) != 0 {
		ic.Params = deepcopy.Copy(other.Params).(Params)
	}
}

// Check validates the config
func (ic *IndicesConfig) Check() error {
	switch ic.Type {
	case IndicesTypeInmem:
		return nil
	case IndicesTypeES:
		_, err := es.ConfigFromParams(ic.Params)
		return err
	}
	return fmt.Errorf("unknown indices Type=%q, expected %s or %s", ic.Type, IndicesTypeES, IndicesTypeInmem)
}

func (ic *IndicesConfig) String() string {
	return utils.ToJsonStr(ic)
}

//===================== EventsConfig =====================

// Apply overrides fields by non-default values from other
func (ec *EventsConfig) Apply(other *EventsConfig) {
	if other == nil {
		return
	}
	if other.MaxDeliveries > 0 {
		ec.MaxDeliveries = other.MaxDeliveries
	}
	if len(other.Feeds) != 0 {
		ec.Feeds = deepcopy.Copy(other.Feeds).([]*feed.Config)
	}
}

// AddFeed adds the feed reading from path
func (ec *EventsConfig) AddFeed(path string, follow bool) {
	ec.Feeds = append(ec.Feeds, &feed.Config{Path: path, Follow: follow, PollInterval: time.Second})
}

//===================== HttpConfig =====================

// Apply overrides fields by non-default values from other
func (hc *HttpConfig) Apply(other *HttpConfig) {
	if other == nil {
		return
	}
	if other.ListenAddr != "" {
		hc.ListenAddr = other.ListenAddr
	}
	if other.MetricsPath != "" {
		hc.MetricsPath = other.MetricsPath
	}
}
