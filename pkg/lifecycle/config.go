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
	"encoding/json"
	"fmt"
	"time"

	"github.com/logrange/irange/pkg/utils"
)

type (
	// Config contains the Manager settings
	Config struct {
		// RecoveryTimeout bounds waiting for a reopened index to become
		// ready, the settle delay included
		RecoveryTimeout time.Duration `json:"recoveryTimeout" yaml:"recoveryTimeout"`
		// SettleDelay is the additional pause after a reopened index is
		// reported ready, before its statistics are requested
		SettleDelay time.Duration `json:"settleDelay" yaml:"settleDelay"`
		// MaxParallel is the number of indices of one event processed at
		// the same time
		MaxParallel int `json:"maxParallel" yaml:"maxParallel"`

		// settleDelaySet is true when SettleDelay was read from a file, so
		// the zero value overrides the default
		settleDelaySet bool
	}

	// fileConfig is Config as it is read from a file, nil means absent
	fileConfig struct {
		RecoveryTimeout *time.Duration `json:"recoveryTimeout" yaml:"recoveryTimeout"`
		SettleDelay     *time.Duration `json:"settleDelay" yaml:"settleDelay"`
		MaxParallel     *int           `json:"maxParallel" yaml:"maxParallel"`
	}
)

const (
	DefaultRecoveryTimeout = 30 * time.Second
	DefaultSettleDelay     = 250 * time.Millisecond
	DefaultMaxParallel     = 4
)

// NewDefaultConfig returns the default Manager settings
func NewDefaultConfig() *Config {
	return &Config{
		RecoveryTimeout: DefaultRecoveryTimeout,
		SettleDelay:     DefaultSettleDelay,
		MaxParallel:     DefaultMaxParallel,
	}
}

// Apply overrides fields of c by non-zero fields of other. SettleDelay read
// from a file overrides c's one even if it is zero.
func (c *Config) Apply(other *Config) {
	if other == nil {
		return
	}
	if other.RecoveryTimeout > 0 {
		c.RecoveryTimeout = other.RecoveryTimeout
	}
	if other.SettleDelay > 0 || other.settleDelaySet {
		c.SettleDelay = other.SettleDelay
	}
	if other.MaxParallel > 0 {
		c.MaxParallel = other.MaxParallel
	}
}

// Check validates the settings
func (c *Config) Check() error {
	if c.RecoveryTimeout <= c.SettleDelay {
		return fmt.Errorf("RecoveryTimeout=%s must be greater than SettleDelay=%s", c.RecoveryTimeout, c.SettleDelay)
	}
	if c.MaxParallel <= 0 {
		return fmt.Errorf("MaxParallel=%d must be positive", c.MaxParallel)
	}
	return nil
}

// UnmarshalYAML is part of yaml.Unmarshaler
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var fc fileConfig
	if err := unmarshal(&fc); err != nil {
		return err
	}
	c.fromFile(fc)
	return nil
}

// UnmarshalJSON is part of json.Unmarshaler
func (c *Config) UnmarshalJSON(data []byte) error {
	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return err
	}
	c.fromFile(fc)
	return nil
}

func (c *Config) fromFile(fc fileConfig) {
	if fc.RecoveryTimeout != nil {
		c.RecoveryTimeout = *fc.RecoveryTimeout
	}
	if fc.SettleDelay != nil {
		c.SettleDelay = *fc.SettleDelay
		c.settleDelaySet = true
	}
	if fc.MaxParallel != nil {
		c.MaxParallel = *fc.MaxParallel
	}
}

func (c *Config) String() string {
	return utils.ToJsonStr(c)
}
