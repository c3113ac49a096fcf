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

package client

import (
	"fmt"
	"time"

	"github.com/logrange/irange/api"
	"github.com/logrange/irange/api/rest"
)

// DefaultTimeout bounds one request to the server. Recalculation waits for
// the engine statistics, so it is generous.
const DefaultTimeout = time.Minute

// NewClient returns the api.Client for the irange server listening on addr
func NewClient(addr string) (api.Client, error) {
	cli, err := rest.NewClient(addr, DefaultTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create client, err=%v", err)
	}
	return cli, err
}
