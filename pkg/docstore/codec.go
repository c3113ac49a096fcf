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

package docstore

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// Encode marshals the document to bytes
func Encode(d Document) ([]byte, error) {
	buf, err := json.Marshal(d)
	if err != nil {
		return nil, errors.Wrapf(err, "could not encode document %s", d.Id())
	}
	return buf, nil
}

// Decode unmarshals the document from buf. Integer numbers are decoded as
// int64, other numbers as float64.
func Decode(buf []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(buf))
	dec.UseNumber()

	var d Document
	if err := dec.Decode(&d); err != nil {
		return nil, errors.Wrapf(err, "could not decode document")
	}

	for k, v := range d {
		if jn, ok := v.(json.Number); ok {
			if i, err := jn.Int64(); err == nil {
				d[k] = i
			} else if f, err := jn.Float64(); err == nil {
				d[k] = f
			}
		}
	}
	return d, nil
}
