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

package rql

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.000 -0700",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	time.RFC1123Z,
	time.RFC1123,
}

// parseDateTime parses the timestamp in one of the forms:
// 		absolute: e.g. '2019-01-02 12:34:55' (UTC if the zone is not set)
// 		relative: e.g. '-3.5h' or  '-24m' etc.
//		special: now, minute, hour, day or week
//		unix milliseconds: e.g. 1551398400000
func parseDateTime(dt0 string, now time.Time) (time.Time, error) {
	dt := strings.ToLower(strings.TrimSpace(dt0))

	tm, err := parseRelativeDateTime(dt, now)
	if err == nil {
		return tm, nil
	}

	tm, err = parseConstantsDateTime(dt, now)
	if err == nil {
		return tm, nil
	}

	for _, l := range dateTimeLayouts {
		if tm, err := time.Parse(l, strings.TrimSpace(dt0)); err == nil {
			return tm, nil
		}
	}

	v, err := strconv.ParseInt(dt, 10, 64)
	if err == nil {
		return time.UnixMilli(v), nil
	}

	return time.Time{}, fmt.Errorf("could not parse value \"%s\" as relative or absolute timestamp", dt0)
}

// parseRelativeDateTime parses -<number>(s|m|h|d)
func parseRelativeDateTime(dt string, now time.Time) (time.Time, error) {
	if len(dt) < 3 || dt[0] != '-' {
		return time.Time{}, fmt.Errorf("wrong relative format. expecting -<number>(s|m|h|d), but got \"%s\"", dt)
	}
	d, err := parseDuration(dt[1:])
	if err != nil {
		return time.Time{}, err
	}
	return now.Add(-d), nil
}

// parseDuration parses <number>(s|m|h|d) where the number can be fractional,
// or anything time.ParseDuration accepts
func parseDuration(ds string) (time.Duration, error) {
	ds = strings.ToLower(strings.TrimSpace(ds))
	if len(ds) < 2 {
		return 0, fmt.Errorf("wrong duration \"%s\"", ds)
	}

	var mult float64
	switch ds[len(ds)-1] {
	case 's':
		mult = float64(time.Second)
	case 'm':
		mult = float64(time.Minute)
	case 'h':
		mult = float64(time.Hour)
	case 'd':
		mult = float64(24 * time.Hour)
	}

	val, err := strconv.ParseFloat(ds[:len(ds)-1], 64)
	if mult == 0 || err != nil {
		d, err := time.ParseDuration(ds)
		if err != nil {
			return 0, errors.Wrapf(err, "could not parse duration %s", ds)
		}
		return d, nil
	}
	if val < 0 {
		return 0, fmt.Errorf("negative duration \"%s\"", ds)
	}
	return time.Duration(val * mult), nil
}

// parseConstantsDateTime converts the constant to the time-point
func parseConstantsDateTime(dt string, now time.Time) (time.Time, error) {
	switch dt {
	case "now":
		return now, nil
	case "minute":
		return now.Truncate(time.Minute), nil
	case "hour":
		return now.Truncate(time.Hour), nil
	case "day":
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), nil
	case "week":
		y, m, d := now.Date()
		return time.Date(y, m, d-int(now.Weekday()), 0, 0, 0, 0, now.Location()), nil
	}
	return time.Time{}, fmt.Errorf("unknown time constant \"%s\"", dt)
}
