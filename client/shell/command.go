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

package shell

import (
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/logrange/irange/api"
	"github.com/logrange/irange/pkg/model"
	"github.com/logrange/irange/pkg/rql"
)

type (
	command struct {
		name    string
		matcher *regexp.Regexp
		cmdFn   cmdFn
		help    string
	}

	config struct {
		query      string
		index      string
		indices    []string
		event      string
		beforeQuit func()
		cli        api.Client
		out        io.Writer
	}

	cmdFn func(ctx context.Context, cfg *config) error
)

const (
	cmdRangesName = "ranges"
	cmdGetName    = "get"
	cmdDeleteName = "delete"
	cmdRecalcName = "recalc"
	cmdEventName  = "event"
	cmdQuitName   = "quit"
	cmdHelpName   = "help"

	rgQueryGrp   = "query"
	rgIndexGrp   = "index"
	rgIndicesGrp = "indices"
	rgEventGrp   = "event"
)

var commands []command

func init() {
	commands = []command{
		{
			name:    cmdRangesName,
			matcher: regexp.MustCompile(`(?i)^(?P<query>(?:all|index\s+.+|last\s+.+|from\s+.+))$`),
			cmdFn:   rangesFn,
			help:    "run range queries, e.g. 'all', 'index graylog_12', 'last 2h', 'from -1d to now'",
		},
		{
			name:    cmdGetName,
			matcher: regexp.MustCompile(`(?i)^get\s+(?P<index>\S+)$`),
			cmdFn:   getFn,
			help:    "show the range of the index, e.g. 'get graylog_12'",
		},
		{
			name:    cmdDeleteName,
			matcher: regexp.MustCompile(`(?i)^delete\s+(?P<indices>.+)$`),
			cmdFn:   deleteFn,
			help:    "delete ranges of the indices, e.g. 'delete graylog_11 graylog_12'",
		},
		{
			name:    cmdRecalcName,
			matcher: regexp.MustCompile(`(?i)^(?:recalc|recalculate)\s+(?P<indices>.+)$`),
			cmdFn:   recalcFn,
			help:    "recalculate ranges of the indices, e.g. 'recalc graylog_12'",
		},
		{
			name:    cmdEventName,
			matcher: regexp.MustCompile(`(?i)^event\s+(?P<event>[a-zA-Z]+)\s+(?P<indices>.+)$`),
			cmdFn:   eventFn,
			help:    "notify about index lifecycle event (deleted, closed, reopened), e.g. 'event reopened graylog_12'",
		},
		{
			name:    cmdQuitName,
			matcher: regexp.MustCompile("(?i)^(?:quit|exit)$"),
			cmdFn:   quitFn,
			help:    "exit the program",
		},
		{
			name:    cmdHelpName,
			matcher: regexp.MustCompile("(?i)^help$"),
			cmdFn:   helpFn,
			help:    "show help",
		},
	}
}

func execCmd(ctx context.Context, input string, cfg *config) error {
	for _, d := range commands {
		if !d.matcher.MatchString(input) {
			if strings.HasPrefix(strings.ToLower(input), d.name) {
				return fmt.Errorf("command %s - invalid syntax", d.name)
			}
			continue
		}
		vars := getInputVars(d.matcher, input)
		cfg.query = vars[rgQueryGrp]
		cfg.index = vars[rgIndexGrp]
		cfg.indices = splitIndices(vars[rgIndicesGrp])
		cfg.event = vars[rgEventGrp]
		return d.cmdFn(ctx, cfg)
	}
	return fmt.Errorf("unknown command=%v", input)
}

func getInputVars(re *regexp.Regexp, input string) map[string]string {
	match := re.FindStringSubmatch(input)
	varsMap := make(map[string]string)
	for i, name := range re.SubexpNames() {
		if i > 0 && i < len(match) {
			varsMap[name] = match[i]
		}
	}
	return varsMap
}

// splitIndices splits by spaces and commas
func splitIndices(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}

//===================== ranges =====================

func rangesFn(ctx context.Context, cfg *config) error {
	q, err := rql.Parse(cfg.query)
	if err != nil {
		return err
	}

	start := time.Now()
	rs, err := cfg.cli.Ranges(ctx, q.String())
	if err != nil {
		return err
	}

	printRanges(cfg.out, rs)
	fmt.Fprintf(cfg.out, "\ntotal: %d, exec. time %s\n\n", len(rs), time.Since(start))
	return nil
}

func printRanges(w io.Writer, rs []api.Range) {
	if len(rs) == 0 {
		return
	}

	fmt.Fprintf(w, "\n%-30s  %-24s  %-24s  %12s  %-16s  %s", "INDEX", "BEGIN", "END", "SPAN", "CALCULATED", "TOOK")
	fmt.Fprintf(w, "\n%-30s  %-24s  %-24s  %12s  %-16s  %s", strings.Repeat("-", 30), strings.Repeat("-", 24),
		strings.Repeat("-", 24), strings.Repeat("-", 12), strings.Repeat("-", 16), "----")
	for _, r := range rs {
		fmt.Fprintf(w, "\n%-30s  %-24s  %-24s  %12s  %-16s  %dms", r.IndexName, fmtTime(r.Begin), fmtTime(r.End),
			span(r), humanize.Time(model.FromMillis(r.CalculatedAt)), r.TookMs)
	}
	fmt.Fprintln(w)
}

func fmtTime(ms int64) string {
	return model.FromMillis(ms).Format("2006-01-02T15:04:05.000Z")
}

func span(r api.Range) string {
	if r.End < r.Begin {
		return "invalid"
	}
	return (time.Duration(r.End-r.Begin) * time.Millisecond).String()
}

//===================== get =====================

func getFn(ctx context.Context, cfg *config) error {
	r, err := cfg.cli.Get(ctx, cfg.index)
	if err == api.ErrNotFound {
		return fmt.Errorf("no range for the index %s", cfg.index)
	}
	if err != nil {
		return err
	}
	printRanges(cfg.out, []api.Range{r})
	return nil
}

//===================== delete =====================

func deleteFn(ctx context.Context, cfg *config) error {
	for _, idx := range cfg.indices {
		if err := cfg.cli.Delete(ctx, idx); err != nil {
			return err
		}
	}
	fmt.Fprintf(cfg.out, "%d range(s) deleted\n", len(cfg.indices))
	return nil
}

//===================== recalc =====================

func recalcFn(ctx context.Context, cfg *config) error {
	rep, err := cfg.cli.Recalculate(ctx, cfg.indices...)
	if err != nil {
		return err
	}
	printReport(cfg.out, rep)
	return nil
}

func printReport(w io.Writer, rep api.Report) {
	fmt.Fprintf(w, "%s: %s processed, %s failed\n", rep.Op, humanize.Comma(int64(len(rep.Processed))),
		humanize.Comma(int64(len(rep.Failed))))
	failed := make([]string, 0, len(rep.Failed))
	for idx := range rep.Failed {
		failed = append(failed, idx)
	}
	sort.Strings(failed)
	for _, idx := range failed {
		fmt.Fprintf(w, "\t%s: %s\n", idx, rep.Failed[idx])
	}
}

//===================== event =====================

func eventFn(ctx context.Context, cfg *config) error {
	ev := api.LifecycleEvent{Event: strings.ToLower(cfg.event), Indices: cfg.indices}
	if err := cfg.cli.PostEvent(ctx, ev); err != nil {
		return err
	}
	fmt.Fprintf(cfg.out, "event %s accepted for %d index(es)\n", ev.Event, len(ev.Indices))
	return nil
}

//===================== quit =====================

func quitFn(_ context.Context, cfg *config) error {
	if cfg.beforeQuit != nil {
		cfg.beforeQuit()
	}
	os.Exit(0)
	return nil
}

//===================== help =====================

func helpFn(_ context.Context, cfg *config) error {
	fmt.Fprintf(cfg.out, "\n\t%-10s\n", "[HELP]")
	for _, c := range commands {
		fmt.Fprintf(cfg.out, "\n\t%-15s %s", c.name, c.help)
	}
	fmt.Fprint(cfg.out, "\n\n")
	return nil
}
