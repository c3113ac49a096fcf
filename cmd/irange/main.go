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

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/jrivets/log4g"
	"github.com/logrange/irange/client"
	"github.com/logrange/irange/client/shell"
	"github.com/logrange/irange/cmd"
	"github.com/logrange/irange/pkg/utils"
	"github.com/logrange/irange/server"
	"github.com/pkg/errors"
	"gopkg.in/urfave/cli.v2"
)

const (
	Version = "0.1.0"
)

const (
	// Common flag names
	argLogCfgFile = "log-config-file"
	argCfgFile    = "config-file"
	argServerAddr = "server-addr"

	// Start command flag names
	argStartPidFile     = "pid-file"
	argStartAsDaemon    = "daemon"
	argStartListenAddr  = "listen-addr"
	argStartStore       = "store"
	argStartDbPath      = "db-path"
	argStartEngine      = "engine"
	argStartEsUrl       = "es-url"
	argStartEventsFeed  = "events-feed"
	argStartFollow      = "follow"
	argStartSettleDelay = "settle-delay"

	cDefaultPidFile = "/opt/irange/irange.pid"
)

var log = log4g.GetLogger("irange")
var cfg = server.NewDefaultConfig()

func main() {
	defer log4g.Shutdown()

	pidFlag := &cli.StringFlag{
		Name:  argStartPidFile,
		Usage: "The pid file name",
		Value: cDefaultPidFile,
	}
	addrFlag := &cli.StringFlag{
		Name:  argServerAddr,
		Usage: "The irange server address",
		Value: server.DefaultListenAddr,
	}

	app := &cli.App{
		Name:    "irange",
		Version: Version,
		Usage:   "Index ranges tracking service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  argLogCfgFile,
				Usage: "The log4g configuration file name",
				Value: "/opt/irange/log4g.properties",
			},
			&cli.StringFlag{
				Name:  argCfgFile,
				Usage: "The irange configuration file name, JSON or YAML",
				Value: "/opt/irange/config.yaml",
			},
		},
		Before: before,
		Commands: []*cli.Command{
			{
				Name:   "start",
				Usage:  "Run the service",
				Action: runServer,
				Flags: []cli.Flag{
					pidFlag,
					&cli.BoolFlag{
						Name:  argStartAsDaemon,
						Usage: "starting as a daemon (detached from the console)",
					},
					&cli.StringFlag{
						Name:  argStartListenAddr,
						Usage: "The REST API listen address",
						Value: cfg.Http.ListenAddr,
					},
					&cli.StringFlag{
						Name:  argStartStore,
						Usage: "The ranges store type, one of: \"bolt\" or \"inmem\"",
						Value: cfg.Store.Type,
					},
					&cli.StringFlag{
						Name:  argStartDbPath,
						Usage: "The bolt store database file",
					},
					&cli.StringFlag{
						Name:  argStartEngine,
						Usage: "The index engine type, one of: \"es\" or \"inmem\"",
						Value: cfg.Indices.Type,
					},
					&cli.StringFlag{
						Name:  argStartEsUrl,
						Usage: "The elasticsearch URL",
					},
					&cli.StringSliceFlag{
						Name:  argStartEventsFeed,
						Usage: "The file to read index lifecycle events from, \"-\" for stdin",
					},
					&cli.BoolFlag{
						Name:  argStartFollow,
						Usage: "wait for new events when the end of an events feed is reached",
					},
					&cli.DurationFlag{
						Name:  argStartSettleDelay,
						Usage: "The pause after a reopened index is ready and before its range is calculated",
						Value: cfg.Lifecycle.SettleDelay,
					},
				},
			},
			{
				Name:   "stop",
				Usage:  "Stop the service",
				Action: stopServer,
				Flags:  []cli.Flag{pidFlag},
			},
			{
				Name:      "get",
				Usage:     "Show the range of an index",
				ArgsUsage: "<index>",
				Action:    getRange,
				Flags:     []cli.Flag{addrFlag},
			},
			{
				Name:      "query",
				Usage:     "Run range queries, one per line if read from stdin",
				ArgsUsage: "[ALL | INDEX <index> | LAST <duration> | FROM <time> [TO <time>]]",
				Action:    execQuery,
				Flags:     []cli.Flag{addrFlag},
			},
			{
				Name:   "list",
				Usage:  "Show all ranges",
				Action: listRanges,
				Flags:  []cli.Flag{addrFlag},
			},
			{
				Name:      "delete",
				Usage:     "Delete ranges of indices",
				ArgsUsage: "<index> [<index>...]",
				Action:    deleteRanges,
				Flags:     []cli.Flag{addrFlag},
			},
			{
				Name:      "recalc",
				Usage:     "Recalculate ranges of indices",
				ArgsUsage: "<index> [<index>...]",
				Action:    recalcRanges,
				Flags:     []cli.Flag{addrFlag},
			},
			{
				Name:      "event",
				Usage:     "Notify the service about an index lifecycle event",
				ArgsUsage: "(deleted|closed|reopened) <index> [<index>...]",
				Action:    postEvent,
				Flags:     []cli.Flag{addrFlag},
			},
			{
				Name:   "shell",
				Usage:  "Run interactive shell",
				Action: runShell,
				Flags:  []cli.Flag{addrFlag},
			},
		},
	}

	sort.Sort(cli.FlagsByName(app.Flags))
	for _, c := range app.Commands {
		sort.Sort(cli.FlagsByName(c.Flags))
	}
	sort.Sort(cli.CommandsByName(app.Commands))

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func before(c *cli.Context) error {
	logCfgFile := c.String(argLogCfgFile)
	if logCfgFile != "" {
		if _, err := os.Stat(logCfgFile); os.IsNotExist(err) {
			log.Debug("No file ", logCfgFile, " will use default log4g configuration")
		} else {
			log.Info("Loading log4g config from ", logCfgFile)
			err := log4g.ConfigF(logCfgFile)
			if err != nil {
				return errors.Wrapf(err, "Could not parse %s file as a log4g configuration, please check syntax ", logCfgFile)
			}
		}
	}

	fc, err := server.ReadConfigFromFile(c.String(argCfgFile))
	if err != nil {
		return err
	}
	// overwrite default settings from file
	cfg.Apply(fc)
	return nil
}

func newCtx() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	utils.NewNotifierOnIntTermSignal(func(s os.Signal) {
		log.Info("Got signal \"", s, "\", cancelling context ")
		cancel()
	})
	return ctx
}

func runServer(c *cli.Context) error {
	if c.Args().Len() > 0 {
		return fmt.Errorf("no arguments expected, but %s", c.Args())
	}

	if c.Bool(argStartAsDaemon) {
		res := cmd.RemoveArgsWithName(os.Args[1:], argStartAsDaemon)
		return cmd.RunCommand(os.Args[0], res...)
	}

	pf := cmd.NewPidFile(c.String(argStartPidFile))
	if err := pf.Lock(); err != nil {
		return err
	}
	defer pf.Unlock()

	// fill up config
	applyParamsToCfg(c)
	return server.Start(newCtx(), cfg)
}

func applyParamsToCfg(c *cli.Context) {
	dc := server.NewDefaultConfig()
	if la := c.String(argStartListenAddr); la != dc.Http.ListenAddr {
		cfg.Http.ListenAddr = la
	}
	if st := c.String(argStartStore); st != dc.Store.Type {
		cfg.Store.Type = st
	}
	if dp := c.String(argStartDbPath); dp != "" {
		cfg.Store.Type = server.StoreTypeBolt
		cfg.Store.Params = server.Params{"Path": dp}
	}
	if et := c.String(argStartEngine); et != dc.Indices.Type {
		cfg.Indices.Type = et
	}
	if eu := c.String(argStartEsUrl); eu != "" {
		cfg.Indices.Type = server.IndicesTypeES
		if cfg.Indices.Params == nil {
			cfg.Indices.Params = server.Params{}
		}
		cfg.Indices.Params["Url"] = eu
	}
	for _, f := range c.StringSlice(argStartEventsFeed) {
		cfg.Events.AddFeed(f, c.Bool(argStartFollow))
	}
	if sd := c.Duration(argStartSettleDelay); sd != dc.Lifecycle.SettleDelay {
		cfg.Lifecycle.SettleDelay = sd
	}
}

func stopServer(c *cli.Context) error {
	if c.Args().Len() > 0 {
		return fmt.Errorf("no arguments expected, but %s", c.Args())
	}
	return cmd.NewPidFile(c.String(argStartPidFile)).Interrupt()
}

// execShellCmds connects to the server and runs the shell commands
func execShellCmds(c *cli.Context, cmds ...string) error {
	log4g.SetLogLevel("", log4g.FATAL)
	cl, err := client.NewClient(c.String(argServerAddr))
	if err != nil {
		return err
	}
	defer cl.Close()
	return shell.Exec(newCtx(), cmds, cl)
}

func getRange(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("exactly one index name expected, but %s", c.Args())
	}
	return execShellCmds(c, "get "+c.Args().First())
}

func listRanges(c *cli.Context) error {
	return execShellCmds(c, "all")
}

func deleteRanges(c *cli.Context) error {
	if c.Args().Len() == 0 {
		return fmt.Errorf("at least one index name expected")
	}
	return execShellCmds(c, "delete "+strings.Join(c.Args().Slice(), " "))
}

func recalcRanges(c *cli.Context) error {
	if c.Args().Len() == 0 {
		return fmt.Errorf("at least one index name expected")
	}
	return execShellCmds(c, "recalc "+strings.Join(c.Args().Slice(), " "))
}

func postEvent(c *cli.Context) error {
	if c.Args().Len() < 2 {
		return fmt.Errorf("the event and at least one index name expected, but %s", c.Args())
	}
	return execShellCmds(c, "event "+strings.Join(c.Args().Slice(), " "))
}

func execQuery(c *cli.Context) error {
	query, err := getQuery(c)
	if err != nil {
		return err
	}
	if len(query) == 0 {
		query = []string{"all"}
	}
	return execShellCmds(c, query...)
}

func runShell(c *cli.Context) error {
	log4g.SetLogLevel("", log4g.FATAL)
	if c.Args().Len() > 0 {
		return fmt.Errorf("no arguments expected, but %s", c.Args())
	}

	cl, err := client.NewClient(c.String(argServerAddr))
	if err != nil {
		return err
	}
	defer cl.Close()
	return shell.Run(cl)
}

func getQuery(c *cli.Context) ([]string, error) {
	var query []string

	stat, _ := os.Stdin.Stat()
	if (stat.Mode() & os.ModeCharDevice) != 0 { //check if NOT file input
		if c.Args().Len() != 0 {
			query = append(query, strings.Join(c.Args().Slice(), " "))
		}
		return query, nil
	}
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		t := strings.TrimSpace(scanner.Text())
		if t != "" {
			query = append(query, t)
		}
	}

	return query, scanner.Err()
}
