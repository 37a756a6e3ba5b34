// Copyright 2018 The gVisor Authors.
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

// Command sandrunctl is a small driver that exercises the control plane
// (package control) end to end: spawning processes and threads, signalling
// them, waiting on them, registering interval signals, and inspecting a
// thread's stack-snapshot chain. It is to be used for manual testing and
// demonstration only, not as a long-running service: package control keeps
// no persisted state, so every invocation builds its own in-memory
// ControlPlane and tears it down when the command returns.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"
	"gvisor.dev/gvisor/pkg/log"

	sandcmd "wasirt.dev/wasirt/cmd/sandrunctl/cmd"
)

var configPath = flag.String("config", "", "path to an optional TOML config file (see sandrunctl.example.toml)")

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&sandcmd.Spawn{}, "")
	subcommands.Register(&sandcmd.Signal{}, "")
	subcommands.Register(&sandcmd.Wait{}, "")
	subcommands.Register(&sandcmd.Interval{}, "")
	subcommands.Register(&sandcmd.Snapshot{}, "")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Warningf("%v", err)
		os.Exit(int(subcommands.ExitFailure))
	}
	if cfg.Debug {
		log.SetLevel(log.Debug)
	}
	intervals := make([]sandcmd.IntervalConfig, 0, len(cfg.Intervals))
	for _, ic := range cfg.Intervals {
		intervals = append(intervals, sandcmd.IntervalConfig{
			Signal:   ic.Signal,
			Interval: ic.Interval,
			Repeat:   ic.Repeat,
		})
	}
	sandcmd.SetStartupIntervals(intervals)

	os.Exit(int(subcommands.Execute(context.Background())))
}
