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

// Package cmd holds the sandrunctl subcommands, each a thin
// subcommands.Command wrapping one or two calls into package control.
package cmd

import (
	"time"

	"gvisor.dev/gvisor/pkg/log"

	"wasirt.dev/wasirt/pkg/clock"
	"wasirt.dev/wasirt/pkg/control"
)

// IntervalConfig mirrors the shape of one [[intervals]] table from
// sandrunctl's TOML config, without importing the main package (which would
// create an import cycle).
type IntervalConfig struct {
	Signal   string
	Interval time.Duration
	Repeat   bool
}

// startupIntervals is installed on every process created by Spawn, set once
// at process startup from the parsed config file.
var startupIntervals []IntervalConfig

// SetStartupIntervals records the interval signals every spawned process
// should register on creation. Called once from main after the config file
// is loaded.
func SetStartupIntervals(intervals []IntervalConfig) {
	startupIntervals = intervals
}

// newPlane constructs a fresh ControlPlane backed by the production
// monotonic clock. Every sandrunctl subcommand gets its own plane: package
// control keeps no persisted state, so there is nothing to share across
// process invocations.
func newPlane() *control.ControlPlane {
	return control.NewControlPlane(clock.Monotonic{})
}

// applyStartupIntervals registers every configured interval signal on p,
// logging and skipping any entry whose signal name does not decode.
func applyStartupIntervals(p *control.ProcessControl) {
	for _, ic := range startupIntervals {
		sig, ok := signalByName(ic.Signal)
		if !ok {
			log.Warningf("sandrunctl: skipping startup interval with unrecognized signal %q", ic.Signal)
			continue
		}
		interval := ic.Interval
		p.SignalInterval(sig, &interval, ic.Repeat)
	}
}

var signalsByName = map[string]control.Signal{
	"NONE": control.SignalNone,
	"HUP":  control.SignalHangup,
	"INT":  control.SignalInterrupt,
	"QUIT": control.SignalQuit,
	"ILL":  control.SignalIll,
	"TRAP": control.SignalTrap,
	"ABRT": control.SignalAbort,
	"BUS":  control.SignalBus,
	"FPE":  control.SignalFPE,
	"KILL": control.SignalKill,
	"USR1": control.SignalUsr1,
	"SEGV": control.SignalSegv,
	"USR2": control.SignalUsr2,
	"PIPE": control.SignalPipe,
	"ALRM": control.SignalAlarm,
	"TERM": control.SignalTerm,
	"CHLD": control.SignalChld,
	"CONT": control.SignalCont,
	"STOP": control.SignalStop,
}

// signalByName resolves a signal's wire name (e.g. "TERM") to a
// control.Signal, for flags and config entries that name signals as text.
func signalByName(name string) (control.Signal, bool) {
	sig, ok := signalsByName[name]
	return sig, ok
}

// tidFromRaw converts a CLI-supplied integer thread id into a control.ThreadID.
func tidFromRaw(raw int) control.ThreadID {
	return control.ThreadIDFromInt32(int32(raw))
}

// int32ToExitCode converts a CLI-supplied integer exit code into a
// control.ExitCode.
func int32ToExitCode(code int) control.ExitCode {
	return control.ExitCode(int32(code))
}
