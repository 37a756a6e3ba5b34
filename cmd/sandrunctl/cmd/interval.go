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

package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"
)

// Interval implements subcommands.Command for the "interval" command. It
// registers a single interval signal on a freshly spawned process and
// prints back the descriptor package control recorded, to demonstrate
// SignalInterval/Intervals without any execution engine polling it.
type Interval struct {
	sig      string
	duration time.Duration
	repeat   bool
}

// Name implements subcommands.Command.Name.
func (*Interval) Name() string { return "interval" }

// Synopsis implements subcommands.Command.Synopsis.
func (*Interval) Synopsis() string {
	return "register an interval signal on a freshly spawned process"
}

// Usage implements subcommands.Command.Usage.
func (*Interval) Usage() string {
	return "interval -sig NAME -every DURATION [-repeat]\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (iv *Interval) SetFlags(f *flag.FlagSet) {
	f.StringVar(&iv.sig, "sig", "ALRM", "signal name to fire")
	f.DurationVar(&iv.duration, "every", time.Second, "period between firings")
	f.BoolVar(&iv.repeat, "repeat", true, "whether the signal repeats after firing once")
}

// Execute implements subcommands.Command.Execute.
func (iv *Interval) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	sig, ok := signalByName(iv.sig)
	if !ok {
		fmt.Fprintf(os.Stderr, "sandrunctl: interval: unrecognized signal %q\n", iv.sig)
		return subcommands.ExitUsageError
	}

	p := newPlane().NewProcess()
	p.SignalInterval(sig, &iv.duration, iv.repeat)

	descs := p.Intervals()
	desc, ok := descs[sig]
	if !ok {
		fmt.Fprintln(os.Stderr, "sandrunctl: interval: signal not found after registration")
		return subcommands.ExitFailure
	}
	fmt.Printf("pid=%v sig=%v every=%v repeat=%v lastFireNs=%d\n", p.PID(), desc.Signal, desc.Interval, desc.Repeat, desc.LastFireNS)
	return subcommands.ExitSuccess
}
