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

// Wait implements subcommands.Command for the "wait" command. It spawns a
// process whose main thread terminates itself with -code after -delay, then
// waits on the process and prints the observed exit code.
type Wait struct {
	code  int
	delay time.Duration
}

// Name implements subcommands.Command.Name.
func (*Wait) Name() string { return "wait" }

// Synopsis implements subcommands.Command.Synopsis.
func (*Wait) Synopsis() string {
	return "spawn a process, terminate it after a delay, and wait on it"
}

// Usage implements subcommands.Command.Usage.
func (*Wait) Usage() string {
	return "wait [-code N] [-delay DURATION]\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (w *Wait) SetFlags(f *flag.FlagSet) {
	f.IntVar(&w.code, "code", 0, "exit code the main thread terminates with")
	f.DurationVar(&w.delay, "delay", 100*time.Millisecond, "delay before the main thread terminates")
}

// Execute implements subcommands.Command.Execute.
func (w *Wait) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	p := newPlane().NewProcess()
	h := p.NewThread()

	go func() {
		time.Sleep(w.delay)
		h.Thread().Terminate(int32ToExitCode(w.code))
	}()

	code := p.Join(ctx)
	if code == nil {
		fmt.Fprintln(os.Stderr, "sandrunctl: wait: join returned unknown exit (context cancelled)")
		return subcommands.ExitFailure
	}
	fmt.Printf("pid=%v exit=%d\n", p.PID(), int32(*code))
	return subcommands.ExitSuccess
}
