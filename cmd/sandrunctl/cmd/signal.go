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
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
)

// Signal implements subcommands.Command for the "signal" command. It spawns
// a small process of its own (sandrunctl has no persisted state to signal
// into across invocations), delivers the requested signal, and prints what
// each thread ended up with pending.
type Signal struct {
	threads int
	toTID   int
	sig     string
}

// Name implements subcommands.Command.Name.
func (*Signal) Name() string { return "signal" }

// Synopsis implements subcommands.Command.Synopsis.
func (*Signal) Synopsis() string {
	return "deliver a signal to a freshly spawned process or a specific thread within it"
}

// Usage implements subcommands.Command.Usage.
func (*Signal) Usage() string {
	return "signal -sig NAME [-threads N] [-tid TID]\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (s *Signal) SetFlags(f *flag.FlagSet) {
	f.IntVar(&s.threads, "threads", 2, "number of threads to spawn before signalling")
	f.IntVar(&s.toTID, "tid", 0, "if set, deliver to this thread only (SignalThread) instead of the whole process (SignalProcess)")
	f.StringVar(&s.sig, "sig", "TERM", "signal name, e.g. TERM, INT, USR1")
}

type pendingResult struct {
	TID     uint32   `json:"tid"`
	Pending []string `json:"pending"`
}

// Execute implements subcommands.Command.Execute.
func (s *Signal) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	sig, ok := signalByName(s.sig)
	if !ok {
		fmt.Fprintf(os.Stderr, "sandrunctl: signal: unrecognized signal %q\n", s.sig)
		return subcommands.ExitUsageError
	}

	p := newPlane().NewProcess()
	handles := make([]uint32, 0, s.threads)
	for i := 0; i < s.threads; i++ {
		h := p.NewThread()
		handles = append(handles, h.Thread().TID().Raw())
	}

	if s.toTID != 0 {
		p.SignalThread(tidFromRaw(s.toTID), sig)
	} else {
		p.SignalProcess(sig)
	}

	var results []pendingResult
	for _, tid := range handles {
		t, ok := p.GetThread(tidFromRaw(int(tid)))
		if !ok {
			continue
		}
		pending, _ := t.DrainSignalsOrSubscribe()
		r := pendingResult{TID: tid}
		for _, sg := range pending {
			r.Pending = append(r.Pending, sg.String())
		}
		results = append(results, r)
	}

	if err := json.NewEncoder(os.Stdout).Encode(results); err != nil {
		fmt.Fprintf(os.Stderr, "sandrunctl: signal: encoding result: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
