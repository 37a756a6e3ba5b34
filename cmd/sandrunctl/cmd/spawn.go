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

// Spawn implements subcommands.Command for the "spawn" command.
type Spawn struct {
	threads int
}

// Name implements subcommands.Command.Name.
func (*Spawn) Name() string { return "spawn" }

// Synopsis implements subcommands.Command.Synopsis.
func (*Spawn) Synopsis() string {
	return "create a process with N threads and print its pid/tids"
}

// Usage implements subcommands.Command.Usage.
func (*Spawn) Usage() string {
	return "spawn [-threads N]\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (s *Spawn) SetFlags(f *flag.FlagSet) {
	f.IntVar(&s.threads, "threads", 1, "number of threads to create, the first of which is flagged main")
}

type spawnResult struct {
	PID     uint32   `json:"pid"`
	TIDs    []uint32 `json:"tids"`
	MainTID uint32   `json:"mainTid"`
}

// Execute implements subcommands.Command.Execute.
func (s *Spawn) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if s.threads < 1 {
		fmt.Fprintln(os.Stderr, "sandrunctl: spawn: -threads must be >= 1")
		return subcommands.ExitUsageError
	}

	p := newPlane().NewProcess()
	applyStartupIntervals(p)

	result := spawnResult{PID: p.PID().Raw()}
	for i := 0; i < s.threads; i++ {
		h := p.NewThread()
		th := h.Thread()
		result.TIDs = append(result.TIDs, th.TID().Raw())
		if th.IsMain() {
			result.MainTID = th.TID().Raw()
		}
	}

	if err := json.NewEncoder(os.Stdout).Encode(result); err != nil {
		fmt.Fprintf(os.Stderr, "sandrunctl: spawn: encoding result: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
