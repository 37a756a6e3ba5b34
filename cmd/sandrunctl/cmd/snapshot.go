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
	"crypto/sha256"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/subcommands"
)

// Snapshot implements subcommands.Command for the "snapshot" command. It
// feeds a sequence of synthetic memory-stack segments through AddSnapshot on
// a single thread, one per -segment flag occurrence, then dumps the
// resulting chain with DebugSegments — read-only introspection, not a new
// core operation.
type Snapshot struct {
	segments segmentFlags
}

// segmentFlags accumulates repeated -segment "byte,length" pairs, e.g.
// -segment 0xAA,64 -segment 0xBB,32.
type segmentFlags []segmentSpec

type segmentSpec struct {
	fill byte
	n    int
}

func (s *segmentFlags) String() string {
	parts := make([]string, 0, len(*s))
	for _, spec := range *s {
		parts = append(parts, fmt.Sprintf("0x%02X,%d", spec.fill, spec.n))
	}
	return strings.Join(parts, " ")
}

func (s *segmentFlags) Set(v string) error {
	fields := strings.Split(v, ",")
	if len(fields) != 2 {
		return fmt.Errorf("expected FILL,LENGTH, got %q", v)
	}
	fillVal, err := strconv.ParseUint(strings.TrimPrefix(fields[0], "0x"), 16, 8)
	if err != nil {
		return fmt.Errorf("invalid fill byte %q: %w", fields[0], err)
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil {
		return fmt.Errorf("invalid length %q: %w", fields[1], err)
	}
	*s = append(*s, segmentSpec{fill: byte(fillVal), n: n})
	return nil
}

// Name implements subcommands.Command.Name.
func (*Snapshot) Name() string { return "snapshot" }

// Synopsis implements subcommands.Command.Synopsis.
func (*Snapshot) Synopsis() string {
	return "feed synthetic stack segments through add_snapshot and dump the resulting chain"
}

// Usage implements subcommands.Command.Usage.
func (*Snapshot) Usage() string {
	return "snapshot -segment 0xAA,64 [-segment 0xBB,32 ...] dump\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (s *Snapshot) SetFlags(f *flag.FlagSet) {
	f.Var(&s.segments, "segment", "FILL,LENGTH pair describing a memory-stack segment to append, may be repeated")
}

// Execute implements subcommands.Command.Execute.
func (s *Snapshot) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 1 || f.Arg(0) != "dump" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	if len(s.segments) == 0 {
		s.segments = segmentFlags{{fill: 0xAA, n: 32}, {fill: 0xBB, n: 32}}
	}

	p := newPlane().NewProcess()
	h := p.NewThread()
	th := h.Thread()

	var mem []byte
	for i, spec := range s.segments {
		mem = append(mem, fillBytes(spec.fill, spec.n)...)
		hash := sha256.Sum256(mem)
		var hash16 [16]byte
		copy(hash16[:], hash[:16])
		th.AddSnapshot(mem, mem, hash16, []byte{byte(i)}, []byte{byte(i * 2)})
	}

	for i, seg := range th.DebugSegments() {
		fmt.Printf("segment %d: memoryStack=%dB memoryStackCorrected=%dB hashes=%d\n", i, seg.MemoryStackLen, seg.MemoryStackCorrectedLen, len(seg.Hashes))
		for _, h := range seg.Hashes {
			fmt.Printf("  hash=%x\n", h)
		}
	}
	return subcommands.ExitSuccess
}

func fillBytes(fill byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = fill
	}
	return out
}
