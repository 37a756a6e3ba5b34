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

// Package control implements the process and thread control plane for a
// sandboxed compute runtime hosting guest programs compiled to a portable
// bytecode. It provides the in-memory bookkeeping required to run many
// isolated guest processes, each with multiple cooperatively-scheduled guest
// threads: creation, identification, signalling, join/wait, termination,
// thread-local storage, and the stack-snapshot chain needed to resume a
// thread after a host-level suspension.
//
// This package does not execute guest bytecode, perform I/O or filesystem
// syscalls, provide a clock, or spawn external processes; it only specifies
// the interfaces it consumes from those collaborators (Clock, BusProcess).
package control

import "fmt"

// ProcessID is a generic process identifier. It is opaque, totally ordered,
// and cheap to copy.
type ProcessID uint32

// Raw returns the underlying 32-bit value.
func (p ProcessID) Raw() uint32 { return uint32(p) }

// String returns a decimal representation of the ProcessID.
func (p ProcessID) String() string { return fmt.Sprintf("%d", uint32(p)) }

// ProcessIDFromInt32 converts a signed 32-bit value to a ProcessID, for
// boundary interop with callers that use the WASI/POSIX signed convention.
func ProcessIDFromInt32(id int32) ProcessID { return ProcessID(uint32(id)) }

// Int32 converts the ProcessID to its signed 32-bit representation.
func (p ProcessID) Int32() int32 { return int32(uint32(p)) }

// ThreadID is a generic thread identifier, unique within the owning
// process. It is opaque, totally ordered, and cheap to copy.
type ThreadID uint32

// Raw returns the underlying 32-bit value.
func (t ThreadID) Raw() uint32 { return uint32(t) }

// String returns a decimal representation of the ThreadID.
func (t ThreadID) String() string { return fmt.Sprintf("%d", uint32(t)) }

// ThreadIDFromInt32 converts a signed 32-bit value to a ThreadID, for
// boundary interop with callers that use the WASI/POSIX signed convention.
func ThreadIDFromInt32(id int32) ThreadID { return ThreadID(uint32(id)) }

// Int32 converts the ThreadID to its signed 32-bit representation.
func (t ThreadID) Int32() int32 { return int32(uint32(t)) }

// ExitCode is the exit status latched by a thread or process.
type ExitCode int32

// idSeed is a monotonic counter used to allocate ThreadIDs and TLS keys
// within a single process. It is not itself safe for concurrent use; callers
// must hold the owning ProcessControl's write lock. The zero value starts
// counting from 1, reserving 0 as a sentinel (e.g. ProcessControl.ppid == 0
// meaning "no parent recorded").
type idSeed struct {
	next uint32
}

// inc returns the next value in the sequence.
func (s *idSeed) inc() uint32 {
	s.next++
	return s.next
}
