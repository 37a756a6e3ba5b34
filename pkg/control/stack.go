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

package control

import (
	"gvisor.dev/gvisor/pkg/log"
	"gvisor.dev/gvisor/pkg/sync"
)

// stackSnapshot is the resumable execution state captured at one suspension
// point: the rewind (call) stack and the serialized store data needed to
// reconstruct it.
type stackSnapshot struct {
	callStack []byte
	storeData []byte
}

// stackSegment is one node of a thread's stack-snapshot chain. Concatenating
// memoryStack along next from head to tail reconstructs the full guest
// memory stack of any currently resumable execution path.
type stackSegment struct {
	memoryStack          []byte
	memoryStackCorrected []byte
	snapshots            map[[16]byte]stackSnapshot
	next                 *stackSegment
}

func newStackSegment(memoryStack, memoryStackCorrected []byte) *stackSegment {
	return &stackSegment{
		memoryStack:          append([]byte(nil), memoryStack...),
		memoryStackCorrected: append([]byte(nil), memoryStackCorrected...),
	}
}

// sharesAnyByte reports whether a and b agree at some shared index. It is
// deliberately permissive (one common byte position suffices) per the
// design's prefix-validity check; implementers wanting a stricter check can
// swap this for a full-prefix equality test without changing call sites.
func sharesAnyByte(a, b []byte) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] == b[i] {
			return true
		}
	}
	return false
}

// extends reports whether incoming still extends this segment's recorded
// prefix: it must be at least as long, and share at least one byte position
// with either the original or corrected recording.
func (s *stackSegment) extends(incoming []byte) bool {
	if len(incoming) < len(s.memoryStack) {
		return false
	}
	return sharesAnyByte(s.memoryStack, incoming) || sharesAnyByte(s.memoryStackCorrected, incoming)
}

// forgottenHashes collects every snapshot hash reachable from s (inclusive),
// used only to log what is about to be discarded.
func forgottenHashes(s *stackSegment) [][16]byte {
	var hashes [][16]byte
	for ; s != nil; s = s.next {
		for h := range s.snapshots {
			hashes = append(hashes, h)
		}
	}
	return hashes
}

// stackChain is the per-thread linked list of stackSegments, guarded by its
// own mutex. It is a leaf lock: nothing else is acquired while it is held.
type stackChain struct {
	mu   sync.Mutex
	head *stackSegment
}

// addSnapshot records a new resumption point, matching incoming against the
// remembered prefix tree: extending it where the incoming stack still
// agrees, invalidating and restarting it where it has diverged. Both the
// memory-stack and corrected-stack suffixes are consumed in lockstep (by
// the length of the segment they matched) so that memoryStackCorrected
// accumulates correctly across segment boundaries in getSnapshot.
func (c *stackChain) addSnapshot(pid ProcessID, memoryStack, memoryStackCorrected []byte, hash [16]byte, rewindStack, storeData []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.head == nil {
		c.head = &stackSegment{}
	}

	remaining := memoryStack
	remainingCorrected := memoryStackCorrected
	seg := c.head
	for {
		if !seg.extends(remaining) {
			before, after := len(seg.memoryStack), len(remaining)
			hashes := forgottenHashes(seg)
			*seg = *newStackSegment(remaining, remainingCorrected)
			log.Debugf("control[pid=%v]: stacks forgotten (memory_stack_before=%d, memory_stack_after=%d)", pid, before, after)
			for _, h := range hashes {
				log.Debugf("control[pid=%v]: stack has been forgotten (hash=%x)", pid, h)
			}
			remaining, remainingCorrected = nil, nil
		} else {
			n := len(seg.memoryStack)
			remaining = remaining[n:]
			remainingCorrected = remainingCorrected[n:]
		}

		if len(remaining) == 0 {
			break
		}

		if seg.next == nil {
			seg.next = newStackSegment(remaining, remainingCorrected)
		}
		seg = seg.next
	}

	if seg.snapshots == nil {
		seg.snapshots = make(map[[16]byte]stackSnapshot)
	}
	seg.snapshots[hash] = stackSnapshot{
		callStack: append([]byte(nil), rewindStack...),
		storeData: append([]byte(nil), storeData...),
	}
}

// getSnapshot walks head to tail accumulating memoryStackCorrected,
// returning the first segment whose snapshot map contains hash.
func (c *stackChain) getSnapshot(hash [16]byte) (memoryStack, callStack, storeData []byte, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var acc []byte
	for seg := c.head; seg != nil; seg = seg.next {
		acc = append(acc, seg.memoryStackCorrected...)
		if snap, found := seg.snapshots[hash]; found {
			return append([]byte(nil), acc...), append([]byte(nil), snap.callStack...), append([]byte(nil), snap.storeData...), true
		}
	}
	return nil, nil, nil, false
}

// clone returns a deep copy of the chain, taken under lock.
func (c *stackChain) clone() *stackChain {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := &stackChain{}
	var tail **stackSegment = &out.head
	for seg := c.head; seg != nil; seg = seg.next {
		cp := &stackSegment{
			memoryStack:          append([]byte(nil), seg.memoryStack...),
			memoryStackCorrected: append([]byte(nil), seg.memoryStackCorrected...),
		}
		if len(seg.snapshots) > 0 {
			cp.snapshots = make(map[[16]byte]stackSnapshot, len(seg.snapshots))
			for h, s := range seg.snapshots {
				cp.snapshots[h] = stackSnapshot{
					callStack: append([]byte(nil), s.callStack...),
					storeData: append([]byte(nil), s.storeData...),
				}
			}
		}
		*tail = cp
		tail = &cp.next
	}
	return out
}

// replaceWith atomically swaps this chain's contents with other's, used by
// ThreadControl.CopyStackFrom.
func (c *stackChain) replaceWith(other *stackChain) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.head = other.head
}

// SegmentSummary is a read-only, diagnostics-only view of one stackSegment,
// for introspection tooling (e.g. sandrunctl's "snapshot dump").
type SegmentSummary struct {
	MemoryStackLen          int
	MemoryStackCorrectedLen int
	Hashes                  [][16]byte
}

// debugSegments returns a head-to-tail summary of the chain's segments. It
// never mutates state and takes no part in the addSnapshot/getSnapshot
// algorithm.
func (c *stackChain) debugSegments() []SegmentSummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []SegmentSummary
	for seg := c.head; seg != nil; seg = seg.next {
		s := SegmentSummary{
			MemoryStackLen:          len(seg.memoryStack),
			MemoryStackCorrectedLen: len(seg.memoryStackCorrected),
		}
		for h := range seg.snapshots {
			s.Hashes = append(s.Hashes, h)
		}
		out = append(out, s)
	}
	return out
}
