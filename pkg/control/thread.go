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
	"context"
	"sync/atomic"
)

// ThreadControl represents a running guest thread. It lets a joiner wait
// for the thread to exit, lets any holder deliver signals to it, and owns
// the stack-snapshot chain used to resume it across a host-level
// suspension.
//
// A ThreadControl is cheap to copy (it is a handful of pointers to shared,
// independently-locked state) and safe for concurrent use.
type ThreadControl struct {
	pid    ProcessID
	id     ThreadID
	isMain bool

	// finished is shared with the owning ProcessControl's own exit latch
	// when this is the main thread, so that the main thread's exit is the
	// process's exit; otherwise it is a latch private to this thread.
	finished *exitLatch
	signals  *signalQueue
	stack    *stackChain
}

// PID returns the owning process's ID.
func (t ThreadControl) PID() ProcessID { return t.pid }

// TID returns this thread's ID.
func (t ThreadControl) TID() ThreadID { return t.id }

// IsMain reports whether this is the owning process's main thread: the
// first thread created while the process's thread count was zero.
func (t ThreadControl) IsMain() bool { return t.isMain }

// Terminate sets the exit latch if it is not already set, waking every
// joiner. It is idempotent; a call after the latch is already set has no
// effect beyond the (harmless, repeated) wake.
func (t ThreadControl) Terminate(code ExitCode) {
	t.finished.set(code)
}

// Join blocks until the thread's exit latch is set or ctx is done,
// whichever comes first, returning the stored exit code. It returns nil
// ("unknown exit") if ctx is done before the latch is set.
func (t ThreadControl) Join(ctx context.Context) *ExitCode {
	return t.finished.wait(ctx)
}

// TryJoin is the non-blocking read of the exit latch.
func (t ThreadControl) TryJoin() *ExitCode {
	return t.finished.tryGet()
}

// Signal inserts sig into the pending set if absent and wakes any waiter.
func (t ThreadControl) Signal(sig Signal) {
	t.signals.push(sig)
}

// DrainSignalsOrSubscribe atomically takes all pending signals. If the
// result is non-empty, sigs holds them and wake is nil. If the queue was
// empty, sigs is nil and wake is a fresh subscription that fires the next
// time a signal arrives, letting the caller await arrival without a
// missed-wakeup race.
func (t ThreadControl) DrainSignalsOrSubscribe() (sigs []Signal, wake <-chan struct{}) {
	return t.signals.drainOrSubscribe()
}

// AddSnapshot records a resumable execution point as described by the
// stack-snapshot algorithm: it walks the chain from the head, discarding
// and restarting any segment the incoming stack no longer extends, then
// stores the snapshot at the point the incoming memory stack is fully
// consumed.
func (t ThreadControl) AddSnapshot(memoryStack, memoryStackCorrected []byte, hash [16]byte, rewindStack, storeData []byte) {
	t.stack.addSnapshot(t.pid, memoryStack, memoryStackCorrected, hash, rewindStack, storeData)
}

// GetSnapshot looks up a previously stored snapshot by hash, walking head to
// tail and accumulating the corrected memory-stack prefix along the way.
func (t ThreadControl) GetSnapshot(hash [16]byte) (memoryStack, callStack, storeData []byte, ok bool) {
	return t.stack.getSnapshot(hash)
}

// CopyStackFrom atomically snapshots other's stack chain and replaces this
// thread's chain with the copy. Used when spawning a derived execution that
// should resume from the same point as other.
func (t ThreadControl) CopyStackFrom(other ThreadControl) {
	t.stack.replaceWith(other.stack.clone())
}

// DebugSegments returns a read-only, head-to-tail summary of this thread's
// stack-snapshot chain, for introspection tooling only.
func (t ThreadControl) DebugSegments() []SegmentSummary {
	return t.stack.debugSegments()
}

// ThreadHandle is a participation token for a thread registered with a
// ProcessControl. Disposing of the last handle for a ThreadID (via Drop) is
// the sole legitimate path to remove the thread from its process and
// terminate it with exit code 0, if it has not already exited.
//
// A ThreadHandle must not be copied after construction: count tracks
// outstanding clones so Drop can tell when it is releasing the last one. Use
// Clone to share a handle between owners.
type ThreadHandle struct {
	thread ThreadControl
	owner  *ProcessControl
	count  *atomic.Int32
	dead   bool
}

// newThreadHandle constructs the first (unshared) handle for a newly
// registered thread.
func newThreadHandle(thread ThreadControl, owner *ProcessControl) *ThreadHandle {
	count := &atomic.Int32{}
	count.Store(1)
	return &ThreadHandle{thread: thread, owner: owner, count: count}
}

// Thread returns the underlying ThreadControl, valid for as long as any
// handle referencing the same thread is live.
func (h *ThreadHandle) Thread() ThreadControl { return h.thread }

// Clone returns a second handle to the same thread, incrementing the shared
// handle count. The thread is only removed from its process once every
// clone (including the original) has been dropped.
func (h *ThreadHandle) Clone() *ThreadHandle {
	h.count.Add(1)
	return &ThreadHandle{thread: h.thread, owner: h.owner, count: h.count}
}

// Drop releases this handle. If it was the last outstanding handle for this
// thread, the thread is removed from its process's table, the process's
// thread count is decremented, and the thread is terminated with exit code
// 0 if it had not already exited. Drop is safe to call more than once; only
// the first call on a given handle has any effect.
func (h *ThreadHandle) Drop() {
	if h.dead {
		return
	}
	h.dead = true
	if h.count.Add(-1) > 0 {
		return
	}
	h.owner.removeThread(h.thread.id)
	h.thread.Terminate(0)
}
