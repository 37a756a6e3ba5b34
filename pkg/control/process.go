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
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"gvisor.dev/gvisor/pkg/log"
	"gvisor.dev/gvisor/pkg/sync"
)

// processInner is the write-locked state of a ProcessControl. Reads
// dominate (signal fan-out, lookup, join), so the owning RWMutex's writer
// side is only taken for thread creation, TLS mutation, interval changes,
// and bus-table mutation.
type processInner struct {
	threads     map[ThreadID]ThreadControl
	threadCount uint32
	threadSeed  idSeed

	tls       map[tlEntry]TLVal
	tlsUser   map[TLKey]TLUser
	tlsSeed   idSeed
	intervals map[Signal]*IntervalSignal

	busByID    map[ProcessID]BusProcess
	busByReuse map[string]ProcessID
}

// ProcessControl represents a process running within the sandboxed
// runtime: its thread table, its parent/child tree, its interval signals,
// and its thread-local storage. It holds its own locks and counters, so it
// is always used through a *ProcessControl and must not be copied; it is
// safe for concurrent use.
type ProcessControl struct {
	pid   ProcessID
	ppid  ProcessID
	plane *ControlPlane
	clock Clock

	// finished is this process's own exit latch; NewThread hands the same
	// pointer to the main thread's ThreadControl so the main thread's exit
	// is the process's exit.
	finished *exitLatch

	children *childList

	// waiting is the wait-for-children counter: while it is > 0, signals
	// addressed to this process are redirected to its children instead
	// (see SignalProcess).
	waiting atomic.Int32

	lostSignal *rate.Limiter

	mu    sync.RWMutex
	inner processInner
}

// childList is the reader-writer-locked list of child ProcessIDs, kept
// separate from processInner so its "snapshot then release" idiom (used
// before awaiting children) never needs the process's own lock.
type childList struct {
	mu  sync.RWMutex
	ids []ProcessID
}

func (c *childList) snapshot() []ProcessID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ProcessID, len(c.ids))
	copy(out, c.ids)
	return out
}

func (c *childList) add(pid ProcessID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = append(c.ids, pid)
}

func (c *childList) remove(pid ProcessID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, id := range c.ids {
		if id == pid {
			c.ids = append(c.ids[:i], c.ids[i+1:]...)
			return
		}
	}
}

// newProcessWait increments the wait-for-children counter for the scope of
// the call; callers must defer its release so cancellation can never leak
// an incremented counter.
type processWait struct {
	counter *atomic.Int32
}

func newProcessWait(p *ProcessControl) processWait {
	p.waiting.Add(1)
	return processWait{counter: &p.waiting}
}

func (w processWait) release() {
	w.counter.Add(-1)
}

// PID returns this process's own ID.
func (p *ProcessControl) PID() ProcessID { return p.pid }

// PPID returns the parent process's ID as stored on this process.
// ControlPlane.NewProcess stores 0 and this package offers no way to change
// it, so PPID always returns 0; the parent/child relationship is recorded
// only in the parent's children list (see AddChild).
func (p *ProcessControl) PPID() ProcessID { return p.ppid }

// ControlPlane returns the control plane this process was created from.
func (p *ProcessControl) ControlPlane() *ControlPlane { return p.plane }

// AddChild records pid as a child of this process. The control plane never
// does this on the caller's behalf (see ControlPlane.NewProcess); the
// caller must call AddChild itself after creating a child process.
func (p *ProcessControl) AddChild(pid ProcessID) {
	p.children.add(pid)
}

// Children returns a snapshot of the current children list.
func (p *ProcessControl) Children() []ProcessID {
	return p.children.snapshot()
}

// NewThread allocates the next ThreadID, registers a new ThreadControl, and
// returns a handle whose disposal is the sole legitimate way to remove the
// thread and terminate it with exit code 0. The first thread created while
// the process has no other threads is flagged main and shares the
// process's own exit latch, so that its exit is the process's exit.
func (p *ProcessControl) NewThread() *ThreadHandle {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := ThreadID(p.inner.threadSeed.inc())
	isMain := p.inner.threadCount == 0

	finished := p.finished
	if !isMain {
		finished = &exitLatch{}
	}

	thread := ThreadControl{
		pid:      p.pid,
		id:       id,
		isMain:   isMain,
		finished: finished,
		signals:  &signalQueue{},
		stack:    &stackChain{},
	}
	if p.inner.threads == nil {
		p.inner.threads = make(map[ThreadID]ThreadControl)
	}
	p.inner.threads[id] = thread
	p.inner.threadCount++

	return newThreadHandle(thread, p)
}

// removeThread deletes tid from the thread table and decrements the thread
// count. Called only from ThreadHandle.Drop.
func (p *ProcessControl) removeThread(tid ThreadID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.inner.threads[tid]; !ok {
		return
	}
	delete(p.inner.threads, tid)
	p.inner.threadCount--
}

// GetThread returns the registered thread with the given ID, if any.
func (p *ProcessControl) GetThread(tid ThreadID) (ThreadControl, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, ok := p.inner.threads[tid]
	return t, ok
}

// ActiveThreads returns the number of threads currently registered.
func (p *ProcessControl) ActiveThreads() uint32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.inner.threadCount
}

// SignalThread delivers sig to a specific thread. If the thread is not
// registered (it already exited and its handle was dropped), the signal is
// logged as lost and silently dropped.
func (p *ProcessControl) SignalThread(tid ThreadID, sig Signal) {
	p.mu.RLock()
	t, ok := p.inner.threads[tid]
	p.mu.RUnlock()
	if !ok {
		if p.lostSignal.Allow() {
			log.Debugf("control[pid=%v]: lost signal (tid=%v, sig=%v)", p.pid, tid, sig)
		}
		return
	}
	t.Signal(sig)
}

// SignalProcess delivers sig to every thread in this process, unless a
// thread is currently blocked in Join/JoinChildren/JoinAnyChild (the
// wait-for-children counter is > 0), in which case the signal is instead
// dispatched recursively to every live child process. This lets a
// waitpid-like caller treat a signal sent while blocked in a child-wait as
// addressed to the active subtree.
func (p *ProcessControl) SignalProcess(sig Signal) {
	if p.waiting.Load() > 0 {
		for _, cpid := range p.children.snapshot() {
			if child, ok := p.plane.GetProcess(cpid); ok {
				child.SignalProcess(sig)
			}
		}
		return
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, t := range p.inner.threads {
		t.Signal(sig)
	}
}

// HandleSignalByte is the signal-handler bridge used by the bus/execution
// engine collaborator: it decodes an 8-bit signal code and, if recognized,
// delivers it via SignalProcess. Unknown codes are silently dropped.
func (p *ProcessControl) HandleSignalByte(code uint8) {
	if sig, ok := DecodeSignal(code); ok {
		p.SignalProcess(sig)
	}
}

// SignalInterval registers or clears a repeating signal. If interval is
// nil, any existing interval for sig is removed. Otherwise a descriptor is
// recorded with LastFireNS taken from the process's clock collaborator at
// microsecond precision.
func (p *ProcessControl) SignalInterval(sig Signal, interval *time.Duration, repeat bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if interval == nil {
		delete(p.inner.intervals, sig)
		return
	}
	if p.inner.intervals == nil {
		p.inner.intervals = make(map[Signal]*IntervalSignal)
	}
	p.inner.intervals[sig] = &IntervalSignal{
		Signal:     sig,
		Interval:   *interval,
		Repeat:     repeat,
		LastFireNS: p.clock.NowNanos(),
	}
}

// Intervals returns a snapshot of the currently registered interval
// signals, for the execution engine collaborator to poll.
func (p *ProcessControl) Intervals() map[Signal]IntervalSignal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[Signal]IntervalSignal, len(p.inner.intervals))
	for sig, desc := range p.inner.intervals {
		out[sig] = *desc
	}
	return out
}

// TLSGet returns the thread-local value at (tid, key), if set.
func (p *ProcessControl) TLSGet(tid ThreadID, key TLKey) (TLVal, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.inner.tls[tlEntry{tid, key}]
	return v, ok
}

// TLSSet stores the thread-local value at (tid, key). TLS is not
// automatically cleared on thread exit by this layer; that policy is
// delegated to the execution engine collaborator that owns key lifecycle.
func (p *ProcessControl) TLSSet(tid ThreadID, key TLKey, val TLVal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inner.tls == nil {
		p.inner.tls = make(map[tlEntry]TLVal)
	}
	p.inner.tls[tlEntry{tid, key}] = val
}

// TLSNewKey allocates a fresh TLKey from this process's key seed and
// records its associated user data.
func (p *ProcessControl) TLSNewKey(user TLUser) TLKey {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := TLKey(p.inner.tlsSeed.inc())
	if p.inner.tlsUser == nil {
		p.inner.tlsUser = make(map[TLKey]TLUser)
	}
	p.inner.tlsUser[key] = user
	return key
}

// TLSUserData returns the user data associated with key, if it was
// allocated via TLSNewKey.
func (p *ProcessControl) TLSUserData(key TLKey) (TLUser, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	u, ok := p.inner.tlsUser[key]
	return u, ok
}

// BusRegister records an externally-spawned bus process, keyed by id and,
// if name is non-empty, also by reuse-name.
func (p *ProcessControl) BusRegister(id ProcessID, proc BusProcess, name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inner.busByID == nil {
		p.inner.busByID = make(map[ProcessID]BusProcess)
	}
	p.inner.busByID[id] = proc
	if name != "" {
		if p.inner.busByReuse == nil {
			p.inner.busByReuse = make(map[string]ProcessID)
		}
		p.inner.busByReuse[name] = id
	}
}

// BusByID looks up a bus process by id.
func (p *ProcessControl) BusByID(id ProcessID) (BusProcess, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	b, ok := p.inner.busByID[id]
	return b, ok
}

// BusByReuseName looks up a bus process's id by its stable reuse-name.
func (p *ProcessControl) BusByReuseName(name string) (ProcessID, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	id, ok := p.inner.busByReuse[name]
	return id, ok
}

// Terminate calls Terminate(code) on every registered thread.
func (p *ProcessControl) Terminate(code ExitCode) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, t := range p.inner.threads {
		t.Terminate(code)
	}
}

// Join subscribes to the process exit latch and returns the main thread's
// exit code once it is set, or nil if ctx is done first. For the scope of
// the call, the wait-for-children counter is incremented so that a
// concurrent SignalProcess is routed to this process's children instead.
func (p *ProcessControl) Join(ctx context.Context) *ExitCode {
	w := newProcessWait(p)
	defer w.release()
	return p.finished.wait(ctx)
}

// TryJoin is the non-blocking read of the process exit latch.
func (p *ProcessControl) TryJoin() *ExitCode {
	return p.finished.tryGet()
}

// JoinChildren awaits every current child concurrently, removing each from
// the children list as it completes, and returns the first non-nil exit
// code observed (in start order), or nil if there were no children or none
// ever produced one.
func (p *ProcessControl) JoinChildren(ctx context.Context) *ExitCode {
	w := newProcessWait(p)
	defer w.release()

	pids := p.children.snapshot()
	if len(pids) == 0 {
		return nil
	}

	results := make([]*ExitCode, len(pids))
	g, gctx := errgroup.WithContext(ctx)
	for i, cpid := range pids {
		i, cpid := i, cpid
		g.Go(func() error {
			child, ok := p.plane.GetProcess(cpid)
			if !ok {
				return nil
			}
			// Wait on the child's latch directly rather than child.Join, so
			// the child's own wait counter stays untouched and a signal
			// routed to it still reaches its threads.
			results[i] = child.finished.wait(gctx)
			p.children.remove(cpid)
			return nil
		})
	}
	// Errors are impossible (the goroutines above never return one); Wait
	// only serves as the join point here.
	_ = g.Wait()

	for _, r := range results {
		if r != nil {
			return r
		}
	}
	return nil
}

// ChildExit is the payload raced over in JoinAnyChild.
type ChildExit struct {
	pid  ProcessID
	code ExitCode
}

// JoinAnyChild waits for any single child to finish and returns its id and
// exit code, removing it from the children list. It fails with
// ErrNoChildren if the children list is empty at entry. A child whose own
// join resolves to "unknown exit" is removed and skipped in favor of the
// remaining children, matching JoinChildren's treatment of the same case;
// if every current child resolves that way, the wait is retried against
// whatever children remain (possibly none, which then reports
// ErrNoChildren).
func (p *ProcessControl) JoinAnyChild(ctx context.Context) (*ChildExit, error) {
	w := newProcessWait(p)
	defer w.release()

	for {
		pids := p.children.snapshot()
		if len(pids) == 0 {
			return nil, ErrNoChildren
		}

		r, gotResult, err := p.raceChildren(ctx, pids)
		if err != nil {
			return nil, err
		}
		if gotResult {
			return r, nil
		}
		if ctx.Err() != nil {
			return nil, nil
		}
		// Every child in this round resolved to "unknown exit" and was
		// removed; retry against whatever remains.
	}
}

// raceChildren waits for the first of pids to produce an exit code,
// removing each child from the list as its join resolves (matching
// JoinChildren). gotResult is false if ctx was cancelled, or if every
// child's join resolved to "unknown exit" without ctx being cancelled.
func (p *ProcessControl) raceChildren(ctx context.Context, pids []ProcessID) (r *ChildExit, gotResult bool, err error) {
	type outcome struct {
		pid  ProcessID
		code *ExitCode
	}
	results := make(chan outcome, len(pids))
	joinCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	live := 0
	for _, cpid := range pids {
		child, ok := p.plane.GetProcess(cpid)
		if !ok {
			// The child is gone from the plane but still listed: prune it
			// now, or JoinAnyChild's retry loop would hand us this same
			// unresolvable pid forever and spin without ever blocking.
			p.children.remove(cpid)
			continue
		}
		live++
		cpid := cpid
		go func() {
			// As in JoinChildren: bypass child.Join so the child's wait
			// counter does not divert signals routed to it.
			code := child.finished.wait(joinCtx)
			select {
			case results <- outcome{pid: cpid, code: code}:
			case <-joinCtx.Done():
			}
		}()
	}

	remaining := live
	for remaining > 0 {
		select {
		case o := <-results:
			remaining--
			p.children.remove(o.pid)
			if o.code != nil {
				return &ChildExit{pid: o.pid, code: *o.code}, true, nil
			}
		case <-ctx.Done():
			return nil, false, nil
		}
	}
	return nil, false, nil
}

// PID returns the ProcessID of a JoinAnyChild result.
func (r *ChildExit) PID() ProcessID { return r.pid }

// Code returns the ExitCode of a JoinAnyChild result.
func (r *ChildExit) Code() ExitCode { return r.code }

func newLostSignalLimiter() *rate.Limiter {
	// One log line per second, with a small burst allowance: enough to see
	// the first few lost signals in a storm without flooding the log.
	return rate.NewLimiter(rate.Limit(1), 4)
}
