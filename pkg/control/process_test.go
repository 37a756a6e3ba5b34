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
	"sync"
	"testing"
	"time"
)

// fakeClock is a deterministic Clock for tests that touch interval
// accounting; it never advances on its own.
type fakeClock struct{ ns int64 }

func (c *fakeClock) NowNanos() int64 { return c.ns }

func newTestPlane() *ControlPlane {
	return NewControlPlane(&fakeClock{ns: 1_000_000})
}

func TestNewThreadFirstIsMain(t *testing.T) {
	p := newTestPlane().NewProcess()
	h0 := p.NewThread()
	h1 := p.NewThread()

	if !h0.Thread().IsMain() {
		t.Error("first thread created should be flagged main")
	}
	if h1.Thread().IsMain() {
		t.Error("second thread created should not be flagged main")
	}
}

func TestThreadCountTracksLiveThreads(t *testing.T) {
	p := newTestPlane().NewProcess()
	h0 := p.NewThread()
	h1 := p.NewThread()

	if got := p.ActiveThreads(); got != 2 {
		t.Fatalf("ActiveThreads() = %d, want 2", got)
	}

	h1.Drop()
	if got := p.ActiveThreads(); got != 1 {
		t.Fatalf("ActiveThreads() after drop = %d, want 1", got)
	}
	h0.Drop()
	if got := p.ActiveThreads(); got != 0 {
		t.Fatalf("ActiveThreads() after both dropped = %d, want 0", got)
	}
}

func TestReservePIDNeitherLiveNorReserved(t *testing.T) {
	cp := newTestPlane()
	pid := cp.ReservePID()
	if _, live := cp.GetProcess(pid); live {
		t.Error("ReservePID returned a pid already live in the process map")
	}
	if other := cp.ReservePID(); other == pid {
		t.Errorf("ReservePID returned %v again while its first reservation is still held", pid)
	}
}

func TestReservePIDConcurrentCallersAllDistinct(t *testing.T) {
	cp := newTestPlane()
	const n = 64
	ids := make([]ProcessID, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids[i] = cp.ReservePID()
		}()
	}
	wg.Wait()

	seen := make(map[ProcessID]bool, n)
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("ReservePID returned duplicate id %v across concurrent callers", id)
		}
		seen[id] = true
	}
}

func TestSignalProcessConcurrentCallsLeavePendingSetSingleton(t *testing.T) {
	p := newTestPlane().NewProcess()
	h := p.NewThread()

	const n = 32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.SignalProcess(SignalUsr1)
		}()
	}
	wg.Wait()

	sigs, _ := h.Thread().DrainSignalsOrSubscribe()
	if len(sigs) != 1 || sigs[0] != SignalUsr1 {
		t.Fatalf("pending set after N concurrent signal_process(USR1) = %v, want [USR1]", sigs)
	}
}

// TestMainThreadExitPropagatesToProcess is spec.md end-to-end scenario 1.
func TestMainThreadExitPropagatesToProcess(t *testing.T) {
	p := newTestPlane().NewProcess()
	h0 := p.NewThread()
	if !h0.Thread().IsMain() {
		t.Fatal("first thread should be main")
	}

	h0.Thread().Terminate(7)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	code := p.Join(ctx)
	if code == nil || *code != 7 {
		t.Fatalf("Join() after main thread terminate(7) = %v, want 7", code)
	}
}

// TestHandleDropAutoTerminatesWithZero is spec.md end-to-end scenario 2.
func TestHandleDropAutoTerminatesWithZero(t *testing.T) {
	p := newTestPlane().NewProcess()
	h0 := p.NewThread()
	h0.Drop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	code := p.Join(ctx)
	if code == nil || *code != 0 {
		t.Fatalf("Join() after dropping sole handle = %v, want 0", code)
	}
	if got := p.ActiveThreads(); got != 0 {
		t.Fatalf("ActiveThreads() after drop = %d, want 0", got)
	}
}

// TestChildWaitRouting is spec.md end-to-end scenario 3: while a parent is
// blocked in JoinChildren, a signal addressed to the parent is redirected to
// its children instead of being delivered to the parent's own threads.
func TestChildWaitRouting(t *testing.T) {
	cp := newTestPlane()
	parent := cp.NewProcess()
	parentThread := parent.NewThread()

	child := cp.NewProcess()
	childThread := child.NewThread()
	parent.AddChild(child.PID())

	waitDone := make(chan *ExitCode, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		waitDone <- parent.JoinChildren(ctx)
	}()

	// Give JoinChildren a moment to enter the wait (increment the counter)
	// before racing the signal against it.
	time.Sleep(20 * time.Millisecond)

	parent.SignalProcess(SignalInterrupt)

	sigs, _ := childThread.Thread().DrainSignalsOrSubscribe()
	if len(sigs) != 1 || sigs[0] != SignalInterrupt {
		t.Fatalf("child pending signals = %v, want [INT] (signal should route to children during wait)", sigs)
	}
	if sigs, _ := parentThread.Thread().DrainSignalsOrSubscribe(); len(sigs) != 0 {
		t.Fatalf("parent pending signals = %v, want none (signal should not reach the waiting process itself)", sigs)
	}

	childThread.Thread().Terminate(5)
	select {
	case code := <-waitDone:
		if code == nil || *code != 5 {
			t.Fatalf("JoinChildren() = %v, want 5", code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("JoinChildren did not return after child terminated")
	}
}

// TestJoinAnyChild is spec.md end-to-end scenario 6.
func TestJoinAnyChild(t *testing.T) {
	cp := newTestPlane()
	parent := cp.NewProcess()

	c1 := cp.NewProcess()
	c1.NewThread()
	c2 := cp.NewProcess()
	c2Thread := c2.NewThread()

	parent.AddChild(c1.PID())
	parent.AddChild(c2.PID())

	c2Thread.Thread().Terminate(9)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	result, err := parent.JoinAnyChild(ctx)
	if err != nil {
		t.Fatalf("JoinAnyChild() error = %v", err)
	}
	if result.PID() != c2.PID() || result.Code() != 9 {
		t.Fatalf("JoinAnyChild() = (pid=%v, code=%v), want (pid=%v, code=9)", result.PID(), result.Code(), c2.PID())
	}

	for _, pid := range parent.Children() {
		if pid == c2.PID() {
			t.Error("JoinAnyChild should have removed the finished child from the children list")
		}
	}
}

func TestJoinAnyChildNoChildrenReturnsErrNoChildren(t *testing.T) {
	p := newTestPlane().NewProcess()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := p.JoinAnyChild(ctx); err != ErrNoChildren {
		t.Fatalf("JoinAnyChild() on childless process error = %v, want ErrNoChildren", err)
	}
}

func TestTerminateIsIdempotentFirstWriterWins(t *testing.T) {
	p := newTestPlane().NewProcess()
	h := p.NewThread()

	p.Terminate(1)
	p.Terminate(2)

	code := h.Thread().TryJoin()
	if code == nil || *code != 1 {
		t.Fatalf("exit code after two terminate calls = %v, want 1 (first writer wins)", code)
	}
}

func TestSignalThreadUnknownThreadLogsAndDropsSilently(t *testing.T) {
	p := newTestPlane().NewProcess()
	// No panics, no error return: this should simply be a (rate-limited)
	// no-op for a thread id that was never registered.
	p.SignalThread(ThreadID(999), SignalKill)
}

func TestTLSRoundTrip(t *testing.T) {
	p := newTestPlane().NewProcess()
	h := p.NewThread()
	tid := h.Thread().TID()

	key := p.TLSNewKey(TLUser(42))
	if u, ok := p.TLSUserData(key); !ok || u != 42 {
		t.Fatalf("TLSUserData(%v) = %v, %v, want 42, true", key, u, ok)
	}

	if _, ok := p.TLSGet(tid, key); ok {
		t.Fatal("TLSGet before any TLSSet should report ok = false")
	}

	p.TLSSet(tid, key, TLVal(7))
	if v, ok := p.TLSGet(tid, key); !ok || v != 7 {
		t.Fatalf("TLSGet(%v, %v) = %v, %v, want 7, true", tid, key, v, ok)
	}
}

func TestBusRegisterByIDAndReuseName(t *testing.T) {
	p := newTestPlane().NewProcess()
	bp := fakeBusProcess("proc-1")

	p.BusRegister(ProcessID(100), bp, "reusable")

	got, ok := p.BusByID(ProcessID(100))
	if !ok || got.BusProcessID() != "proc-1" {
		t.Fatalf("BusByID = %v, %v, want proc-1, true", got, ok)
	}

	pid, ok := p.BusByReuseName("reusable")
	if !ok || pid != ProcessID(100) {
		t.Fatalf("BusByReuseName = %v, %v, want 100, true", pid, ok)
	}
}

type fakeBusProcess string

func (f fakeBusProcess) BusProcessID() string { return string(f) }

func TestSignalIntervalSetAndClear(t *testing.T) {
	p := newTestPlane().NewProcess()
	d := 5 * time.Second

	p.SignalInterval(SignalAlarm, &d, true)
	got := p.Intervals()
	iv, ok := got[SignalAlarm]
	if !ok || iv.Interval != d || !iv.Repeat {
		t.Fatalf("Intervals()[ALRM] = %+v, %v, want Interval=%v Repeat=true", iv, ok, d)
	}

	p.SignalInterval(SignalAlarm, nil, false)
	if _, ok := p.Intervals()[SignalAlarm]; ok {
		t.Fatal("Intervals()[ALRM] should be cleared after SignalInterval(nil)")
	}
}
