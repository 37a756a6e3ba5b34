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

	"gvisor.dev/gvisor/pkg/sync"
)

// exitLatch is a write-once Option<ExitCode> slot paired with a broadcast
// wake channel. It backs both ThreadControl.terminate/join and
// ProcessControl.terminate/join; a process's main thread shares the same
// *exitLatch as its owning ProcessControl (see ProcessControl.NewThread),
// so the main thread's exit is the process's exit.
type exitLatch struct {
	mu   sync.Mutex
	code *ExitCode
	bc   broadcaster
}

// set transitions None -> Some(code). Later calls are no-ops: the first
// writer wins and every writer (including no-ops) triggers a wake so a
// racing terminate(0) from a dropped ThreadHandle can't starve a waiter.
func (l *exitLatch) set(code ExitCode) {
	l.mu.Lock()
	if l.code == nil {
		c := code
		l.code = &c
	}
	l.mu.Unlock()
	l.bc.wake()
}

// tryGet is the non-blocking read.
func (l *exitLatch) tryGet() *ExitCode {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.code == nil {
		return nil
	}
	c := *l.code
	return &c
}

// wait blocks until the latch is set or ctx is done, whichever happens
// first. A context cancellation is treated the same as a dropped broadcast
// channel: it resolves to "unknown exit" (nil) and has no other side
// effect.
func (l *exitLatch) wait(ctx context.Context) *ExitCode {
	for {
		ch := l.bc.subscribe()
		if c := l.tryGet(); c != nil {
			return c
		}
		select {
		case <-ch:
			// Loop around: re-check the latch under the mutex rather than
			// trusting the wake alone, since a new generation may have
			// already started by the time we observe the close.
		case <-ctx.Done():
			return nil
		}
	}
}
