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
	"testing"
	"time"
)

func TestExitLatchTryGetBeforeSet(t *testing.T) {
	var l exitLatch
	if c := l.tryGet(); c != nil {
		t.Fatalf("tryGet() on unset latch = %v, want nil", c)
	}
}

func TestExitLatchSetIsFirstWriterWins(t *testing.T) {
	var l exitLatch
	l.set(ExitCode(7))
	l.set(ExitCode(99))

	c := l.tryGet()
	if c == nil || *c != 7 {
		t.Fatalf("tryGet() = %v, want 7 (first writer wins)", c)
	}
}

func TestExitLatchWaitUnblocksOnSet(t *testing.T) {
	var l exitLatch
	result := make(chan *ExitCode, 1)
	go func() {
		result <- l.wait(context.Background())
	}()

	time.Sleep(10 * time.Millisecond)
	l.set(ExitCode(3))

	select {
	case c := <-result:
		if c == nil || *c != 3 {
			t.Fatalf("wait() = %v, want 3", c)
		}
	case <-time.After(time.Second):
		t.Fatal("wait() did not unblock after set")
	}
}

func TestExitLatchWaitReturnsImmediatelyIfAlreadySet(t *testing.T) {
	var l exitLatch
	l.set(ExitCode(1))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	c := l.wait(ctx)
	if c == nil || *c != 1 {
		t.Fatalf("wait() = %v, want 1", c)
	}
}

func TestExitLatchWaitCancelledReturnsNil(t *testing.T) {
	var l exitLatch
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if c := l.wait(ctx); c != nil {
		t.Fatalf("wait() on cancelled context = %v, want nil", c)
	}
}
