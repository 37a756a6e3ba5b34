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
	"testing"
	"time"
)

func TestSignalQueueDrainEmptyReturnsSubscription(t *testing.T) {
	var q signalQueue
	sigs, wake := q.drainOrSubscribe()
	if sigs != nil {
		t.Fatalf("drainOrSubscribe() on empty queue returned sigs=%v, want nil", sigs)
	}
	if wake == nil {
		t.Fatal("drainOrSubscribe() on empty queue returned nil wake channel")
	}
}

func TestSignalQueuePushDuplicateSuppressed(t *testing.T) {
	var q signalQueue
	q.push(SignalUsr1)
	q.push(SignalUsr1)
	q.push(SignalUsr1)

	sigs, _ := q.drainOrSubscribe()
	if len(sigs) != 1 || sigs[0] != SignalUsr1 {
		t.Fatalf("drainOrSubscribe() = %v, want exactly one SignalUsr1", sigs)
	}
}

func TestSignalQueueDrainRemovesAllPending(t *testing.T) {
	var q signalQueue
	q.push(SignalUsr1)
	q.push(SignalTerm)

	sigs, wake := q.drainOrSubscribe()
	if wake != nil {
		t.Fatal("drainOrSubscribe() with pending signals should not return a wake channel")
	}
	seen := map[Signal]bool{}
	for _, s := range sigs {
		seen[s] = true
	}
	if len(sigs) != 2 || !seen[SignalUsr1] || !seen[SignalTerm] {
		t.Fatalf("drainOrSubscribe() = %v, want [USR1, TERM] in some order", sigs)
	}

	sigs2, wake2 := q.drainOrSubscribe()
	if sigs2 != nil || wake2 == nil {
		t.Fatal("queue should be empty after drain")
	}
}

func TestSignalQueuePushWakesSubscriber(t *testing.T) {
	var q signalQueue
	_, wake := q.drainOrSubscribe()

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.push(SignalAlarm)
	}()

	select {
	case <-wake:
	case <-time.After(time.Second):
		t.Fatal("push did not wake the subscriber")
	}

	sigs, _ := q.drainOrSubscribe()
	if len(sigs) != 1 || sigs[0] != SignalAlarm {
		t.Fatalf("drainOrSubscribe() after wake = %v, want [ALRM]", sigs)
	}
}
