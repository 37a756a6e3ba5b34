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

import "gvisor.dev/gvisor/pkg/sync"

// signalQueue is the per-thread pending-signal set: unordered, with
// duplicate suppression, paired with a broadcast wake channel.
type signalQueue struct {
	mu      sync.Mutex
	pending map[Signal]struct{}
	bc      broadcaster
}

// push inserts sig into the pending set if it is not already present and
// wakes any subscriber. It is idempotent per signal kind.
func (q *signalQueue) push(sig Signal) {
	q.mu.Lock()
	if q.pending == nil {
		q.pending = make(map[Signal]struct{})
	}
	q.pending[sig] = struct{}{}
	q.mu.Unlock()
	q.bc.wake()
}

// drainOrSubscribe atomically takes the full pending set. If it is
// non-empty, the signals are returned (order is unspecified — the set has
// no ordering guarantees, per the design). If it is empty, a fresh
// subscription is returned instead so the caller can await arrival without
// racing a concurrent push.
func (q *signalQueue) drainOrSubscribe() (sigs []Signal, wake <-chan struct{}) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		// subscribe() must happen before we release q.mu: push() holds q.mu
		// across its own pending-set mutation, so taking the subscription
		// inside this critical section makes "observed empty" and "now
		// watching for the next wake" atomic. Subscribing after unlocking
		// would let a concurrent push fully complete (set pending, unlock,
		// wake) in the gap, handing us a fresh channel that only closes on
		// the signal *after* the one we just missed.
		return nil, q.bc.subscribe()
	}
	sigs = make([]Signal, 0, len(q.pending))
	for sig := range q.pending {
		sigs = append(sigs, sig)
	}
	q.pending = nil
	return sigs, nil
}
