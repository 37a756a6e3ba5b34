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

// broadcaster is a "wake all current subscribers" channel, the Go analogue
// of a capacity-1 broadcast channel: every call to wake() closes the
// current generation's channel (waking every goroutine currently selecting
// on it) and installs a fresh, open one. A subscriber that calls subscribe
// after a wake simply receives the new, not-yet-closed channel — it does
// not see a replay of the wake that already happened, which is why every
// caller must follow the check-latch-then-subscribe-then-recheck pattern
// rather than assuming a subscription alone is sufficient.
//
// broadcaster is a leaf lock: nothing is acquired while bc.mu is held.
type broadcaster struct {
	mu sync.Mutex
	ch chan struct{}
}

// subscribe returns the channel for the current generation. It closes when
// the next wake() is called.
func (b *broadcaster) subscribe() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ch == nil {
		b.ch = make(chan struct{})
	}
	return b.ch
}

// wake closes the current generation's channel, if one has been created
// (whether or not anyone is waiting on it), and starts a fresh generation.
func (b *broadcaster) wake() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ch != nil {
		close(b.ch)
	}
	b.ch = make(chan struct{})
}
