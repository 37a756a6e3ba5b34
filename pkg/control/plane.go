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
	"sync/atomic"

	"gvisor.dev/gvisor/pkg/sync"
)

// ControlPlane is the process registry and identifier allocator: it
// maintains the canonical ProcessID -> ProcessControl map and guarantees
// that ReservePID never hands out an id that collides with a live process
// or with another caller's in-flight reservation.
type ControlPlane struct {
	clock Clock

	mu        sync.RWMutex
	processes map[ProcessID]*ProcessControl

	seed atomic.Uint32

	reservedMu sync.Mutex
	reserved   map[ProcessID]struct{}
}

// NewControlPlane constructs an empty control plane. clock is the
// monotonic time source used for every process's interval-signal
// accounting; see the Clock interface.
func NewControlPlane(clock Clock) *ControlPlane {
	return &ControlPlane{
		clock:     clock,
		processes: make(map[ProcessID]*ProcessControl),
		reserved:  make(map[ProcessID]struct{}),
	}
}

// ReservePID allocates a ProcessID guaranteed, at the moment it is
// returned, to be neither live in the process map nor already reserved by
// another in-flight caller. The caller must finalize by inserting into the
// process map and then releasing the reservation (see NewProcess).
//
// Reservation-lock and process-map-lock are never held simultaneously
// except in the order (reserved, then processes read) below; this is the
// only acquisition order permitted between the two.
func (cp *ControlPlane) ReservePID() ProcessID {
	for {
		pid := ProcessID(cp.seed.Add(1))

		cp.reservedMu.Lock()
		if _, taken := cp.reserved[pid]; taken {
			cp.reservedMu.Unlock()
			continue
		}
		cp.reserved[pid] = struct{}{}
		cp.reservedMu.Unlock()

		cp.mu.RLock()
		_, live := cp.processes[pid]
		cp.mu.RUnlock()
		if !live {
			return pid
		}

		cp.reservedMu.Lock()
		delete(cp.reserved, pid)
		cp.reservedMu.Unlock()
	}
}

// NewProcess reserves a pid and constructs a fresh ProcessControl with
// empty state and ppid == 0. The ppid is not changed afterwards: this
// package has no setter for it. Recording the parent/child relationship is
// left to the caller, by calling parent.AddChild with the new pid; the
// control plane does not do this on the caller's behalf.
func (cp *ControlPlane) NewProcess() *ProcessControl {
	pid := cp.ReservePID()

	p := &ProcessControl{
		pid:        pid,
		ppid:       0,
		plane:      cp,
		clock:      cp.clock,
		finished:   &exitLatch{},
		children:   &childList{},
		lostSignal: newLostSignalLimiter(),
	}

	cp.mu.Lock()
	cp.processes[pid] = p
	cp.mu.Unlock()

	cp.reservedMu.Lock()
	delete(cp.reserved, pid)
	cp.reservedMu.Unlock()

	return p
}

// GetProcess returns the registered process with the given ID, if any.
func (cp *ControlPlane) GetProcess(pid ProcessID) (*ProcessControl, bool) {
	cp.mu.RLock()
	defer cp.mu.RUnlock()
	p, ok := cp.processes[pid]
	return p, ok
}

// RemoveProcess deletes pid from the process table. The control plane does
// not call this on its own; a collaborator drives full process teardown
// (e.g. once Join has observed an exit code and any diagnostics have been
// recorded) and then removes the entry so the id becomes eligible for
// reuse.
func (cp *ControlPlane) RemoveProcess(pid ProcessID) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	delete(cp.processes, pid)
}
