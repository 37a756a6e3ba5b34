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

// Clock is the monotonic time source consumed by SignalInterval accounting.
// Implementations return nanoseconds since an arbitrary epoch, at
// microsecond resolution (the low three decimal digits of the returned
// value are always zero). The control plane never interprets the epoch;
// only differences between successive readings are meaningful.
//
// The production implementation lives in package clock, outside this
// package's scope (this package only specifies the interface it consumes,
// per the design's external-interfaces section).
type Clock interface {
	NowNanos() int64
}

// BusProcess is an opaque handle to an externally-spawned "bus" process
// (one started by the plugin/bus mechanism for spawning external
// processes). The control plane never calls into it; it exists only so a
// ProcessControl's bus table has something concrete to hold and return by
// identity or by reuse-name.
type BusProcess interface {
	// BusProcessID is an opaque, collaborator-defined identity string used
	// only for diagnostics; the control plane addresses bus processes by
	// ProcessID or reuse-name, never by this value.
	BusProcessID() string
}
