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

// Package clock provides the production implementation of
// control.Clock: a monotonic time source truncated to microsecond
// resolution, matching the original's
// platform_clock_time_get(Monotonic, 1_000_000).
package clock

import (
	"time"

	"golang.org/x/sys/unix"
)

const microsecond = int64(time.Microsecond)

// Monotonic is a control.Clock backed by CLOCK_MONOTONIC.
type Monotonic struct{}

// NowNanos implements control.Clock.
func (Monotonic) NowNanos() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		// CLOCK_MONOTONIC is not expected to fail on a supported platform;
		// fall back to the portable (but coarser-grained, and non-monotonic
		// across wall-clock adjustments) time.Now() rather than panic.
		return truncate(time.Now().UnixNano())
	}
	return truncate(ts.Nano())
}

// truncate zeroes the sub-microsecond digits of ns, matching the
// microsecond resolution the interval-signal accounting is specified at.
func truncate(ns int64) int64 {
	return (ns / microsecond) * microsecond
}
