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

package clock

import "testing"

func TestMonotonicNowNanosTruncatedToMicrosecond(t *testing.T) {
	var m Monotonic
	ns := m.NowNanos()
	if ns%int64(microsecond) != 0 {
		t.Fatalf("NowNanos() = %d, want a multiple of %d (microsecond resolution)", ns, microsecond)
	}
}

func TestMonotonicNowNanosNonDecreasing(t *testing.T) {
	var m Monotonic
	prev := m.NowNanos()
	for i := 0; i < 100; i++ {
		next := m.NowNanos()
		if next < prev {
			t.Fatalf("NowNanos() went backwards: %d then %d", prev, next)
		}
		prev = next
	}
}

func TestTruncateZeroesSubMicrosecondDigits(t *testing.T) {
	cases := []struct{ in, want int64 }{
		{0, 0},
		{999, 0},
		{1000, 1000},
		{1999, 1000},
		{1_000_000_000, 1_000_000_000},
		{1_000_000_999, 1_000_000_000},
	}
	for _, tc := range cases {
		if got := truncate(tc.in); got != tc.want {
			t.Errorf("truncate(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
