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

import "time"

// IntervalSignal describes a signal configured to fire repeatedly at a
// given period. It is bookkeeping only: the control plane never fires it
// itself, it only records the descriptor for the execution engine
// collaborator to poll against LastFireNS.
type IntervalSignal struct {
	Signal     Signal
	Interval   time.Duration
	Repeat     bool
	LastFireNS int64
}
