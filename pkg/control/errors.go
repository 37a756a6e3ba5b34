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

import "errors"

// ErrNoChildren is returned by ProcessControl.JoinAnyChild when the process
// has no children at the moment the call is made. It is the only error this
// package returns; every other failure path (poisoned locks, dropped wake
// channels) collapses to an "unknown exit" result (a nil *ExitCode) rather
// than an error, per the design's closed error taxonomy.
var ErrNoChildren = errors.New("control: process has no children")
