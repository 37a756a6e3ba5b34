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

// TLKey identifies a thread-local storage slot, scoped to a single process
// and allocated from that process's own key seed.
type TLKey uint32

// TLVal is the value stored at a (ThreadID, TLKey) pair. Its representation
// is left to the execution engine collaborator; it is sized to carry a
// guest pointer or a small packed value.
type TLVal uint64

// TLUser is collaborator-owned user data associated with a TLKey,
// independent of any particular thread.
type TLUser uint64

// tlEntry is the composite key for the per-process TLS map.
type tlEntry struct {
	tid ThreadID
	key TLKey
}
