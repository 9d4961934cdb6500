// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
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

package fairqueue

// VirtualTime denotes positions on the scheduler's synthetic clock. It is
// not wall-clock time. A uint64 of microseconds holds more than 584,000
// years before overflow, which is sufficient for any process lifetime — see
// DESIGN.md for why this implementation does not reach for a 128-bit type.
type VirtualTime uint64

// flow is the per-FlowID bookkeeping entry: the virtual finish tag of the
// most recently submitted request (seeds the next start-tag computation),
// a smoothed estimate of the flow's per-request service cost, and the
// number of that flow's requests currently sitting in the backlog (used
// only by ReapIdle to avoid evicting a flow with pending work).
type flow struct {
	previousFinishTag VirtualTime
	costAvg           VirtualTime
	queuedCount        int
}

// flowTable holds one flow entry per live FlowID. Entries are created lazily
// on first acquire and, absent an explicit ReapIdle call, persist for the
// lifetime of the scheduler (see spec §9: "Flow table growth").
type flowTable[F comparable] struct {
	m map[F]*flow
}

func newFlowTable[F comparable]() *flowTable[F] {
	return &flowTable[F]{m: make(map[F]*flow)}
}

func (t *flowTable[F]) getOrCreate(id F) *flow {
	f, ok := t.m[id]
	if !ok {
		f = &flow{}
		t.m[id] = f
	}
	return f
}

func (t *flowTable[F]) get(id F) (*flow, bool) {
	f, ok := t.m[id]
	return f, ok
}

func (t *flowTable[F]) delete(id F) {
	delete(t.m, id)
}

func (t *flowTable[F]) len() int { return len(t.m) }

// forEach iterates the flow table. The callback must not mutate t.
func (t *flowTable[F]) forEach(fn func(id F, f *flow)) {
	for id, f := range t.m {
		fn(id, f)
	}
}
