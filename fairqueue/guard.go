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

import (
	"log"
	"runtime"
	"sync"
	"time"
)

// Guard is the scoped handle returned to a caller admitted into the serving
// pool. Its lifetime is the occupation of a serving slot: while it lives,
// the caller is entitled to its share of the configured service capacity.
// Close releases the slot and must be called by the caller — typically via
// `defer guard.Close()` immediately after a successful Acquire.
//
// Close is idempotent and safe to call from any goroutine. As a backstop
// against a caller that forgets to call it at all, Guard also registers a
// finalizer that releases the slot and logs a warning — the same
// belt-and-suspenders idiom the standard library uses for *os.File and
// database/sql.Rows. Never rely on the finalizer; it exists only so a
// forgotten guard leaks a log line instead of a slot.
type Guard[F comparable] struct {
	queue     *FairQueue[F]
	flowID    F
	startedAt time.Time
	once      sync.Once
}

// FlowID returns the flow this guard was admitted for.
func (g *Guard[F]) FlowID() F { return g.flowID }

// Close releases the serving slot, recording the elapsed service time
// against the flow's cost estimate and dispatching the next backlog entry
// (if any). It always returns nil; the error return exists only to satisfy
// io.Closer for defer ergonomics, matching spec.md §7: the release path has
// no error surface by design.
func (g *Guard[F]) Close() error {
	g.once.Do(func() {
		runtime.SetFinalizer(g, nil)
		actualCost := VirtualTime(time.Since(g.startedAt).Microseconds())
		g.queue.release(g.flowID, actualCost)
	})
	return nil
}

func finalizeGuard[F comparable](g *Guard[F]) {
	log.Printf("fairqueue: guard for flow %v released by finalizer, not by an explicit Close call", g.flowID)
	g.Close()
}
