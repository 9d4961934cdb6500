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
	"context"
	"runtime"
	"sync"
	"time"
)

// request is a single waiting caller. resultCh is the Go analog of the
// original Rust source's tokio::sync::oneshot channel: a single-shot,
// buffered (capacity 1) notification carrying the issued Guard on success,
// or receiving a close-without-send (zero value) on cancellation.
type request[F comparable] struct {
	flowID   F
	flow     *flow
	startTag VirtualTime
	key      backlogKey
	queued   bool
	resultCh chan *Guard[F]
}

// Option configures a FairQueue at construction time.
type Option[F comparable] func(*fairQueueInner[F])

// WithMetrics wires an observability hook into the queue. See Metrics.
func WithMetrics[F comparable](m Metrics) Option[F] {
	return func(inner *fairQueueInner[F]) { inner.metrics = m }
}

// FairQueue is a weighted fair-share admission queue over flows identified
// by F. The zero value is not usable; construct with NewFairQueue.
//
// FairQueue is a thin handle around shared state: copying it is cheap and
// safe, and all copies refer to the same scheduler (the Go idiom replacing
// the original's Arc-based "freely cloneable" handle — see SPEC_FULL.md §6
// for why Go needs none of the cyclic-ownership machinery the Rust source
// does).
type FairQueue[F comparable] struct {
	inner *fairQueueInner[F]
}

type fairQueueInner[F comparable] struct {
	mu          sync.Mutex
	flows       *flowTable[F]
	backlog     *backlog[F]
	backlogCap  int
	depth       uint32
	serving     uint32
	virtualTime VirtualTime
	metrics     Metrics
}

// NewFairQueue creates a fresh scheduler with no flows, an empty backlog,
// virtual_time = 0, and serving = 0. backlogCap bounds the number of
// requests that may wait at once; depth bounds the number of concurrently
// serving guards.
func NewFairQueue[F comparable](backlogCap int, depth uint32, opts ...Option[F]) *FairQueue[F] {
	inner := &fairQueueInner[F]{
		flows:      newFlowTable[F](),
		backlog:    newBacklog[F](),
		backlogCap: backlogCap,
		depth:      depth,
		metrics:    noopMetrics{},
	}
	for _, opt := range opts {
		opt(inner)
	}
	return &FairQueue[F]{inner: inner}
}

// Acquire asynchronously requests a serving slot for flowID with the given
// weight (entitlement share; higher weight means a larger share of
// capacity). weight must be >= 1; a weight of 0 is clamped to 1 rather than
// left to divide by zero, per spec.md §6 ("implementations SHOULD clamp or
// reject").
//
// On success, Acquire returns an owned Guard: the caller is entitled to a
// share of the configured service capacity until it calls Guard.Close().
// On failure it returns ErrOverloaded (synchronous rejection at admission)
// or ErrCanceled (the request was admitted but evicted by a fairer arrival,
// or ctx was done before a slot was granted).
func (q *FairQueue[F]) Acquire(ctx context.Context, flowID F, weight uint32) (*Guard[F], error) {
	if weight == 0 {
		weight = 1
	}

	req := &request[F]{flowID: flowID, resultCh: make(chan *Guard[F], 1)}

	q.inner.mu.Lock()
	err := q.inner.submitLocked(q, req, weight)
	q.inner.mu.Unlock()
	if err != nil {
		return nil, err
	}

	select {
	case g, ok := <-req.resultCh:
		if !ok || g == nil {
			return nil, ErrCanceled
		}
		return g, nil
	case <-ctx.Done():
		q.inner.mu.Lock()
		removed := req.queued && q.inner.backlog.removeIfPresent(req.key)
		if removed {
			req.queued = false
			req.flow.queuedCount--
			q.inner.metrics.IncCanceled()
			q.inner.metrics.SetBacklogLen(q.inner.backlog.len())
		}
		q.inner.mu.Unlock()
		if removed {
			return nil, ErrCanceled
		}
		// Lost the race: the request was already dispatched (or evicted) by a
		// concurrent release/overload path. Drain the channel; if we got a
		// live guard, we must release it ourselves so the slot is not
		// leaked — this mirrors the original's "if the receiver side has
		// been dropped, the ServingGuard would be dropped here".
		if g, ok := <-req.resultCh; ok && g != nil {
			g.Close()
		}
		return nil, ErrCanceled
	}
}

// submitLocked performs tag assignment, admission control, and either
// immediate dispatch or backlog insertion. Must be called with the lock
// held. Mirrors FairQueueInner::acquire in the original Rust source.
func (inner *fairQueueInner[F]) submitLocked(q *FairQueue[F], req *request[F], weight uint32) error {
	flw := inner.flows.getOrCreate(req.flowID)
	req.flow = flw

	startTag := inner.virtualTime
	if flw.previousFinishTag > startTag {
		startTag = flw.previousFinishTag
	}
	cost := flw.costAvg / VirtualTime(weight)
	if cost < 1 {
		cost = 1
	}
	finishTag := startTag + cost
	// Updated unconditionally, even if the request below is rejected — an
	// intentional quirk preserved from the original source. See spec.md §9
	// and DESIGN.md's Open Question decisions.
	flw.previousFinishTag = finishTag
	req.startTag = startTag

	// A free serving slot always wins: backlog_cap == 0 means synchronous
	// handoff only (no queueing), not "reject everything". Admission control
	// below only governs requests that would otherwise have to queue.
	if inner.serving < inner.depth {
		inner.metrics.IncAcquired()
		inner.dispatchLocked(q, req)
		inner.metrics.SetBacklogLen(inner.backlog.len())
		return nil
	}

	if inner.backlog.len() >= inner.backlogCap {
		worst, ok := inner.backlog.max()
		if !ok || startTag >= worst.startTag {
			// Either there is no room to queue at all (backlogCap == 0) or
			// the new arrival is not fairer than the worst waiter already
			// queued.
			inner.metrics.IncOverloaded()
			return ErrOverloaded
		}
		evicted, _ := inner.backlog.popMax()
		evicted.queued = false
		evicted.flow.queuedCount--
		close(evicted.resultCh)
		inner.metrics.IncCanceled()
	}

	inner.metrics.IncAcquired()
	req.key = inner.backlog.insert(startTag, req)
	req.queued = true
	flw.queuedCount++
	inner.metrics.SetBacklogLen(inner.backlog.len())
	return nil
}

// dispatchLocked admits req into the serving pool: increments serving,
// advances the virtual clock to the request's start tag, constructs a
// Guard, and delivers it. Must be called with the lock held.
func (inner *fairQueueInner[F]) dispatchLocked(q *FairQueue[F], req *request[F]) {
	inner.serving++
	inner.virtualTime = req.startTag

	g := &Guard[F]{queue: q, flowID: req.flowID, startedAt: time.Now()}
	runtime.SetFinalizer(g, finalizeGuard[F])

	inner.metrics.SetServing(inner.serving)
	inner.metrics.SetVirtualTime(inner.virtualTime)

	// resultCh has capacity 1 and is written exactly once, so this never
	// blocks, whether or not the caller is still listening.
	req.resultCh <- g
}

// release is invoked by Guard.Close. It updates the flow's smoothed cost
// estimate, decrements serving, and dispatches the next backlog entry.
func (q *FairQueue[F]) release(flowID F, actualCost VirtualTime) {
	q.inner.mu.Lock()
	defer q.inner.mu.Unlock()

	if flw, ok := q.inner.flows.get(flowID); ok {
		// Exponentially smoothed estimate, alpha = 1/5: heavier weight on
		// history for stability.
		flw.costAvg = (flw.costAvg*4 + actualCost) / 5
	}
	q.inner.serving--
	q.inner.metrics.SetServing(q.inner.serving)
	q.inner.metrics.IncCompleted()
	q.inner.metrics.ObserveCost(float64(actualCost))

	q.inner.tryPickupNextLocked(q)
}

// tryPickupNextLocked pops the minimum-start-tag backlog entry, if any, and
// dispatches it. Must be called with the lock held.
func (inner *fairQueueInner[F]) tryPickupNextLocked(q *FairQueue[F]) {
	req, ok := inner.backlog.popMin()
	if !ok {
		return
	}
	req.queued = false
	req.flow.queuedCount--
	inner.dispatchLocked(q, req)
	inner.metrics.SetBacklogLen(inner.backlog.len())
}

// ReapIdle removes flow entries that have been idle for at least maxAge of
// virtual time (previous_finish_tag <= virtual_time - maxAge) and that have
// no requests currently in the backlog. It returns the number of flows
// removed. Flow entries are never reclaimed automatically (spec.md §9); an
// implementation serving unbounded distinct flow identities should call
// this periodically (internal/queueservice/core.IdleReaper does exactly that).
func (q *FairQueue[F]) ReapIdle(maxAge VirtualTime) int {
	q.inner.mu.Lock()
	defer q.inner.mu.Unlock()

	if q.inner.virtualTime < maxAge {
		return 0
	}
	cutoff := q.inner.virtualTime - maxAge

	var stale []F
	q.inner.flows.forEach(func(id F, f *flow) {
		if f.queuedCount == 0 && f.previousFinishTag <= cutoff {
			stale = append(stale, id)
		}
	})
	for _, id := range stale {
		q.inner.flows.delete(id)
	}
	return len(stale)
}

// Stats is a point-in-time snapshot of scheduler state, useful for tests and
// demos.
type Stats struct {
	Serving     uint32
	BacklogLen  int
	VirtualTime VirtualTime
	Flows       int
}

// Snapshot returns the current Stats.
func (q *FairQueue[F]) Snapshot() Stats {
	q.inner.mu.Lock()
	defer q.inner.mu.Unlock()
	return Stats{
		Serving:     q.inner.serving,
		BacklogLen:  q.inner.backlog.len(),
		VirtualTime: q.inner.virtualTime,
		Flows:       q.inner.flows.len(),
	}
}
