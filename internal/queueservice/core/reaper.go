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

package core

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"vsa/fairqueue"
)

// IdleReaper periodically calls ReapIdle on a scheduler, the eviction-loop
// half of the teacher's Worker (its commit-loop half has no analog here:
// fairqueue is explicitly non-persistent). Flow entries are never reclaimed
// automatically by FairQueue itself, so a long-running service with
// unbounded flow cardinality should run one of these.
type IdleReaper struct {
	reap     func(maxAge fairqueue.VirtualTime) int
	maxAge   fairqueue.VirtualTime
	interval time.Duration

	stopChan chan struct{}
	wg       sync.WaitGroup
	stopped  uint32
}

// Reapable is satisfied by both *fairqueue.FairQueue[F] and
// *fairqueue.ShardedFairQueue[F].
type Reapable interface {
	ReapIdle(maxAge fairqueue.VirtualTime) int
}

// NewIdleReaper builds a reaper over q, reclaiming flows idle for at least
// maxAge of virtual time, checked every interval.
func NewIdleReaper(q Reapable, maxAge fairqueue.VirtualTime, interval time.Duration) *IdleReaper {
	return &IdleReaper{
		reap:     q.ReapIdle,
		maxAge:   maxAge,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start launches the background reap loop.
func (r *IdleReaper) Start() {
	fmt.Println("Starting idle-flow reaper...")
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.loop()
	}()
}

// Stop gracefully stops the reaper.
func (r *IdleReaper) Stop() {
	if !atomic.CompareAndSwapUint32(&r.stopped, 0, 1) {
		return
	}
	fmt.Println("Stopping idle-flow reaper...")
	close(r.stopChan)
	r.wg.Wait()
}

func (r *IdleReaper) loop() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := r.reap(r.maxAge); n > 0 {
				fmt.Printf("Reaped %d idle flow(s)\n", n)
			}
		case <-r.stopChan:
			return
		}
	}
}
