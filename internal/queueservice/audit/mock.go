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

package audit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// NewMockSink creates a sink that prints batches to the console. Used for
// demo wiring when no real backend is configured.
func NewMockSink() Sink {
	return &mockSink{}
}

type mockSink struct {
	mu           sync.Mutex
	totalEvents  int64
	totalBatches int64
	byDecision   map[Decision]int64
}

func (s *mockSink) CommitBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	fmt.Printf("[%s] Persisting audit batch of %d events...\n", time.Now().Format(time.RFC3339), len(events))
	for _, e := range events {
		if e.EventID == "" {
			return errMissingEventID
		}
		fmt.Printf("  - FLOW: %-16s DECISION: %-10s START: %-8d FINISH: %-8d COST_US: %d\n",
			e.FlowID, e.Decision, e.StartTag, e.FinishTag, e.ActualCostMicros)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byDecision == nil {
		s.byDecision = make(map[Decision]int64)
	}
	for _, e := range events {
		s.byDecision[e.Decision]++
	}
	s.totalEvents += int64(len(events))
	s.totalBatches++
	return nil
}

func (s *mockSink) PrintFinalMetrics() {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Printf("[%s] Final audit metrics: %d events in %d batches\n",
		time.Now().Format(time.RFC3339), s.totalEvents, s.totalBatches)
	for decision, n := range s.byDecision {
		fmt.Printf("  %-10s %d\n", decision, n)
	}
}

// InMemorySink records every committed event verbatim. It's meant for tests
// that need to assert on exactly what the batching worker flushed.
type InMemorySink struct {
	mu     sync.Mutex
	Events []Event
}

func NewInMemorySink() *InMemorySink { return &InMemorySink{} }

func (s *InMemorySink) CommitBatch(ctx context.Context, events []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range events {
		if e.EventID == "" {
			return errMissingEventID
		}
	}
	s.Events = append(s.Events, events...)
	return nil
}

func (s *InMemorySink) PrintFinalMetrics() {}

// Snapshot returns a copy of the events committed so far.
func (s *InMemorySink) Snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.Events))
	copy(out, s.Events)
	return out
}
