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

// Package audit batches fairqueue admission decisions off the hot path and
// persists them idempotently to a pluggable backend. The scheduler itself
// stays non-persistent; audit is an observer, never a dependency of
// Acquire/Close.
package audit

import (
	"context"
	"errors"
)

// Decision is the outcome of a single admission attempt.
type Decision string

const (
	DecisionAdmitted   Decision = "admitted"
	DecisionQueued     Decision = "queued"
	DecisionOverloaded Decision = "overloaded"
	DecisionEvicted    Decision = "evicted"
	DecisionCompleted  Decision = "completed"
)

// Event records one admission-path transition for one flow. EventID is the
// idempotency key: adapters must ensure that replaying the same EventID has
// no additional effect, the same guarantee the teacher's CommitEntry.CommitID
// gives its persisters.
type Event struct {
	EventID          string
	FlowID           string
	Decision         Decision
	StartTag         uint64
	FinishTag        uint64
	ActualCostMicros int64
}

// Sink is the interface for any audit backend. Implementations must treat
// CommitBatch as idempotent per Event.EventID: retried batches (after a
// timeout where the caller can't tell if the write landed) must not double
// count.
type Sink interface {
	CommitBatch(ctx context.Context, events []Event) error
	// PrintFinalMetrics prints a single end-of-process summary, mirroring
	// the teacher's Persister.PrintFinalMetrics. Safe to call after all
	// commits are done.
	PrintFinalMetrics()
}

var errMissingEventID = errors.New("audit: Event.EventID must be set")
