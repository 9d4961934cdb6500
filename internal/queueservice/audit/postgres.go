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
	"database/sql"
	"fmt"
	"time"
)

// Postgres schema (reference):
//
// CREATE TABLE IF NOT EXISTS admission_events (
//   event_id TEXT PRIMARY KEY,
//   flow_id TEXT NOT NULL,
//   decision TEXT NOT NULL,
//   start_tag BIGINT NOT NULL,
//   finish_tag BIGINT NOT NULL,
//   actual_cost_us BIGINT NOT NULL,
//   ts TIMESTAMPTZ NOT NULL DEFAULT now()
// );
// CREATE INDEX IF NOT EXISTS idx_admission_events_flow ON admission_events(flow_id);

// PostgresSink applies events idempotently: a replayed EventID hits the
// primary key and is silently skipped via ON CONFLICT DO NOTHING.
type PostgresSink struct {
	db             *sql.DB
	defaultTimeout time.Duration
}

func NewPostgresSink(db *sql.DB) *PostgresSink {
	return &PostgresSink{db: db, defaultTimeout: 10 * time.Second}
}

func (p *PostgresSink) CommitBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.defaultTimeout)
		defer cancel()
	}

	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, e := range events {
		if e.EventID == "" {
			return errMissingEventID
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO admission_events(event_id, flow_id, decision, start_tag, finish_tag, actual_cost_us)
			 VALUES ($1,$2,$3,$4,$5,$6) ON CONFLICT DO NOTHING`,
			e.EventID, e.FlowID, string(e.Decision), e.StartTag, e.FinishTag, e.ActualCostMicros); err != nil {
			return fmt.Errorf("insert admission_events(%s): %w", e.EventID, err)
		}
	}
	return tx.Commit()
}

func (p *PostgresSink) PrintFinalMetrics() {}
