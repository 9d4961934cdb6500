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
	"encoding/json"
	"fmt"
	"time"
)

// Producer is a minimal abstraction over a Kafka client. As with the
// teacher's persistence.KafkaProducer, we avoid importing a specific Kafka
// library here:
//   - Enable the producer's idempotence (enable.idempotence=true)
//   - Use EventID as the message key, so broker dedup and per-key ordering
//     are preserved
//   - Acks=all is recommended
type Producer interface {
	Produce(ctx context.Context, topic string, key []byte, value []byte, headers map[string]string) error
}

// KafkaSink publishes audit events as Kafka messages. It does not
// materialize state locally; downstream consumers track the last applied
// EventID per flow and ignore replays.
type KafkaSink struct {
	producer Producer
	topic    string
}

func NewKafkaSink(p Producer, topic string) *KafkaSink {
	return &KafkaSink{producer: p, topic: topic}
}

type kafkaMessage struct {
	EventID          string   `json:"event_id"`
	FlowID           string   `json:"flow_id"`
	Decision         Decision `json:"decision"`
	StartTag         uint64   `json:"start_tag"`
	FinishTag        uint64   `json:"finish_tag"`
	ActualCostMicros int64    `json:"actual_cost_us"`
	TsUnixMs         int64    `json:"ts_unix_ms"`
}

func (k *KafkaSink) CommitBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	nowMs := time.Now().UnixMilli()
	for _, e := range events {
		if e.EventID == "" {
			return errMissingEventID
		}
		msg := kafkaMessage{
			EventID:          e.EventID,
			FlowID:           e.FlowID,
			Decision:         e.Decision,
			StartTag:         e.StartTag,
			FinishTag:        e.FinishTag,
			ActualCostMicros: e.ActualCostMicros,
			TsUnixMs:         nowMs,
		}
		b, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("marshal kafka audit message: %w", err)
		}
		headers := map[string]string{"content-type": "application/json"}
		if err := k.producer.Produce(ctx, k.topic, []byte(e.EventID), b, headers); err != nil {
			return fmt.Errorf("kafka produce event=%s flow=%s: %w", e.EventID, e.FlowID, err)
		}
	}
	return nil
}

func (k *KafkaSink) PrintFinalMetrics() {}

// LoggingProducer is a demo producer that logs instead of talking to a
// real broker.
type LoggingProducer struct{}

func (LoggingProducer) Produce(ctx context.Context, topic string, key []byte, value []byte, headers map[string]string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	fmt.Printf("[kafka-audit-demo] TOPIC=%s KEY=%s VALUE=%s\n", topic, string(key), string(value))
	return nil
}
