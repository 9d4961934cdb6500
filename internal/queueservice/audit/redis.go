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

	redis "github.com/redis/go-redis/v9"
)

// Evaler is a minimal abstraction over a Redis client's EVAL, so RedisSink
// can be unit tested without a live server.
type Evaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error)
}

// redisMarkerScript marks an event as applied (SETNX) and, only on first
// application, bumps a per-flow counter and sets the marker's expiry. A
// replayed EventID is a no-op: the SETNX fails and nothing else runs.
const redisMarkerScript = `
local marker_key = KEYS[1]
local counter_key = KEYS[2]
local ttl = tonumber(ARGV[1])
local applied = redis.call("SETNX", marker_key, "1")
if applied == 1 then
	redis.call("HINCRBY", counter_key, "count", 1)
	redis.call("EXPIRE", marker_key, ttl)
end
return applied
`

// RedisSink persists audit events idempotently in Redis using the same
// SETNX-marker dedup strategy as the teacher's persistence.RedisPersister,
// now keyed on audit EventID instead of a VSA CommitID.
type RedisSink struct {
	client    Evaler
	markerTTL time.Duration

	mu           sync.Mutex
	totalEvents  int64
	totalBatches int64
}

func NewRedisSink(client Evaler, markerTTL time.Duration) *RedisSink {
	if markerTTL <= 0 {
		markerTTL = 24 * time.Hour
	}
	return &RedisSink{client: client, markerTTL: markerTTL}
}

func MarkerKey(eventID string) string  { return "fq:audit:marker:" + eventID }
func CounterKey(flowID string) string  { return "fq:audit:count:" + flowID }

func (r *RedisSink) CommitBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ttlSeconds := int64(r.markerTTL / time.Second)
	for _, e := range events {
		if e.EventID == "" {
			return errMissingEventID
		}
		keys := []string{MarkerKey(e.EventID), CounterKey(e.FlowID)}
		if _, err := r.client.Eval(ctx, redisMarkerScript, keys, ttlSeconds); err != nil {
			return fmt.Errorf("redis audit eval event=%s flow=%s: %w", e.EventID, e.FlowID, err)
		}
	}
	r.mu.Lock()
	r.totalEvents += int64(len(events))
	r.totalBatches++
	r.mu.Unlock()
	return nil
}

func (r *RedisSink) PrintFinalMetrics() {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Printf("[%s] Final redis audit metrics: %d events in %d batches\n",
		time.Now().Format(time.RFC3339), r.totalEvents, r.totalBatches)
}

// GoRedisEvaler wraps a real go-redis client as an Evaler.
type GoRedisEvaler struct{ c *redis.Client }

func NewGoRedisEvaler(addr string) *GoRedisEvaler {
	return &GoRedisEvaler{c: redis.NewClient(&redis.Options{Addr: addr})}
}

func (g *GoRedisEvaler) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	return g.c.Eval(ctx, script, keys, args...).Result()
}

// LoggingEvaler is a demo client that logs instead of talking to a real
// server, letting the audit adapter be selected without a Redis instance.
type LoggingEvaler struct{}

func (LoggingEvaler) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	fmt.Printf("[redis-audit-demo] EVAL script(len=%d) KEYS=%v ARGS=%v\n", len(script), keys, args)
	return int64(1), nil
}
