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
	"bufio"
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"
)

// FileSink is a buffered, append-only JSONL sink for Events, safe for
// concurrent use. It exists for local demos and offline replay where no
// Redis/Kafka/Postgres backend is available.
type FileSink struct {
	mu sync.Mutex
	f  *os.File
	w  *bufio.Writer

	lastFlush time.Time
}

// NewFileSink opens (or creates) the file at path in append mode behind a
// 1MiB buffered writer. Call Close when done.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileSink{f: f, w: bufio.NewWriterSize(f, 1<<20), lastFlush: time.Now()}, nil
}

func (s *FileSink) CommitBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	enc := json.NewEncoder(s.w)
	for _, e := range events {
		if e.EventID == "" {
			return errMissingEventID
		}
		if err := enc.Encode(&e); err != nil {
			// Best effort: flush and retry once.
			_ = s.w.Flush()
			if err := enc.Encode(&e); err != nil {
				return err
			}
		}
	}
	// Flush periodically to bound data loss on crash rather than on every
	// batch, the same cadence the teacher's file sink uses.
	if time.Since(s.lastFlush) > 100*time.Millisecond {
		_ = s.w.Flush()
		s.lastFlush = time.Now()
	}
	return nil
}

func (s *FileSink) PrintFinalMetrics() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.w.Flush()
}

// Close flushes and closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.w.Flush()
	return s.f.Close()
}

// ReadAllEvents reads an entire audit log file back as a slice. Intended
// for demo/replay tooling, not the hot path.
func ReadAllEvents(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []Event
	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 1<<20)
	scanner.Buffer(buf, 1<<26)
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err == nil {
			out = append(out, e)
		}
	}
	return out, scanner.Err()
}
