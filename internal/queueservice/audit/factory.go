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
	"database/sql"
	"fmt"
	"time"
)

// Options holds the knobs needed to build any of the demo adapters below.
type Options struct {
	RedisAddr      string
	RedisMarkerTTL time.Duration
	KafkaTopic     string
	DB             *sql.DB
	FilePath       string
}

// BuildSink selects an audit Sink by adapter name, mirroring the teacher's
// persistence.BuildPersister switch. "mock" and "" both select the
// console-logging sink so a fresh checkout runs without any external
// service.
func BuildSink(adapter string, opts Options) (Sink, error) {
	switch adapter {
	case "", "mock":
		return NewMockSink(), nil
	case "redis":
		var client Evaler
		if opts.RedisAddr != "" {
			client = NewGoRedisEvaler(opts.RedisAddr)
		} else {
			client = LoggingEvaler{}
		}
		return NewRedisSink(client, opts.RedisMarkerTTL), nil
	case "kafka":
		topic := opts.KafkaTopic
		if topic == "" {
			topic = "fairqueue.admission"
		}
		return NewKafkaSink(LoggingProducer{}, topic), nil
	case "postgres":
		if opts.DB == nil {
			return nil, fmt.Errorf("audit: postgres adapter requires a *sql.DB")
		}
		return NewPostgresSink(opts.DB), nil
	case "file":
		if opts.FilePath == "" {
			return nil, fmt.Errorf("audit: file adapter requires a FilePath")
		}
		return NewFileSink(opts.FilePath)
	default:
		return nil, fmt.Errorf("audit: unknown adapter %q", adapter)
	}
}
