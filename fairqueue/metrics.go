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

// Metrics is an optional observability hook a FairQueue reports into. It is
// kept dependency-free here so the core scheduler never imports Prometheus
// directly; internal/queueservice/telemetry/metrics implements this
// interface on top of github.com/prometheus/client_golang and is wired in
// via WithMetrics. All methods must be safe to call while the scheduler's
// internal mutex is held, and must not block or re-enter the scheduler.
type Metrics interface {
	SetServing(n uint32)
	SetBacklogLen(n int)
	SetVirtualTime(t VirtualTime)
	IncAcquired()
	IncOverloaded()
	IncCanceled()
	IncCompleted()
	ObserveCost(microseconds float64)
}

// noopMetrics is used when no Metrics implementation is configured.
type noopMetrics struct{}

func (noopMetrics) SetServing(uint32)        {}
func (noopMetrics) SetBacklogLen(int)        {}
func (noopMetrics) SetVirtualTime(VirtualTime) {}
func (noopMetrics) IncAcquired()             {}
func (noopMetrics) IncOverloaded()           {}
func (noopMetrics) IncCanceled()             {}
func (noopMetrics) IncCompleted()            {}
func (noopMetrics) ObserveCost(float64)      {}
