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

// Package metrics implements fairqueue.Metrics on top of
// github.com/prometheus/client_golang, the same library the teacher wires
// for its own churn telemetry endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"vsa/fairqueue"
)

// Prometheus is a fairqueue.Metrics implementation backed by a dedicated
// registry, so multiple ShardedFairQueue shards (or multiple FairQueue
// instances in tests) can each register their own set of label values
// without colliding.
type Prometheus struct {
	serving     prometheus.Gauge
	backlogLen  prometheus.Gauge
	virtualTime prometheus.Gauge
	acquired    prometheus.Counter
	overloaded  prometheus.Counter
	canceled    prometheus.Counter
	completed   prometheus.Counter
	cost        prometheus.Histogram
}

// New builds a Prometheus metrics adapter labeled with name (e.g. a shard
// name) and registers it with reg.
func New(reg prometheus.Registerer, name string) *Prometheus {
	labels := prometheus.Labels{"queue": name}
	p := &Prometheus{
		serving: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fairqueue", Name: "serving", Help: "Current number of guards holding a serving slot.",
			ConstLabels: labels,
		}),
		backlogLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fairqueue", Name: "backlog_len", Help: "Current number of waiters parked in the backlog.",
			ConstLabels: labels,
		}),
		virtualTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fairqueue", Name: "virtual_time", Help: "Current scheduler virtual clock value.",
			ConstLabels: labels,
		}),
		acquired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fairqueue", Name: "acquired_total", Help: "Total Acquire calls admitted (dispatched or queued).",
			ConstLabels: labels,
		}),
		overloaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fairqueue", Name: "overloaded_total", Help: "Total Acquire calls rejected with ErrOverloaded.",
			ConstLabels: labels,
		}),
		canceled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fairqueue", Name: "canceled_total", Help: "Total waiters evicted by a fairer arrival or canceled by their caller.",
			ConstLabels: labels,
		}),
		completed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fairqueue", Name: "completed_total", Help: "Total guards released via Close.",
			ConstLabels: labels,
		}),
		cost: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fairqueue", Name: "actual_cost_microseconds", Help: "Observed service time per guard, in microseconds.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(100, 2, 14),
		}),
	}
	reg.MustRegister(p.serving, p.backlogLen, p.virtualTime, p.acquired, p.overloaded, p.canceled, p.completed, p.cost)
	return p
}

func (p *Prometheus) SetServing(n uint32)               { p.serving.Set(float64(n)) }
func (p *Prometheus) SetBacklogLen(n int)                { p.backlogLen.Set(float64(n)) }
func (p *Prometheus) SetVirtualTime(t fairqueue.VirtualTime) { p.virtualTime.Set(float64(t)) }
func (p *Prometheus) IncAcquired()                       { p.acquired.Inc() }
func (p *Prometheus) IncOverloaded()                     { p.overloaded.Inc() }
func (p *Prometheus) IncCanceled()                       { p.canceled.Inc() }
func (p *Prometheus) IncCompleted()                      { p.completed.Inc() }
func (p *Prometheus) ObserveCost(microseconds float64)   { p.cost.Observe(microseconds) }

var _ fairqueue.Metrics = (*Prometheus)(nil)
