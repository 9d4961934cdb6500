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

// Package fairqueue implements a weighted fair-share admission queue: a
// start-time-fair-queuing (SFQ) scheduler that mediates concurrent access to
// a bounded pool of serving slots across independent flows. Callers acquire
// a slot for a named flow with a weight; over time throughput is
// proportional to weight and no flow can starve another, even when flow
// costs differ by orders of magnitude.
//
// The scheduler is not distributed, not persistent, and not preemptive
// during service: once a slot is granted it runs to completion. It only
// guarantees bounded unfairness in the WFQ sense.
package fairqueue
