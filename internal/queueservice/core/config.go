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

// Package core hosts the long-lived pieces of the fair-queue demo service
// that sit around the scheduler itself: threshold bookkeeping for the
// end-of-run summary and the idle-flow reaper.
package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	thresholdsMu sync.Mutex
	thresholds   = map[string]string{}
)

// SetThresholdInt64 records a configured integer knob for the final summary.
func SetThresholdInt64(name string, v int64) {
	thresholdsMu.Lock()
	defer thresholdsMu.Unlock()
	thresholds[name] = fmt.Sprintf("%d", v)
}

// SetThresholdDuration records a configured duration knob for the final summary.
func SetThresholdDuration(name string, v fmt.Stringer) {
	thresholdsMu.Lock()
	defer thresholdsMu.Unlock()
	thresholds[name] = v.String()
}

// SetThresholdString records a configured string knob for the final summary.
func SetThresholdString(name, v string) {
	thresholdsMu.Lock()
	defer thresholdsMu.Unlock()
	thresholds[name] = v
}

// SetThresholdBool records a configured boolean knob for the final summary.
func SetThresholdBool(name string, v bool) {
	thresholdsMu.Lock()
	defer thresholdsMu.Unlock()
	thresholds[name] = fmt.Sprintf("%v", v)
}

func getThresholdSnapshot() map[string]string {
	thresholdsMu.Lock()
	defer thresholdsMu.Unlock()
	out := make(map[string]string, len(thresholds))
	for k, v := range thresholds {
		out[k] = v
	}
	return out
}

// PrintConfiguredThresholds prints every SetThreshold* value recorded so
// far, in the same columnar style as the teacher's final persistence
// summary.
func PrintConfiguredThresholds() {
	snap := getThresholdSnapshot()
	if len(snap) == 0 {
		return
	}
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sep := strings.Repeat("-", 60)
	fmt.Println("Configured thresholds")
	fmt.Println(sep)
	fmt.Printf("%-30s %24s\n", "Name", "Value")
	fmt.Println(sep)
	for _, k := range keys {
		fmt.Printf("%-30s %24s\n", k, snap[k])
	}
	fmt.Println(sep)
}

func resetThresholdsForTests() {
	thresholdsMu.Lock()
	defer thresholdsMu.Unlock()
	thresholds = map[string]string{}
}
