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

import "errors"

// ErrOverloaded is returned synchronously from Acquire when the backlog is
// full and the new request is not strictly fairer (smaller start tag) than
// the worst waiter currently queued. Non-retriable on the immediate path;
// callers may retry after a delay.
var ErrOverloaded = errors.New("fairqueue: overloaded")

// ErrCanceled is returned when an admitted request is cancelled before
// dispatch: either a fairer arrival evicted it from the backlog under
// overload, or the caller's context was done before a slot was granted.
var ErrCanceled = errors.New("fairqueue: canceled")
