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

import (
	"github.com/emirpasic/gods/trees/redblacktree"
)

// backlogKey orders waiting requests by virtual start tag, with a
// monotonically increasing per-insertion sequence number as a tiebreaker.
// This is the composite-key tie-breaking policy spec.md §4.2 recommends to
// avoid silently overwriting a waiter when two flows produce the same start
// tag (common early in a scheduler's life, while several flows are still
// idle at virtual_time 0).
type backlogKey struct {
	startTag VirtualTime
	seq      uint64
}

func compareBacklogKeys(a, b interface{}) int {
	ka, kb := a.(backlogKey), b.(backlogKey)
	switch {
	case ka.startTag < kb.startTag:
		return -1
	case ka.startTag > kb.startTag:
		return 1
	case ka.seq < kb.seq:
		return -1
	case ka.seq > kb.seq:
		return 1
	default:
		return 0
	}
}

// backlog is the ordered index of admitted-but-not-yet-serving requests,
// keyed by backlogKey. It is the direct Go analog of the original Rust
// source's `backlog: RBTree<VirtualTime, Request>`, built on the Go
// ecosystem's red-black tree (github.com/emirpasic/gods) instead of hand
// rolling one: the pack's own roshankhatrishin317-eng-ShinAPI module
// resolves the same library transitively, which is the signal this corpus
// already reaches for it.
type backlog[F comparable] struct {
	tree *redblacktree.Tree
	seq  uint64
}

func newBacklog[F comparable]() *backlog[F] {
	return &backlog[F]{tree: redblacktree.NewWith(compareBacklogKeys)}
}

func (b *backlog[F]) len() int { return b.tree.Size() }

// insert adds req to the backlog at the given start tag, assigning it the
// next sequence number, and returns the resulting composite key.
func (b *backlog[F]) insert(startTag VirtualTime, req *request[F]) backlogKey {
	b.seq++
	key := backlogKey{startTag: startTag, seq: b.seq}
	b.tree.Put(key, req)
	return key
}

// min returns the request with the smallest start tag without removing it.
func (b *backlog[F]) min() (*request[F], bool) {
	node := b.tree.Left()
	if node == nil {
		return nil, false
	}
	return node.Value.(*request[F]), true
}

// popMin removes and returns the request with the smallest start tag — the
// next request the dispatcher should admit, per spec.md §4.4.
func (b *backlog[F]) popMin() (*request[F], bool) {
	node := b.tree.Left()
	if node == nil {
		return nil, false
	}
	req := node.Value.(*request[F])
	b.tree.Remove(node.Key)
	return req, true
}

// max returns the request with the largest start tag without removing it —
// the worst (least fair) waiter, consulted by admission control.
func (b *backlog[F]) max() (*request[F], bool) {
	node := b.tree.Right()
	if node == nil {
		return nil, false
	}
	return node.Value.(*request[F]), true
}

// popMax removes and returns the request with the largest start tag, used
// to evict the worst waiter under overload.
func (b *backlog[F]) popMax() (*request[F], bool) {
	node := b.tree.Right()
	if node == nil {
		return nil, false
	}
	req := node.Value.(*request[F])
	b.tree.Remove(node.Key)
	return req, true
}

// removeIfPresent removes the entry at key if it is still in the backlog,
// reporting whether it was found. Used when a caller abandons a pending
// Acquire (context cancellation) and the request has not yet been
// dispatched or evicted by someone else.
func (b *backlog[F]) removeIfPresent(key backlogKey) bool {
	if _, found := b.tree.Get(key); !found {
		return false
	}
	b.tree.Remove(key)
	return true
}
