// Package benchmarks compares FairQueue's weighted fair-share admission
// against a naive fixed-capacity limiter under concurrent load, to quantify
// the cost of fairness bookkeeping relative to a plain atomic counter.
package benchmarks

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"vsa/fairqueue"
)

func BenchmarkAtomicLimiterUncontended(b *testing.B) {
	lim := NewAtomicLimiter(1 << 20)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if lim.TryConsume(1) {
			lim.Refund(1)
		}
	}
}

func BenchmarkFairQueueUncontended(b *testing.B) {
	q := fairqueue.NewFairQueue[int](1<<20, 1<<20)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g, err := q.Acquire(ctx, 0, 1)
		if err != nil {
			b.Fatalf("Acquire: %v", err)
		}
		g.Close()
	}
}

func benchmarkAtomicLimiterConcurrent(b *testing.B, goroutines int) {
	lim := NewAtomicLimiter(int64(goroutines))
	b.ResetTimer()
	b.SetParallelism(goroutines)
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			for !lim.TryConsume(1) {
			}
			lim.Refund(1)
		}
	})
}

func benchmarkFairQueueConcurrent(b *testing.B, goroutines int) {
	q := fairqueue.NewFairQueue[int](1<<16, uint32(goroutines))
	ctx := context.Background()
	b.ResetTimer()
	b.SetParallelism(goroutines)

	var counter int64
	var mu sync.Mutex
	next := func() int {
		mu.Lock()
		defer mu.Unlock()
		counter++
		return int(counter) % goroutines
	}

	b.RunParallel(func(pb *testing.PB) {
		flow := next()
		for pb.Next() {
			g, err := q.Acquire(ctx, flow, 1)
			if err != nil {
				b.Fatalf("Acquire: %v", err)
			}
			g.Close()
		}
	})
}

func BenchmarkConcurrentAdmission(b *testing.B) {
	for _, n := range []int{2, 8, 32} {
		b.Run(fmt.Sprintf("AtomicLimiter/%d", n), func(b *testing.B) {
			benchmarkAtomicLimiterConcurrent(b, n)
		})
		b.Run(fmt.Sprintf("FairQueue/%d", n), func(b *testing.B) {
			benchmarkFairQueueConcurrent(b, n)
		})
	}
}
