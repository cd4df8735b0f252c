// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Monotonic deadline queue used for event timeouts.

// Package timerq implements a min-heap of deadlines. Entries with equal
// deadlines pop in insertion order.
package timerq

import (
	"container/heap"
	"time"
)

// Entry is a queued deadline. It stays valid after removal and may be
// inspected, but must not be pushed twice.
type Entry[T any] struct {
	Deadline time.Time
	Value    T
	seq      uint64
	index    int
}

// Queued reports whether e is still in a queue.
func (e *Entry[T]) Queued() bool {
	return e != nil && e.index >= 0
}

type entryHeap[T any] []*Entry[T]

func (h entryHeap[T]) Len() int { return len(h) }

func (h entryHeap[T]) Less(i, j int) bool {
	if h[i].Deadline.Equal(h[j].Deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].Deadline.Before(h[j].Deadline)
}

func (h entryHeap[T]) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap[T]) Push(x any) {
	e := x.(*Entry[T])
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap[T]) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Queue is not safe for concurrent use.
type Queue[T any] struct {
	h   entryHeap[T]
	seq uint64
}

// Push schedules v at deadline.
func (q *Queue[T]) Push(deadline time.Time, v T) *Entry[T] {
	q.seq++
	e := &Entry[T]{Deadline: deadline, Value: v, seq: q.seq}
	heap.Push(&q.h, e)
	return e
}

// Remove unschedules e. It returns false when e is not queued.
func (q *Queue[T]) Remove(e *Entry[T]) bool {
	if !e.Queued() || e.index >= len(q.h) || q.h[e.index] != e {
		return false
	}
	heap.Remove(&q.h, e.index)
	return true
}

// Peek returns the nearest entry without removing it.
func (q *Queue[T]) Peek() (*Entry[T], bool) {
	if len(q.h) == 0 {
		return nil, false
	}
	return q.h[0], true
}

// PopExpired removes and returns the nearest entry if its deadline is not after now.
func (q *Queue[T]) PopExpired(now time.Time) (*Entry[T], bool) {
	if len(q.h) == 0 || q.h[0].Deadline.After(now) {
		return nil, false
	}
	return heap.Pop(&q.h).(*Entry[T]), true
}

// Until returns the time left before the nearest deadline, clamped at zero.
// ok is false when the queue is empty.
func (q *Queue[T]) Until(now time.Time) (d time.Duration, ok bool) {
	e, ok := q.Peek()
	if !ok {
		return 0, false
	}
	if d = e.Deadline.Sub(now); d < 0 {
		d = 0
	}
	return d, true
}

func (q *Queue[T]) Len() int { return len(q.h) }
