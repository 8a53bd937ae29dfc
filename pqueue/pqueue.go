// Package pqueue implements the two priority-queue realizations the merge
// engine can be configured with (spec §4.4): a binary heap, and a fixed-bin
// "binning queue" that buckets entries by score range and searches only the
// lowest non-empty bin on pop. Both pop in the same (score, edge) order.
//
// Both tolerate stale entries rather than trying to prevent them: an edge
// may be pushed more than once (once per rescore), and the merge engine
// recognizes and discards an entry whose Version no longer matches the
// edge's latest known score (spec §4.4, "stale entries are expected, not
// exceptional"). The binary heap here is grounded on prim_kruskal/prim.go's
// edgePQ wrapper around container/heap.
package pqueue

import "container/heap"

// EdgeID mirrors region.EdgeID without importing package region, keeping
// pqueue usable independent of the region graph's representation.
type EdgeID = uint64

// Entry is one scored edge occupying a queue slot. Version lets the merge
// engine recognize a stale pop: an edge is rescored by pushing a fresh
// Entry with Version bumped, without needing to remove the old one first.
type Entry struct {
	Score   float64
	Edge    EdgeID
	Version uint64
}

// Queue is the capability set the merge engine needs from a priority
// queue: push a (possibly stale-superseding) entry, and pop the minimum.
type Queue interface {
	Push(e Entry)
	Pop() (Entry, bool)
	Len() int
}

// heapSlice adapts []Entry to container/heap.Interface, breaking score
// ties by ascending edge id so that iteration order is deterministic
// independent of push order (spec §8, "Determinism under tie scores").
type heapSlice []Entry

func (h heapSlice) Len() int { return len(h) }
func (h heapSlice) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].Edge < h[j].Edge
}
func (h heapSlice) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *heapSlice) Push(x any)   { *h = append(*h, x.(Entry)) }
func (h *heapSlice) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// BinaryHeap is an exact, O(log n)-push/pop priority queue.
type BinaryHeap struct {
	h heapSlice
}

// NewBinaryHeap constructs an empty binary-heap queue.
func NewBinaryHeap() *BinaryHeap {
	return &BinaryHeap{}
}

func (q *BinaryHeap) Push(e Entry) { heap.Push(&q.h, e) }

func (q *BinaryHeap) Pop() (Entry, bool) {
	if q.h.Len() == 0 {
		return Entry{}, false
	}
	return heap.Pop(&q.h).(Entry), true
}

func (q *BinaryHeap) Len() int { return q.h.Len() }

// BinningQueue buckets entries into fixed-width bins over [min, max] and
// pops the minimum-scoring entry within the lowest non-empty bin, breaking
// ties by edge id. Because bins are ordered by score, that entry is the
// global minimum, so pop order is exact; a pop costs a linear scan of one
// bin's entries.
type BinningQueue struct {
	min, max float64
	bins     []([]Entry)
}

// NewBinningQueue builds a binning queue with the given bin count over
// [min, max]. Scores outside the range clamp to the nearest edge bin.
func NewBinningQueue(min, max float64, numBins int) *BinningQueue {
	if numBins < 1 {
		numBins = 1
	}
	return &BinningQueue{min: min, max: max, bins: make([][]Entry, numBins)}
}

func (q *BinningQueue) binOf(score float64) int {
	if q.max <= q.min {
		return 0
	}
	frac := (score - q.min) / (q.max - q.min)
	idx := int(frac * float64(len(q.bins)))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(q.bins) {
		idx = len(q.bins) - 1
	}
	return idx
}

func (q *BinningQueue) Push(e Entry) {
	b := q.binOf(e.Score)
	q.bins[b] = append(q.bins[b], e)
}

// Pop scans bins ascending and returns the minimum (score, edge) entry
// within the first non-empty bin, removing it via swap-remove.
func (q *BinningQueue) Pop() (Entry, bool) {
	for b := range q.bins {
		bucket := q.bins[b]
		if len(bucket) == 0 {
			continue
		}
		best := 0
		for i := 1; i < len(bucket); i++ {
			if bucket[i].Score < bucket[best].Score ||
				(bucket[i].Score == bucket[best].Score && bucket[i].Edge < bucket[best].Edge) {
				best = i
			}
		}
		entry := bucket[best]
		last := len(bucket) - 1
		bucket[best] = bucket[last]
		q.bins[b] = bucket[:last]
		return entry, true
	}
	return Entry{}, false
}

func (q *BinningQueue) Len() int {
	n := 0
	for _, b := range q.bins {
		n += len(b)
	}
	return n
}
