package pqueue_test

import (
	"testing"

	"github.com/katalvlaran/waterz-go/pqueue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinaryHeap_PopsAscendingByScore(t *testing.T) {
	q := pqueue.NewBinaryHeap()
	q.Push(pqueue.Entry{Score: 0.5, Edge: 1})
	q.Push(pqueue.Entry{Score: 0.1, Edge: 2})
	q.Push(pqueue.Entry{Score: 0.9, Edge: 3})

	e, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, pqueue.EdgeID(2), e.Edge)

	e, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, pqueue.EdgeID(1), e.Edge)

	e, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, pqueue.EdgeID(3), e.Edge)

	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestBinaryHeap_TiesBreakByEdgeID(t *testing.T) {
	q := pqueue.NewBinaryHeap()
	q.Push(pqueue.Entry{Score: 0.5, Edge: 9})
	q.Push(pqueue.Entry{Score: 0.5, Edge: 3})
	q.Push(pqueue.Entry{Score: 0.5, Edge: 5})

	var order []pqueue.EdgeID
	for q.Len() > 0 {
		e, _ := q.Pop()
		order = append(order, e.Edge)
	}
	assert.Equal(t, []pqueue.EdgeID{3, 5, 9}, order)
}

func TestBinaryHeap_Len(t *testing.T) {
	q := pqueue.NewBinaryHeap()
	assert.Equal(t, 0, q.Len())
	q.Push(pqueue.Entry{Score: 0.1, Edge: 1})
	assert.Equal(t, 1, q.Len())
}

func TestBinningQueue_PopsAscendingAcrossBins(t *testing.T) {
	q := pqueue.NewBinningQueue(0, 1, 10)
	q.Push(pqueue.Entry{Score: 0.95, Edge: 1})
	q.Push(pqueue.Entry{Score: 0.05, Edge: 2})
	q.Push(pqueue.Entry{Score: 0.55, Edge: 3})

	e, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, pqueue.EdgeID(2), e.Edge)

	e, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, pqueue.EdgeID(3), e.Edge)

	e, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, pqueue.EdgeID(1), e.Edge)
}

func TestBinningQueue_TiesWithinBinBreakByEdgeID(t *testing.T) {
	q := pqueue.NewBinningQueue(0, 1, 1) // single bin: everything ties on score range
	q.Push(pqueue.Entry{Score: 0.5, Edge: 9})
	q.Push(pqueue.Entry{Score: 0.5, Edge: 2})

	e, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, pqueue.EdgeID(2), e.Edge)
}

func TestBinningQueue_Len(t *testing.T) {
	q := pqueue.NewBinningQueue(0, 1, 4)
	q.Push(pqueue.Entry{Score: 0.2, Edge: 1})
	q.Push(pqueue.Entry{Score: 0.8, Edge: 2})
	assert.Equal(t, 2, q.Len())
	_, _ = q.Pop()
	assert.Equal(t, 1, q.Len())
}
