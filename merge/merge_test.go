package merge_test

import (
	"context"
	"testing"

	"github.com/katalvlaran/waterz-go/merge"
	"github.com/katalvlaran/waterz-go/pqueue"
	"github.com/katalvlaran/waterz-go/region"
	"github.com/katalvlaran/waterz-go/score"
	"github.com/katalvlaran/waterz-go/stats"
	"github.com/katalvlaran/waterz-go/unmerge"
	"github.com/katalvlaran/waterz-go/visitor"
	"github.com/katalvlaran/waterz-go/volume"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMergeUntil_TwoRegionsCut builds three nodes 1-2-3 with a strong
// affinity on (1,2) and a weak one on (2,3); merging with a strict
// threshold should join 1 and 2 but leave 3 separate.
func TestMergeUntil_TwoRegionsCut(t *testing.T) {
	provider := stats.NewMax()
	g := region.NewGraph(3, region.Callbacks{Combine: func(dst, src region.EdgeID) {
		provider.Combine(uint64(dst), uint64(src))
	}})
	e12, err := g.AddEdge(1, 2)
	require.NoError(t, err)
	e23, err := g.AddEdge(2, 3)
	require.NoError(t, err)
	provider.InitFromAffinities(uint64(e12), []float64{0.9})
	provider.InitFromAffinities(uint64(e23), []float64{0.1})

	eng, err := merge.New(g, merge.Config{
		Provider: provider,
		Scorer:   score.AscendingScorer{},
		Queue:    pqueue.NewBinaryHeap(),
	})
	require.NoError(t, err)

	h := visitor.NewHistory()
	// threshold 0.5 in score space (score = 1 - affinity): merges anything
	// with affinity >= 0.5.
	n, err := eng.MergeUntil(context.Background(), 0.5, h.Hooks())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, g.IsLive(1))
	assert.False(t, g.IsLive(2))
	assert.True(t, g.IsLive(3))
	assert.Equal(t, region.NodeID(1), g.Resolve(2))
}

func TestMergeUntil_ChainOfThreeCollapsesFully(t *testing.T) {
	provider := stats.NewMax()
	g := region.NewGraph(3, region.Callbacks{Combine: func(dst, src region.EdgeID) {
		provider.Combine(uint64(dst), uint64(src))
	}})
	e12, _ := g.AddEdge(1, 2)
	e23, _ := g.AddEdge(2, 3)
	provider.InitFromAffinities(uint64(e12), []float64{0.9})
	provider.InitFromAffinities(uint64(e23), []float64{0.8})

	eng, err := merge.New(g, merge.Config{
		Provider: provider,
		Scorer:   score.AscendingScorer{},
		Queue:    pqueue.NewBinaryHeap(),
	})
	require.NoError(t, err)

	n, err := eng.MergeUntil(context.Background(), 1.0, visitor.NoopHooks())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, region.NodeID(1), g.Resolve(3))
}

func TestMergeUntil_AntiMergeHonored(t *testing.T) {
	provider := stats.NewMax()
	g := region.NewGraph(2, region.Callbacks{Combine: func(dst, src region.EdgeID) {
		provider.Combine(uint64(dst), uint64(src))
	}})
	e12, _ := g.AddEdge(1, 2)
	provider.InitFromAffinities(uint64(e12), []float64{0.9})

	eng, err := merge.New(g, merge.Config{
		Provider: provider,
		Scorer:   score.AscendingScorer{},
		Queue:    pqueue.NewBinaryHeap(),
	})
	require.NoError(t, err)

	tr := unmerge.NewTracker([][][]uint32{{{1}, {2}}})
	h := visitor.NewHistory()
	hooks := visitor.ConstrainedHistory(h, tr)

	n, err := eng.MergeUntil(context.Background(), 1.0, hooks)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.True(t, g.IsLive(1))
	assert.True(t, g.IsLive(2))
}

func TestMergeUntil_ResumableAcrossMonotoneThresholds(t *testing.T) {
	provider := stats.NewMax()
	g := region.NewGraph(3, region.Callbacks{Combine: func(dst, src region.EdgeID) {
		provider.Combine(uint64(dst), uint64(src))
	}})
	e12, _ := g.AddEdge(1, 2)
	e23, _ := g.AddEdge(2, 3)
	provider.InitFromAffinities(uint64(e12), []float64{0.9}) // score 0.1
	provider.InitFromAffinities(uint64(e23), []float64{0.3}) // score 0.7

	eng, err := merge.New(g, merge.Config{
		Provider: provider,
		Scorer:   score.AscendingScorer{},
		Queue:    pqueue.NewBinaryHeap(),
	})
	require.NoError(t, err)

	n1, err := eng.MergeUntil(context.Background(), 0.5, visitor.NoopHooks())
	require.NoError(t, err)
	assert.Equal(t, 1, n1)
	assert.True(t, g.IsLive(3)) // edge (2,3) halted, not lost

	n2, err := eng.MergeUntil(context.Background(), 1.0, visitor.NoopHooks())
	require.NoError(t, err)
	assert.Equal(t, 1, n2)
	assert.Equal(t, region.NodeID(1), g.Resolve(3))
}

func TestMergeUntil_TrivialSingleRegion(t *testing.T) {
	provider := stats.NewMax()
	g := region.NewGraph(1, region.Callbacks{Combine: func(dst, src region.EdgeID) {
		provider.Combine(uint64(dst), uint64(src))
	}})

	eng, err := merge.New(g, merge.Config{
		Provider: provider,
		Scorer:   score.AscendingScorer{},
		Queue:    pqueue.NewBinaryHeap(),
	})
	require.NoError(t, err)

	n, err := eng.MergeUntil(context.Background(), 1.0, visitor.NoopHooks())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestExtractSegmentation_WritesResolvedRoots(t *testing.T) {
	provider := stats.NewMax()
	g := region.NewGraph(2, region.Callbacks{Combine: func(dst, src region.EdgeID) {
		provider.Combine(uint64(dst), uint64(src))
	}})
	e12, _ := g.AddEdge(1, 2)
	provider.InitFromAffinities(uint64(e12), []float64{0.9})

	eng, err := merge.New(g, merge.Config{
		Provider: provider,
		Scorer:   score.AscendingScorer{},
		Queue:    pqueue.NewBinaryHeap(),
	})
	require.NoError(t, err)

	_, err = eng.MergeUntil(context.Background(), 1.0, visitor.NoopHooks())
	require.NoError(t, err)

	seg, err := volume.NewSegmentation(2, 1, 1, []uint32{1, 2})
	require.NoError(t, err)
	require.NoError(t, eng.ExtractSegmentation(seg))
	assert.Equal(t, uint32(1), seg.Labels[0])
	assert.Equal(t, uint32(1), seg.Labels[1])
}

func TestExtractRegionGraph_SortedAndCurrent(t *testing.T) {
	provider := stats.NewMax()
	g := region.NewGraph(3, region.Callbacks{Combine: func(dst, src region.EdgeID) {
		provider.Combine(uint64(dst), uint64(src))
	}})
	e13, _ := g.AddEdge(1, 3)
	e12, _ := g.AddEdge(1, 2)
	provider.InitFromAffinities(uint64(e13), []float64{0.2})
	provider.InitFromAffinities(uint64(e12), []float64{0.7})

	eng, err := merge.New(g, merge.Config{
		Provider: provider,
		Scorer:   score.AscendingScorer{},
		Queue:    pqueue.NewBinaryHeap(),
	})
	require.NoError(t, err)

	edges, err := eng.ExtractRegionGraph()
	require.NoError(t, err)
	require.Len(t, edges, 2)
	assert.Equal(t, region.NodeID(1), edges[0].U)
	assert.Equal(t, region.NodeID(2), edges[0].V)
	assert.Equal(t, region.NodeID(1), edges[1].U)
	assert.Equal(t, region.NodeID(3), edges[1].V)
}

func TestNew_RejectsNilCapabilities(t *testing.T) {
	g := region.NewGraph(1, region.Callbacks{})
	_, err := merge.New(nil, merge.Config{})
	assert.ErrorIs(t, err, merge.ErrNilGraph)

	_, err = merge.New(g, merge.Config{})
	assert.ErrorIs(t, err, merge.ErrNilProvider)

	_, err = merge.New(g, merge.Config{Provider: stats.NewMax()})
	assert.ErrorIs(t, err, merge.ErrNilScorer)

	_, err = merge.New(g, merge.Config{Provider: stats.NewMax(), Scorer: score.AscendingScorer{}})
	assert.ErrorIs(t, err, merge.ErrNilQueue)
}
