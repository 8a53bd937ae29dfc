// Package merge implements the iterative best-first merge engine (spec
// §4.5): repeatedly pop the best-scoring live edge, validate it against
// deletion/staleness/threshold/constraint checks, merge its endpoints, and
// rescore/requeue the survivor's touched edges, until the queue is empty or
// a threshold halts the run in a resumable state.
package merge

import (
	"context"
	"errors"
	"sort"

	"github.com/katalvlaran/waterz-go/pqueue"
	"github.com/katalvlaran/waterz-go/region"
	"github.com/katalvlaran/waterz-go/score"
	"github.com/katalvlaran/waterz-go/stats"
	"github.com/katalvlaran/waterz-go/telemetry"
	"github.com/katalvlaran/waterz-go/visitor"
	"github.com/katalvlaran/waterz-go/volume"
)

// Sentinel errors for the merge engine.
var (
	// ErrNilProvider indicates Config.Provider was nil.
	ErrNilProvider = errors.New("merge: statistics provider is required")
	// ErrNilScorer indicates Config.Scorer was nil.
	ErrNilScorer = errors.New("merge: scorer is required")
	// ErrNilQueue indicates Config.Queue was nil.
	ErrNilQueue = errors.New("merge: queue is required")
	// ErrNilGraph indicates New was called with a nil graph.
	ErrNilGraph = errors.New("merge: graph is required")
)

// Config bundles the pluggable capabilities the merge engine is built from
// (spec §9, "Statistic/queue pluggability"): a statistics provider, a
// scorer with a fixed polarity, a priority queue realization, and the
// ambient logger/metrics pair.
type Config struct {
	Provider stats.Provider
	Scorer   score.Scorer
	Queue    pqueue.Queue
	Logger   *telemetry.Logger
	Metrics  telemetry.Metrics
}

// ScoredEdge is one live edge and its current score, as returned by
// ExtractRegionGraph (spec §4.5, "getRegionGraph always recomputes
// scores").
type ScoredEdge struct {
	U, V  region.NodeID
	Score float64
}

// Engine drives the region graph through repeated best-first merges.
type Engine struct {
	graph    *region.Graph
	cfg      Config
	versions map[uint64]uint64 // edge -> current version, bumped on every rescore
}

// New constructs an Engine over graph. The queue is seeded with every live
// edge's current score at construction time; callers add edges to the
// graph (and their contributing affinities to the provider) before calling
// New.
func New(graph *region.Graph, cfg Config) (*Engine, error) {
	if graph == nil {
		return nil, ErrNilGraph
	}
	if cfg.Provider == nil {
		return nil, ErrNilProvider
	}
	if cfg.Scorer == nil {
		return nil, ErrNilScorer
	}
	if cfg.Queue == nil {
		return nil, ErrNilQueue
	}
	if cfg.Logger == nil {
		cfg.Logger = telemetry.NoopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.NewNoopMetrics()
	}

	e := &Engine{graph: graph, cfg: cfg, versions: make(map[uint64]uint64)}
	for _, id := range graph.LiveEdgeIDs() {
		e.pushFresh(id)
	}

	return e, nil
}

func (e *Engine) currentScore(edge region.EdgeID) (float64, error) {
	stat, err := e.cfg.Provider.Value(uint64(edge))
	if err != nil {
		return 0, err
	}

	return e.cfg.Scorer.Score(stat), nil
}

func (e *Engine) pushFresh(edge region.EdgeID) {
	s, err := e.currentScore(edge)
	if err != nil {
		return
	}
	e.versions[uint64(edge)]++
	e.cfg.Queue.Push(pqueue.Entry{Score: s, Edge: uint64(edge), Version: e.versions[uint64(edge)]})
	e.cfg.Metrics.QueueDepth(e.cfg.Queue.Len())
}

// resumable, when threshold halts a run, records the entries popped past
// the threshold so a later MergeUntil call with a higher threshold can
// resume without having lost them.
type resumable struct {
	entries []pqueue.Entry
}

func (r *resumable) push(e pqueue.Entry) {
	r.entries = append(r.entries, e)
}

func (e *Engine) drainResumable(r *resumable) {
	for _, entry := range r.entries {
		e.cfg.Queue.Push(entry)
	}
}

// MergeUntil pops and processes edges in ascending-score order until the
// queue is empty or the next edge's score exceeds threshold. Returns the
// number of merges performed.
//
// Steps, per popped entry:
//  1. OnPop. Report the raw pop to the visitor before any validation.
//  2. Deleted check. If the edge no longer exists (combined away or
//     previously rejected), OnPopDeleted and discard the entry.
//  3. Stale check. If the entry's Version doesn't match the edge's current
//     version, OnPopStale and requeue a fresh entry at the current score.
//  4. Threshold check. If the current score exceeds threshold, set the
//     entry aside to be requeued once this call returns (resumable: a
//     later call with a higher threshold must still see it).
//  5. Resolve to live roots. Map both endpoints to their current merge
//     roots; if they already agree, the edge is now a self-loop, so delete
//     it and move on.
//  6. Constraint check. Reject (delete, don't requeue) if the visitor's
//     IsValidMerge says these two roots must never merge.
//  7. Merge. Absorb the two roots via MergeNodes.
//  8. Rescore. Push a fresh entry for every edge MergeNodes reports as
//     touched by the merge.
//  9. OnMerge. Report the accepted merge to the visitor and to metrics.
func (e *Engine) MergeUntil(ctx context.Context, threshold float64, hooks visitor.Hooks) (int, error) {
	e.cfg.Logger.LogMergeStart(threshold, e.cfg.Queue.Len())

	merges := 0
	halted := &resumable{}

	for {
		select {
		case <-ctx.Done():
			e.drainResumable(halted)
			return merges, ctx.Err()
		default:
		}

		entry, ok := e.cfg.Queue.Pop()
		if !ok {
			break
		}

		// 1. OnPop.
		if hooks.OnPop != nil {
			hooks.OnPop(entry.Edge, entry.Score)
		}

		// 2. Deleted check.
		if e.graph.Deleted(region.EdgeID(entry.Edge)) {
			if hooks.OnPopDeleted != nil {
				hooks.OnPopDeleted(entry.Edge)
			}
			continue
		}

		// 3. Stale check.
		curScore, err := e.currentScore(region.EdgeID(entry.Edge))
		if err != nil {
			continue
		}
		if e.versions[entry.Edge] != entry.Version {
			if hooks.OnPopStale != nil {
				hooks.OnPopStale(entry.Edge, entry.Score, curScore)
			}
			e.cfg.Queue.Push(pqueue.Entry{Score: curScore, Edge: entry.Edge, Version: e.versions[entry.Edge]})
			continue
		}

		// 4. Threshold check.
		if curScore > threshold {
			halted.push(entry)
			continue
		}

		// 5. Resolve to live roots.
		u, v, err := e.graph.Endpoints(region.EdgeID(entry.Edge))
		if err != nil {
			continue
		}
		ru, rv := e.graph.Resolve(u), e.graph.Resolve(v)
		if ru == rv {
			e.graph.Delete(region.EdgeID(entry.Edge))
			continue
		}

		// 6. Constraint check.
		if hooks.IsValidMerge != nil && !hooks.IsValidMerge(uint32(ru), uint32(rv)) {
			e.graph.Delete(region.EdgeID(entry.Edge))
			continue
		}

		// 7. Merge.
		survivor, touched, err := e.graph.MergeNodes(ru, rv)
		if err != nil {
			continue
		}

		// 8. Rescore.
		for _, id := range touched {
			e.pushFresh(id)
		}

		// 9. OnMerge.
		if hooks.OnMerge != nil {
			hooks.OnMerge(uint32(ru), uint32(rv), uint32(survivor), curScore)
		}

		e.cfg.Metrics.MergePerformed(curScore)
		merges++
	}

	e.drainResumable(halted)
	e.cfg.Logger.LogMergeDone(merges, e.cfg.Queue.Len())

	return merges, nil
}

// ExtractSegmentation writes each live node's resolved root as the label of
// every voxel that was originally seeded to that node, via the caller-
// supplied voxel->node label mapping already present in seg (spec §4.5,
// "extraction never mutates the graph"). seg.Labels are rewritten in place
// from their current per-voxel node id to that node's resolved root id.
func (e *Engine) ExtractSegmentation(seg *volume.Segmentation) error {
	for i, label := range seg.Labels {
		if label == 0 {
			continue
		}
		root := e.graph.Resolve(region.NodeID(label))
		seg.Labels[i] = uint32(root)
	}

	return nil
}

// ExtractRegionGraph returns every live edge with its current score,
// recomputed from the statistics provider rather than cached (matching the
// original implementation's getRegionGraph semantics, spec's Supplemented
// Features), sorted by (U, V) for deterministic output.
func (e *Engine) ExtractRegionGraph() ([]ScoredEdge, error) {
	ids := e.graph.LiveEdgeIDs()
	out := make([]ScoredEdge, 0, len(ids))
	for _, id := range ids {
		u, v, err := e.graph.Endpoints(id)
		if err != nil {
			continue
		}
		s, err := e.currentScore(id)
		if err != nil {
			continue
		}
		out = append(out, ScoredEdge{U: u, V: v, Score: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].U != out[j].U {
			return out[i].U < out[j].U
		}
		return out[i].V < out[j].V
	})

	return out, nil
}
