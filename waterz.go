// Package waterzgo is the caller-facing entry point for the hierarchical
// region-merging segmentation pipeline (spec §6, "External interfaces"):
// initialize a run from an affinity volume (and, optionally, a caller-
// supplied starting segmentation and ground truth), drive it through one or
// more MergeUntil calls at increasing thresholds, and extract the resulting
// segmentation, region graph, or evaluation metrics at any point.
//
// Every run is addressed by a Handle into a package-level session.Store;
// a run stays in that store until Free releases its handle.
package waterzgo

import (
	"context"
	"errors"

	"github.com/katalvlaran/waterz-go/evalmetrics"
	"github.com/katalvlaran/waterz-go/merge"
	"github.com/katalvlaran/waterz-go/pqueue"
	"github.com/katalvlaran/waterz-go/region"
	"github.com/katalvlaran/waterz-go/score"
	"github.com/katalvlaran/waterz-go/seed"
	"github.com/katalvlaran/waterz-go/session"
	"github.com/katalvlaran/waterz-go/stats"
	"github.com/katalvlaran/waterz-go/telemetry"
	"github.com/katalvlaran/waterz-go/unmerge"
	"github.com/katalvlaran/waterz-go/visitor"
	"github.com/katalvlaran/waterz-go/volume"
)

// Handle identifies one open run.
type Handle = session.Handle

// ErrUnknownHandle indicates an operation referenced a Handle that is not
// (or is no longer) open.
var ErrUnknownHandle = errors.New("waterzgo: unknown or closed handle")

// StatisticKind selects which stats.Provider a run accumulates edge
// affinities with.
type StatisticKind int

const (
	StatMax StatisticKind = iota
	StatMean
	StatQuantileHistogram
	StatQuantileVector
)

// QueueKind selects which pqueue.Queue realization drives a run's merge
// order.
type QueueKind int

const (
	QueueBinaryHeap QueueKind = iota
	QueueBinning
)

// Options configures Initialize. Initialize starts from these defaults
// before applying any Option: DefaultLow/DefaultHigh thresholds, Max
// statistic, ascending scorer, binary-heap queue, no-op logging and metrics.
// The zero value itself is not those defaults (zero thresholds, nil Scorer).
type Options struct {
	AffLow, AffHigh float64
	Statistic       StatisticKind
	QuantileQ       float64 // used when Statistic is a quantile kind
	Queue           QueueKind
	Scorer          score.Scorer
	UnmergeList     [][][]uint32
	Logger          *telemetry.Logger
	Metrics         telemetry.Metrics
}

// Option mutates Options during Initialize.
type Option func(*Options)

func WithThresholds(low, high float64) Option {
	return func(o *Options) { o.AffLow, o.AffHigh = low, high }
}

func WithStatistic(kind StatisticKind, quantileQ float64) Option {
	return func(o *Options) { o.Statistic, o.QuantileQ = kind, quantileQ }
}

func WithQueue(kind QueueKind) Option {
	return func(o *Options) { o.Queue = kind }
}

func WithScorer(s score.Scorer) Option {
	return func(o *Options) { o.Scorer = s }
}

func WithUnmergeList(tuples [][][]uint32) Option {
	return func(o *Options) { o.UnmergeList = tuples }
}

func WithLogger(l *telemetry.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

func WithMetrics(m telemetry.Metrics) Option {
	return func(o *Options) { o.Metrics = m }
}

func defaultOptions() Options {
	return Options{
		AffLow:    seed.DefaultLow,
		AffHigh:   seed.DefaultHigh,
		Statistic: StatMax,
		QuantileQ: 0.5,
		Queue:     QueueBinaryHeap,
		Scorer:    score.AscendingScorer{},
	}
}

type run struct {
	engine  *merge.Engine
	seg     *volume.Segmentation
	gt      *volume.Segmentation
	tracker *unmerge.Tracker
	history *visitor.History
	hooks   visitor.Hooks
	logger  *telemetry.Logger
}

var runs = session.NewStore[*run]()

func buildProvider(opts Options) (stats.Provider, error) {
	switch opts.Statistic {
	case StatMean:
		return stats.NewMean(), nil
	case StatQuantileHistogram:
		return stats.NewQuantileHistogram(opts.QuantileQ, 0, 1, 256)
	case StatQuantileVector:
		return stats.NewQuantileVector(opts.QuantileQ)
	default:
		return stats.NewMax(), nil
	}
}

func buildQueue(kind QueueKind) pqueue.Queue {
	if kind == QueueBinning {
		return pqueue.NewBinningQueue(0, 1, 1024)
	}

	return pqueue.NewBinaryHeap()
}

// Initialize builds an affinity volume, optionally seeds it with watershed
// (when segData is nil) or adopts a caller-supplied segmentation (spec
// Supplemented Features, "caller-supplied-segmentation path"), builds the
// region graph, and opens a new run. groundTruthData may be nil when no
// evaluation will be requested.
func Initialize(w, h, d int, affinityData [3][]float64, segData []uint32, groundTruthData []uint32, opt ...Option) (Handle, error) {
	opts := defaultOptions()
	for _, o := range opt {
		o(&opts)
	}

	aff, err := volume.NewAffinity(w, h, d, affinityData)
	if err != nil {
		return 0, err
	}

	var seg *volume.Segmentation
	if segData != nil {
		seg, err = volume.NewSegmentation(w, h, d, segData)
		if err != nil {
			return 0, err
		}
	} else {
		seg, _, err = seed.Watershed(aff, opts.AffLow, opts.AffHigh)
		if err != nil {
			return 0, err
		}
	}

	var gt *volume.Segmentation
	if groundTruthData != nil {
		gt, err = volume.NewSegmentation(w, h, d, groundTruthData)
		if err != nil {
			return 0, err
		}
	}
	if err := volume.ValidateShapes(aff, seg, gt); err != nil {
		return 0, err
	}

	provider, err := buildProvider(opts)
	if err != nil {
		return 0, err
	}

	numNodes := int(seg.MaxLabel())
	g, err := seed.BuildRegionGraph(aff, seg, numNodes, provider, region.Callbacks{Combine: func(dst, src region.EdgeID) {
		provider.Combine(uint64(dst), uint64(src))
	}})
	if err != nil {
		return 0, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NoopLogger()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}

	eng, err := merge.New(g, merge.Config{
		Provider: provider,
		Scorer:   opts.Scorer,
		Queue:    buildQueue(opts.Queue),
		Logger:   logger,
		Metrics:  metrics,
	})
	if err != nil {
		return 0, err
	}

	tracker := unmerge.NewTracker(opts.UnmergeList)
	history := visitor.NewHistory()
	hooks := visitor.ConstrainedHistory(history, tracker)

	r := &run{
		engine:  eng,
		seg:     seg,
		gt:      gt,
		tracker: tracker,
		history: history,
		hooks:   hooks,
		logger:  logger,
	}

	return runs.Open(r), nil
}

// MergeUntil drives the run's merge engine until the queue is empty or the
// next edge's score would exceed threshold, applying any configured
// anti-merge constraints, and returns the newly accepted merges from this
// call only.
func MergeUntil(ctx context.Context, h Handle, threshold float64) ([]visitor.HistoryEntry, error) {
	r, ok := runs.Get(h)
	if !ok {
		return nil, ErrUnknownHandle
	}

	before := len(r.history.Entries())
	if _, err := r.engine.MergeUntil(ctx, threshold, r.hooks); err != nil {
		return nil, err
	}

	return r.history.Entries()[before:], nil
}

// GetRegionGraph returns every live edge and its current score.
func GetRegionGraph(h Handle) ([]merge.ScoredEdge, error) {
	r, ok := runs.Get(h)
	if !ok {
		return nil, ErrUnknownHandle
	}

	return r.engine.ExtractRegionGraph()
}

// GetSegmentation resolves every voxel's node id to its current merge root
// and returns the resulting segmentation. The returned Segmentation shares
// its backing label slice with the one passed into Initialize (or built by
// watershed), mutated in place.
func GetSegmentation(h Handle) (*volume.Segmentation, error) {
	r, ok := runs.Get(h)
	if !ok {
		return nil, ErrUnknownHandle
	}
	if err := r.engine.ExtractSegmentation(r.seg); err != nil {
		return nil, err
	}

	return r.seg, nil
}

// Evaluate compares the run's current segmentation against the ground
// truth supplied at Initialize, if any. ok is false when no ground truth
// was supplied.
func Evaluate(h Handle) (m evalmetrics.Metrics, ok bool, err error) {
	r, found := runs.Get(h)
	if !found {
		return evalmetrics.Metrics{}, false, ErrUnknownHandle
	}
	if r.gt == nil {
		return evalmetrics.Metrics{}, false, nil
	}
	if err := r.engine.ExtractSegmentation(r.seg); err != nil {
		return evalmetrics.Metrics{}, false, err
	}
	m, err = evalmetrics.Compare(r.seg, r.gt)
	if err != nil {
		return evalmetrics.Metrics{}, false, err
	}

	return m, true, nil
}

// Free releases a run's handle. Freeing an unknown or already-freed handle
// is a no-op.
func Free(h Handle) {
	runs.Close(h)
}
