// Package stats implements the statistics-provider capability set (spec
// §4.2): per-edge accumulators over the affinities that fall on that edge,
// pluggable behind a single interface rather than an inheritance hierarchy
// (spec §9, "Statistic pluggability").
//
// Every implementation keys its storage by the caller-chosen edge id
// (region.EdgeID, passed through as a plain uint64 to avoid an import
// cycle with package region) and re-keys that storage on Combine, exactly
// as the region graph's merge callback expects.
package stats

import (
	"errors"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrUnknownEdge indicates Value was called for an edge with no recorded
// statistic (never initialized, or already combined away).
var ErrUnknownEdge = errors.New("stats: no statistic recorded for edge")

// Provider is the capability set every statistic family implements: init
// from the affinities that first connect two regions, commutative/
// associative combine on duplicate-edge merge, and value extraction for
// the scoring function.
type Provider interface {
	// InitFromAffinities records the first batch of contributing
	// affinities for a newly created edge.
	InitFromAffinities(edge uint64, affinities []float64)

	// Combine folds src's accumulator into dst's and forgets src. Must be
	// commutative and associative so that repeated combination during a
	// long merge sequence is order-independent (spec §4.2).
	Combine(dst, src uint64)

	// Value returns the scalar statistic for edge, or ErrUnknownEdge.
	Value(edge uint64) (float64, error)
}

// Max tracks the maximum contributing affinity per edge.
type Max struct {
	values map[uint64]float64
}

// NewMax constructs an empty Max provider.
func NewMax() *Max {
	return &Max{values: make(map[uint64]float64)}
}

func (m *Max) InitFromAffinities(edge uint64, affinities []float64) {
	best := affinities[0]
	for _, a := range affinities[1:] {
		if a > best {
			best = a
		}
	}
	m.values[edge] = best
}

func (m *Max) Combine(dst, src uint64) {
	sv, ok := m.values[src]
	if !ok {
		return
	}
	if sv > m.values[dst] {
		m.values[dst] = sv
	}
	delete(m.values, src)
}

func (m *Max) Value(edge uint64) (float64, error) {
	v, ok := m.values[edge]
	if !ok {
		return 0, ErrUnknownEdge
	}

	return v, nil
}

// Mean tracks the count-weighted mean contributing affinity per edge, so
// that combining two edges of different sample counts weights correctly.
type Mean struct {
	sums   map[uint64]float64
	counts map[uint64]int64
}

// NewMean constructs an empty Mean provider.
func NewMean() *Mean {
	return &Mean{sums: make(map[uint64]float64), counts: make(map[uint64]int64)}
}

func (m *Mean) InitFromAffinities(edge uint64, affinities []float64) {
	m.sums[edge] = floats.Sum(affinities)
	m.counts[edge] = int64(len(affinities))
}

func (m *Mean) Combine(dst, src uint64) {
	sSum, ok := m.sums[src]
	if !ok {
		return
	}
	m.sums[dst] += sSum
	m.counts[dst] += m.counts[src]
	delete(m.sums, src)
	delete(m.counts, src)
}

func (m *Mean) Value(edge uint64) (float64, error) {
	c, ok := m.counts[edge]
	if !ok || c == 0 {
		return 0, ErrUnknownEdge
	}

	return m.sums[edge] / float64(c), nil
}

// QuantileHistogram is a bounded-bin histogram statistic over a fixed
// range, preferred when memory must stay flat regardless of how many
// affinities fall on an edge (spec §4.2, §7 "resource exhaustion").
type QuantileHistogram struct {
	q          float64
	lo, hi     float64
	bins       int
	histograms map[uint64][]uint64
}

// ErrInvalidQuantile indicates q was not in [0,1].
var ErrInvalidQuantile = errors.New("stats: quantile must be in [0,1]")

// ErrInvalidRange indicates hi <= lo or bins <= 0.
var ErrInvalidRange = errors.New("stats: histogram range/bin count invalid")

// NewQuantileHistogram builds a histogram-backed quantile provider over
// [lo, hi] with the given bin count.
func NewQuantileHistogram(q, lo, hi float64, bins int) (*QuantileHistogram, error) {
	if q < 0 || q > 1 {
		return nil, ErrInvalidQuantile
	}
	if hi <= lo || bins <= 0 {
		return nil, ErrInvalidRange
	}

	return &QuantileHistogram{q: q, lo: lo, hi: hi, bins: bins, histograms: make(map[uint64][]uint64)}, nil
}

func (h *QuantileHistogram) binOf(v float64) int {
	frac := (v - h.lo) / (h.hi - h.lo)
	idx := int(frac * float64(h.bins))
	if idx < 0 {
		idx = 0
	}
	if idx >= h.bins {
		idx = h.bins - 1
	}

	return idx
}

func (h *QuantileHistogram) InitFromAffinities(edge uint64, affinities []float64) {
	hist := make([]uint64, h.bins)
	for _, a := range affinities {
		hist[h.binOf(a)]++
	}
	h.histograms[edge] = hist
}

func (h *QuantileHistogram) Combine(dst, src uint64) {
	srcHist, ok := h.histograms[src]
	if !ok {
		return
	}
	dstHist := h.histograms[dst]
	for i, c := range srcHist {
		dstHist[i] += c
	}
	delete(h.histograms, src)
}

// Value interpolates the q-th quantile from the cumulative bin counts,
// treating each bin's mass as uniformly spread across its width.
func (h *QuantileHistogram) Value(edge uint64) (float64, error) {
	hist, ok := h.histograms[edge]
	if !ok {
		return 0, ErrUnknownEdge
	}
	var total uint64
	for _, c := range hist {
		total += c
	}
	if total == 0 {
		return 0, ErrUnknownEdge
	}

	target := h.q * float64(total)
	width := (h.hi - h.lo) / float64(h.bins)
	var cum uint64
	for i, c := range hist {
		if float64(cum)+float64(c) >= target {
			frac := 0.0
			if c > 0 {
				frac = (target - float64(cum)) / float64(c)
			}
			return h.lo + width*(float64(i)+frac), nil
		}
		cum += c
	}

	return h.hi, nil
}

// QuantileVector is the exact, vector-backed quantile statistic: it stores
// every contributing affinity and computes the q-th order statistic via
// gonum/stat. Preferred when memory permits exactness (spec §4.2).
//
// MaxSamplesPerEdge, if set (WithMaxSamplesPerEdge), bounds memory by
// truncating further contributions once an edge's sample count reaches the
// limit; this is the up-front-configured approximate fallback spec §7
// requires ("must be signaled in a configuration the caller selects up
// front rather than arising dynamically").
type QuantileVector struct {
	q              float64
	maxSamples     int
	data           map[uint64][]float64
	truncatedEdges map[uint64]bool
}

// Option configures a QuantileVector.
type Option func(*QuantileVector)

// WithMaxSamplesPerEdge bounds the number of affinities retained per edge.
// A value <= 0 disables the bound (the default).
func WithMaxSamplesPerEdge(n int) Option {
	return func(v *QuantileVector) { v.maxSamples = n }
}

// NewQuantileVector builds an exact quantile provider for quantile q.
func NewQuantileVector(q float64, opts ...Option) (*QuantileVector, error) {
	if q < 0 || q > 1 {
		return nil, ErrInvalidQuantile
	}
	v := &QuantileVector{
		q:              q,
		data:           make(map[uint64][]float64),
		truncatedEdges: make(map[uint64]bool),
	}
	for _, opt := range opts {
		opt(v)
	}

	return v, nil
}

func (v *QuantileVector) appendBounded(edge uint64, affinities []float64) {
	existing := v.data[edge]
	if v.maxSamples <= 0 {
		v.data[edge] = append(existing, affinities...)
		return
	}
	room := v.maxSamples - len(existing)
	if room <= 0 {
		v.truncatedEdges[edge] = true
		return
	}
	if room < len(affinities) {
		affinities = affinities[:room]
		v.truncatedEdges[edge] = true
	}
	v.data[edge] = append(existing, affinities...)
}

func (v *QuantileVector) InitFromAffinities(edge uint64, affinities []float64) {
	v.appendBounded(edge, affinities)
}

func (v *QuantileVector) Combine(dst, src uint64) {
	srcData, ok := v.data[src]
	if !ok {
		return
	}
	v.appendBounded(dst, srcData)
	if v.truncatedEdges[src] {
		v.truncatedEdges[dst] = true
	}
	delete(v.data, src)
	delete(v.truncatedEdges, src)
}

// Value sorts a copy of edge's contributing affinities and returns the
// q-th empirical quantile via gonum's stat.Quantile.
func (v *QuantileVector) Value(edge uint64) (float64, error) {
	data, ok := v.data[edge]
	if !ok || len(data) == 0 {
		return 0, ErrUnknownEdge
	}
	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	return stat.Quantile(v.q, stat.Empirical, sorted, nil), nil
}

// Truncated reports whether edge's sample set was truncated by
// MaxSamplesPerEdge, i.e. its Value is an approximation rather than exact.
func (v *QuantileVector) Truncated(edge uint64) bool {
	return v.truncatedEdges[edge]
}
