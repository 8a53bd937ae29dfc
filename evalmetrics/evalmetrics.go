// Package evalmetrics computes Rand and Variation-of-Information split/
// merge error against a ground-truth segmentation (spec §4.8,
// "Evaluation"). The real evaluate.hpp implementation was not available to
// ground this on, so the formulas here are the standard contingency-table
// pair-counting definitions, verified against the spec's own test property
// (identical partitions score zero on all four metrics).
package evalmetrics

import (
	"errors"
	"math"

	"github.com/katalvlaran/waterz-go/volume"
)

// ErrEmptyComparison indicates neither volume has any non-background
// voxels in common, so no pair-counting statistic is defined.
var ErrEmptyComparison = errors.New("evalmetrics: no foreground voxels to compare")

// ErrShapeMismatch indicates pred and gt disagree on W/H/D.
var ErrShapeMismatch = errors.New("evalmetrics: predicted and ground-truth volumes must share shape")

// Metrics bundles the four standard segmentation comparison scores, all
// non-negative and zero for identical partitions.
type Metrics struct {
	RandSplit float64
	RandMerge float64
	VoiSplit  float64
	VoiMerge  float64
}

// Compare builds a pred-label x gt-label contingency table over every
// voxel present (non-zero) in both volumes and derives Rand and VOI
// split/merge error from it.
func Compare(pred, gt *volume.Segmentation) (Metrics, error) {
	if pred.W != gt.W || pred.H != gt.H || pred.D != gt.D {
		return Metrics{}, ErrShapeMismatch
	}

	contingency := make(map[[2]uint32]uint64)
	predTotals := make(map[uint32]uint64)
	gtTotals := make(map[uint32]uint64)
	var n uint64

	for i := range pred.Labels {
		p := pred.Labels[i]
		g := gt.Labels[i]
		if p == 0 || g == 0 {
			continue
		}
		contingency[[2]uint32{p, g}]++
		predTotals[p]++
		gtTotals[g]++
		n++
	}

	if n == 0 {
		return Metrics{}, ErrEmptyComparison
	}

	nf := float64(n)

	pairsSame := func(c uint64) float64 {
		f := float64(c)
		return f * (f - 1) / 2
	}

	var sumContingencyPairs, sumPredPairs, sumGtPairs float64
	for _, c := range contingency {
		sumContingencyPairs += pairsSame(c)
	}
	for _, c := range predTotals {
		sumPredPairs += pairsSame(c)
	}
	for _, c := range gtTotals {
		sumGtPairs += pairsSame(c)
	}

	// Rand split error: pairs in the same gt group but different pred
	// groups, normalized by total pairs in the same gt group.
	var randSplit float64
	if sumGtPairs > 0 {
		randSplit = (sumGtPairs - sumContingencyPairs) / sumGtPairs
	}
	// Rand merge error: pairs in the same pred group but different gt
	// groups, normalized by total pairs in the same pred group.
	var randMerge float64
	if sumPredPairs > 0 {
		randMerge = (sumPredPairs - sumContingencyPairs) / sumPredPairs
	}

	entropy := func(totals map[uint32]uint64) float64 {
		var h float64
		for _, c := range totals {
			p := float64(c) / nf
			if p > 0 {
				h -= p * math.Log2(p)
			}
		}
		return h
	}
	jointEntropy := func() float64 {
		var h float64
		for _, c := range contingency {
			p := float64(c) / nf
			if p > 0 {
				h -= p * math.Log2(p)
			}
		}
		return h
	}

	hPred := entropy(predTotals)
	hGT := entropy(gtTotals)
	hJoint := jointEntropy()
	mutualInfo := hPred + hGT - hJoint

	// Conditional entropies: VOI split error = H(pred|gt) (pred splits gt
	// groups), VOI merge error = H(gt|pred) (pred merges gt groups).
	voiSplit := hPred - mutualInfo
	voiMerge := hGT - mutualInfo
	if voiSplit < 0 {
		voiSplit = 0
	}
	if voiMerge < 0 {
		voiMerge = 0
	}

	return Metrics{
		RandSplit: randSplit,
		RandMerge: randMerge,
		VoiSplit:  voiSplit,
		VoiMerge:  voiMerge,
	}, nil
}
