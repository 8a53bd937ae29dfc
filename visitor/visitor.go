// Package visitor implements the merge engine's visitor/hooks capability
// set (spec §4.7): a bundle of callback fields the engine invokes at each
// step of its loop, so history recording and anti-merge enforcement can be
// composed onto the engine without either knowing about the other.
package visitor

import "github.com/katalvlaran/waterz-go/unmerge"

// Hooks bundles the callbacks the merge engine invokes. Any nil field is
// treated as a no-op (or, for IsValidMerge, as "always valid").
type Hooks struct {
	OnPop        func(edge uint64, score float64)
	OnPopDeleted func(edge uint64)
	OnPopStale   func(edge uint64, oldScore, newScore float64)
	OnMerge      func(a, b, survivor uint32, score float64)
	IsValidMerge func(a, b uint32) bool
}

// NoopHooks returns a Hooks value with every field nil (all no-ops, always
// valid), suitable when the caller wants unconstrained, silent merging.
func NoopHooks() Hooks {
	return Hooks{}
}

// HistoryEntry records one accepted merge.
type HistoryEntry struct {
	A, B     uint32
	Survivor uint32
	Score    float64
}

// History accumulates a HistoryEntry per accepted merge, in the order the
// merge engine performed them, matching spec §6's "merge history" return
// value.
type History struct {
	entries []HistoryEntry
}

// NewHistory constructs an empty History recorder.
func NewHistory() *History {
	return &History{}
}

// Hooks returns a Hooks value that appends to this History on OnMerge and
// leaves every other field nil.
func (h *History) Hooks() Hooks {
	return Hooks{
		OnMerge: func(a, b, survivor uint32, score float64) {
			h.entries = append(h.entries, HistoryEntry{A: a, B: b, Survivor: survivor, Score: score})
		},
	}
}

// Entries returns the recorded merges in chronological order.
func (h *History) Entries() []HistoryEntry {
	return h.entries
}

// ConstrainedHistory composes a History recorder with an unmerge.Tracker:
// IsValidMerge defers to the tracker, and OnMerge both updates the tracker
// and records the merge in history. This is the hook set a caller supplying
// an anti-merge list wires into the engine (spec §4.6/§4.7).
func ConstrainedHistory(h *History, t *unmerge.Tracker) Hooks {
	return Hooks{
		IsValidMerge: t.IsValidMerge,
		OnMerge: func(a, b, survivor uint32, score float64) {
			t.OnMerge(a, b, survivor)
			h.entries = append(h.entries, HistoryEntry{A: a, B: b, Survivor: survivor, Score: score})
		},
	}
}
