// Package score converts a statistic value into a priority-queue score
// under a fixed polarity convention (spec §4.3): regardless of which
// statistic feeds it, the queue always pops in ascending score order, so
// "ascending" polarity flips the statistic (score = 1 - stat, merge the
// highest affinities first) and "descending" passes it through unchanged
// (score = stat, merge the lowest first).
package score

// Polarity names which direction of statistic value the scorer favors for
// early merging.
type Polarity int

const (
	// Ascending favors high statistic values: score = 1 - stat, so the
	// highest-affinity edges sort to the front of an ascending-score queue.
	Ascending Polarity = iota
	// Descending favors low statistic values: score = stat, unchanged.
	Descending
)

// Scorer maps a statistic value to a priority-queue score and declares
// which polarity it implements, so callers constructing a queue (or
// resuming one) can tell whether score is really "lower is better"
// throughout.
type Scorer interface {
	Score(stat float64) float64
	Polarity() Polarity
}

// AscendingScorer implements score = 1 - stat.
type AscendingScorer struct{}

func (AscendingScorer) Score(stat float64) float64 { return 1 - stat }
func (AscendingScorer) Polarity() Polarity         { return Ascending }

// DescendingScorer implements score = stat, unchanged.
type DescendingScorer struct{}

func (DescendingScorer) Score(stat float64) float64 { return stat }
func (DescendingScorer) Polarity() Polarity         { return Descending }
