package visitor_test

import (
	"testing"

	"github.com/katalvlaran/waterz-go/unmerge"
	"github.com/katalvlaran/waterz-go/visitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopHooks_AllFieldsNil(t *testing.T) {
	h := visitor.NoopHooks()
	assert.Nil(t, h.OnPop)
	assert.Nil(t, h.OnMerge)
	assert.Nil(t, h.IsValidMerge)
}

func TestHistory_RecordsMergesInOrder(t *testing.T) {
	h := visitor.NewHistory()
	hooks := h.Hooks()
	hooks.OnMerge(1, 2, 1, 0.4)
	hooks.OnMerge(1, 3, 1, 0.6)

	entries := h.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, visitor.HistoryEntry{A: 1, B: 2, Survivor: 1, Score: 0.4}, entries[0])
	assert.Equal(t, visitor.HistoryEntry{A: 1, B: 3, Survivor: 1, Score: 0.6}, entries[1])
}

func TestConstrainedHistory_RejectsAntiMergeAndRecordsAccepted(t *testing.T) {
	tr := unmerge.NewTracker([][][]uint32{
		{{1}, {2}},
	})
	h := visitor.NewHistory()
	hooks := visitor.ConstrainedHistory(h, tr)

	require.NotNil(t, hooks.IsValidMerge)
	assert.False(t, hooks.IsValidMerge(1, 2))
	assert.True(t, hooks.IsValidMerge(1, 3))

	hooks.OnMerge(1, 3, 1, 0.2)
	assert.Len(t, h.Entries(), 1)
	// Constraint on 1 should now also apply through the merged survivor.
	assert.False(t, hooks.IsValidMerge(1, 2))
}
