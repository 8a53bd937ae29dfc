// Package unmerge implements the anti-merge constraint tracker (spec §4.6):
// a caller-supplied list of mutually-exclusive region groups that must
// never collapse into the same region, honored transitively across the
// whole merge sequence rather than checked once up front.
package unmerge

// Tracker answers whether two regions are still allowed to merge given a
// set of mutual-exclusion group tuples, and keeps that answer correct as
// merges absorb regions into ever-larger groups.
//
// Each tuple passed to NewTracker names groups of fragment ids, no two of
// which may end up in the same region as each other; groupsOf tracks,
// for the current survivor of each original fragment, every anti-group id
// its fragment history has accumulated, and antisOf tracks which group ids
// that group id must never join.
type Tracker struct {
	empty    bool
	groupsOf map[uint32][]uint32
	antisOf  map[uint32][]uint32
}

// NewTracker builds a tracker from a list of mutually-exclusive groups.
// Each inner []uint32 is one group of fragment ids; every group in the
// same outer tuple is mutually exclusive with every other group in that
// tuple. Groups across different tuples are unrelated unless repeated.
func NewTracker(tuples [][][]uint32) *Tracker {
	t := &Tracker{
		groupsOf: make(map[uint32][]uint32),
		antisOf:  make(map[uint32][]uint32),
	}
	if len(tuples) == 0 {
		t.empty = true
		return t
	}

	groupID := uint32(0)
	for _, tuple := range tuples {
		ids := make([]uint32, len(tuple))
		for i, group := range tuple {
			groupID++
			id := groupID
			ids[i] = id
			for _, frag := range group {
				t.groupsOf[frag] = append(t.groupsOf[frag], id)
			}
		}
		for i, id := range ids {
			for j, other := range ids {
				if i != j {
					t.antisOf[id] = append(t.antisOf[id], other)
				}
			}
		}
	}

	return t
}

// IsValidMerge reports whether fragments (or their surviving region ids) a
// and b are allowed to merge: false iff some group id attached to a is
// anti with some group id attached to b.
func (t *Tracker) IsValidMerge(a, b uint32) bool {
	if t.empty {
		return true
	}
	groupsA := t.groupsOf[a]
	if len(groupsA) == 0 {
		return true
	}
	groupsB := t.groupsOf[b]
	if len(groupsB) == 0 {
		return true
	}

	for _, ga := range groupsA {
		antis := t.antisOf[ga]
		for _, gb := range groupsB {
			for _, x := range antis {
				if x == gb {
					return false
				}
			}
		}
	}

	return true
}

// OnMerge records that a and b merged into survivor: the survivor's group
// membership becomes the union (duplicates allowed) of a's and b's, so
// later merges against the survivor see every constraint either ancestor
// carried.
func (t *Tracker) OnMerge(a, b, survivor uint32) {
	if t.empty {
		return
	}
	merged := append(append([]uint32{}, t.groupsOf[a]...), t.groupsOf[b]...)
	if len(merged) == 0 {
		return
	}
	if survivor != a {
		delete(t.groupsOf, a)
	}
	if survivor != b {
		delete(t.groupsOf, b)
	}
	t.groupsOf[survivor] = merged
}
