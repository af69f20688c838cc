// Package consolidate collapses chains of segments into single segments.
//
// The observable order is that of a restart scan: walk the list from the
// front, and for the current segment pick the lowest-indexed other segment
// whose origin equals its destination; remove both, append the merged
// segment to the end and start over from the front. A segment with no
// partner is skipped.
//
// Restarting from the front is never needed. A segment in front of the
// current one had no partner before the merge, and the merge cannot give it
// one: the merged segment starts at the current segment's origin, which was
// already present. Resuming at the segment after the current one therefore
// yields the same final list, and with an endpoint index every lookup is a
// map access instead of a scan.
package consolidate

import "github.com/dreamware/flights/internal/segment"

// Stats describes one consolidation run
type Stats struct {
	Input  int // Segments received
	Output int // Segments returned
	Merges int // Contractions performed, always Input-Output
}

// entry is a segment slot in insertion order.
// Slice order of live entries equals the list order of the restart scan.
type entry struct {
	seg  segment.Segment
	dead bool
}

// originIndex keeps, per origin, the slots that start there in ascending order.
// Removal is lazy: dead slots are skipped when the head is inspected.
type originIndex map[string][]int

func (idx originIndex) add(origin string, slot int) {
	idx[origin] = append(idx[origin], slot)
}

// partner returns the lowest live slot starting at origin other than self
func (idx originIndex) partner(entries []entry, origin string, self int) (int, bool) {
	slots := idx[origin]
	for len(slots) > 0 && entries[slots[0]].dead {
		slots = slots[1:]
	}
	if len(slots) == 0 {
		delete(idx, origin)
		return 0, false
	}
	idx[origin] = slots

	for _, slot := range slots {
		if slot == self {
			continue
		}
		if !entries[slot].dead {
			return slot, true
		}
	}
	return 0, false
}

// Consolidate merges every chain in in and returns the result with its stats.
// The input is not modified. The output satisfies: no segment's destination
// equals the origin of a different segment.
func Consolidate(in segment.List) (segment.List, Stats) {
	entries := make([]entry, 0, len(in))
	idx := make(originIndex, len(in))
	for i, s := range in {
		entries = append(entries, entry{seg: s})
		idx.add(s.Origin, i)
	}

	merges := 0
	for cur := 0; cur < len(entries); cur++ {
		if entries[cur].dead {
			continue
		}
		left := entries[cur].seg
		j, ok := idx.partner(entries, left.Destination, cur)
		if !ok {
			continue
		}
		right := entries[j].seg

		entries[cur].dead = true
		entries[j].dead = true
		entries = append(entries, entry{seg: segment.New(left.Origin, right.Destination)})
		idx.add(left.Origin, len(entries)-1)
		merges++
	}

	out := make(segment.List, 0, len(in)-merges)
	for _, e := range entries {
		if !e.dead {
			out = append(out, e.seg)
		}
	}
	return out, Stats{Input: len(in), Output: len(out), Merges: merges}
}

// Chainable reports whether l still contains two distinct segments where
// the first ends at the origin of the second.
func Chainable(l segment.List) bool {
	origins := make(map[string]int, len(l))
	for _, s := range l {
		origins[s.Origin]++
	}
	for _, s := range l {
		n := origins[s.Destination]
		if s.Origin == s.Destination {
			n--
		}
		if n > 0 {
			return true
		}
	}
	return false
}
