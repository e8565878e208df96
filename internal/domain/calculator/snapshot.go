package calculator

import (
	"context"
	"slices"
)

// ComputeFunc is the single capability a calculator provides. It receives only
// its own validated input and must not keep mutable state between calls.
type ComputeFunc func(ctx context.Context, in Input) (Output, error)

type entry struct {
	descriptor Descriptor
	compute    ComputeFunc
}

// snapshot is an immutable view of the registry. The secondary indexes are
// derived from entries and every id they list has an entry.
type snapshot struct {
	entries    map[string]entry
	ids        []string
	byCategory map[string][]string
	byTag      map[string][]string
}

var emptySnapshot = &snapshot{
	entries:    map[string]entry{},
	byCategory: map[string][]string{},
	byTag:      map[string][]string{},
}

func buildSnapshot(entries map[string]entry) *snapshot {
	s := &snapshot{
		entries:    make(map[string]entry, len(entries)),
		ids:        make([]string, 0, len(entries)),
		byCategory: make(map[string][]string),
		byTag:      make(map[string][]string),
	}
	for id, e := range entries {
		s.entries[id] = e
		s.ids = append(s.ids, id)
	}
	slices.Sort(s.ids)

	// ids are visited in order, so every index list comes out sorted.
	for _, id := range s.ids {
		d := s.entries[id].descriptor
		s.byCategory[d.Category] = append(s.byCategory[d.Category], id)
		for _, tag := range d.Tags {
			s.byTag[tag] = append(s.byTag[tag], id)
		}
	}
	return s
}
