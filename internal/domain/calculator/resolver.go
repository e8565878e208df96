package calculator

import (
	"fmt"
	"iter"
	"slices"
	"strings"
)

// Resolver is the read-only discovery API. *Registry implements it.
type Resolver interface {
	GetByID(id string) (Descriptor, error)
	ListByCategory(category string) iter.Seq[Descriptor]
	ListByTag(tag string) iter.Seq[Descriptor]
	Categories() []CategoryCount
	All() []Descriptor
	Search(query string) []Descriptor
}

var _ Resolver = (*Registry)(nil)

// CategoryCount is one navigation bucket of the catalog.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// GetByID returns a copy of the descriptor registered under id.
func (r *Registry) GetByID(id string) (Descriptor, error) {
	e, ok := r.lookup(strings.TrimSpace(id))
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return e.descriptor.clone(), nil
}

// ListByCategory yields the calculators of category in ascending id order.
// Each range re-reads the current registry state.
func (r *Registry) ListByCategory(category string) iter.Seq[Descriptor] {
	key := foldKey(category)
	return func(yield func(Descriptor) bool) {
		s := r.current()
		for _, id := range s.byCategory[key] {
			if !yield(s.entries[id].descriptor.clone()) {
				return
			}
		}
	}
}

// ListByTag yields the calculators carrying tag in ascending id order.
func (r *Registry) ListByTag(tag string) iter.Seq[Descriptor] {
	key := foldKey(tag)
	return func(yield func(Descriptor) bool) {
		s := r.current()
		for _, id := range s.byTag[key] {
			if !yield(s.entries[id].descriptor.clone()) {
				return
			}
		}
	}
}

// Categories lists every category with its calculator count, sorted by name.
func (r *Registry) Categories() []CategoryCount {
	s := r.current()
	out := make([]CategoryCount, 0, len(s.byCategory))
	for category, ids := range s.byCategory {
		out = append(out, CategoryCount{Category: category, Count: len(ids)})
	}
	slices.SortFunc(out, func(a, b CategoryCount) int {
		return strings.Compare(a.Category, b.Category)
	})
	return out
}

// All returns every descriptor in ascending id order.
func (r *Registry) All() []Descriptor {
	s := r.current()
	out := make([]Descriptor, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.entries[id].descriptor.clone())
	}
	return out
}

const (
	rankExactID = iota
	rankIDMatch
	rankTitle
	rankTag
	rankNone
)

// Search ranks calculators against query: exact id first, then ids containing
// the query, then title substring matches, then tag matches. Ties are broken
// by ascending id. Matching is case-insensitive.
func (r *Registry) Search(query string) []Descriptor {
	q := foldKey(query)
	if q == "" {
		return nil
	}

	type hit struct {
		rank int
		id   string
	}
	s := r.current()
	hits := make([]hit, 0)
	for _, id := range s.ids {
		if rank := searchRank(s.entries[id].descriptor, q); rank != rankNone {
			hits = append(hits, hit{rank: rank, id: id})
		}
	}
	slices.SortFunc(hits, func(a, b hit) int {
		if a.rank != b.rank {
			return a.rank - b.rank
		}
		return strings.Compare(a.id, b.id)
	})

	out := make([]Descriptor, 0, len(hits))
	for _, h := range hits {
		out = append(out, s.entries[h.id].descriptor.clone())
	}
	return out
}

func searchRank(d Descriptor, q string) int {
	id := foldKey(d.ID)
	switch {
	case id == q:
		return rankExactID
	case strings.Contains(id, q):
		return rankIDMatch
	case strings.Contains(foldKey(d.Title), q):
		return rankTitle
	}
	for _, tag := range d.Tags {
		if strings.Contains(tag, q) {
			return rankTag
		}
	}
	return rankNone
}
