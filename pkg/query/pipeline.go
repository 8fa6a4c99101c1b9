// Package query filters, orders and pages in-memory result sets.
package query

import (
	"sort"
	"strings"
)

type Predicate[T any] func(item T) bool

// Comparator returns a negative number when a sorts before b, zero when they
// are equal, and a positive number otherwise.
type Comparator[T any] func(a, b T) int

// Pipeline collects predicates and sort keys and applies them in one pass.
// The zero value keeps every item in input order.
type Pipeline[T any] struct {
	predicates  []Predicate[T]
	comparators []Comparator[T]
}

func New[T any]() *Pipeline[T] {
	return &Pipeline[T]{}
}

// Where keeps items matching p. Multiple calls are combined with AND.
func (p *Pipeline[T]) Where(pred Predicate[T]) *Pipeline[T] {
	if pred != nil {
		p.predicates = append(p.predicates, pred)
	}
	return p
}

// OrderBy adds a sort key. Earlier keys take precedence; ties keep input order.
func (p *Pipeline[T]) OrderBy(cmp Comparator[T]) *Pipeline[T] {
	if cmp != nil {
		p.comparators = append(p.comparators, cmp)
	}
	return p
}

// Run returns the filtered, ordered items. items is not modified.
func (p *Pipeline[T]) Run(items []T) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if p.matches(item) {
			out = append(out, item)
		}
	}

	if len(p.comparators) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, cmp := range p.comparators {
				if c := cmp(out[i], out[j]); c != 0 {
					return c < 0
				}
			}
			return false
		})
	}
	return out
}

// Page runs the pipeline and returns one page plus the total match count.
func (p *Pipeline[T]) Page(items []T, limit int, offset int64) ([]T, int64) {
	all := p.Run(items)
	total := int64(len(all))

	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []T{}, total
	}
	end := total
	if limit > 0 && offset+int64(limit) < total {
		end = offset + int64(limit)
	}
	return all[offset:end], total
}

func (p *Pipeline[T]) matches(item T) bool {
	for _, pred := range p.predicates {
		if !pred(item) {
			return false
		}
	}
	return true
}

// Desc reverses a comparator.
func Desc[T any](cmp Comparator[T]) Comparator[T] {
	return func(a, b T) int { return cmp(b, a) }
}

// ContainsFold reports whether any of fields contains needle, ignoring case.
// An empty needle matches everything.
func ContainsFold(needle string, fields ...string) bool {
	needle = strings.ToLower(strings.TrimSpace(needle))
	if needle == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}
