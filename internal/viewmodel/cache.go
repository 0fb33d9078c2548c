package viewmodel

import (
	"sort"
	"time"
)

// ordered is a newest-first cache that applies last-write-wins on the
// server's updated_at. Callers provide their own locking.
type ordered[T any] struct {
	items     []T
	id        func(T) string
	createdAt func(T) time.Time
	updatedAt func(T) time.Time

	// loading counts reloads in flight; touched holds the ids changed
	// while any of them runs.
	loading int
	touched map[string]struct{}
}

func newOrdered[T any](id func(T) string, createdAt, updatedAt func(T) time.Time) *ordered[T] {
	return &ordered[T]{id: id, createdAt: createdAt, updatedAt: updatedAt}
}

// begin marks the start of a reload. Changes applied until the matching
// finish or abort win over the reloaded rows.
func (o *ordered[T]) begin() {
	o.loading++
	if o.touched == nil {
		o.touched = make(map[string]struct{})
	}
}

// abort ends a reload that produced no rows.
func (o *ordered[T]) abort() {
	o.loading--
	if o.loading <= 0 {
		o.loading = 0
		o.touched = nil
	}
}

// finish ends a reload with its listed rows. Rows changed during the
// reload keep their cached state, and a listed row never replaces a
// strictly newer cached one.
func (o *ordered[T]) finish(items []T) {
	next := make([]T, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, v := range items {
		id := o.id(v)
		seen[id] = struct{}{}
		i := o.index(id)
		if _, changed := o.touched[id]; changed {
			if i < 0 {
				// removed while loading
				continue
			}
			v = o.items[i]
		} else if i >= 0 && o.updatedAt(v).Before(o.updatedAt(o.items[i])) {
			v = o.items[i]
		}
		next = append(next, v)
	}
	for id := range o.touched {
		if _, ok := seen[id]; ok {
			continue
		}
		if i := o.index(id); i >= 0 {
			next = append(next, o.items[i])
		}
	}

	sort.SliceStable(next, func(i, j int) bool {
		return o.createdAt(next[i]).After(o.createdAt(next[j]))
	})
	o.items = next
	o.abort()
}

func (o *ordered[T]) mark(id string) {
	if o.touched != nil {
		o.touched[id] = struct{}{}
	}
}

func (o *ordered[T]) index(id string) int {
	for i, v := range o.items {
		if o.id(v) == id {
			return i
		}
	}
	return -1
}

// upsert stores v unless the cached copy is strictly newer. It reports
// whether v was applied.
func (o *ordered[T]) upsert(v T) bool {
	if i := o.index(o.id(v)); i >= 0 {
		if o.updatedAt(v).Before(o.updatedAt(o.items[i])) {
			return false
		}
		o.items[i] = v
		o.mark(o.id(v))
		return true
	}

	pos := sort.Search(len(o.items), func(i int) bool {
		return !o.createdAt(o.items[i]).After(o.createdAt(v))
	})
	o.items = append(o.items, v)
	copy(o.items[pos+1:], o.items[pos:])
	o.items[pos] = v
	o.mark(o.id(v))
	return true
}

func (o *ordered[T]) remove(id string) bool {
	o.mark(id)
	i := o.index(id)
	if i < 0 {
		return false
	}
	o.items = append(o.items[:i], o.items[i+1:]...)
	return true
}

func (o *ordered[T]) get(id string) (T, bool) {
	if i := o.index(id); i >= 0 {
		return o.items[i], true
	}
	var zero T
	return zero, false
}

func (o *ordered[T]) filter(keep func(T) bool) []T {
	out := make([]T, 0, len(o.items))
	for _, v := range o.items {
		if keep == nil || keep(v) {
			out = append(out, v)
		}
	}
	return out
}

func (o *ordered[T]) len() int {
	return len(o.items)
}
