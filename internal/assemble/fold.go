// Package assemble turns flat joined rows back into nested objects.
//
// A one-to-many join repeats the parent's columns once per child, and a
// join against two child tables multiplies them. Fold walks those rows in
// arrival order, keeps one shell per parent id (first-seen order) and lets
// the caller ask whether a given child has already been attached to that
// parent, so duplicates introduced by the join are dropped.
package assemble

// Fold collects parents of type V keyed by K.
type Fold[K comparable, V any] struct {
	order    []K
	items    map[K]*V
	children map[childKey[K]]struct{}
}

type childKey[K comparable] struct {
	parent K
	group  string
	child  int64
}

func NewFold[K comparable, V any]() *Fold[K, V] {
	return &Fold[K, V]{
		items:    make(map[K]*V),
		children: make(map[childKey[K]]struct{}),
	}
}

// Upsert returns the shell for key, calling shell to create it on first
// sight. The bool reports whether it was created by this call.
func (f *Fold[K, V]) Upsert(key K, shell func() V) (*V, bool) {
	if item, ok := f.items[key]; ok {
		return item, false
	}
	v := shell()
	f.items[key] = &v
	f.order = append(f.order, key)
	return &v, true
}

// Get returns the shell for key if it has been seen.
func (f *Fold[K, V]) Get(key K) (*V, bool) {
	item, ok := f.items[key]
	return item, ok
}

// Child reports whether this is the first time child appears under parent
// within group. Groups keep unrelated collections (tags, ingredients) apart.
func (f *Fold[K, V]) Child(parent K, group string, child int64) bool {
	k := childKey[K]{parent: parent, group: group, child: child}
	if _, seen := f.children[k]; seen {
		return false
	}
	f.children[k] = struct{}{}
	return true
}

// Values returns the parents in first-seen order.
func (f *Fold[K, V]) Values() []V {
	out := make([]V, 0, len(f.order))
	for _, k := range f.order {
		out = append(out, *f.items[k])
	}
	return out
}
