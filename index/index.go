// Package index builds read-only lookup structures over flat record
// collections for in-memory joins.
//
// Indices are values: they are built once and then only read, so they can be
// passed to any number of consumers without copying or locking.
package index

// KeyFunc extracts the join key from a record. It reports false when the
// record carries no usable key; such records are left out of the index.
type KeyFunc[T any] func(T) (string, bool)

// Unique maps a key to exactly one record (a 1:1 join).
type Unique[T any] struct {
	byKey   map[string]T
	dropped int
}

// BuildUnique indexes records by key. A later record with a key already seen
// replaces the earlier one.
func BuildUnique[T any](records []T, key KeyFunc[T]) Unique[T] {
	u := Unique[T]{byKey: make(map[string]T, len(records))}
	for _, r := range records {
		k, ok := key(r)
		if !ok {
			u.dropped++
			continue
		}
		u.byKey[k] = r
	}
	return u
}

// Get returns the record stored under key.
func (u Unique[T]) Get(key string) (T, bool) {
	r, ok := u.byKey[key]
	return r, ok
}

// Len returns the number of distinct keys.
func (u Unique[T]) Len() int { return len(u.byKey) }

// Dropped returns how many records had no key.
func (u Unique[T]) Dropped() int { return u.dropped }

// Grouped maps a key to an ordered list of records (a 1:N join).
type Grouped[T any] struct {
	byKey   map[string][]T
	dropped int
}

// BuildGrouped groups records by key, keeping input order within a group.
func BuildGrouped[T any](records []T, key KeyFunc[T]) Grouped[T] {
	g := Grouped[T]{byKey: make(map[string][]T)}
	for _, r := range records {
		k, ok := key(r)
		if !ok {
			g.dropped++
			continue
		}
		g.byKey[k] = append(g.byKey[k], r)
	}
	return g
}

// Get returns the group for key, or nil. Callers must not modify the
// returned slice.
func (g Grouped[T]) Get(key string) []T {
	return g.byKey[key]
}

// Len returns the number of distinct keys.
func (g Grouped[T]) Len() int { return len(g.byKey) }

// Dropped returns how many records had no key.
func (g Grouped[T]) Dropped() int { return g.dropped }
