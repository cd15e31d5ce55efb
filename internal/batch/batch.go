// Package batch provides the write-side helpers that sit between the
// denormalizer and the store: key deduplication and fixed-size chunking.
package batch

import (
	"iter"
	"slices"
)

// MaxSize is the largest chunk a single BatchWriteItem call accepts.
const MaxSize = 25

// Dedupe returns items with later duplicates removed, keeping the first
// occurrence of each key and the relative order of survivors.
// Dedupe(Dedupe(x)) == Dedupe(x).
func Dedupe[T any](items []T, key func(T) string) []T {
	seen := make(map[string]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, it := range items {
		k := key(it)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, it)
	}
	return out
}

// Chunk yields consecutive sub-slices of at most size elements. Sizes below
// one are treated as one. Concatenating the chunks reproduces items.
func Chunk[T any](items []T, size int) iter.Seq[[]T] {
	if size < 1 {
		size = 1
	}
	return slices.Chunk(items, size)
}

// Count returns how many chunks Chunk yields for n items.
func Count(n, size int) int {
	if size < 1 {
		size = 1
	}
	return (n + size - 1) / size
}
