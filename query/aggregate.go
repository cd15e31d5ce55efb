package query

import (
	"cmp"
	"slices"
	"strconv"

	"github.com/jacentio/marquee/codec"
)

// GroupCount counts documents by the value at attr, a dotted path. Each
// element of a list value counts once; a scalar value is its own group.
// Documents without the attribute are skipped. Comma-joined genres that were
// never repaired are split before counting.
func GroupCount(docs []codec.Map, attr string) map[string]int {
	path := codec.Path(attr)
	name := path[len(path)-1]
	counts := make(map[string]int)

	for _, d := range docs {
		v, ok := d.Lookup(path...)
		if !ok {
			continue
		}
		switch tv := v.(type) {
		case codec.List:
			for _, e := range tv {
				if s, ok := codec.String(e); ok {
					counts[s]++
				}
			}
		default:
			if codec.NeedsRepair(name, v) {
				for _, s := range codec.SplitList(string(v.(codec.Text))) {
					counts[s]++
				}
				continue
			}
			if s, ok := codec.String(v); ok {
				counts[s]++
			}
		}
	}
	return counts
}

// MaxBy returns the document with the largest number at path and that
// number. Missing and non-numeric values count as 0. On ties the first
// document wins. ok is false only when docs is empty.
func MaxBy(docs []codec.Map, path ...string) (doc codec.Map, value float64, ok bool) {
	for i, d := range docs {
		var n float64
		if v, found := d.Lookup(path...); found {
			n, _ = codec.NumberOf(v)
		}
		if i == 0 || n > value {
			doc, value = d, n
		}
	}
	return doc, value, len(docs) > 0
}

// GroupAverage is the mean of a numeric field over one group.
type GroupAverage struct {
	Group   string
	Average float64
	Count   int
}

// AverageByGroup averages field over documents grouped by groupKey. Both
// are dotted paths. Documents missing the group key, or whose field is
// missing or non-numeric, are left out. Groups are ordered ascending,
// numerically when both keys are numbers.
func AverageByGroup(docs []codec.Map, groupKey, field string) []GroupAverage {
	groupPath, fieldPath := codec.Path(groupKey), codec.Path(field)
	type acc struct {
		sum float64
		n   int
	}
	groups := make(map[string]*acc)

	for _, d := range docs {
		gv, ok := d.Lookup(groupPath...)
		if !ok {
			continue
		}
		g, ok := codec.String(gv)
		if !ok {
			continue
		}
		fv, ok := d.Lookup(fieldPath...)
		if !ok {
			continue
		}
		n, ok := codec.NumberOf(fv)
		if !ok {
			continue
		}
		a := groups[g]
		if a == nil {
			a = &acc{}
			groups[g] = a
		}
		a.sum += n
		a.n++
	}

	out := make([]GroupAverage, 0, len(groups))
	for g, a := range groups {
		out = append(out, GroupAverage{Group: g, Average: a.sum / float64(a.n), Count: a.n})
	}
	slices.SortFunc(out, func(a, b GroupAverage) int {
		return compareKeys(a.Group, b.Group)
	})
	return out
}

// Count is one entry of a ranked count.
type Count struct {
	Key   string
	Count int
}

// TopCounts ranks counts by count descending, then key ascending, and
// returns the first n. n <= 0 returns every entry.
func TopCounts(counts map[string]int, n int) []Count {
	out := make([]Count, 0, len(counts))
	for k, c := range counts {
		out = append(out, Count{Key: k, Count: c})
	}
	slices.SortFunc(out, func(a, b Count) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return compareKeys(a.Key, b.Key)
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// compareKeys orders numeric keys by value and everything else as text.
// Numeric keys sort before text keys.
func compareKeys(a, b string) int {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	switch {
	case errA == nil && errB == nil:
		if c := cmp.Compare(fa, fb); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return cmp.Compare(a, b)
}
