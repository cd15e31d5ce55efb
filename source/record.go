// Package source loads flat entity exports and normalizes their records.
package source

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jacentio/marquee/codec"
)

// nullMarker is the IMDb TSV spelling of a missing value.
const nullMarker = `\N`

// Record is a normalized flat record. Values are string, []string or nil.
type Record map[string]any

// Normalize converts a raw decoded record into a Record. Nulls and the IMDb
// null marker become nil; fields named in listFields are split on commas;
// JSON numbers and booleans become strings; tagged values are decoded.
func Normalize(raw map[string]any, listFields ...string) Record {
	lists := make(map[string]bool, len(listFields))
	for _, f := range listFields {
		lists[f] = true
	}
	rec := make(Record, len(raw))
	for k, v := range raw {
		rec[k] = normalizeValue(k, v, lists[k])
	}
	return rec
}

func normalizeValue(name string, v any, list bool) any {
	switch tv := v.(type) {
	case nil:
		return nil
	case codec.Value:
		return normalizeValue(name, codec.DecodeField(name, tv), list)
	case string:
		if tv == nullMarker {
			return nil
		}
		if list {
			return codec.SplitList(tv)
		}
		return tv
	case []string:
		return tv
	case []any:
		out := make([]string, 0, len(tv))
		for _, e := range tv {
			if s, ok := normalizeValue(name, e, false).(string); ok {
				out = append(out, s)
			}
		}
		return out
	case float64:
		return strconv.FormatFloat(tv, 'f', -1, 64)
	case bool:
		if tv {
			return "1"
		}
		return "0"
	}
	return fmt.Sprint(v)
}

// Key returns the non-empty string held in field.
func (r Record) Key(field string) (string, bool) {
	s, ok := r[field].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// String returns the scalar held in field. Lists are joined with ",";
// missing and null values yield "".
func (r Record) String(field string) string {
	switch v := r[field].(type) {
	case string:
		return v
	case []string:
		return strings.Join(v, ",")
	}
	return ""
}

// Strings returns the list held in field. A scalar string is split on
// commas; missing and null values yield an empty list.
func (r Record) Strings(field string) []string {
	switch v := r[field].(type) {
	case []string:
		return v
	case string:
		return codec.SplitList(v)
	}
	return []string{}
}

// Has reports whether field is present with a non-null value.
func (r Record) Has(field string) bool {
	v, ok := r[field]
	return ok && v != nil
}

// Value encodes the record as a document map, preserving every attribute.
// Null attributes encode as empty text.
func (r Record) Value() codec.Map {
	m := make(codec.Map, len(r))
	for k, v := range r {
		m[k] = codec.Encode(v)
	}
	return m
}

// KeyBy returns a key extractor for field, for use with the index package.
func KeyBy(field string) func(Record) (string, bool) {
	return func(r Record) (string, bool) {
		return r.Key(field)
	}
}
