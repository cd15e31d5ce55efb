package codec

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// IsNumeric reports whether s is a digit string, optionally with a single
// interior decimal point ("42", "7.5"). Signs, exponents and surrounding
// whitespace are not numeric.
func IsNumeric(s string) bool {
	if s == "" {
		return false
	}
	dot := -1
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '.' {
			if dot >= 0 {
				return false
			}
			dot = i
			continue
		}
		if c < '0' || c > '9' {
			return false
		}
	}
	return dot != 0 && dot != len(s)-1
}

// Encode classifies a plain value into its tagged form.
//
// Strings are Number when IsNumeric holds and Text otherwise. Go integers
// and floats are Number, slices are List, string-keyed maps are Map and nil
// is the empty Text. Values that are already tagged pass through unchanged.
// Any other type is encoded as Text using its fmt representation.
func Encode(v any) Value {
	switch tv := v.(type) {
	case nil:
		return Text("")
	case Value:
		return tv
	case string:
		if IsNumeric(tv) {
			return Number(tv)
		}
		return Text(tv)
	case *string:
		if tv == nil {
			return Text("")
		}
		return Encode(*tv)
	case bool:
		if tv {
			return Number("1")
		}
		return Number("0")
	case int:
		return Number(strconv.Itoa(tv))
	case int32:
		return Number(strconv.FormatInt(int64(tv), 10))
	case int64:
		return Number(strconv.FormatInt(tv, 10))
	case uint32:
		return Number(strconv.FormatUint(uint64(tv), 10))
	case uint64:
		return Number(strconv.FormatUint(tv, 10))
	case float32:
		return Number(strconv.FormatFloat(float64(tv), 'f', -1, 32))
	case float64:
		return Number(strconv.FormatFloat(tv, 'f', -1, 64))
	case []string:
		l := make(List, 0, len(tv))
		for _, s := range tv {
			l = append(l, Encode(s))
		}
		return l
	case []any:
		l := make(List, 0, len(tv))
		for _, e := range tv {
			l = append(l, Encode(e))
		}
		return l
	case map[string]string:
		m := make(Map, len(tv))
		for k, e := range tv {
			m[k] = Encode(e)
		}
		return m
	case map[string]any:
		m := make(Map, len(tv))
		for k, e := range tv {
			m[k] = Encode(e)
		}
		return m
	}
	return Text(fmt.Sprint(v))
}

// TextList encodes every element as Text regardless of its content.
// Person keys and genre names are always text.
func TextList(items []string) List {
	l := make(List, 0, len(items))
	for _, s := range items {
		l = append(l, Text(s))
	}
	return l
}

// Decode converts a tagged value back to its plain form: Text and Number
// become string, List becomes []any and Map becomes map[string]any.
func Decode(v Value) any {
	switch tv := v.(type) {
	case Text:
		return string(tv)
	case Number:
		return string(tv)
	case List:
		out := make([]any, 0, len(tv))
		for _, e := range tv {
			out = append(out, Decode(e))
		}
		return out
	case Map:
		out := make(map[string]any, len(tv))
		for k, e := range tv {
			out[k] = DecodeField(k, e)
		}
		return out
	}
	return nil
}

// repairFields lists the attributes whose comma-joined Text is decoded as a
// list. Upstream exports wrote list-valued genres as a single joined string;
// no other attribute gets this treatment.
var repairFields = map[string]bool{
	"genres": true,
}

// RepairFields returns the attribute names covered by the comma-list repair,
// sorted.
func RepairFields() []string {
	out := make([]string, 0, len(repairFields))
	for f := range repairFields {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// NeedsRepair reports whether v, held under attribute name, is comma-joined
// Text that DecodeField would turn into a list.
func NeedsRepair(name string, v Value) bool {
	t, ok := v.(Text)
	return ok && repairFields[name] && strings.Contains(string(t), ",")
}

// DecodeField decodes v held under the attribute name. It behaves like
// Decode except for the comma-list repair: see RepairFields.
func DecodeField(name string, v Value) any {
	if NeedsRepair(name, v) {
		return SplitList(string(v.(Text)))
	}
	return Decode(v)
}

// SplitList splits a comma-delimited string, trims each token and drops
// empty tokens. The result is never nil.
func SplitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
