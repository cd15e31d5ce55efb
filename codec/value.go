// Package codec converts between plain Go values and the tagged document
// values stored in the movies table.
//
// A [Value] is exactly one of four cases:
//
//	Text   - a string attribute ("S")
//	Number - a numeric literal kept as its decimal string ("N")
//	List   - an ordered list of values ("L")
//	Map    - a nested document ("M")
//
// Every conversion in this package switches over all four cases.
package codec

import (
	"math"
	"strconv"
	"strings"
)

// Kind identifies which case of the Value union is held.
type Kind int

const (
	KindText Kind = iota
	KindNumber
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a tagged document value.
type Value interface {
	Kind() Kind
	isValue()
}

// Text is a string value.
type Text string

// Number is a numeric value kept in its literal decimal form.
type Number string

// List is an ordered list of values.
type List []Value

// Map is a nested document keyed by attribute name.
type Map map[string]Value

func (Text) Kind() Kind   { return KindText }
func (Number) Kind() Kind { return KindNumber }
func (List) Kind() Kind   { return KindList }
func (Map) Kind() Kind    { return KindMap }

func (Text) isValue()   {}
func (Number) isValue() {}
func (List) isValue()   {}
func (Map) isValue()    {}

// Int64 parses the number as an integer. Decimal literals are truncated.
// Unparseable literals and values outside the int64 range yield 0 and false.
func (n Number) Int64() (int64, bool) {
	if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
		return i, true
	}
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil || !(f >= math.MinInt64 && f < math.MaxInt64) {
		return 0, false
	}
	return int64(f), true
}

// Float64 parses the number. Unparseable literals yield 0 and false.
func (n Number) Float64() (float64, bool) {
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Lookup walks nested maps along path. It reports false when any step is
// missing or is not a map.
func (m Map) Lookup(path ...string) (Value, bool) {
	if len(path) == 0 {
		return nil, false
	}
	cur := m
	for i, name := range path {
		v, ok := cur[name]
		if !ok || v == nil {
			return nil, false
		}
		if i == len(path)-1 {
			return v, true
		}
		next, ok := v.(Map)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return nil, false
}

// Path splits a dotted attribute path ("ratings.numVotes") into its parts.
func Path(dotted string) []string {
	return strings.Split(dotted, ".")
}

// String returns the scalar form of v. Lists and maps have no scalar form
// and yield "" and false.
func String(v Value) (string, bool) {
	switch tv := v.(type) {
	case Text:
		return string(tv), true
	case Number:
		return string(tv), true
	case List, Map:
		return "", false
	}
	return "", false
}

// NumberOf returns the numeric value held by v. Text holding a numeric
// literal is accepted; anything else yields 0 and false.
func NumberOf(v Value) (float64, bool) {
	switch tv := v.(type) {
	case Number:
		return tv.Float64()
	case Text:
		if !IsNumeric(string(tv)) {
			return 0, false
		}
		return Number(tv).Float64()
	case List, Map:
		return 0, false
	}
	return 0, false
}
