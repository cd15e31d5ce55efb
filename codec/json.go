package codec

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedTag is returned when a tagged JSON value does not hold exactly
// one known type tag.
var ErrMalformedTag = errors.New("marquee: malformed tagged value")

// MarshalJSON encodes t as {"S": "..."}.
func (t Text) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"S": string(t)})
}

// MarshalJSON encodes n as {"N": "..."}.
func (n Number) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"N": string(n)})
}

// MarshalJSON encodes l as {"L": [...]}.
func (l List) MarshalJSON() ([]byte, error) {
	elems := []Value(l)
	if elems == nil {
		elems = []Value{}
	}
	return json.Marshal(map[string][]Value{"L": elems})
}

// MarshalJSON encodes m as {"M": {...}}.
func (m Map) MarshalJSON() ([]byte, error) {
	fields := map[string]Value(m)
	if fields == nil {
		fields = map[string]Value{}
	}
	return json.Marshal(map[string]map[string]Value{"M": fields})
}

// MarshalItemJSON encodes a top-level item: attribute names map directly to
// tagged values, without an enclosing "M".
func MarshalItemJSON(m Map) ([]byte, error) {
	return json.Marshal(map[string]Value(m))
}

// UnmarshalItemJSON decodes a top-level item written by MarshalItemJSON.
func UnmarshalItemJSON(data []byte) (Map, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return unmarshalFields(raw)
}

// UnmarshalJSONValue decodes one tagged value such as {"N": "7"}.
func UnmarshalJSONValue(data []byte) (Value, error) {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return nil, err
	}
	if len(tagged) != 1 {
		return nil, fmt.Errorf("%w: %d tags", ErrMalformedTag, len(tagged))
	}
	for tag, body := range tagged {
		switch tag {
		case "S":
			var s string
			if err := json.Unmarshal(body, &s); err != nil {
				return nil, fmt.Errorf("%w: S: %v", ErrMalformedTag, err)
			}
			return Text(s), nil
		case "N":
			var s string
			if err := json.Unmarshal(body, &s); err != nil {
				return nil, fmt.Errorf("%w: N: %v", ErrMalformedTag, err)
			}
			return Number(s), nil
		case "L":
			var elems []json.RawMessage
			if err := json.Unmarshal(body, &elems); err != nil {
				return nil, fmt.Errorf("%w: L: %v", ErrMalformedTag, err)
			}
			l := make(List, 0, len(elems))
			for i, e := range elems {
				v, err := UnmarshalJSONValue(e)
				if err != nil {
					return nil, fmt.Errorf("element %d: %w", i, err)
				}
				l = append(l, v)
			}
			return l, nil
		case "M":
			var raw map[string]json.RawMessage
			if err := json.Unmarshal(body, &raw); err != nil {
				return nil, fmt.Errorf("%w: M: %v", ErrMalformedTag, err)
			}
			return unmarshalFields(raw)
		case "SS":
			var ss []string
			if err := json.Unmarshal(body, &ss); err != nil {
				return nil, fmt.Errorf("%w: SS: %v", ErrMalformedTag, err)
			}
			return TextList(ss), nil
		case "NS":
			var ns []string
			if err := json.Unmarshal(body, &ns); err != nil {
				return nil, fmt.Errorf("%w: NS: %v", ErrMalformedTag, err)
			}
			l := make(List, 0, len(ns))
			for _, n := range ns {
				l = append(l, Number(n))
			}
			return l, nil
		case "BOOL":
			var b bool
			if err := json.Unmarshal(body, &b); err != nil {
				return nil, fmt.Errorf("%w: BOOL: %v", ErrMalformedTag, err)
			}
			return Encode(b), nil
		case "NULL":
			return Text(""), nil
		default:
			return nil, fmt.Errorf("%w: unknown tag %q", ErrMalformedTag, tag)
		}
	}
	return nil, ErrMalformedTag
}

func unmarshalFields(raw map[string]json.RawMessage) (Map, error) {
	m := make(Map, len(raw))
	for k, body := range raw {
		v, err := UnmarshalJSONValue(body)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		m[k] = v
	}
	return m, nil
}
