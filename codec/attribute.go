package codec

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ErrUnsupportedAttribute is returned for DynamoDB attribute types that have
// no document representation (binary values and binary sets).
var ErrUnsupportedAttribute = errors.New("marquee: unsupported attribute type")

// ToAttributeValue converts a tagged value to its DynamoDB form.
func ToAttributeValue(v Value) types.AttributeValue {
	switch tv := v.(type) {
	case Text:
		return &types.AttributeValueMemberS{Value: string(tv)}
	case Number:
		return &types.AttributeValueMemberN{Value: string(tv)}
	case List:
		l := make([]types.AttributeValue, 0, len(tv))
		for _, e := range tv {
			l = append(l, ToAttributeValue(e))
		}
		return &types.AttributeValueMemberL{Value: l}
	case Map:
		return &types.AttributeValueMemberM{Value: MarshalItem(tv)}
	}
	return &types.AttributeValueMemberNULL{Value: true}
}

// FromAttributeValue converts a DynamoDB attribute to a tagged value.
// NULL becomes empty Text, BOOL becomes Number 0/1 and string or number sets
// become lists.
func FromAttributeValue(av types.AttributeValue) (Value, error) {
	switch tv := av.(type) {
	case *types.AttributeValueMemberS:
		return Text(tv.Value), nil
	case *types.AttributeValueMemberN:
		return Number(tv.Value), nil
	case *types.AttributeValueMemberL:
		l := make(List, 0, len(tv.Value))
		for i, e := range tv.Value {
			v, err := FromAttributeValue(e)
			if err != nil {
				return nil, fmt.Errorf("list element %d: %w", i, err)
			}
			l = append(l, v)
		}
		return l, nil
	case *types.AttributeValueMemberM:
		return UnmarshalItem(tv.Value)
	case *types.AttributeValueMemberSS:
		return TextList(tv.Value), nil
	case *types.AttributeValueMemberNS:
		l := make(List, 0, len(tv.Value))
		for _, n := range tv.Value {
			l = append(l, Number(n))
		}
		return l, nil
	case *types.AttributeValueMemberBOOL:
		if tv.Value {
			return Number("1"), nil
		}
		return Number("0"), nil
	case *types.AttributeValueMemberNULL:
		return Text(""), nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedAttribute, av)
}

// MarshalItem converts a document to a DynamoDB item.
func MarshalItem(m Map) map[string]types.AttributeValue {
	item := make(map[string]types.AttributeValue, len(m))
	for k, v := range m {
		if v == nil {
			continue
		}
		item[k] = ToAttributeValue(v)
	}
	return item
}

// UnmarshalItem converts a DynamoDB item to a document.
func UnmarshalItem(item map[string]types.AttributeValue) (Map, error) {
	m := make(Map, len(item))
	for k, av := range item {
		v, err := FromAttributeValue(av)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		m[k] = v
	}
	return m, nil
}
