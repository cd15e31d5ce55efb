package stream

import (
	"fmt"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/marquee/codec"
)

// ConvertImage converts a stream record image to a document. Binary
// attributes are not part of the document model and are rejected.
func ConvertImage(image map[string]events.DynamoDBAttributeValue) (codec.Map, error) {
	doc := make(codec.Map, len(image))
	for k, v := range image {
		cv, err := convertAttr(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		doc[k] = cv
	}
	return doc, nil
}

func convertAttr(v events.DynamoDBAttributeValue) (codec.Value, error) {
	switch v.DataType() {
	case events.DataTypeString:
		return codec.Text(v.String()), nil
	case events.DataTypeNumber:
		return codec.Number(v.Number()), nil
	case events.DataTypeBoolean:
		if v.Boolean() {
			return codec.Number("1"), nil
		}
		return codec.Number("0"), nil
	case events.DataTypeNull:
		return codec.Text(""), nil
	case events.DataTypeStringSet:
		return codec.TextList(v.StringSet()), nil
	case events.DataTypeNumberSet:
		l := make(codec.List, 0, len(v.NumberSet()))
		for _, n := range v.NumberSet() {
			l = append(l, codec.Number(n))
		}
		return l, nil
	case events.DataTypeList:
		l := make(codec.List, 0, len(v.List()))
		for i, e := range v.List() {
			cv, err := convertAttr(e)
			if err != nil {
				return nil, fmt.Errorf("list element %d: %w", i, err)
			}
			l = append(l, cv)
		}
		return l, nil
	case events.DataTypeMap:
		return ConvertImage(v.Map())
	}
	return nil, fmt.Errorf("%w: stream data type %d", codec.ErrUnsupportedAttribute, v.DataType())
}

// getStringAttr extracts a string attribute from a stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}
