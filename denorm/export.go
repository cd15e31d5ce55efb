package denorm

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/jacentio/marquee/codec"
)

// ErrMalformedExport is returned when an export document cannot be read.
var ErrMalformedExport = errors.New("marquee: malformed export")

type putRequest struct {
	PutRequest struct {
		Item map[string]codec.Value `json:"Item"`
	} `json:"PutRequest"`
}

// WriteExport writes items as a DynamoDB batch-write document:
//
//	{"Movies": [{"PutRequest": {"Item": {...}}}, ...]}
func WriteExport(w io.Writer, table string, items []codec.Map) error {
	reqs := make([]putRequest, len(items))
	for i, item := range items {
		reqs[i].PutRequest.Item = item
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(map[string][]putRequest{table: reqs})
}

// ReadExport reads a document written by WriteExport and returns the table
// name and its items in file order.
func ReadExport(r io.Reader) (string, []codec.Map, error) {
	var tables map[string][]struct {
		PutRequest *struct {
			Item json.RawMessage `json:"Item"`
		} `json:"PutRequest"`
	}
	if err := json.NewDecoder(r).Decode(&tables); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedExport, err)
	}
	if len(tables) != 1 {
		return "", nil, fmt.Errorf("%w: expected one table, found %d", ErrMalformedExport, len(tables))
	}

	for table, reqs := range tables {
		items := make([]codec.Map, 0, len(reqs))
		for i, req := range reqs {
			if req.PutRequest == nil {
				return "", nil, fmt.Errorf("%w: request %d has no PutRequest", ErrMalformedExport, i)
			}
			item, err := codec.UnmarshalItemJSON(req.PutRequest.Item)
			if err != nil {
				return "", nil, fmt.Errorf("%w: request %d: %v", ErrMalformedExport, i, err)
			}
			items = append(items, item)
		}
		return table, items, nil
	}
	return "", nil, ErrMalformedExport
}
