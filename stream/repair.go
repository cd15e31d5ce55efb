// Package stream provides the DynamoDB Streams handler that repairs title
// documents whose list attributes were stored as comma-joined text.
package stream

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/marquee/codec"
	"github.com/jacentio/marquee/store"
)

// Writer is the write side used by the handler. *store.Store satisfies it.
type Writer interface {
	WriteAll(ctx context.Context, docs []codec.Map) (store.WriteResult, error)
}

// Handler processes DynamoDB stream events for the document table.
type Handler struct {
	writer Writer
	key    string
	logger *slog.Logger
}

// NewHandler creates a new stream handler. key is the table's partition key
// attribute; empty uses "tconst". A nil logger uses slog.Default().
func NewHandler(w Writer, key string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if key == "" {
		key = "tconst"
	}
	return &Handler{
		writer: w,
		key:    key,
		logger: logger,
	}
}

// HandleGenreRepair rewrites every inserted or modified document holding a
// repairable attribute as text so that it holds a list. Documents already in
// list form are left alone, so the rewrite's own MODIFY event is a no-op.
// Only the last record of each key in the event decides: a later REMOVE, a
// later image that needs no repair, or a later keys-only record cancels an
// earlier pending rewrite.
// This function is designed to be used as an AWS Lambda handler.
func (h *Handler) HandleGenreRepair(ctx context.Context, event events.DynamoDBEvent) error {
	latest := make(map[string]codec.Map)
	var order []string

	for _, record := range event.Records {
		key, doc, err := h.processRecord(record)
		if err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			return err // Will retry, eventually DLQ
		}
		if key == "" {
			continue
		}
		if _, seen := latest[key]; !seen {
			order = append(order, key)
		}
		latest[key] = doc
	}

	var repaired []codec.Map
	for _, key := range order {
		if doc := latest[key]; doc != nil {
			repaired = append(repaired, doc)
		}
	}
	if len(repaired) == 0 {
		return nil
	}

	res, err := h.writer.WriteAll(ctx, repaired)
	if err != nil {
		return fmt.Errorf("write repaired documents: %w", err)
	}
	h.logger.Info("genre repair completed",
		"records", len(event.Records),
		"repaired", res.Written,
	)
	return nil
}

// processRecord returns the record's key and its repaired document. The
// document is nil when the record leaves nothing to write. The key is empty
// when the record carries none.
func (h *Handler) processRecord(record events.DynamoDBEventRecord) (string, codec.Map, error) {
	key := h.recordKey(record)
	if key == "" {
		return "", nil, nil
	}
	if record.EventName != "INSERT" && record.EventName != "MODIFY" {
		return key, nil, nil
	}
	image := record.Change.NewImage
	if len(image) == 0 {
		h.logger.Debug("record has no new image", "eventID", record.EventID)
		return key, nil, nil
	}

	doc, err := ConvertImage(image)
	if err != nil {
		return "", nil, fmt.Errorf("convert image: %w", err)
	}
	fields := Repair(doc)
	if len(fields) == 0 {
		return key, nil, nil
	}

	h.logger.Info("repairing document",
		"key", key,
		"fields", fields,
	)
	return key, doc, nil
}

// recordKey reads the partition key from the record's keys, falling back to
// its new and then its old image.
func (h *Handler) recordKey(record events.DynamoDBEventRecord) string {
	for _, image := range []map[string]events.DynamoDBAttributeValue{
		record.Change.Keys,
		record.Change.NewImage,
		record.Change.OldImage,
	} {
		if k := getStringAttr(image, h.key); k != "" {
			return k
		}
	}
	return ""
}

// Repair rewrites, in place, each repairable attribute of doc that holds
// text into a list of its comma-separated tokens, and returns the names of
// the attributes it changed.
func Repair(doc codec.Map) []string {
	var changed []string
	for _, name := range codec.RepairFields() {
		t, ok := doc[name].(codec.Text)
		if !ok {
			continue
		}
		doc[name] = codec.TextList(codec.SplitList(string(t)))
		changed = append(changed, name)
	}
	return changed
}
