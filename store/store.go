package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/cenkalti/backoff/v4"

	"github.com/jacentio/marquee/codec"
	"github.com/jacentio/marquee/internal/batch"
)

// API is the subset of the DynamoDB client used by Store.
// *dynamodb.Client satisfies it.
type API interface {
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// ErrBatchTooLarge is returned by PutBatch for more items than Config.BatchSize.
var ErrBatchTooLarge = errors.New("marquee: batch exceeds batch size")

// Store reads and writes title documents in one DynamoDB table.
type Store struct {
	client API
	config Config
	logger *slog.Logger
	sleep  func(context.Context, time.Duration) error
}

// New creates a new Store instance. A nil logger uses slog.Default().
func New(client API, config Config, logger *slog.Logger) *Store {
	config.validate()
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		client: client,
		config: config,
		logger: logger,
		sleep:  sleepContext,
	}
}

// Config returns the validated configuration.
func (s *Store) Config() Config {
	return s.config
}

// WriteResult summarizes a WriteAll call.
type WriteResult struct {
	// Submitted is the number of documents passed in.
	Submitted int

	// Written is the number of documents the store accepted.
	Written int

	// Duplicates is the number of later duplicates dropped.
	Duplicates int

	// Skipped is the number of documents without a key.
	Skipped int

	// Batches is the number of chunks fully written.
	Batches int

	// Retries is the number of resubmissions across all chunks.
	Retries int
}

// WriteAll writes docs in chunks of Config.BatchSize. Documents lacking the
// key attribute are skipped; of documents sharing a key only the first is
// written. Each chunk is resubmitted until it has no unprocessed items.
// Chunks are written in order and the first failing chunk stops the write.
func (s *Store) WriteAll(ctx context.Context, docs []codec.Map) (WriteResult, error) {
	res := WriteResult{Submitted: len(docs)}

	keyed := make([]codec.Map, 0, len(docs))
	for _, d := range docs {
		if _, ok := s.key(d); !ok {
			res.Skipped++
			continue
		}
		keyed = append(keyed, d)
	}
	if res.Skipped > 0 {
		s.logger.Warn("skipping documents without key",
			"table", s.config.TableName,
			"keyAttribute", s.config.KeyAttribute,
			"skipped", res.Skipped,
		)
	}

	unique := batch.Dedupe(keyed, func(d codec.Map) string {
		k, _ := s.key(d)
		return k
	})
	res.Duplicates = len(keyed) - len(unique)

	total := batch.Count(len(unique), s.config.BatchSize)
	for chunk := range batch.Chunk(unique, s.config.BatchSize) {
		retries, err := s.PutBatch(ctx, chunk)
		res.Retries += retries
		if err != nil {
			return res, err
		}
		res.Batches++
		res.Written += len(chunk)
		s.logger.Debug("batch written",
			"table", s.config.TableName,
			"batch", res.Batches,
			"batches", total,
			"items", len(chunk),
		)
	}

	s.logger.Info("write complete",
		"table", s.config.TableName,
		"written", res.Written,
		"duplicates", res.Duplicates,
		"skipped", res.Skipped,
		"batches", res.Batches,
		"retries", res.Retries,
	)
	return res, nil
}

// PutBatch writes one chunk, resubmitting exactly the unprocessed subset
// after each backoff wait. It returns the number of resubmissions made.
func (s *Store) PutBatch(ctx context.Context, items []codec.Map) (int, error) {
	if len(items) > s.config.BatchSize {
		return 0, fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(items), s.config.BatchSize)
	}
	if len(items) == 0 {
		return 0, nil
	}

	pending := make([]types.WriteRequest, 0, len(items))
	for _, item := range items {
		pending = append(pending, types.WriteRequest{
			PutRequest: &types.PutRequest{Item: codec.MarshalItem(item)},
		})
	}

	b := s.backOff()
	attempts := 0
	for {
		attempts++
		out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{s.config.TableName: pending},
		})
		switch {
		case err == nil:
			pending = out.UnprocessedItems[s.config.TableName]
		case isThrottle(err):
			s.logger.Warn("batch write throttled",
				"table", s.config.TableName,
				"items", len(pending),
				"error", err,
			)
		default:
			return attempts - 1, s.fatal(pending, attempts, err)
		}

		if len(pending) == 0 {
			return attempts - 1, nil
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return attempts - 1, s.fatal(pending, attempts, ErrRetriesExhausted)
		}
		s.logger.Info("resubmitting unprocessed items",
			"table", s.config.TableName,
			"unprocessed", len(pending),
			"attempt", attempts,
			"wait", wait,
		)
		if err := s.sleep(ctx, wait); err != nil {
			return attempts - 1, s.fatal(pending, attempts, err)
		}
	}
}

// Get returns the document stored under key, or ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (codec.Map, error) {
	pk, err := attributevalue.MarshalMap(map[string]string{s.config.KeyAttribute: key})
	if err != nil {
		return nil, fmt.Errorf("marshal key %q: %w", key, err)
	}
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.config.TableName),
		Key:       pk,
	})
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	if len(result.Item) == 0 {
		return nil, ErrNotFound
	}
	return codec.UnmarshalItem(result.Item)
}

// Scan reads documents matching input. Only the first page is read unless
// input.AllPages is set.
func (s *Store) Scan(ctx context.Context, input ScanInput) ([]codec.Map, error) {
	scanInput, err := input.build(s.config.TableName)
	if err != nil {
		return nil, err
	}

	var items []codec.Map
	appendPage := func(page *dynamodb.ScanOutput) error {
		for _, raw := range page.Items {
			item, err := codec.UnmarshalItem(raw)
			if err != nil {
				return err
			}
			items = append(items, item)
		}
		return nil
	}

	if !input.AllPages {
		page, err := s.client.Scan(ctx, scanInput)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.config.TableName, err)
		}
		if err := appendPage(page); err != nil {
			return nil, err
		}
		return items, nil
	}

	paginator := dynamodb.NewScanPaginator(s.client, scanInput)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.config.TableName, err)
		}
		if err := appendPage(page); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// key returns the document's key attribute as a non-empty string.
func (s *Store) key(d codec.Map) (string, bool) {
	v, ok := d[s.config.KeyAttribute]
	if !ok {
		return "", false
	}
	k, ok := codec.String(v)
	return k, ok && k != ""
}

// backOff returns a fresh retry policy for one chunk.
func (s *Store) backOff() backoff.BackOff {
	r := s.config.Retry
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.InitialInterval
	b.MaxInterval = r.MaxInterval
	b.Multiplier = r.Multiplier
	b.RandomizationFactor = r.RandomizationFactor
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithMaxRetries(b, uint64(r.MaxRetries))
}

// fatal builds the FatalWriteError for the still pending requests.
func (s *Store) fatal(pending []types.WriteRequest, attempts int, err error) *FatalWriteError {
	keys := make([]string, 0, len(pending))
	for _, req := range pending {
		if req.PutRequest == nil {
			continue
		}
		v, convErr := codec.FromAttributeValue(req.PutRequest.Item[s.config.KeyAttribute])
		if convErr != nil {
			continue
		}
		if k, ok := codec.String(v); ok {
			keys = append(keys, k)
		}
	}
	s.logger.Error("batch write failed",
		"table", s.config.TableName,
		"unprocessed", len(keys),
		"attempts", attempts,
		"error", err,
	)
	return &FatalWriteError{
		Table:    s.config.TableName,
		Keys:     keys,
		Attempts: attempts,
		Err:      err,
	}
}

// isThrottle reports whether err is a DynamoDB throughput rejection.
func isThrottle(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "ProvisionedThroughputExceededException", "RequestLimitExceeded", "ThrottlingException":
		return true
	}
	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
