// Package store is the DynamoDB boundary for denormalized title documents.
//
// Writes go through [Store.WriteAll], which drops documents without a key,
// removes later duplicates, splits the rest into BatchWriteItem chunks and
// resubmits each chunk's unprocessed items with exponential backoff until
// none remain:
//
//	s := store.New(dynamodb.NewFromConfig(awsCfg), store.DefaultConfig(), logger)
//	res, err := s.WriteAll(ctx, denorm.Items(docs))
//
// # Configuration
//
// [DefaultConfig] targets the "Movies" table keyed by "tconst" with chunks
// of 25, the BatchWriteItem maximum. Retries are bounded:
//
//	cfg := store.DefaultConfig()
//	cfg.Retry.MaxRetries = 3
//
// # Errors
//
//   - [ErrNotFound] - no document has the requested key
//   - [*FatalWriteError] - a chunk could not be written; carries the keys
//     that were left unprocessed
//
// Throttling errors (ProvisionedThroughputExceededException,
// RequestLimitExceeded, ThrottlingException) are not returned directly: the
// whole chunk is treated as unprocessed and retried.
package store
