package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no document has the requested key.
	ErrNotFound = errors.New("marquee: document not found")

	// ErrRetriesExhausted is the cause carried by a FatalWriteError when the
	// retry ceiling was reached.
	ErrRetriesExhausted = errors.New("marquee: write retries exhausted")
)

// FatalWriteError is returned by WriteAll when a chunk still has unprocessed
// items after the configured number of retries, or when the store rejects a
// call for a reason other than throttling.
type FatalWriteError struct {
	// Table is the target table.
	Table string

	// Keys are the keys of the documents that were not written.
	Keys []string

	// Attempts is the number of BatchWriteItem calls made for the chunk.
	Attempts int

	// Err is the underlying cause.
	Err error
}

func (e *FatalWriteError) Error() string {
	return fmt.Sprintf("marquee: %d documents not written to %s after %d attempts: %v",
		len(e.Keys), e.Table, e.Attempts, e.Err)
}

func (e *FatalWriteError) Unwrap() error { return e.Err }
