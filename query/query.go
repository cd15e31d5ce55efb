// Package query reads title documents back from the store and aggregates
// them in memory.
//
// Reads go through a [Service]; the aggregations ([GroupCount], [MaxBy],
// [AverageByGroup], [TopCounts]) are pure functions over the returned
// documents.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jacentio/marquee/codec"
	"github.com/jacentio/marquee/store"
)

// Reader is the read side of the store. *store.Store satisfies it.
type Reader interface {
	Get(ctx context.Context, key string) (codec.Map, error)
	Scan(ctx context.Context, input store.ScanInput) ([]codec.Map, error)
}

// Equal is an attribute equality predicate.
type Equal struct {
	Attr  string
	Value any
}

// Between is an inclusive attribute range predicate.
type Between struct {
	Attr      string
	Low, High any
}

// Service runs point lookups and scans against a Reader.
type Service struct {
	reader    Reader
	logger    *slog.Logger
	allPages  bool
	pageLimit int32
}

// New creates a Service. A nil logger uses slog.Default().
func New(reader Reader, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{reader: reader, logger: logger}
}

// SetAllPages makes scans follow continuation keys to the end of the table
// instead of returning the first page only.
func (s *Service) SetAllPages(all bool) {
	s.allPages = all
}

// SetPageLimit caps the items the store evaluates per scan page. Zero or
// less removes the cap.
func (s *Service) SetPageLimit(limit int32) {
	if limit < 0 {
		limit = 0
	}
	s.pageLimit = limit
}

// Lookup returns the document stored under key. A missing document is
// store.ErrNotFound.
func (s *Service) Lookup(ctx context.Context, key string) (codec.Map, error) {
	return s.reader.Get(ctx, key)
}

// LookupMany looks up every key in order. Documents found are returned in
// key order; keys with no document are returned in missing. Any other error
// stops the lookups.
func (s *Service) LookupMany(ctx context.Context, keys []string) (found []codec.Map, missing []string, err error) {
	for _, k := range keys {
		doc, err := s.reader.Get(ctx, k)
		if errors.Is(err, store.ErrNotFound) {
			missing = append(missing, k)
			continue
		}
		if err != nil {
			return found, missing, fmt.Errorf("lookup %q: %w", k, err)
		}
		found = append(found, doc)
	}
	if len(missing) > 0 {
		s.logger.Debug("lookup keys missing", "requested", len(keys), "missing", len(missing))
	}
	return found, missing, nil
}

// Scan returns documents restricted to projection. An empty projection
// returns whole documents.
func (s *Service) Scan(ctx context.Context, projection ...string) ([]codec.Map, error) {
	return s.reader.Scan(ctx, store.ScanInput{
		Projection: projection,
		Limit:      s.pageLimit,
		AllPages:   s.allPages,
	})
}

// FilteredScan returns documents matching eq.Attr = eq.Value AND
// rng.Attr BETWEEN rng.Low AND rng.High, evaluated by the store.
func (s *Service) FilteredScan(ctx context.Context, eq Equal, rng Between, projection ...string) ([]codec.Map, error) {
	return s.reader.Scan(ctx, store.ScanInput{
		Projection: projection,
		Filter: store.All(
			store.Equal(eq.Attr, eq.Value),
			store.Between(rng.Attr, rng.Low, rng.High),
		),
		Limit:    s.pageLimit,
		AllPages: s.allPages,
	})
}
