package source

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jacentio/marquee/codec"
)

var (
	// ErrSourceNotFound is returned when an expected export file is absent.
	ErrSourceNotFound = errors.New("marquee: source not found")

	// ErrMalformedSource is returned when an export file cannot be parsed.
	ErrMalformedSource = errors.New("marquee: malformed source")

	// ErrUnknownCollection is returned for a collection name not in the registry.
	ErrUnknownCollection = errors.New("marquee: unknown collection")
)

// Dataset holds every loaded collection.
type Dataset struct {
	Titles     []Record
	Ratings    []Record
	Crew       []Record
	Principals []Record
	Episodes   []Record
	People     []Record
}

// Counts returns the number of records per collection.
func (d Dataset) Counts() map[string]int {
	return map[string]int{
		Titles:     len(d.Titles),
		Ratings:    len(d.Ratings),
		Crew:       len(d.Crew),
		Principals: len(d.Principals),
		Episodes:   len(d.Episodes),
		People:     len(d.People),
	}
}

// Loader reads collections from export files in a directory.
type Loader struct {
	fsys     fs.FS
	registry *Registry
	subset   map[string]bool
	logger   *slog.Logger
}

// NewLoader creates a loader over dir. A nil registry uses DefaultRegistry.
func NewLoader(dir string, registry *Registry, logger *slog.Logger) *Loader {
	return NewLoaderFS(os.DirFS(dir), registry, logger)
}

// NewLoaderFS creates a loader over an fs.FS.
func NewLoaderFS(fsys fs.FS, registry *Registry, logger *slog.Logger) *Loader {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		fsys:     fsys,
		registry: registry,
		logger:   logger,
	}
}

// Registry returns the collection registry the loader reads with.
func (l *Loader) Registry() *Registry {
	return l.registry
}

// SetSubset restricts Subset collections to records whose key is in keys.
// An empty slice removes the restriction.
func (l *Loader) SetSubset(keys []string) {
	if len(keys) == 0 {
		l.subset = nil
		return
	}
	l.subset = make(map[string]bool, len(keys))
	for _, k := range keys {
		l.subset[k] = true
	}
}

// Load reads and normalizes one collection.
func (l *Loader) Load(name string) ([]Record, error) {
	c, ok := l.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, name)
	}

	data, err := fs.ReadFile(l.fsys, c.File)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s (%s)", ErrSourceNotFound, c.Name, c.File)
		}
		return nil, fmt.Errorf("read %s: %w", c.File, err)
	}

	raws, err := parseRecords(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedSource, c.File, err)
	}

	records := make([]Record, 0, len(raws))
	filtered := 0
	for _, raw := range raws {
		rec := Normalize(raw, c.ListFields...)
		if c.Subset && l.subset != nil {
			if k, _ := rec.Key(c.KeyField); !l.subset[k] {
				filtered++
				continue
			}
		}
		records = append(records, rec)
	}

	l.logger.Info("loaded collection",
		"collection", c.Name,
		"file", c.File,
		"records", len(records),
		"filtered", filtered,
	)
	return records, nil
}

// LoadAll reads every collection of the default layout.
func (l *Loader) LoadAll() (Dataset, error) {
	var d Dataset
	targets := []struct {
		name string
		dst  *[]Record
	}{
		{Titles, &d.Titles},
		{Ratings, &d.Ratings},
		{Crew, &d.Crew},
		{Principals, &d.Principals},
		{Episodes, &d.Episodes},
		{People, &d.People},
	}
	for _, t := range targets {
		records, err := l.Load(t.name)
		if err != nil {
			return Dataset{}, err
		}
		*t.dst = records
	}
	return d, nil
}

// parseRecords accepts either a JSON array of flat records or a DynamoDB
// batch-write document ({"Table": [{"PutRequest": {"Item": {...}}}]}).
func parseRecords(data []byte) ([]map[string]any, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty file")
	}

	switch data[0] {
	case '[':
		var out []map[string]any
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, err
		}
		return out, nil
	case '{':
		return parseBatchWrite(data)
	}
	return nil, fmt.Errorf("unexpected leading byte %q", data[0])
}

type putRequest struct {
	PutRequest *struct {
		Item json.RawMessage `json:"Item"`
	} `json:"PutRequest"`
}

func parseBatchWrite(data []byte) ([]map[string]any, error) {
	var tables map[string][]putRequest
	if err := json.Unmarshal(data, &tables); err != nil {
		return nil, err
	}
	if len(tables) != 1 {
		return nil, fmt.Errorf("expected one table, found %d", len(tables))
	}

	var out []map[string]any
	for _, requests := range tables {
		out = make([]map[string]any, 0, len(requests))
		for i, req := range requests {
			if req.PutRequest == nil {
				return nil, fmt.Errorf("request %d: missing PutRequest", i)
			}
			item, err := codec.UnmarshalItemJSON(req.PutRequest.Item)
			if err != nil {
				return nil, fmt.Errorf("request %d: %w", i, err)
			}
			raw := make(map[string]any, len(item))
			for k, v := range item {
				raw[k] = v
			}
			out = append(out, raw)
		}
	}
	return out, nil
}

// ReadKeys reads a newline-separated key file, skipping blank lines.
func ReadKeys(path string) ([]string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, path)
		}
		return nil, err
	}
	defer f.Close()

	var keys []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if k := strings.TrimSpace(sc.Text()); k != "" {
			keys = append(keys, k)
		}
	}
	return keys, sc.Err()
}
