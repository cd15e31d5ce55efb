package query

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"

	"github.com/jacentio/marquee/codec"
)

// WorkloadConfig parameterizes the analytical workload.
type WorkloadConfig struct {
	// Keys are looked up one at a time.
	Keys []string

	// TitleType restricts the runtime averages.
	// Default: "movie"
	TitleType string

	// YearLow and YearHigh bound the runtime averages, inclusive.
	// Default: 2014..2024
	YearLow, YearHigh int

	// TopGenres is the number of genres ranked.
	// Default: 10
	TopGenres int
}

// DefaultWorkloadConfig returns the standard workload with no lookup keys.
func DefaultWorkloadConfig() WorkloadConfig {
	return WorkloadConfig{
		TitleType: "movie",
		YearLow:   2014,
		YearHigh:  2024,
		TopGenres: 10,
	}
}

func (c *WorkloadConfig) validate() {
	d := DefaultWorkloadConfig()
	if c.TitleType == "" {
		c.TitleType = d.TitleType
	}
	if c.YearLow == 0 && c.YearHigh == 0 {
		c.YearLow, c.YearHigh = d.YearLow, d.YearHigh
	}
	if c.YearHigh < c.YearLow {
		c.YearLow, c.YearHigh = c.YearHigh, c.YearLow
	}
	if c.TopGenres < 1 {
		c.TopGenres = d.TopGenres
	}
}

// MostVoted is the title with the highest vote count.
type MostVoted struct {
	Tconst       string `dynamodbav:"tconst"`
	PrimaryTitle string `dynamodbav:"primaryTitle"`
	NumVotes     int64  `dynamodbav:"-"`
}

// WorkloadReport holds the results of every workload part.
type WorkloadReport struct {
	// Found are the documents returned by the key lookups, in key order.
	Found []codec.Map

	// Missing are the lookup keys with no document.
	Missing []string

	// BusiestYear is the start year with the most titles; Count is zero when
	// no document had a start year.
	BusiestYear Count

	// TopGenres ranks genres by title count.
	TopGenres []Count

	// RuntimeByYear averages runtimeMinutes per start year, ascending.
	RuntimeByYear []GroupAverage

	// MostVoted is nil when the table is empty.
	MostVoted *MostVoted

	// Elapsed is the time taken by each part, by part name.
	Elapsed map[string]time.Duration

	// Total is the time taken by the whole workload.
	Total time.Duration
}

// Workload part names, as used in WorkloadReport.Elapsed.
const (
	PartLookup      = "lookup"
	PartBusiestYear = "busiestYear"
	PartTopGenres   = "topGenres"
	PartRuntime     = "runtimeByYear"
	PartMostVoted   = "mostVoted"
)

// Workload runs the five analytical reads in order: key lookups, the year
// with the most titles, the top genres, average runtime per year for one
// title type in a year range, and the most voted title.
func (s *Service) Workload(ctx context.Context, cfg WorkloadConfig) (WorkloadReport, error) {
	cfg.validate()
	rep := WorkloadReport{Elapsed: make(map[string]time.Duration)}
	start := time.Now()

	parts := []struct {
		name string
		run  func(context.Context, WorkloadConfig, *WorkloadReport) error
	}{
		{PartLookup, s.lookupPart},
		{PartBusiestYear, s.busiestYearPart},
		{PartTopGenres, s.topGenresPart},
		{PartRuntime, s.runtimePart},
		{PartMostVoted, s.mostVotedPart},
	}
	for _, p := range parts {
		t := time.Now()
		if err := p.run(ctx, cfg, &rep); err != nil {
			return rep, fmt.Errorf("workload %s: %w", p.name, err)
		}
		rep.Elapsed[p.name] = time.Since(t)
		s.logger.Info("workload part complete", "part", p.name, "elapsed", rep.Elapsed[p.name])
	}

	rep.Total = time.Since(start)
	return rep, nil
}

func (s *Service) lookupPart(ctx context.Context, cfg WorkloadConfig, rep *WorkloadReport) error {
	found, missing, err := s.LookupMany(ctx, cfg.Keys)
	if err != nil {
		return err
	}
	for _, k := range missing {
		s.logger.Warn("no document for key", "tconst", k)
	}
	rep.Found, rep.Missing = found, missing
	return nil
}

func (s *Service) busiestYearPart(ctx context.Context, _ WorkloadConfig, rep *WorkloadReport) error {
	docs, err := s.Scan(ctx, "startYear")
	if err != nil {
		return err
	}
	if top := TopCounts(GroupCount(docs, "startYear"), 1); len(top) > 0 {
		rep.BusiestYear = top[0]
	}
	return nil
}

func (s *Service) topGenresPart(ctx context.Context, cfg WorkloadConfig, rep *WorkloadReport) error {
	docs, err := s.Scan(ctx, "tconst", "genres", "ratings")
	if err != nil {
		return err
	}
	rep.TopGenres = TopCounts(GroupCount(docs, "genres"), cfg.TopGenres)
	return nil
}

func (s *Service) runtimePart(ctx context.Context, cfg WorkloadConfig, rep *WorkloadReport) error {
	docs, err := s.FilteredScan(ctx,
		Equal{Attr: "titleType", Value: cfg.TitleType},
		Between{Attr: "startYear", Low: cfg.YearLow, High: cfg.YearHigh},
		"tconst", "startYear", "titleType", "runtimeMinutes",
	)
	if err != nil {
		return err
	}
	rep.RuntimeByYear = AverageByGroup(docs, "startYear", "runtimeMinutes")
	return nil
}

func (s *Service) mostVotedPart(ctx context.Context, _ WorkloadConfig, rep *WorkloadReport) error {
	docs, err := s.Scan(ctx, "tconst", "primaryTitle", "ratings.numVotes")
	if err != nil {
		return err
	}
	doc, votes, ok := MaxBy(docs, "ratings", "numVotes")
	if !ok {
		return nil
	}

	var mv MostVoted
	if err := attributevalue.UnmarshalMap(codec.MarshalItem(doc), &mv); err != nil {
		return fmt.Errorf("decode most voted: %w", err)
	}
	mv.NumVotes = int64(votes)
	rep.MostVoted = &mv
	return nil
}
