// Package denorm joins the flat entity collections into one nested document
// per title.
//
// The engine never fails: a missing rating, crew entry or person and a
// malformed number all resolve to documented defaults, and each default
// taken is counted in the returned [Report].
package denorm

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jacentio/marquee/codec"
	"github.com/jacentio/marquee/index"
	"github.com/jacentio/marquee/source"
)

// Indexes are the join lookups consulted for every title.
type Indexes struct {
	Ratings    index.Unique[source.Record]
	Crew       index.Unique[source.Record]
	People     index.Unique[source.Record]
	Principals index.Grouped[source.Record]
	Episodes   index.Grouped[source.Record]
}

// BuildIndexes indexes the joined collections of d by the key fields
// declared in registry. A nil registry uses source.DefaultRegistry.
func BuildIndexes(d source.Dataset, registry *source.Registry) Indexes {
	if registry == nil {
		registry = source.DefaultRegistry()
	}
	key := func(name string) index.KeyFunc[source.Record] {
		c, _ := registry.Get(name)
		return source.KeyBy(c.KeyField)
	}
	return Indexes{
		Ratings:    index.BuildUnique(d.Ratings, key(source.Ratings)),
		Crew:       index.BuildUnique(d.Crew, key(source.Crew)),
		People:     index.BuildUnique(d.People, key(source.People)),
		Principals: index.BuildGrouped(d.Principals, key(source.Principals)),
		Episodes:   index.BuildGrouped(d.Episodes, key(source.Episodes)),
	}
}

// Report counts how often each default path was taken.
type Report struct {
	// Documents is the number of documents produced.
	Documents int

	// MissingKey counts titles skipped for lack of a tconst.
	MissingKey int

	// MissingRating counts titles with no rating record.
	MissingRating int

	// MissingCrew counts titles with no crew record.
	MissingCrew int

	// UnresolvedPeople counts cast entries named UnknownName.
	UnresolvedPeople int

	// DefaultedNumbers counts absent or empty numeric fields set to 0, by field.
	DefaultedNumbers map[string]int

	// MalformedNumbers counts non-numeric or out-of-range values coerced to 0,
	// by field.
	MalformedNumbers map[string]int
}

// LogValue implements slog.LogValuer.
func (r Report) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("documents", r.Documents),
		slog.Int("missingKey", r.MissingKey),
		slog.Int("missingRating", r.MissingRating),
		slog.Int("missingCrew", r.MissingCrew),
		slog.Int("unresolvedPeople", r.UnresolvedPeople),
		slog.Any("defaultedNumbers", r.DefaultedNumbers),
		slog.Any("malformedNumbers", r.MalformedNumbers),
	)
}

// Denormalize builds one document per title, in input order.
func Denormalize(titles []source.Record, idx Indexes) ([]Document, Report) {
	rep := Report{
		DefaultedNumbers: make(map[string]int),
		MalformedNumbers: make(map[string]int),
	}
	docs := make([]Document, 0, len(titles))

	for _, t := range titles {
		tconst, ok := t.Key("tconst")
		if !ok {
			rep.MissingKey++
			continue
		}

		doc := Document{
			Tconst:         tconst,
			TitleType:      t.String("titleType"),
			PrimaryTitle:   t.String("primaryTitle"),
			OriginalTitle:  t.String("originalTitle"),
			StartYear:      rep.integer(t, "startYear"),
			EndYear:        rep.integer(t, "endYear"),
			RuntimeMinutes: rep.integer(t, "runtimeMinutes"),
			IsAdult:        rep.integer(t, "isAdult"),
			Genres:         t.Strings("genres"),
			Cast:           []CastMember{},
			Episodes:       []source.Record{},
		}

		if r, ok := idx.Ratings.Get(tconst); ok {
			doc.Ratings = Ratings{
				AverageRating: rep.decimal(r, "averageRating"),
				NumVotes:      rep.integer(r, "numVotes"),
			}
		} else {
			rep.MissingRating++
			doc.Ratings = Ratings{AverageRating: "0"}
		}

		if c, ok := idx.Crew.Get(tconst); ok {
			doc.Crew = &Crew{
				Directors: c.Strings("directors"),
				Writers:   c.Strings("writers"),
			}
		} else {
			rep.MissingCrew++
		}

		for _, p := range idx.Principals.Get(tconst) {
			nconst := p.String("nconst")
			name := UnknownName
			if person, ok := idx.People.Get(nconst); ok && person.String("primaryName") != "" {
				name = person.String("primaryName")
			} else {
				rep.UnresolvedPeople++
			}
			doc.Cast = append(doc.Cast, CastMember{
				Nconst:     nconst,
				Name:       name,
				Category:   p.String("category"),
				Characters: characters(p),
			})
		}

		doc.Episodes = append(doc.Episodes, idx.Episodes.Get(tconst)...)

		docs = append(docs, doc)
	}

	rep.Documents = len(docs)
	return docs, rep
}

// integer coerces r[field] to an integer. Decimal literals are truncated.
func (rep *Report) integer(r source.Record, field string) int64 {
	s := strings.TrimSpace(r.String(field))
	if s == "" {
		rep.DefaultedNumbers[field]++
		return 0
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if codec.IsNumeric(s) {
		if i, ok := codec.Number(s).Int64(); ok {
			return i
		}
	}
	rep.MalformedNumbers[field]++
	return 0
}

// decimal returns r[field] as a numeric literal, "0" when absent or malformed.
func (rep *Report) decimal(r source.Record, field string) string {
	s := strings.TrimSpace(r.String(field))
	if s == "" {
		rep.DefaultedNumbers[field]++
		return "0"
	}
	if !codec.IsNumeric(s) {
		rep.MalformedNumbers[field]++
		return "0"
	}
	return s
}

// characters returns the principal's characters in encoded form. Lists are
// JSON-encoded; absent values encode as an empty list.
func characters(p source.Record) string {
	switch v := p["characters"].(type) {
	case string:
		if v != "" {
			return v
		}
	case []string:
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
	}
	return "[]"
}
