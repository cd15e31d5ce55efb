package denorm

import (
	"strconv"

	"github.com/jacentio/marquee/codec"
	"github.com/jacentio/marquee/source"
)

// UnknownName is the cast name used when a person cannot be resolved.
const UnknownName = "Unknown"

// KeyAttribute is the primary key attribute of a Document.
const KeyAttribute = "tconst"

// Document is one denormalized title.
type Document struct {
	Tconst         string
	TitleType      string
	PrimaryTitle   string
	OriginalTitle  string
	StartYear      int64
	EndYear        int64
	RuntimeMinutes int64
	IsAdult        int64
	Genres         []string
	Ratings        Ratings
	Crew           *Crew
	Cast           []CastMember
	Episodes       []source.Record
}

// Ratings is the nested rating summary.
type Ratings struct {
	// AverageRating is a numeric literal ("7.5"); "0" when unrated.
	AverageRating string
	NumVotes      int64
}

// Crew lists the person keys of a title's directors and writers.
type Crew struct {
	Directors []string
	Writers   []string
}

// CastMember is one principal with its resolved name.
type CastMember struct {
	Nconst   string
	Name     string
	Category string
	// Characters is kept in its encoded form (e.g., `["Self"]`).
	Characters string
}

// Key returns the document's primary key.
func (d Document) Key() string { return d.Tconst }

// Item converts the document to its stored shape. Every title attribute is
// present; a title without crew gets an empty crew map.
func (d Document) Item() codec.Map {
	cast := make(codec.List, 0, len(d.Cast))
	for _, c := range d.Cast {
		cast = append(cast, codec.Map{
			"nconst":     codec.Text(c.Nconst),
			"name":       codec.Text(c.Name),
			"category":   codec.Text(c.Category),
			"characters": codec.Text(c.Characters),
		})
	}

	episodes := make(codec.List, 0, len(d.Episodes))
	for _, e := range d.Episodes {
		episodes = append(episodes, e.Value())
	}

	crew := codec.Map{}
	if d.Crew != nil {
		crew["directors"] = codec.TextList(d.Crew.Directors)
		crew["writers"] = codec.TextList(d.Crew.Writers)
	}

	genres := d.Genres
	if genres == nil {
		genres = []string{}
	}

	avg := d.Ratings.AverageRating
	if avg == "" {
		avg = "0"
	}

	return codec.Map{
		"tconst":         codec.Text(d.Tconst),
		"titleType":      codec.Text(d.TitleType),
		"primaryTitle":   codec.Text(d.PrimaryTitle),
		"originalTitle":  codec.Text(d.OriginalTitle),
		"startYear":      number(d.StartYear),
		"endYear":        number(d.EndYear),
		"runtimeMinutes": number(d.RuntimeMinutes),
		"isAdult":        number(d.IsAdult),
		"genres":         codec.TextList(genres),
		"ratings": codec.Map{
			"averageRating": codec.Number(avg),
			"numVotes":      number(d.Ratings.NumVotes),
		},
		"crew":     crew,
		"cast":     cast,
		"episodes": episodes,
	}
}

func number(i int64) codec.Number {
	return codec.Number(strconv.FormatInt(i, 10))
}

// Items converts documents to their stored shape, keeping order.
func Items(docs []Document) []codec.Map {
	out := make([]codec.Map, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Item())
	}
	return out
}
