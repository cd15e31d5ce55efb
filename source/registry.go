package source

// Cardinality describes how a collection joins onto titles.
type Cardinality int

const (
	// Root is the driving collection: one document per record.
	Root Cardinality = iota
	// OneToOne collections hold at most one record per key.
	OneToOne
	// OneToMany collections hold an ordered list of records per key.
	OneToMany
)

// Collection names.
const (
	Titles     = "titles"
	Ratings    = "ratings"
	Crew       = "crew"
	Principals = "principals"
	Episodes   = "episodes"
	People     = "people"
)

// Collection describes one entity export.
type Collection struct {
	// Name is the collection name (e.g., "ratings").
	Name string

	// File is the export file name, relative to the source directory.
	File string

	// KeyField is the attribute the collection is indexed by (e.g., "tconst").
	KeyField string

	// ListFields are comma-delimited attributes that normalize to lists.
	ListFields []string

	// Join is how the collection relates to titles.
	Join Cardinality

	// Subset marks collections filtered by the working set of title keys.
	Subset bool
}

// Registry holds the known collections in registration order.
type Registry struct {
	collections []Collection
	byName      map[string]Collection
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		collections: []Collection{},
		byName:      make(map[string]Collection),
	}
}

// DefaultRegistry returns the six IMDb-style exports.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(Collection{Name: Titles, File: "ftitle_basics.json", KeyField: "tconst", ListFields: []string{"genres"}, Join: Root, Subset: true})
	r.Register(Collection{Name: Ratings, File: "ftitle_ratings.json", KeyField: "tconst", Join: OneToOne, Subset: true})
	r.Register(Collection{Name: Crew, File: "ftitle_crew.json", KeyField: "tconst", ListFields: []string{"directors", "writers"}, Join: OneToOne, Subset: true})
	r.Register(Collection{Name: Principals, File: "ftitle_principals.json", KeyField: "tconst", Join: OneToMany, Subset: true})
	r.Register(Collection{Name: Episodes, File: "ftitle_episodes.json", KeyField: "parentTconst", Join: OneToMany, Subset: true})
	r.Register(Collection{Name: People, File: "fname_basics.json", KeyField: "nconst", Join: OneToOne})
	return r
}

// Register adds a collection, replacing any earlier one with the same name.
func (r *Registry) Register(c Collection) {
	if _, exists := r.byName[c.Name]; exists {
		for i := range r.collections {
			if r.collections[i].Name == c.Name {
				r.collections[i] = c
			}
		}
	} else {
		r.collections = append(r.collections, c)
	}
	r.byName[c.Name] = c
}

// Get returns the named collection.
func (r *Registry) Get(name string) (Collection, bool) {
	c, ok := r.byName[name]
	return c, ok
}

// All returns all registered collections.
func (r *Registry) All() []Collection {
	return r.collections
}
