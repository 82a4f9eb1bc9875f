package model

// FilmMeta holds the Wikidata-sourced fields for a single entity.
type FilmMeta struct {
	IMDBID string   `json:"imdb_id"`
	Year   int      `json:"year"`
	People []string `json:"people"`
}

// FilmRecord is the accumulated record for one film title. Fetch stages fill
// the raw fields; the clean stage normalizes them and fills the derived ones.
// A record is never discarded once created, only enriched.
type FilmRecord struct {
	Title   string   `json:"title"`
	IMDBID  string   `json:"imdb_id"`
	Year    int      `json:"year"`
	Summary string   `json:"summary"`
	People  []string `json:"people"`

	// Derived by the clean stage.
	Decade      int    `json:"decade"`
	PeopleCount int    `json:"people_count"`
	HasSummary  bool   `json:"has_summary"`
	Language    string `json:"language"`
}
