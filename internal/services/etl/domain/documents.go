package domain

// index names
const (
	IndexMovies = "movies"
	IndexGenre  = "genre"
	IndexPerson = "person"
)

// Indices lists every destination index
var Indices = []string{IndexMovies, IndexGenre, IndexPerson}

// Document is anything the loader can index by id
type Document interface {
	IndexName() string
	DocumentID() string
}

// Participant is a person credited on a film
type Participant struct {
	ID   string `json:"id" validate:"required,uuid"`
	Name string `json:"name" validate:"required"`
}

// FilmDocument is stored in the movies index
type FilmDocument struct {
	ID           string        `json:"id" validate:"required,uuid"`
	IMDBRating   *float64      `json:"imdb_rating"`
	Genre        []string      `json:"genre"`
	Title        string        `json:"title" validate:"required"`
	Description  *string       `json:"description"`
	Director     *string       `json:"director"`
	ActorsNames  []string      `json:"actors_names"`
	WritersNames []string      `json:"writers_names"`
	Actors       []Participant `json:"actors" validate:"dive"`
	Writers      []Participant `json:"writers" validate:"dive"`
}

// IndexName implements Document
func (FilmDocument) IndexName() string { return IndexMovies }

// DocumentID implements Document
func (d FilmDocument) DocumentID() string { return d.ID }

// GenreDocument is stored in the genre index
type GenreDocument struct {
	ID    string `json:"id" validate:"required,uuid"`
	Name  string `json:"name" validate:"required"`
	Films string `json:"films" validate:"comma_uuids"`
}

// IndexName implements Document
func (GenreDocument) IndexName() string { return IndexGenre }

// DocumentID implements Document
func (d GenreDocument) DocumentID() string { return d.ID }

// PersonDocument is stored in the person index; each films_as field is a
// comma-joined film id list, absent when the person never had that role
type PersonDocument struct {
	ID              string  `json:"id" validate:"required,uuid"`
	FullName        string  `json:"full_name" validate:"required"`
	FilmsAsActor    *string `json:"films_as_actor,omitempty" validate:"omitempty,comma_uuids"`
	FilmsAsWriter   *string `json:"films_as_writer,omitempty" validate:"omitempty,comma_uuids"`
	FilmsAsDirector *string `json:"films_as_director,omitempty" validate:"omitempty,comma_uuids"`
}

// IndexName implements Document
func (PersonDocument) IndexName() string { return IndexPerson }

// DocumentID implements Document
func (d PersonDocument) DocumentID() string { return d.ID }

// Documents is the transformer output for one batch. Rejected lists rows
// that could not become documents at all
type Documents struct {
	Films    []FilmDocument   `json:"films"`
	Genres   []GenreDocument  `json:"genres"`
	Persons  []PersonDocument `json:"persons"`
	Rejected []Rejection      `json:"rejected,omitempty"`
}

// Len returns the number of documents
func (d Documents) Len() int { return len(d.Films) + len(d.Genres) + len(d.Persons) }

// All flattens the set, films first
func (d Documents) All() []Document {
	out := make([]Document, 0, d.Len())
	for _, f := range d.Films {
		out = append(out, f)
	}
	for _, g := range d.Genres {
		out = append(out, g)
	}
	for _, p := range d.Persons {
		out = append(out, p)
	}
	return out
}

// Rejection is a document the index, or validation, refused
type Rejection struct {
	Index  string `json:"index"`
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// LoadResult reports one bulk load
type LoadResult struct {
	SuccessCount int         `json:"success_count"`
	FailedIDs    []string    `json:"failed_ids"`
	Rejected     []Rejection `json:"rejected,omitempty"`
}

// RedriveResult reports one pass over the dead-letter queue
type RedriveResult struct {
	// Redriven letters were indexed and acknowledged
	Redriven int `json:"redriven"`
	// Failed letters were rejected again and stay queued
	Failed int `json:"failed"`
	// Dropped letters reached the attempt ceiling and were discarded
	Dropped int `json:"dropped"`
	// Gone letters referenced entities no longer in the source
	Gone int `json:"gone"`
}
