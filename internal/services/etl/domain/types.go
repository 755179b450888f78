// Package domain holds the types that flow through one sync tick:
// change records and projections from the source, documents for the index
package domain

import (
	"sort"
	"strings"
	"time"

	perr "moviesync/internal/platform/errors"
)

// ErrNoChanges means the source had nothing newer than the cursor
var ErrNoChanges = perr.New(perr.ErrorCodeNotFound, "etl: no changes since cursor")

// Reason is a set of change sources for one film
type Reason uint8

// change sources
const (
	ReasonFilm Reason = 1 << iota
	ReasonGenre
	ReasonPerson
)

var reasonNames = []struct {
	r    Reason
	name string
}{
	{ReasonFilm, "film"},
	{ReasonGenre, "genre"},
	{ReasonPerson, "person"},
}

// Has reports whether every bit of o is set in r
func (r Reason) Has(o Reason) bool { return o != 0 && r&o == o }

// String lists the set members joined by "|"
func (r Reason) String() string {
	var parts []string
	for _, n := range reasonNames {
		if r.Has(n.r) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// ParseReasons folds source tags such as "film" or "person" into a set;
// unknown tags are ignored
func ParseReasons(tags ...string) Reason {
	var r Reason
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		for _, n := range reasonNames {
			if t == n.name {
				r |= n.r
			}
		}
	}
	return r
}

// ChangeRecord is one detected change; (FilmID, ChangedAt) is unique
type ChangeRecord struct {
	FilmID    string
	Reasons   Reason
	ChangedAt time.Time
}

// MergeRecords collapses records sharing (film, instant) into one whose reason
// set is the union, and sorts by instant then film id
func MergeRecords(in []ChangeRecord) []ChangeRecord {
	type key struct {
		id string
		at int64
	}
	idx := make(map[key]int, len(in))
	out := make([]ChangeRecord, 0, len(in))
	for _, r := range in {
		k := key{r.FilmID, r.ChangedAt.UnixNano()}
		if i, ok := idx[k]; ok {
			out[i].Reasons |= r.Reasons
			continue
		}
		idx[k] = len(out)
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ChangedAt.Equal(out[j].ChangedAt) {
			return out[i].ChangedAt.Before(out[j].ChangedAt)
		}
		return out[i].FilmID < out[j].FilmID
	})
	return out
}

// FilmRow is the denormalized projection of one film
type FilmRow struct {
	ID          string
	Title       string
	Description *string
	// Rating is the source value as text; nil when null
	Rating *string
	// Genres are genre names joined by "," in name order
	Genres string
	// Persons is a JSON array of {"id","name","role"} objects
	Persons string
	// ChangedAt is the latest change instant of this film in the batch
	ChangedAt time.Time
}

// GenreRow is a genre with every film id it is linked to
type GenreRow struct {
	ID    string
	Name  string
	Films string
}

// PersonRoleRow is a person in one role with every film id of that role
type PersonRoleRow struct {
	PersonID string
	FullName string
	Role     string
	Films    string
}

// Batch is what one extraction hands to the transformer
type Batch struct {
	// Cursor is the checkpoint the batch was detected from
	Cursor  time.Time
	Records []ChangeRecord
	Films   []FilmRow
	Genres  []GenreRow
	Persons []PersonRoleRow
	// NextCursor is the largest included change instant
	NextCursor time.Time
}

// FilmIDs returns the distinct film ids of the records, in record order
func (b Batch) FilmIDs() []string { return filmIDs(b.Records, 0) }

// FilmIDsFor returns the distinct film ids whose reasons include r
func (b Batch) FilmIDsFor(r Reason) []string { return filmIDs(b.Records, r) }

func filmIDs(recs []ChangeRecord, r Reason) []string {
	seen := make(map[string]struct{}, len(recs))
	out := make([]string, 0, len(recs))
	for _, rec := range recs {
		if r != 0 && !rec.Reasons.Has(r) {
			continue
		}
		if _, ok := seen[rec.FilmID]; ok {
			continue
		}
		seen[rec.FilmID] = struct{}{}
		out = append(out, rec.FilmID)
	}
	return out
}
