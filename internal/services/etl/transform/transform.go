// Package transform maps source projections to index documents. Everything
// here is pure: same batch in, same documents out
package transform

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"moviesync/internal/core/textnorm"
	"moviesync/internal/services/etl/domain"
)

// Transform maps a batch to documents and the cursor the loader should commit
func Transform(b domain.Batch) (domain.Documents, time.Time) {
	films, rejected := Films(b.Films)
	docs := domain.Documents{
		Films:    films,
		Genres:   Genres(b.Genres),
		Persons:  Persons(b.Persons),
		Rejected: rejected,
	}
	return docs, NextCursor(b)
}

// NextCursor is the latest film change in the batch, or the batch's own
// cursor when no film row survived projection
func NextCursor(b domain.Batch) time.Time {
	var next time.Time
	for _, f := range b.Films {
		if f.ChangedAt.After(next) {
			next = f.ChangedAt
		}
	}
	if next.IsZero() {
		return b.NextCursor
	}
	return next
}

type credit struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// Films maps film rows; a row whose persons column does not parse is rejected
func Films(rows []domain.FilmRow) ([]domain.FilmDocument, []domain.Rejection) {
	out := make([]domain.FilmDocument, 0, len(rows))
	var rejected []domain.Rejection
	for _, r := range rows {
		d, err := Film(r)
		if err != nil {
			rejected = append(rejected, domain.Rejection{
				Index:  domain.IndexMovies,
				ID:     r.ID,
				Reason: "persons: " + err.Error(),
			})
			continue
		}
		out = append(out, d)
	}
	return out, rejected
}

// Film maps one film row
func Film(r domain.FilmRow) (domain.FilmDocument, error) {
	var credits []credit
	if s := strings.TrimSpace(r.Persons); s != "" {
		if err := json.Unmarshal([]byte(s), &credits); err != nil {
			return domain.FilmDocument{}, err
		}
	}

	d := domain.FilmDocument{
		ID:           r.ID,
		IMDBRating:   rating(r.Rating),
		Genre:        genres(r.Genres),
		Title:        textnorm.Line(r.Title),
		Description:  textnorm.Ptr(r.Description, textnorm.Text),
		ActorsNames:  []string{},
		WritersNames: []string{},
		Actors:       []domain.Participant{},
		Writers:      []domain.Participant{},
	}
	for _, c := range credits {
		name := textnorm.Line(c.Name)
		switch domain.ClassifyRole(c.Role) {
		case domain.RoleActor:
			d.Actors = append(d.Actors, domain.Participant{ID: c.ID, Name: name})
			d.ActorsNames = append(d.ActorsNames, name)
		case domain.RoleWriter:
			d.Writers = append(d.Writers, domain.Participant{ID: c.ID, Name: name})
			d.WritersNames = append(d.WritersNames, name)
		case domain.RoleDirector:
			d.Director = &name
		}
	}
	return d, nil
}

// rating parses the source value; empty, null or non-numeric yields nil
func rating(s *string) *float64 {
	if s == nil {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(*s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// genres splits the comma-joined names in source order
func genres(s string) []string {
	out := []string{}
	for _, g := range strings.Split(s, ",") {
		if g = textnorm.Line(g); g != "" {
			out = append(out, g)
		}
	}
	return out
}

// Genres maps genre rows field to field
func Genres(rows []domain.GenreRow) []domain.GenreDocument {
	out := make([]domain.GenreDocument, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.GenreDocument{
			ID:    r.ID,
			Name:  textnorm.Line(r.Name),
			Films: r.Films,
		})
	}
	return out
}

// Persons groups role rows by person. The first row of a person creates the
// document; every row then sets the field of its own role only
func Persons(rows []domain.PersonRoleRow) []domain.PersonDocument {
	idx := make(map[string]int, len(rows))
	out := make([]domain.PersonDocument, 0, len(rows))
	for _, r := range rows {
		i, ok := idx[r.PersonID]
		if !ok {
			i = len(out)
			idx[r.PersonID] = i
			out = append(out, domain.PersonDocument{ID: r.PersonID, FullName: textnorm.Line(r.FullName)})
		}
		films := r.Films
		switch domain.ClassifyRole(r.Role) {
		case domain.RoleActor:
			out[i].FilmsAsActor = &films
		case domain.RoleWriter:
			out[i].FilmsAsWriter = &films
		case domain.RoleDirector:
			out[i].FilmsAsDirector = &films
		}
	}
	return out
}
