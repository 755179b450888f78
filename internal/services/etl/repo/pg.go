// Package repo reads change records and denormalized projections from the
// content schema
package repo

import (
	"context"
	"time"

	"moviesync/internal/modkit/repokit"
	perr "moviesync/internal/platform/errors"
	"moviesync/internal/platform/store"
	"moviesync/internal/services/etl/domain"
)

type (
	// PG is a Postgres binder for domain.SourceRepo
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG returns a Postgres binder for domain.SourceRepo
func NewPG() repokit.Binder[domain.SourceRepo] { return PG{} }

// Bind implements repokit.Binder
func (PG) Bind(q repokit.Queryer) domain.SourceRepo { return &queries{q: q} }

// detectSQL unions the three change sources, merges (film, instant) pairs and
// keeps every record up to the instant at which the $2-th distinct film first
// appears. WITH TIES pulls in the rest of that cohort
const detectSQL = `
	WITH changes AS (
		SELECT f.id AS film_id, 'film' AS reason, f.updated_at AS changed_at
		FROM content.film f
		WHERE f.updated_at > $1
		UNION ALL
		SELECT fg.film_id, 'genre', g.updated_at
		FROM content.genre g
		JOIN content.film_genre fg ON fg.genre_id = g.id
		WHERE g.updated_at > $1
		UNION ALL
		SELECT fp.film_id, 'person', p.updated_at
		FROM content.person p
		JOIN content.film_person fp ON fp.person_id = p.id
		WHERE p.updated_at > $1
	), merged AS (
		SELECT film_id, array_agg(DISTINCT reason) AS reasons, changed_at
		FROM changes
		GROUP BY film_id, changed_at
	), firsts AS (
		SELECT film_id, min(changed_at) AS first_at
		FROM merged
		GROUP BY film_id
	), cutoff AS (
		SELECT first_at
		FROM firsts
		ORDER BY first_at
		FETCH FIRST $2 ROWS WITH TIES
	)
	SELECT m.film_id::text, m.reasons, m.changed_at
	FROM merged m
	WHERE m.changed_at <= (SELECT max(first_at) FROM cutoff)
	ORDER BY m.changed_at, m.film_id
`

// DetectChanges implements domain.SourceRepo
func (r *queries) DetectChanges(ctx context.Context, since time.Time, limit int) ([]domain.ChangeRecord, error) {
	if limit <= 0 {
		return nil, perr.InvalidArgf("detect: limit must be positive, got %d", limit)
	}
	recs, err := store.Many(ctx, r.q, scanChange, detectSQL, since.UTC(), limit)
	if err != nil {
		return nil, perr.FromPostgres(err, "detect changes")
	}
	return recs, nil
}

func scanChange(row store.Row) (domain.ChangeRecord, error) {
	var (
		rec     domain.ChangeRecord
		reasons []string
	)
	if err := row.Scan(&rec.FilmID, &reasons, &rec.ChangedAt); err != nil {
		return rec, err
	}
	rec.Reasons = domain.ParseReasons(reasons...)
	rec.ChangedAt = rec.ChangedAt.UTC()
	return rec, nil
}

// films carries genre names in name order and persons as a JSON array
const filmsSQL = `
	SELECT
		f.id::text,
		f.title,
		f.description,
		f.rating::text,
		COALESCE((
			SELECT string_agg(g.name, ',' ORDER BY g.name)
			FROM content.film_genre fg
			JOIN content.genre g ON g.id = fg.genre_id
			WHERE fg.film_id = f.id
		), ''),
		COALESCE((
			SELECT json_agg(json_build_object('id', p.id, 'name', p.full_name, 'role', fp.role)
				ORDER BY p.full_name, p.id)::text
			FROM content.film_person fp
			JOIN content.person p ON p.id = fp.person_id
			WHERE fp.film_id = f.id
		), '[]')
	FROM content.film f
	WHERE f.id = ANY($1::text[]::uuid[])
	ORDER BY f.id
`

// Films implements domain.SourceRepo
func (r *queries) Films(ctx context.Context, ids []string) ([]domain.FilmRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := store.Many(ctx, r.q, scanFilm, filmsSQL, ids)
	if err != nil {
		return nil, perr.FromPostgres(err, "project films")
	}
	return rows, nil
}

func scanFilm(row store.Row) (domain.FilmRow, error) {
	var f domain.FilmRow
	err := row.Scan(&f.ID, &f.Title, &f.Description, &f.Rating, &f.Genres, &f.Persons)
	return f, err
}

// genreCols lists every film of the genre so the upsert replaces the whole document
const genreCols = `
	SELECT
		g.id::text,
		g.name,
		COALESCE((
			SELECT string_agg(fg.film_id::text, ', ' ORDER BY fg.film_id)
			FROM content.film_genre fg
			WHERE fg.genre_id = g.id
		), '')
	FROM content.genre g
`

const genresOfFilmsSQL = genreCols + `
	WHERE EXISTS (
		SELECT 1 FROM content.film_genre fg
		WHERE fg.genre_id = g.id AND fg.film_id = ANY($1::text[]::uuid[])
	)
	ORDER BY g.name, g.id
`

const genresSQL = genreCols + `
	WHERE g.id = ANY($1::text[]::uuid[])
	ORDER BY g.name, g.id
`

// GenresOfFilms implements domain.SourceRepo
func (r *queries) GenresOfFilms(ctx context.Context, filmIDs []string) ([]domain.GenreRow, error) {
	return r.genres(ctx, genresOfFilmsSQL, filmIDs)
}

// Genres implements domain.SourceRepo
func (r *queries) Genres(ctx context.Context, ids []string) ([]domain.GenreRow, error) {
	return r.genres(ctx, genresSQL, ids)
}

func (r *queries) genres(ctx context.Context, sql string, ids []string) ([]domain.GenreRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := store.Many(ctx, r.q, func(row store.Row) (domain.GenreRow, error) {
		var g domain.GenreRow
		err := row.Scan(&g.ID, &g.Name, &g.Films)
		return g, err
	}, sql, ids)
	if err != nil {
		return nil, perr.FromPostgres(err, "project genres")
	}
	return rows, nil
}

// personCols yields one row per (person, role) with every film of that role,
// so each role field of the person document is complete
const personCols = `
	SELECT p.id::text, p.full_name, r.role, r.films
	FROM content.person p
	JOIN LATERAL (
		SELECT fp.role, string_agg(fp.film_id::text, ', ' ORDER BY fp.film_id) AS films
		FROM content.film_person fp
		WHERE fp.person_id = p.id
		GROUP BY fp.role
	) r ON true
`

const personRolesOfFilmsSQL = personCols + `
	WHERE EXISTS (
		SELECT 1 FROM content.film_person fp
		WHERE fp.person_id = p.id AND fp.film_id = ANY($1::text[]::uuid[])
	)
	ORDER BY p.full_name, p.id, r.role
`

const personRolesSQL = personCols + `
	WHERE p.id = ANY($1::text[]::uuid[])
	ORDER BY p.full_name, p.id, r.role
`

// PersonRolesOfFilms implements domain.SourceRepo
func (r *queries) PersonRolesOfFilms(ctx context.Context, filmIDs []string) ([]domain.PersonRoleRow, error) {
	return r.personRoles(ctx, personRolesOfFilmsSQL, filmIDs)
}

// PersonRoles implements domain.SourceRepo
func (r *queries) PersonRoles(ctx context.Context, ids []string) ([]domain.PersonRoleRow, error) {
	return r.personRoles(ctx, personRolesSQL, ids)
}

func (r *queries) personRoles(ctx context.Context, sql string, ids []string) ([]domain.PersonRoleRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := store.Many(ctx, r.q, func(row store.Row) (domain.PersonRoleRow, error) {
		var p domain.PersonRoleRow
		err := row.Scan(&p.PersonID, &p.FullName, &p.Role, &p.Films)
		return p, err
	}, sql, ids)
	if err != nil {
		return nil, perr.FromPostgres(err, "project person roles")
	}
	return rows, nil
}
