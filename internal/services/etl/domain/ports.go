package domain

import (
	"context"
	"time"

	cpdom "moviesync/internal/services/checkpoint/domain"
	dlqdom "moviesync/internal/services/deadletter/domain"
	ledgerdom "moviesync/internal/services/ledger/domain"
)

// Ports are the collaborators the etl module takes from other modules
type Ports struct {
	Checkpoint  cpdom.Store
	DeadLetters dlqdom.Queue
	Ledger      ledgerdom.Recorder
}

// SourceRepo reads changes and projections from the relational store
type SourceRepo interface {
	// DetectChanges returns merged change records newer than since, already
	// cut at limit distinct films plus the cohort tying the last one
	DetectChanges(ctx context.Context, since time.Time, limit int) ([]ChangeRecord, error)

	// Films projects the given films; ChangedAt is left zero
	Films(ctx context.Context, ids []string) ([]FilmRow, error)

	// GenresOfFilms returns every genre linked to any of the films
	GenresOfFilms(ctx context.Context, filmIDs []string) ([]GenreRow, error)

	// PersonRolesOfFilms returns every role row of every person linked to any of the films
	PersonRolesOfFilms(ctx context.Context, filmIDs []string) ([]PersonRoleRow, error)

	// Genres projects genres by id
	Genres(ctx context.Context, ids []string) ([]GenreRow, error)

	// PersonRoles projects every role row of the given persons
	PersonRoles(ctx context.Context, ids []string) ([]PersonRoleRow, error)
}

// Sink is the search index surface the loader needs
type Sink interface {
	Ping(ctx context.Context) error
	EnsureIndex(ctx context.Context, name string, body []byte) (created bool, err error)
	Index(ctx context.Context, docs []Document) ([]Rejection, error)
}
