package extract

import (
	"time"

	"moviesync/internal/services/etl/domain"
)

// Cutoff trims sorted records to the first limit distinct films plus every
// record sharing the change instant at which the limit-th film first appears.
// It returns the kept prefix and its last instant. Applying it twice changes
// nothing; limit <= 0 keeps everything
func Cutoff(recs []domain.ChangeRecord, limit int) ([]domain.ChangeRecord, time.Time) {
	if len(recs) == 0 {
		return nil, time.Time{}
	}
	if limit > 0 {
		seen := make(map[string]struct{}, limit)
		for i, r := range recs {
			if _, ok := seen[r.FilmID]; ok {
				continue
			}
			seen[r.FilmID] = struct{}{}
			if len(seen) < limit {
				continue
			}
			j := i + 1
			for j < len(recs) && recs[j].ChangedAt.Equal(r.ChangedAt) {
				j++
			}
			return recs[:j], r.ChangedAt
		}
	}
	return recs, recs[len(recs)-1].ChangedAt
}
