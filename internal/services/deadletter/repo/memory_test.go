package repo

import (
	"testing"

	"moviesync/internal/services/deadletter/domain"
)

func TestMemory_Contract(t *testing.T) {
	runQueueContract(t, func(*testing.T) domain.Queue { return NewMemory() })
}
