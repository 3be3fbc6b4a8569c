package postgres

import (
	"github.com/kozaktomas/face-attendance/internal/store"
)

// Store bundles the PostgreSQL repositories into a single store.Store
// implementation.
type Store struct {
	*UserRepository
	*AttendanceRepository
	*SampleRepository
}

// NewStore creates the combined store over one connection pool.
func NewStore(pool *Pool) *Store {
	return &Store{
		UserRepository:       NewUserRepository(pool),
		AttendanceRepository: NewAttendanceRepository(pool),
		SampleRepository:     NewSampleRepository(pool),
	}
}

var _ store.Store = (*Store)(nil)
