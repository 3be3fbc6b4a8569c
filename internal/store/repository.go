package store

import (
	"context"
	"errors"
)

// ErrNotSupported is returned by backends that cannot serve an optional
// capability, such as vector similarity search.
var ErrNotSupported = errors.New("operation not supported by this backend")

// UserReader provides read-only access to the user directory
type UserReader interface {
	// Get retrieves a user by ID, returns nil if not found
	Get(ctx context.Context, id string) (*UserRecord, error)
	// GetByEmail retrieves a user by email, returns nil if not found
	GetByEmail(ctx context.Context, email string) (*UserRecord, error)
	// List returns all users ordered by name
	List(ctx context.Context) ([]UserRecord, error)
	// Search returns users whose name matches the query.
	// Matching is case- and diacritics-insensitive (e.g. "novak"
	// matches "Jan Novák").
	Search(ctx context.Context, query string) ([]UserRecord, error)
	// Count returns the total number of users
	Count(ctx context.Context) (int, error)
}

// UserWriter provides write access to the user directory
type UserWriter interface {
	UserReader

	// Create stores a new user
	Create(ctx context.Context, user UserRecord) error
	// SaveEncodings persists a user's encoding set and marks the face
	// as registered
	SaveEncodings(ctx context.Context, id string, encodingsJSON []byte) error
	// ClearEncodings removes a user's encoding set and registration mark
	ClearEncodings(ctx context.Context, id string) error
	// SetActive toggles a user's active flag
	SetActive(ctx context.Context, id string, active bool) error
}

// AttendanceReader provides read-only access to attendance records
type AttendanceReader interface {
	// HasForDay checks whether the user already has a record for the day
	HasForDay(ctx context.Context, userID, day string) (bool, error)
	// ListForDay returns all records for a day ordered by time
	ListForDay(ctx context.Context, day string) ([]AttendanceRecord, error)
	// ListForUser returns the user's most recent records, newest first
	ListForUser(ctx context.Context, userID string, limit int) ([]AttendanceRecord, error)
	// CountForDay returns the number of records for a day
	CountForDay(ctx context.Context, day string) (int, error)
}

// AttendanceWriter provides write access to attendance records
type AttendanceWriter interface {
	AttendanceReader

	// Record stores one attendance event
	Record(ctx context.Context, rec AttendanceRecord) error
}

// SampleWriter provides write access to the per-sample vector mirror used
// for similarity diagnostics. Backends without vector support may return
// ErrNotSupported from all methods.
type SampleWriter interface {
	// ReplaceSamples replaces all stored sample vectors for a user
	ReplaceSamples(ctx context.Context, userID string, samples [][]float32) error
	// DeleteSamples removes all sample vectors for a user
	DeleteSamples(ctx context.Context, userID string) error
	// FindSimilar returns the closest stored samples to the query vector
	FindSimilar(ctx context.Context, query []float32, limit int) ([]SampleMatch, error)
}

// Store bundles the repository surfaces a running service needs.
type Store interface {
	UserWriter
	AttendanceWriter
	SampleWriter
}
