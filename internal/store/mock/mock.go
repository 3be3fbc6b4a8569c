// Package mock provides an in-memory implementation of the store
// interfaces for testing.
package mock

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/store"
)

// Store is an in-memory store.Store implementation.
type Store struct {
	mu         sync.RWMutex
	users      map[string]*store.UserRecord
	attendance []store.AttendanceRecord
	samples    map[string][][]float32

	// Error injection
	GetError           error
	ListError          error
	SearchError        error
	CreateError        error
	SaveEncodingsError error
	ClearError         error
	SetActiveError     error
	AttendanceError    error
	RecordError        error
	SamplesError       error
}

// NewStore creates an empty mock store.
func NewStore() *Store {
	return &Store{
		users:   make(map[string]*store.UserRecord),
		samples: make(map[string][][]float32),
	}
}

// AddUser seeds a user into the mock store.
func (m *Store) AddUser(user store.UserRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := user
	m.users[u.ID] = &u
}

// Get retrieves a user by ID, returns nil if not found.
func (m *Store) Get(ctx context.Context, id string) (*store.UserRecord, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

// GetByEmail retrieves a user by email, returns nil if not found.
func (m *Store) GetByEmail(ctx context.Context, email string) (*store.UserRecord, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

// List returns all users ordered by name.
func (m *Store) List(ctx context.Context) ([]store.UserRecord, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	users := make([]store.UserRecord, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].Name != users[j].Name {
			return users[i].Name < users[j].Name
		}
		return users[i].ID < users[j].ID
	})
	return users, nil
}

// Search returns users whose normalized name contains the normalized query.
func (m *Store) Search(ctx context.Context, query string) ([]store.UserRecord, error) {
	if m.SearchError != nil {
		return nil, m.SearchError
	}
	normalized := store.NormalizeName(query)

	all, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	var found []store.UserRecord
	for _, u := range all {
		if strings.Contains(store.NormalizeName(u.Name), normalized) {
			found = append(found, u)
		}
	}
	return found, nil
}

// Count returns the total number of users.
func (m *Store) Count(ctx context.Context) (int, error) {
	if m.ListError != nil {
		return 0, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users), nil
}

// Create stores a new user.
func (m *Store) Create(ctx context.Context, user store.UserRecord) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[user.ID]; exists {
		return fmt.Errorf("user %s already exists", user.ID)
	}
	for _, u := range m.users {
		if u.Email == user.Email {
			return fmt.Errorf("email %s already taken", user.Email)
		}
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	cp := user
	m.users[cp.ID] = &cp
	return nil
}

// SaveEncodings persists a user's encoding set and marks the face as
// registered.
func (m *Store) SaveEncodings(ctx context.Context, id string, encodingsJSON []byte) error {
	if m.SaveEncodingsError != nil {
		return m.SaveEncodingsError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("user %s not found", id)
	}
	u.EncodingsJSON = append([]byte(nil), encodingsJSON...)
	u.FaceRegistered = true
	now := time.Now()
	u.FaceRegisteredAt = &now
	return nil
}

// ClearEncodings removes a user's encoding set and registration mark.
func (m *Store) ClearEncodings(ctx context.Context, id string) error {
	if m.ClearError != nil {
		return m.ClearError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("user %s not found", id)
	}
	u.EncodingsJSON = nil
	u.FaceRegistered = false
	u.FaceRegisteredAt = nil
	return nil
}

// SetActive toggles a user's active flag.
func (m *Store) SetActive(ctx context.Context, id string, active bool) error {
	if m.SetActiveError != nil {
		return m.SetActiveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("user %s not found", id)
	}
	u.IsActive = active
	return nil
}

// HasForDay checks whether the user already has a record for the day.
func (m *Store) HasForDay(ctx context.Context, userID, day string) (bool, error) {
	if m.AttendanceError != nil {
		return false, m.AttendanceError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rec := range m.attendance {
		if rec.UserID == userID && rec.Day == day {
			return true, nil
		}
	}
	return false, nil
}

// ListForDay returns all records for a day ordered by time.
func (m *Store) ListForDay(ctx context.Context, day string) ([]store.AttendanceRecord, error) {
	if m.AttendanceError != nil {
		return nil, m.AttendanceError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var records []store.AttendanceRecord
	for _, rec := range m.attendance {
		if rec.Day == day {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].RecordedAt.Before(records[j].RecordedAt)
	})
	return records, nil
}

// ListForUser returns the user's most recent records, newest first.
func (m *Store) ListForUser(ctx context.Context, userID string, limit int) ([]store.AttendanceRecord, error) {
	if m.AttendanceError != nil {
		return nil, m.AttendanceError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var records []store.AttendanceRecord
	for _, rec := range m.attendance {
		if rec.UserID == userID {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].RecordedAt.After(records[j].RecordedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// CountForDay returns the number of records for a day.
func (m *Store) CountForDay(ctx context.Context, day string) (int, error) {
	records, err := m.ListForDay(ctx, day)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// Record stores one attendance event. Like the SQL backend it rejects a
// second record for the same user and day.
func (m *Store) Record(ctx context.Context, rec store.AttendanceRecord) error {
	if m.RecordError != nil {
		return m.RecordError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.attendance {
		if existing.UserID == rec.UserID && existing.Day == rec.Day {
			return fmt.Errorf("attendance already recorded for user %s on %s", rec.UserID, rec.Day)
		}
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	m.attendance = append(m.attendance, rec)
	return nil
}

// ReplaceSamples replaces all stored sample vectors for a user.
func (m *Store) ReplaceSamples(ctx context.Context, userID string, samples [][]float32) error {
	if m.SamplesError != nil {
		return m.SamplesError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([][]float32, len(samples))
	for i, s := range samples {
		cp[i] = append([]float32(nil), s...)
	}
	m.samples[userID] = cp
	return nil
}

// DeleteSamples removes all sample vectors for a user.
func (m *Store) DeleteSamples(ctx context.Context, userID string) error {
	if m.SamplesError != nil {
		return m.SamplesError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.samples, userID)
	return nil
}

// FindSimilar returns the closest stored samples by L2 distance.
func (m *Store) FindSimilar(ctx context.Context, query []float32, limit int) ([]store.SampleMatch, error) {
	if m.SamplesError != nil {
		return nil, m.SamplesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []store.SampleMatch
	for userID, samples := range m.samples {
		for _, s := range samples {
			matches = append(matches, store.SampleMatch{
				UserID:   userID,
				Distance: l2Distance(query, s),
			})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

var _ store.Store = (*Store)(nil)

func l2Distance(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
