// Package enroll holds per-user enrollment sessions: encodings accumulated
// during a registration flow before they are committed to durable storage.
package enroll

import (
	"sync"

	"github.com/kozaktomas/face-attendance/internal/faceprint"
)

// DefaultRetentionCap is the fallback maximum number of encodings kept per
// user. When a merge would exceed the cap, the oldest entries are dropped.
const DefaultRetentionCap = 10

// Store accumulates encodings per user during multi-shot enrollment.
// Session growth is unbounded within a session on purpose; the image quota
// is a business rule owned by the caller, and MergeAndCap guarantees durable
// storage never grows past the retention cap.
type Store struct {
	mu       sync.Mutex
	cap      int
	sessions map[string][]faceprint.Encoding
	userMu   map[string]*sync.Mutex
}

// NewStore creates an empty enrollment store with the given retention cap.
// A cap of zero or less falls back to DefaultRetentionCap.
func NewStore(retentionCap int) *Store {
	if retentionCap <= 0 {
		retentionCap = DefaultRetentionCap
	}
	return &Store{
		cap:      retentionCap,
		sessions: make(map[string][]faceprint.Encoding),
		userMu:   make(map[string]*sync.Mutex),
	}
}

// WithUser runs fn while holding the per-user enrollment lock. The
// add → count → quota-check → merge transition must run inside a single
// WithUser call so reaching the quota merges exactly once.
func (s *Store) WithUser(userID string, fn func()) {
	s.mu.Lock()
	mu, ok := s.userMu[userID]
	if !ok {
		mu = &sync.Mutex{}
		s.userMu[userID] = mu
	}
	s.mu.Unlock()

	mu.Lock()
	defer mu.Unlock()
	fn()
}

// Add appends an encoding to the user's session. Returns false only when the
// encoding is absent.
func (s *Store) Add(userID string, enc faceprint.Encoding) bool {
	if enc == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[userID] = append(s.sessions[userID], enc)
	return true
}

// Count returns the number of session-held encodings for a user.
func (s *Store) Count(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions[userID])
}

// MergeAndCap concatenates the existing persisted encodings with the user's
// session encodings (existing first), truncates to the most recent cap
// entries, and clears the session. This is the sole mutation path into a
// user's persisted encoding set.
func (s *Store) MergeAndCap(userID string, existing []faceprint.Encoding) []faceprint.Encoding {
	s.mu.Lock()
	session := s.sessions[userID]
	delete(s.sessions, userID)
	s.mu.Unlock()

	merged := make([]faceprint.Encoding, 0, len(existing)+len(session))
	merged = append(merged, existing...)
	merged = append(merged, session...)
	if len(merged) > s.cap {
		merged = merged[len(merged)-s.cap:]
	}
	return merged
}

// Clear drops a user's session without merging.
func (s *Store) Clear(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}
