// Package match holds the in-memory index of enrolled encodings and the
// recognition engine that searches it.
package match

import (
	"math"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/kozaktomas/face-attendance/internal/faceprint"
)

// Entry is one (userID, encoding) pair flattened from a user's persisted
// encoding set.
type Entry struct {
	UserID   string
	Encoding faceprint.Encoding
}

// DirectoryRecord is the shape the user directory supplies for index
// rebuilds: a user, their active flag, and their persisted encoding set as
// JSON text (may be empty).
type DirectoryRecord struct {
	UserID        string
	IsActive      bool
	EncodingsJSON []byte
}

// Index is the flattened set of all enrolled encodings. Rebuild fully
// replaces the backing slice via an atomic pointer swap, so a Search racing
// a Rebuild sees either the old or the new list, never a half-replaced one.
// There is no incremental update path; full rebuild is the only refresh
// mode, which keeps the index from diverging from the database.
type Index struct {
	entries atomic.Pointer[[]Entry]
	accel   accel
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	ix := &Index{}
	empty := make([]Entry, 0)
	ix.entries.Store(&empty)
	return ix
}

// Rebuild replaces the index contents wholesale. Cost is O(total encodings).
func (ix *Index) Rebuild(entries []Entry) {
	snapshot := make([]Entry, len(entries))
	copy(snapshot, entries)
	ix.entries.Store(&snapshot)
	ix.accel.rebuild(snapshot)
}

// RebuildFromDirectory flattens directory records into index entries.
// Inactive users are skipped. A user with a malformed encoding record is
// skipped and logged without aborting the rest of the load.
func (ix *Index) RebuildFromDirectory(records []DirectoryRecord, logger *zap.Logger) {
	var entries []Entry
	for _, rec := range records {
		if !rec.IsActive || len(rec.EncodingsJSON) == 0 {
			continue
		}
		encodings, err := faceprint.UnmarshalSet(rec.EncodingsJSON)
		if err != nil {
			if logger != nil {
				logger.Warn("skipping user with corrupt encoding record",
					zap.String("user_id", rec.UserID),
					zap.Error(err))
			}
			continue
		}
		for _, enc := range encodings {
			entries = append(entries, Entry{UserID: rec.UserID, Encoding: enc})
		}
	}
	ix.Rebuild(entries)
}

// Search scans every indexed encoding and returns the globally
// minimal-distance user. On exact ties the first-encountered entry wins,
// stable with respect to rebuild insertion order. An empty index yields
// ok=false with +Inf distance.
func (ix *Index) Search(query faceprint.Encoding) (userID string, distance float64, ok bool) {
	entries := *ix.entries.Load()
	if len(entries) == 0 {
		return "", math.Inf(1), false
	}

	best := math.Inf(1)
	bestUser := ""
	for _, e := range entries {
		if d := EuclideanDistance(query, e.Encoding); d < best {
			best = d
			bestUser = e.UserID
		}
	}
	if math.IsInf(best, 1) {
		return "", best, false
	}
	return bestUser, best, true
}

// Len returns the number of indexed encodings.
func (ix *Index) Len() int {
	return len(*ix.entries.Load())
}
