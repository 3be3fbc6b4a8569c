// Package store defines the persistence model and repository interfaces
// for users, enrollment data and attendance records.
package store

import (
	"time"
)

// DayFormat is the layout of the attendance day key (YYYY-MM-DD).
const DayFormat = "2006-01-02"

// UserRecord represents a user row as stored in the database.
type UserRecord struct {
	ID               string
	Name             string
	Email            string
	Role             string
	PasswordHash     string
	IsActive         bool
	EncodingsJSON    []byte // JSON list of float vectors, nil until enrolled
	FaceRegistered   bool
	FaceRegisteredAt *time.Time
	CreatedAt        time.Time
}

// AttendanceRecord represents one attendance event. Day is the calendar day
// key used for the one-record-per-day rule; RecordedAt is the full
// timestamp of the recognition.
type AttendanceRecord struct {
	ID         string
	UserID     string
	Day        string
	RecordedAt time.Time
	Status     string
	Confidence float64
	CreatedAt  time.Time
}

// Attendance statuses.
const (
	StatusPresent = "present"
	StatusLate    = "late"
)

// SampleMatch is one result of a vector similarity search over stored face
// samples.
type SampleMatch struct {
	UserID   string
	Distance float64
}

// Stats summarizes the directory and today's attendance.
type Stats struct {
	TotalUsers      int
	ActiveUsers     int
	RegisteredFaces int
	PresentToday    int
}
