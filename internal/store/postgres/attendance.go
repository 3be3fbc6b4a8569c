package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/store"
)

// AttendanceRepository provides PostgreSQL-backed attendance storage.
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new PostgreSQL attendance repository.
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

const attendanceColumns = `id, user_id, day, recorded_at, status, confidence, created_at`

func scanAttendance(rows *sql.Rows) ([]store.AttendanceRecord, error) {
	var records []store.AttendanceRecord
	for rows.Next() {
		var rec store.AttendanceRecord
		var day time.Time
		err := rows.Scan(
			&rec.ID,
			&rec.UserID,
			&day,
			&rec.RecordedAt,
			&rec.Status,
			&rec.Confidence,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan attendance record: %w", err)
		}
		rec.Day = day.Format(store.DayFormat)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance records: %w", err)
	}
	return records, nil
}

// HasForDay checks whether the user already has a record for the day.
func (r *AttendanceRepository) HasForDay(ctx context.Context, userID, day string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM attendance WHERE user_id = $1 AND day = $2)`
	if err := r.pool.QueryRow(ctx, query, userID, day).Scan(&exists); err != nil {
		return false, fmt.Errorf("check attendance: %w", err)
	}
	return exists, nil
}

// ListForDay returns all records for a day ordered by time.
func (r *AttendanceRepository) ListForDay(ctx context.Context, day string) ([]store.AttendanceRecord, error) {
	query := `
		SELECT ` + attendanceColumns + `
		FROM attendance
		WHERE day = $1
		ORDER BY recorded_at
	`

	rows, err := r.pool.Query(ctx, query, day)
	if err != nil {
		return nil, fmt.Errorf("list attendance for day: %w", err)
	}
	defer rows.Close()

	return scanAttendance(rows)
}

// ListForUser returns the user's most recent records, newest first.
func (r *AttendanceRepository) ListForUser(ctx context.Context, userID string, limit int) ([]store.AttendanceRecord, error) {
	query := `
		SELECT ` + attendanceColumns + `
		FROM attendance
		WHERE user_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list attendance for user: %w", err)
	}
	defer rows.Close()

	return scanAttendance(rows)
}

// CountForDay returns the number of records for a day.
func (r *AttendanceRepository) CountForDay(ctx context.Context, day string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM attendance WHERE day = $1", day).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count attendance: %w", err)
	}
	return count, nil
}

// Record stores one attendance event. The (user_id, day) unique constraint
// backs up the caller's duplicate check: a second record for the same day
// fails instead of silently doubling.
func (r *AttendanceRepository) Record(ctx context.Context, rec store.AttendanceRecord) error {
	query := `
		INSERT INTO attendance (id, user_id, day, recorded_at, status, confidence, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := r.pool.Exec(ctx, query,
		rec.ID, rec.UserID, rec.Day, rec.RecordedAt,
		rec.Status, rec.Confidence, createdAt)
	if err != nil {
		return fmt.Errorf("record attendance: %w", err)
	}
	return nil
}
