package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/store"
)

// UserRepository provides PostgreSQL-backed user storage.
type UserRepository struct {
	pool *Pool
}

// NewUserRepository creates a new PostgreSQL user repository.
func NewUserRepository(pool *Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, name, email, role, password_hash, is_active,
       encodings_json, face_registered, face_registered_at, created_at`

func scanUser(row interface{ Scan(...any) error }) (*store.UserRecord, error) {
	var u store.UserRecord
	var registeredAt sql.NullTime
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Role,
		&u.PasswordHash,
		&u.IsActive,
		&u.EncodingsJSON,
		&u.FaceRegistered,
		&registeredAt,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if registeredAt.Valid {
		t := registeredAt.Time
		u.FaceRegisteredAt = &t
	}
	return &u, nil
}

func scanUsers(rows *sql.Rows) ([]store.UserRecord, error) {
	var users []store.UserRecord
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// Get retrieves a user by ID, returns nil if not found.
func (r *UserRepository) Get(ctx context.Context, id string) (*store.UserRecord, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetByEmail retrieves a user by email, returns nil if not found.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*store.UserRecord, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	u, err := scanUser(r.pool.QueryRow(ctx, query, email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// List returns all users ordered by name.
func (r *UserRepository) List(ctx context.Context) ([]store.UserRecord, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY name, id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	return scanUsers(rows)
}

// Search returns users whose normalized name contains the normalized query.
// Uses PostgreSQL LOWER + unaccent + REPLACE to mirror store.NormalizeName.
func (r *UserRepository) Search(ctx context.Context, query string) ([]store.UserRecord, error) {
	normalized := store.NormalizeName(query)

	sqlQuery := `
		SELECT ` + userColumns + `
		FROM users
		WHERE LOWER(REPLACE(unaccent(name), '-', ' ')) LIKE '%' || $1 || '%'
		ORDER BY name, id
	`

	rows, err := r.pool.Query(ctx, sqlQuery, normalized)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer rows.Close()

	return scanUsers(rows)
}

// Count returns the total number of users.
func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

// Create stores a new user.
func (r *UserRepository) Create(ctx context.Context, user store.UserRecord) error {
	query := `
		INSERT INTO users (id, name, email, role, password_hash, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := r.pool.Exec(ctx, query,
		user.ID, user.Name, user.Email, user.Role,
		user.PasswordHash, user.IsActive, createdAt)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// SaveEncodings persists a user's encoding set and marks the face as
// registered.
func (r *UserRepository) SaveEncodings(ctx context.Context, id string, encodingsJSON []byte) error {
	query := `
		UPDATE users
		SET encodings_json = $2, face_registered = TRUE, face_registered_at = NOW()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, encodingsJSON)
	if err != nil {
		return fmt.Errorf("save encodings: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("save encodings: user %s not found", id)
	}
	return nil
}

// ClearEncodings removes a user's encoding set and registration mark.
func (r *UserRepository) ClearEncodings(ctx context.Context, id string) error {
	query := `
		UPDATE users
		SET encodings_json = NULL, face_registered = FALSE, face_registered_at = NULL
		WHERE id = $1
	`

	if _, err := r.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("clear encodings: %w", err)
	}
	return nil
}

// SetActive toggles a user's active flag.
func (r *UserRepository) SetActive(ctx context.Context, id string, active bool) error {
	result, err := r.pool.Exec(ctx, "UPDATE users SET is_active = $2 WHERE id = $1", id, active)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("set active: user %s not found", id)
	}
	return nil
}
