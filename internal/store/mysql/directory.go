// Package mysql reads an external HR/staff directory over MySQL. It is a
// read-only source used by the sync command to import people into the
// primary store.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Pool manages a MySQL connection pool.
type Pool struct {
	db    *sql.DB
	table string
}

// Employee is one row from the HR directory.
type Employee struct {
	Name     string
	Email    string
	Role     string
	IsActive bool
}

// NewPool creates a new MySQL connection pool over the given directory
// table.
func NewPool(dsn, table string) (*Pool, error) {
	if dsn == "" {
		return nil, errors.New("MySQL DSN is required")
	}
	if table == "" {
		table = "employees"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	return &Pool{db: db, table: table}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

// ListEmployees returns all directory rows. Rows with an empty email are
// skipped since email is the import key.
func (p *Pool) ListEmployees(ctx context.Context) ([]Employee, error) {
	query := fmt.Sprintf(
		"SELECT name, email, COALESCE(role, 'employee'), COALESCE(is_active, 1) FROM %s ORDER BY email",
		p.table,
	)

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query employees: %w", err)
	}
	defer rows.Close()

	var employees []Employee
	for rows.Next() {
		var e Employee
		if err := rows.Scan(&e.Name, &e.Email, &e.Role, &e.IsActive); err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		if e.Email == "" {
			continue
		}
		employees = append(employees, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate employees: %w", err)
	}

	return employees, nil
}
