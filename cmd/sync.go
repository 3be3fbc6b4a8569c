package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"github.com/kozaktomas/face-attendance/internal/store"
	"github.com/kozaktomas/face-attendance/internal/store/mysql"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Import employees from the HR directory database",
	Long: `Import employees from the external HR MySQL directory into the
attendance database.

New employees are created with a random password; they need a password
reset before they can log in. Existing users (matched by email) have
their active flag synced from the directory. Face enrollments are never
touched.

Examples:
  # Sync from the configured directory (DIRECTORY_MYSQL_DSN)
  face-attendance sync

  # Preview without writing
  face-attendance sync --dry-run

  # Explicit source
  face-attendance sync --dsn "hr:hr@tcp(mysql:3306)/hr" --table employees`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().String("dsn", "", "MySQL DSN of the HR directory (overrides DIRECTORY_MYSQL_DSN)")
	syncCmd.Flags().String("table", "", "Source table name (overrides DIRECTORY_MYSQL_TABLE)")
	syncCmd.Flags().Bool("dry-run", false, "Report changes without applying them")
	syncCmd.Flags().Bool("json", false, "Output as JSON")
}

// SyncResult summarizes a directory import run.
type SyncResult struct {
	Success   bool `json:"success"`
	Scanned   int  `json:"scanned"`
	Created   int  `json:"created"`
	Updated   int  `json:"updated"`
	Unchanged int  `json:"unchanged"`
	DryRun    bool `json:"dry_run"`
}

func runSync(cmd *cobra.Command, args []string) error {
	dryRun := mustGetBool(cmd, "dry-run")
	jsonOutput := mustGetBool(cmd, "json")

	ctx := context.Background()
	backend, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer backend.Close()

	dsn := backend.cfg.Directory.DSN
	if flagDSN := mustGetString(cmd, "dsn"); flagDSN != "" {
		dsn = flagDSN
	}
	table := backend.cfg.Directory.Table
	if flagTable := mustGetString(cmd, "table"); flagTable != "" {
		table = flagTable
	}
	if dsn == "" {
		return errors.New("DIRECTORY_MYSQL_DSN environment variable or --dsn is required")
	}

	directory, err := mysql.NewPool(dsn, table)
	if err != nil {
		return fmt.Errorf("connecting to directory: %w", err)
	}
	defer directory.Close()

	employees, err := directory.ListEmployees(ctx)
	if err != nil {
		return fmt.Errorf("listing employees: %w", err)
	}

	result := SyncResult{Scanned: len(employees), DryRun: dryRun}

	for _, emp := range employees {
		existing, err := backend.store.GetByEmail(ctx, emp.Email)
		if err != nil {
			return fmt.Errorf("looking up %s: %w", emp.Email, err)
		}

		if existing == nil {
			result.Created++
			if !jsonOutput {
				fmt.Printf("create %s <%s>\n", emp.Name, emp.Email)
			}
			if dryRun {
				continue
			}
			// A throwaway password keeps the account locked until an
			// admin issues a real one.
			hash, err := bcrypt.GenerateFromPassword([]byte(uuid.New().String()), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hashing password: %w", err)
			}
			user := store.UserRecord{
				ID:           uuid.New().String(),
				Name:         emp.Name,
				Email:        emp.Email,
				Role:         emp.Role,
				PasswordHash: string(hash),
				IsActive:     emp.IsActive,
				CreatedAt:    time.Now(),
			}
			if err := backend.store.Create(ctx, user); err != nil {
				return fmt.Errorf("creating %s: %w", emp.Email, err)
			}
			continue
		}

		if existing.IsActive == emp.IsActive {
			result.Unchanged++
			continue
		}

		result.Updated++
		if !jsonOutput {
			fmt.Printf("set %s <%s> active=%t\n", existing.Name, existing.Email, emp.IsActive)
		}
		if dryRun {
			continue
		}
		if err := backend.store.SetActive(ctx, existing.ID, emp.IsActive); err != nil {
			return fmt.Errorf("updating %s: %w", emp.Email, err)
		}
	}

	result.Success = true

	if jsonOutput {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling result: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("\nScanned %d employees: %d created, %d updated, %d unchanged",
		result.Scanned, result.Created, result.Updated, result.Unchanged)
	if dryRun {
		fmt.Print(" (dry run, nothing written)")
	}
	fmt.Println()
	return nil
}
