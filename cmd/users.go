package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"github.com/kozaktomas/face-attendance/internal/store"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage users",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	Long: `List all users with their role, active flag and face enrollment state.

Examples:
  # List everyone
  face-attendance users list

  # Diacritics-insensitive name search
  face-attendance users list --query novak`,
	RunE: runUsersList,
}

var usersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user",
	Long: `Create a user account. The user still needs face enrollment before
they can be recognized by the kiosk.

Examples:
  face-attendance users create --name "Jan Novák" --email jan@example.com --password s3cret
  face-attendance users create --name "Admin" --email admin@example.com --password s3cret --role admin`,
	RunE: runUsersCreate,
}

func init() {
	rootCmd.AddCommand(usersCmd)
	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersCreateCmd)

	usersListCmd.Flags().String("query", "", "Filter by name (diacritics-insensitive)")

	usersCreateCmd.Flags().String("name", "", "Full name (required)")
	usersCreateCmd.Flags().String("email", "", "Email address (required)")
	usersCreateCmd.Flags().String("password", "", "Login password (required)")
	usersCreateCmd.Flags().String("role", "employee", "Role (employee or admin)")
}

func runUsersList(cmd *cobra.Command, args []string) error {
	query := mustGetString(cmd, "query")

	ctx := context.Background()
	backend, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer backend.Close()

	var users []store.UserRecord
	if query != "" {
		users, err = backend.store.Search(ctx, query)
	} else {
		users, err = backend.store.List(ctx)
	}
	if err != nil {
		return fmt.Errorf("listing users: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEMAIL\tROLE\tACTIVE\tFACE")
	for _, u := range users {
		face := "-"
		if u.FaceRegistered {
			face = "enrolled"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\n", u.ID, u.Name, u.Email, u.Role, u.IsActive, face)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	fmt.Printf("\n%d users\n", len(users))
	return nil
}

func runUsersCreate(cmd *cobra.Command, args []string) error {
	name := mustGetString(cmd, "name")
	email := mustGetString(cmd, "email")
	password := mustGetString(cmd, "password")
	role := mustGetString(cmd, "role")

	if name == "" || email == "" || password == "" {
		return errors.New("--name, --email and --password are required")
	}
	if role != "employee" && role != "admin" {
		return fmt.Errorf("unknown role %q", role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	ctx := context.Background()
	backend, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer backend.Close()

	user := store.UserRecord{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		Role:         role,
		PasswordHash: string(hash),
		IsActive:     true,
		CreatedAt:    time.Now(),
	}
	if err := backend.store.Create(ctx, user); err != nil {
		return fmt.Errorf("creating user: %w", err)
	}

	fmt.Printf("Created user %s (%s)\n", user.Name, user.ID)
	return nil
}
