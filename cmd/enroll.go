package cmd

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/imaging"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <user-id> <image-dir>",
	Short: "Enroll a user's face from a directory of images",
	Long: `Enroll a user's face by feeding a directory of captured images
through the registration pipeline, exactly as the web UI would.

Images are processed in filename order. Unreadable or undersized images
are skipped and reported; they do not count toward the required capture
quota.

Examples:
  # Enroll from a directory of captures
  face-attendance enroll 7d5c0e1a-... ./captures/alice

  # JSON output for scripting
  face-attendance enroll 7d5c0e1a-... ./captures/alice --json`,
	Args: cobra.ExactArgs(2),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().Bool("json", false, "Output as JSON instead of progress bar")
}

// EnrollResult represents the outcome of a batch enrollment run.
type EnrollResult struct {
	Success   bool `json:"success"`
	Processed int  `json:"processed"`
	Skipped   int  `json:"skipped"`
	Captured  int  `json:"captured"`
	Required  int  `json:"required"`
	Completed bool `json:"completed"`
}

// listImageFiles returns the image files in dir, sorted by name.
func listImageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpg", ".jpeg", ".png":
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func runEnroll(cmd *cobra.Command, args []string) error {
	userID := args[0]
	dir := args[1]
	jsonOutput := mustGetBool(cmd, "json")

	files, err := listImageFiles(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no image files found in %s", dir)
	}

	ctx := context.Background()
	backend, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer backend.Close()

	var bar *progressbar.ProgressBar
	if !jsonOutput {
		bar = progressbar.NewOptions(len(files),
			progressbar.OptionSetDescription("Enrolling"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("images"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}

	result := EnrollResult{Required: backend.cfg.Enrollment.RequiredImages}
	var lastProgress *attendance.RegistrationProgress

	for _, file := range files {
		raw, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("reading %s: %w", file, err)
		}

		progress, err := backend.service.RegisterFace(ctx, userID, base64.StdEncoding.EncodeToString(raw))
		if err != nil {
			var decodeErr *imaging.DecodeError
			if errors.As(err, &decodeErr) {
				result.Skipped++
				if !jsonOutput {
					fmt.Fprintf(os.Stderr, "\nskipping %s: %v\n", filepath.Base(file), decodeErr)
				}
				if bar != nil {
					_ = bar.Add(1)
				}
				continue
			}
			return fmt.Errorf("registering %s: %w", filepath.Base(file), err)
		}

		result.Processed++
		lastProgress = progress
		if bar != nil {
			_ = bar.Add(1)
		}
		if progress.Completed {
			break
		}
	}

	if lastProgress != nil {
		result.Captured = lastProgress.Captured
		result.Required = lastProgress.Required
		result.Completed = lastProgress.Completed
	}
	result.Success = result.Completed

	if jsonOutput {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling result: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Println()
	if result.Completed {
		fmt.Printf("Enrollment complete: %d/%d captures stored (%d images skipped)\n",
			result.Captured, result.Required, result.Skipped)
	} else {
		fmt.Printf("Enrollment incomplete: %d/%d captures stored (%d images skipped)\n",
			result.Captured, result.Required, result.Skipped)
		fmt.Println("Provide more images to finish the enrollment")
	}
	return nil
}
