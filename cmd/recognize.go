package cmd

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/spf13/cobra"
	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/faceprint"
	"github.com/kozaktomas/face-attendance/internal/imaging"
)

var recognizeCmd = &cobra.Command{
	Use:   "recognize <image-file>",
	Short: "Recognize the face in an image against enrolled users",
	Long: `Recognize the face in a single image against all enrolled users.

By default this is a dry run: the image is matched against the index and
the result printed without touching attendance. Use --record to log
attendance for the recognized user, exactly as the kiosk endpoint would.

Examples:
  # Match an image against the enrolled faces
  face-attendance recognize capture.jpg

  # Stricter tolerance (lower = stricter)
  face-attendance recognize capture.jpg --tolerance 0.4

  # Show the closest candidates, not just the best match
  face-attendance recognize capture.jpg --top 5

  # Record attendance for the match
  face-attendance recognize capture.jpg --record`,
	Args: cobra.ExactArgs(1),
	RunE: runRecognize,
}

func init() {
	rootCmd.AddCommand(recognizeCmd)

	recognizeCmd.Flags().Float64("tolerance", 0, "Match tolerance override (0 uses the configured value)")
	recognizeCmd.Flags().Int("top", 0, "Also print the N nearest candidates")
	recognizeCmd.Flags().Bool("record", false, "Record attendance for the recognized user")
	recognizeCmd.Flags().Bool("json", false, "Output as JSON")
}

// RecognizeCmdResult is the JSON shape of a recognize run.
type RecognizeCmdResult struct {
	Recognized    bool              `json:"recognized"`
	UserID        string            `json:"user_id,omitempty"`
	Name          string            `json:"name,omitempty"`
	Confidence    float64           `json:"confidence"`
	Distance      *float64          `json:"distance,omitempty"`
	Recorded      bool              `json:"recorded"`
	AlreadyLogged bool              `json:"already_logged"`
	Candidates    []CandidateResult `json:"candidates,omitempty"`
}

// CandidateResult is one nearest-neighbor candidate in the JSON output.
type CandidateResult struct {
	UserID   string  `json:"user_id"`
	Name     string  `json:"name,omitempty"`
	Distance float64 `json:"distance"`
}

func runRecognize(cmd *cobra.Command, args []string) error {
	tolerance := mustGetFloat64(cmd, "tolerance")
	top := mustGetInt(cmd, "top")
	record := mustGetBool(cmd, "record")
	jsonOutput := mustGetBool(cmd, "json")

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}
	imageData := base64.StdEncoding.EncodeToString(raw)

	ctx := context.Background()

	backend, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer backend.Close()

	if tolerance > 0 {
		backend.cfg.Recognition.Tolerance = tolerance
	}
	if top > 0 {
		// The HNSW graph is built on the next rebuild.
		backend.service.Engine().Index().EnableAccel()
		if err := backend.service.RebuildIndex(ctx); err != nil {
			return fmt.Errorf("rebuilding index: %w", err)
		}
	}

	result := RecognizeCmdResult{}

	if record {
		recognition, err := backend.service.Recognize(ctx, imageData)
		if errors.Is(err, attendance.ErrUserInactive) {
			return errors.New("matched a deactivated user; rebuild the index or reactivate the user")
		}
		if err != nil {
			return fmt.Errorf("recognizing: %w", err)
		}
		result.Recognized = recognition.Recognized
		result.Confidence = recognition.Confidence
		if recognition.User != nil {
			result.UserID = recognition.User.ID
			result.Name = recognition.User.Name
		}
		if !math.IsInf(recognition.Distance, 1) {
			d := recognition.Distance
			result.Distance = &d
		}
		result.Recorded = recognition.AttendanceID != ""
		result.AlreadyLogged = recognition.AlreadyRecorded
	} else {
		decision := backend.service.Engine().RecognizeString(imageData, backend.cfg.Recognition.Tolerance)
		result.Recognized = decision.Matched && decision.Confidence >= backend.cfg.Recognition.AcceptConfidence
		result.Confidence = decision.Confidence
		if decision.Matched {
			result.UserID = decision.UserID
			if user, err := backend.store.Get(ctx, decision.UserID); err == nil && user != nil {
				result.Name = user.Name
			}
		}
		if !math.IsInf(decision.Distance, 1) {
			d := decision.Distance
			result.Distance = &d
		}
	}

	if top > 0 {
		img, err := imaging.Decode(raw)
		if err != nil {
			return fmt.Errorf("decoding image: %w", err)
		}
		for _, c := range backend.service.Engine().Index().Nearest(faceprint.Extract(img), top) {
			candidate := CandidateResult{UserID: c.UserID, Distance: c.Distance}
			if user, err := backend.store.Get(ctx, c.UserID); err == nil && user != nil {
				candidate.Name = user.Name
			}
			result.Candidates = append(result.Candidates, candidate)
		}
	}

	if jsonOutput {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling result: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}

	if result.Recognized {
		fmt.Printf("Recognized: %s (%s)\n", result.Name, result.UserID)
		fmt.Printf("  Confidence: %.3f\n", result.Confidence)
		if result.Distance != nil {
			fmt.Printf("  Distance:   %.4f\n", *result.Distance)
		}
		if record {
			if result.AlreadyLogged {
				fmt.Println("  Attendance already logged today")
			} else if result.Recorded {
				fmt.Println("  Attendance recorded")
			}
		}
	} else {
		fmt.Println("No match")
	}

	for i, c := range result.Candidates {
		if i == 0 {
			fmt.Println("Nearest candidates:")
		}
		fmt.Printf("  %d. %s (%s) distance %.4f\n", i+1, c.Name, c.UserID, c.Distance)
	}
	return nil
}
