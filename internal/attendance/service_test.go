package attendance

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/faceprint"
	"github.com/kozaktomas/face-attendance/internal/imaging"
	"github.com/kozaktomas/face-attendance/internal/match"
	"github.com/kozaktomas/face-attendance/internal/store"
	"github.com/kozaktomas/face-attendance/internal/store/mock"
)

func testConfig() *config.Config {
	return &config.Config{
		Recognition: config.RecognitionConfig{
			Tolerance:        0.6,
			AcceptConfidence: 0.6,
		},
		Enrollment: config.EnrollmentConfig{
			RequiredImages: 5,
			RetentionCap:   10,
		},
	}
}

func testService(t *testing.T) (*Service, *mock.Store) {
	t.Helper()
	st := mock.NewStore()
	engine := match.NewEngine(match.NewIndex(), nil)
	svc := NewService(testConfig(), st, engine, nil)
	return svc, st
}

// captureImage produces a distinct decodable PNG per seed, base64 encoded
// the way a browser camera capture arrives.
func captureImage(t *testing.T, seed uint8) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 120, 120))
	for y := 0; y < 120; y++ {
		for x := 0; x < 120; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(x) + seed,
				G: uint8(y),
				B: uint8(x + y),
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func seedUser(st *mock.Store, id, name string, active bool) {
	st.AddUser(store.UserRecord{
		ID:       id,
		Name:     name,
		Email:    name + "@example.com",
		Role:     "employee",
		IsActive: active,
	})
}

// registerUser runs a full registration flow with the given image seeds.
func registerUser(t *testing.T, svc *Service, userID string, seeds ...uint8) *RegistrationProgress {
	t.Helper()
	ctx := context.Background()

	var progress *RegistrationProgress
	for _, seed := range seeds {
		var err error
		progress, err = svc.RegisterFace(ctx, userID, captureImage(t, seed))
		if err != nil {
			t.Fatalf("RegisterFace failed: %v", err)
		}
	}
	return progress
}

func TestRegisterFaceProgress(t *testing.T) {
	svc, st := testService(t)
	ctx := context.Background()
	seedUser(st, "u1", "alice", true)

	for i := 1; i <= 4; i++ {
		progress, err := svc.RegisterFace(ctx, "u1", captureImage(t, uint8(i)))
		if err != nil {
			t.Fatalf("image %d: %v", i, err)
		}
		if progress.Completed {
			t.Fatalf("image %d: flow completed early", i)
		}
		if progress.Captured != i || progress.Required != 5 {
			t.Errorf("image %d: progress %d/%d", i, progress.Captured, progress.Required)
		}
		if progress.Percent != i*100/5 {
			t.Errorf("image %d: percent = %d", i, progress.Percent)
		}
	}

	progress, err := svc.RegisterFace(ctx, "u1", captureImage(t, 5))
	if err != nil {
		t.Fatalf("final image: %v", err)
	}
	if !progress.Completed || progress.Percent != 100 {
		t.Errorf("expected completed flow, got %+v", progress)
	}

	user, _ := st.Get(ctx, "u1")
	if !user.FaceRegistered || user.FaceRegisteredAt == nil {
		t.Error("user must be marked registered after the flow")
	}
	encodings, err := faceprint.UnmarshalSet(user.EncodingsJSON)
	if err != nil {
		t.Fatalf("stored encodings unreadable: %v", err)
	}
	if len(encodings) != 5 {
		t.Errorf("expected 5 stored encodings, got %d", len(encodings))
	}
	if svc.Engine().Index().Len() != 5 {
		t.Errorf("expected 5 indexed encodings, got %d", svc.Engine().Index().Len())
	}
}

func TestRegisterFaceRetentionCap(t *testing.T) {
	svc, st := testService(t)
	ctx := context.Background()
	seedUser(st, "u1", "alice", true)

	// the first round persists five; once the quota is met every further
	// image merges immediately, and storage must cap at ten
	registerUser(t, svc, "u1", 1, 2, 3, 4, 5)
	for seed := uint8(6); seed <= 15; seed++ {
		progress := registerUser(t, svc, "u1", seed)
		if !progress.Completed {
			t.Fatalf("image %d: expected immediate completion past the quota", seed)
		}
	}

	user, _ := st.Get(ctx, "u1")
	encodings, err := faceprint.UnmarshalSet(user.EncodingsJSON)
	if err != nil {
		t.Fatal(err)
	}
	if len(encodings) != 10 {
		t.Errorf("expected retention cap of 10, got %d", len(encodings))
	}
	if svc.Engine().Index().Len() != 10 {
		t.Errorf("index must follow the capped set, got %d", svc.Engine().Index().Len())
	}
}

func TestRegisterFaceConfiguredRetentionCap(t *testing.T) {
	st := mock.NewStore()
	cfg := testConfig()
	cfg.Enrollment.RetentionCap = 6
	svc := NewService(cfg, st, match.NewEngine(match.NewIndex(), nil), nil)
	ctx := context.Background()
	seedUser(st, "u1", "alice", true)

	registerUser(t, svc, "u1", 1, 2, 3, 4, 5)
	registerUser(t, svc, "u1", 6)
	registerUser(t, svc, "u1", 7)

	user, _ := st.Get(ctx, "u1")
	encodings, err := faceprint.UnmarshalSet(user.EncodingsJSON)
	if err != nil {
		t.Fatal(err)
	}
	if len(encodings) != 6 {
		t.Errorf("expected the configured cap of 6, got %d", len(encodings))
	}
}

func TestRegisterFaceTopsUpPersistedSet(t *testing.T) {
	svc, st := testService(t)
	ctx := context.Background()
	seedUser(st, "u1", "alice", true)

	// a partially enrolled user carries three persisted encodings
	persisted := make([]faceprint.Encoding, 3)
	for i := range persisted {
		enc := make(faceprint.Encoding, faceprint.Dim)
		enc[i] = 1
		persisted[i] = enc
	}
	payload, err := faceprint.MarshalSet(persisted)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.SaveEncodings(ctx, "u1", payload); err != nil {
		t.Fatal(err)
	}

	// the quota counts persisted plus staged, so two images finish the flow
	progress, err := svc.RegisterFace(ctx, "u1", captureImage(t, 1))
	if err != nil {
		t.Fatal(err)
	}
	if progress.Completed || progress.Captured != 4 || progress.Percent != 80 {
		t.Fatalf("expected 4/5 progress, got %+v", progress)
	}

	progress, err = svc.RegisterFace(ctx, "u1", captureImage(t, 2))
	if err != nil {
		t.Fatal(err)
	}
	if !progress.Completed || progress.Captured != 5 {
		t.Fatalf("expected completion at 5/5, got %+v", progress)
	}

	user, _ := st.Get(ctx, "u1")
	encodings, err := faceprint.UnmarshalSet(user.EncodingsJSON)
	if err != nil {
		t.Fatal(err)
	}
	if len(encodings) != 5 {
		t.Errorf("expected 5 stored encodings, got %d", len(encodings))
	}

	status, err := svc.RegistrationStatus(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if status.Captured != 5 || !status.Registered {
		t.Errorf("unexpected status after top-up %+v", status)
	}
}

func TestRegisterFaceErrors(t *testing.T) {
	svc, st := testService(t)
	ctx := context.Background()
	seedUser(st, "inactive", "bob", false)

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.RegisterFace(ctx, "missing", captureImage(t, 1))
		if !errors.Is(err, ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}
	})

	t.Run("inactive user", func(t *testing.T) {
		_, err := svc.RegisterFace(ctx, "inactive", captureImage(t, 1))
		if !errors.Is(err, ErrUserInactive) {
			t.Errorf("expected ErrUserInactive, got %v", err)
		}
	})

	t.Run("unreadable image", func(t *testing.T) {
		seedUser(st, "u1", "alice", true)
		_, err := svc.RegisterFace(ctx, "u1", base64.StdEncoding.EncodeToString([]byte("not an image")))
		var decodeErr *imaging.DecodeError
		if !errors.As(err, &decodeErr) {
			t.Fatalf("expected DecodeError, got %v", err)
		}
		if decodeErr.Kind != imaging.UnreadableImage {
			t.Errorf("expected UnreadableImage, got %v", decodeErr.Kind)
		}
		// a rejected image must not count towards the quota
		status, err := svc.RegistrationStatus(ctx, "u1")
		if err != nil {
			t.Fatal(err)
		}
		if status.Captured != 0 {
			t.Errorf("rejected image consumed quota: %d", status.Captured)
		}
	})
}

func TestRegistrationStatus(t *testing.T) {
	svc, st := testService(t)
	ctx := context.Background()
	seedUser(st, "u1", "alice", true)

	status, err := svc.RegistrationStatus(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if status.Registered || status.Captured != 0 || status.Required != 5 {
		t.Errorf("unexpected initial status %+v", status)
	}

	if _, err := svc.RegisterFace(ctx, "u1", captureImage(t, 1)); err != nil {
		t.Fatal(err)
	}
	status, err = svc.RegistrationStatus(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if status.Captured != 1 || status.Registered {
		t.Errorf("unexpected mid-flow status %+v", status)
	}

	if _, err := svc.RegistrationStatus(ctx, "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Error("expected ErrUserNotFound for unknown user")
	}
}

func TestRecognizeAndRecordAttendance(t *testing.T) {
	svc, st := testService(t)
	ctx := context.Background()
	seedUser(st, "u1", "alice", true)

	fixed := time.Date(2026, 3, 9, 8, 30, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	registerUser(t, svc, "u1", 1, 2, 3, 4, 5)

	result, err := svc.Recognize(ctx, captureImage(t, 3))
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if !result.Recognized {
		t.Fatalf("expected recognition, got %+v", result)
	}
	if result.User == nil || result.User.ID != "u1" {
		t.Errorf("expected user u1, got %+v", result.User)
	}
	if result.Confidence != 1 {
		t.Errorf("expected confidence 1 for an enrolled image, got %f", result.Confidence)
	}
	if result.AlreadyRecorded || result.AttendanceID == "" {
		t.Errorf("expected a fresh attendance record, got %+v", result)
	}

	records, err := svc.TodayAttendance(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Status != store.StatusPresent || records[0].Day != "2026-03-09" {
		t.Errorf("unexpected record %+v", records[0])
	}

	// same day again: recognized but not double counted
	result, err = svc.Recognize(ctx, captureImage(t, 3))
	if err != nil {
		t.Fatal(err)
	}
	if !result.Recognized || !result.AlreadyRecorded {
		t.Errorf("expected already-recorded result, got %+v", result)
	}
	records, _ = svc.TodayAttendance(ctx)
	if len(records) != 1 {
		t.Errorf("duplicate recognition created a second record")
	}

	// next day: a new record is allowed
	svc.now = func() time.Time { return fixed.Add(24 * time.Hour) }
	result, err = svc.Recognize(ctx, captureImage(t, 3))
	if err != nil {
		t.Fatal(err)
	}
	if result.AlreadyRecorded {
		t.Error("next day must allow a new record")
	}

	history, err := svc.History(ctx, "u1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history records, got %d", len(history))
	}
	if !history[0].RecordedAt.After(history[1].RecordedAt) {
		t.Error("history must be newest first")
	}
}

func TestRecognizeRejections(t *testing.T) {
	svc, st := testService(t)
	ctx := context.Background()
	seedUser(st, "u1", "alice", true)
	registerUser(t, svc, "u1", 1, 2, 3, 4, 5)

	t.Run("empty index after reset", func(t *testing.T) {
		if err := svc.ResetEnrollment(ctx, "u1"); err != nil {
			t.Fatal(err)
		}
		result, err := svc.Recognize(ctx, captureImage(t, 3))
		if err != nil {
			t.Fatal(err)
		}
		if result.Recognized || result.Confidence != 0 {
			t.Errorf("expected no recognition after reset, got %+v", result)
		}
	})

	t.Run("confidence below accept threshold", func(t *testing.T) {
		registerUser(t, svc, "u1", 1, 2, 3, 4, 5)
		svc.cfg.Recognition.AcceptConfidence = 1.1
		defer func() { svc.cfg.Recognition.AcceptConfidence = 0.6 }()

		result, err := svc.Recognize(ctx, captureImage(t, 3))
		if err != nil {
			t.Fatal(err)
		}
		if result.Recognized {
			t.Error("confidence below the accept threshold must be rejected")
		}
	})

	t.Run("deactivated user", func(t *testing.T) {
		if err := st.SetActive(ctx, "u1", false); err != nil {
			t.Fatal(err)
		}
		// index still holds the old entries until the next rebuild
		_, err := svc.Recognize(ctx, captureImage(t, 3))
		if !errors.Is(err, ErrUserInactive) {
			t.Errorf("expected ErrUserInactive, got %v", err)
		}
	})
}

func TestResetEnrollment(t *testing.T) {
	svc, st := testService(t)
	ctx := context.Background()
	seedUser(st, "u1", "alice", true)
	registerUser(t, svc, "u1", 1, 2, 3, 4, 5)

	if err := svc.ResetEnrollment(ctx, "u1"); err != nil {
		t.Fatalf("ResetEnrollment failed: %v", err)
	}

	user, _ := st.Get(ctx, "u1")
	if user.FaceRegistered || user.EncodingsJSON != nil {
		t.Error("expected cleared enrollment")
	}
	if svc.Engine().Index().Len() != 0 {
		t.Errorf("expected empty index, got %d entries", svc.Engine().Index().Len())
	}

	status, err := svc.RegistrationStatus(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if status.Captured != 0 || status.Registered {
		t.Errorf("unexpected status after reset %+v", status)
	}

	if err := svc.ResetEnrollment(ctx, "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Error("expected ErrUserNotFound for unknown user")
	}
}

func TestStats(t *testing.T) {
	svc, st := testService(t)
	ctx := context.Background()
	seedUser(st, "u1", "alice", true)
	seedUser(st, "u2", "bob", true)
	seedUser(st, "u3", "carol", false)

	registerUser(t, svc, "u1", 1, 2, 3, 4, 5)

	result, err := svc.Recognize(ctx, captureImage(t, 2))
	if err != nil {
		t.Fatal(err)
	}
	if !result.Recognized {
		t.Fatal("expected recognition")
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalUsers != 3 || stats.ActiveUsers != 2 {
		t.Errorf("unexpected user counts %+v", stats)
	}
	if stats.RegisteredFaces != 1 || stats.PresentToday != 1 {
		t.Errorf("unexpected activity counts %+v", stats)
	}
}
