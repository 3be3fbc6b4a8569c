// Package attendance implements the business flows on top of the match
// engine and the store: multi-shot face registration, recognition with
// attendance logging, and index maintenance.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/enroll"
	"github.com/kozaktomas/face-attendance/internal/faceprint"
	"github.com/kozaktomas/face-attendance/internal/imaging"
	"github.com/kozaktomas/face-attendance/internal/match"
	"github.com/kozaktomas/face-attendance/internal/store"
)

var (
	// ErrUserNotFound is returned when the target user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserInactive is returned when the target user is deactivated.
	ErrUserInactive = errors.New("user is not active")
)

// RegistrationProgress reports the state of a registration flow after one
// captured image.
type RegistrationProgress struct {
	Captured  int
	Required  int
	Percent   int
	Completed bool
}

// RegistrationStatus reports a user's enrollment state.
type RegistrationStatus struct {
	Captured     int
	Required     int
	Registered   bool
	RegisteredAt *time.Time
}

// RecognitionResult is the outcome of one recognition attempt, including
// the attendance side effect when a face is accepted.
type RecognitionResult struct {
	Recognized      bool
	User            *store.UserRecord
	Confidence      float64
	Distance        float64
	AlreadyRecorded bool
	AttendanceID    string
	RecordedAt      time.Time
}

// Service wires the enrollment store, the match engine and the persistent
// store into the registration and recognition flows.
type Service struct {
	cfg     *config.Config
	store   store.Store
	staging *enroll.Store
	engine  *match.Engine
	log     *zap.Logger

	now func() time.Time
}

// NewService creates the attendance service.
func NewService(cfg *config.Config, st store.Store, engine *match.Engine, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:     cfg,
		store:   st,
		staging: enroll.NewStore(cfg.Enrollment.RetentionCap),
		engine:  engine,
		log:     logger,
		now:     time.Now,
	}
}

// RegisterFace processes one captured image in a user's registration flow.
// Images accumulate in the staging session; reaching the required count
// merges them into the user's persisted encoding set, refreshes the vector
// mirror and rebuilds the match index.
func (s *Service) RegisterFace(ctx context.Context, userID, imageData string) (*RegistrationProgress, error) {
	user, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	img, err := imaging.DecodeString(imageData)
	if err != nil {
		return nil, err
	}
	enc := faceprint.Extract(img)
	if enc == nil {
		return nil, &imaging.DecodeError{Kind: imaging.UnreadableImage}
	}

	required := s.cfg.Enrollment.RequiredImages

	var progress *RegistrationProgress
	var flowErr error

	// add, count, quota check and merge must be one atomic step per user
	s.staging.WithUser(userID, func() {
		s.staging.Add(userID, enc)

		// the quota counts what is already persisted plus this session,
		// so a partially enrolled user only needs to top up
		existing := s.loadExistingEncodings(user)
		captured := len(existing) + s.staging.Count(userID)

		if captured < required {
			progress = &RegistrationProgress{
				Captured: captured,
				Required: required,
				Percent:  captured * 100 / required,
			}
			return
		}

		merged := s.staging.MergeAndCap(userID, existing)
		flowErr = s.persistEncodings(ctx, userID, merged)
		if flowErr != nil {
			return
		}
		progress = &RegistrationProgress{
			Captured:  captured,
			Required:  required,
			Percent:   100,
			Completed: true,
		}
	})
	if flowErr != nil {
		return nil, flowErr
	}

	if progress.Completed {
		if err := s.RebuildIndex(ctx); err != nil {
			return nil, fmt.Errorf("rebuild index after registration: %w", err)
		}
		s.log.Info("face registration completed",
			zap.String("user_id", userID),
			zap.Int("images", progress.Captured))
	}
	return progress, nil
}

// loadExistingEncodings parses the user's persisted encoding set. A corrupt
// record is treated as empty so re-registration can repair it.
func (s *Service) loadExistingEncodings(user *store.UserRecord) []faceprint.Encoding {
	if len(user.EncodingsJSON) == 0 {
		return nil
	}
	existing, err := faceprint.UnmarshalSet(user.EncodingsJSON)
	if err != nil {
		s.log.Warn("discarding corrupt encoding record",
			zap.String("user_id", user.ID),
			zap.Error(err))
		return nil
	}
	return existing
}

func (s *Service) persistEncodings(ctx context.Context, userID string, merged []faceprint.Encoding) error {
	payload, err := faceprint.MarshalSet(merged)
	if err != nil {
		return fmt.Errorf("marshal encodings: %w", err)
	}
	if err := s.store.SaveEncodings(ctx, userID, payload); err != nil {
		return fmt.Errorf("save encodings: %w", err)
	}

	samples := make([][]float32, len(merged))
	for i, enc := range merged {
		samples[i] = []float32(enc)
	}
	if err := s.store.ReplaceSamples(ctx, userID, samples); err != nil && !errors.Is(err, store.ErrNotSupported) {
		// the vector mirror is diagnostic only, a failed refresh must
		// not fail the registration
		s.log.Warn("failed to refresh sample mirror",
			zap.String("user_id", userID),
			zap.Error(err))
	}
	return nil
}

// RegistrationStatus reports a user's enrollment state.
func (s *Service) RegistrationStatus(ctx context.Context, userID string) (*RegistrationStatus, error) {
	user, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	return &RegistrationStatus{
		Captured:     len(s.loadExistingEncodings(user)) + s.staging.Count(userID),
		Required:     s.cfg.Enrollment.RequiredImages,
		Registered:   user.FaceRegistered,
		RegisteredAt: user.FaceRegisteredAt,
	}, nil
}

// ResetEnrollment drops a user's staged session and persisted encodings and
// removes them from the match index.
func (s *Service) ResetEnrollment(ctx context.Context, userID string) error {
	user, err := s.store.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}

	s.staging.Clear(userID)
	if err := s.store.ClearEncodings(ctx, userID); err != nil {
		return fmt.Errorf("clear encodings: %w", err)
	}
	if err := s.store.DeleteSamples(ctx, userID); err != nil && !errors.Is(err, store.ErrNotSupported) {
		s.log.Warn("failed to clear sample mirror",
			zap.String("user_id", userID),
			zap.Error(err))
	}
	if err := s.RebuildIndex(ctx); err != nil {
		return fmt.Errorf("rebuild index after reset: %w", err)
	}

	s.log.Info("enrollment reset", zap.String("user_id", userID))
	return nil
}

// Recognize matches one camera frame against the index and, on an accepted
// match, logs attendance for the current day. A second recognition on the
// same day reports AlreadyRecorded instead of writing a duplicate.
func (s *Service) Recognize(ctx context.Context, imageData string) (*RecognitionResult, error) {
	decision := s.engine.RecognizeString(imageData, s.cfg.Recognition.Tolerance)

	result := &RecognitionResult{
		Confidence: decision.Confidence,
		Distance:   decision.Distance,
	}
	if !decision.Matched || decision.Confidence < s.cfg.Recognition.AcceptConfidence {
		return result, nil
	}

	user, err := s.store.Get(ctx, decision.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	result.Recognized = true
	result.User = user

	now := s.now()
	day := now.Format(store.DayFormat)

	already, err := s.store.HasForDay(ctx, user.ID, day)
	if err != nil {
		return nil, fmt.Errorf("check attendance: %w", err)
	}
	if already {
		result.AlreadyRecorded = true
		result.RecordedAt = now
		return result, nil
	}

	rec := store.AttendanceRecord{
		ID:         uuid.New().String(),
		UserID:     user.ID,
		Day:        day,
		RecordedAt: now,
		Status:     store.StatusPresent,
		Confidence: decision.Confidence,
	}
	if err := s.store.Record(ctx, rec); err != nil {
		return nil, fmt.Errorf("record attendance: %w", err)
	}

	result.AttendanceID = rec.ID
	result.RecordedAt = now

	s.log.Info("attendance recorded",
		zap.String("user_id", user.ID),
		zap.String("name", user.Name),
		zap.Float64("confidence", decision.Confidence))
	return result, nil
}

// Similar returns the closest stored face samples to the given image, for
// diagnostics. Requires a backend with vector support.
func (s *Service) Similar(ctx context.Context, imageData string, limit int) ([]store.SampleMatch, error) {
	img, err := imaging.DecodeString(imageData)
	if err != nil {
		return nil, err
	}
	enc := faceprint.Extract(img)
	if enc == nil {
		return nil, &imaging.DecodeError{Kind: imaging.UnreadableImage}
	}
	return s.store.FindSimilar(ctx, []float32(enc), limit)
}

// RebuildIndex reloads every user's persisted encodings into the match
// index.
func (s *Service) RebuildIndex(ctx context.Context) error {
	users, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	records := make([]match.DirectoryRecord, 0, len(users))
	for _, u := range users {
		records = append(records, match.DirectoryRecord{
			UserID:        u.ID,
			IsActive:      u.IsActive,
			EncodingsJSON: u.EncodingsJSON,
		})
	}
	s.engine.Index().RebuildFromDirectory(records, s.log)

	s.log.Debug("match index rebuilt",
		zap.Int("users", len(users)),
		zap.Int("encodings", s.engine.Index().Len()))
	return nil
}

// Engine returns the recognition engine.
func (s *Service) Engine() *match.Engine {
	return s.engine
}

// TodayAttendance lists all attendance records for the current day.
func (s *Service) TodayAttendance(ctx context.Context) ([]store.AttendanceRecord, error) {
	return s.store.ListForDay(ctx, s.now().Format(store.DayFormat))
}

// History lists the user's most recent attendance records, newest first.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]store.AttendanceRecord, error) {
	user, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return s.store.ListForUser(ctx, userID, limit)
}

// Stats summarizes the directory and today's attendance.
func (s *Service) Stats(ctx context.Context) (*store.Stats, error) {
	users, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	stats := &store.Stats{TotalUsers: len(users)}
	for _, u := range users {
		if u.IsActive {
			stats.ActiveUsers++
		}
		if u.FaceRegistered {
			stats.RegisteredFaces++
		}
	}

	present, err := s.store.CountForDay(ctx, s.now().Format(store.DayFormat))
	if err != nil {
		return nil, fmt.Errorf("count attendance: %w", err)
	}
	stats.PresentToday = present
	return stats, nil
}
