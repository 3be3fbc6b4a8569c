package handlers

import (
	"encoding/json"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/store"
)

// FaceHandler handles face registration and recognition endpoints.
type FaceHandler struct {
	service *attendance.Service
	users   store.UserReader
	log     *zap.Logger
}

// NewFaceHandler creates a new face handler.
func NewFaceHandler(service *attendance.Service, users store.UserReader, logger *zap.Logger) *FaceHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FaceHandler{
		service: service,
		users:   users,
		log:     logger,
	}
}

type registerRequest struct {
	UserID string `json:"user_id"`
	Image  string `json:"image"`
}

// RegisterResponse reports registration flow progress.
type RegisterResponse struct {
	Success   bool `json:"success"`
	Captured  int  `json:"captured"`
	Required  int  `json:"required"`
	Progress  int  `json:"progress"`
	Completed bool `json:"completed"`
}

// Register accepts one captured image for a user's registration flow.
func (h *FaceHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.UserID == "" || req.Image == "" {
		respondError(w, http.StatusBadRequest, "user_id and image are required")
		return
	}

	progress, err := h.service.RegisterFace(r.Context(), req.UserID, req.Image)
	if err != nil {
		h.log.Debug("face registration failed",
			zap.String("user_id", sanitizeForLog(req.UserID)),
			zap.Error(err))
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, RegisterResponse{
		Success:   true,
		Captured:  progress.Captured,
		Required:  progress.Required,
		Progress:  progress.Percent,
		Completed: progress.Completed,
	})
}

// RegisterStatusResponse reports a user's enrollment state.
type RegisterStatusResponse struct {
	Captured     int    `json:"captured"`
	Required     int    `json:"required"`
	Registered   bool   `json:"registered"`
	RegisteredAt string `json:"registered_at,omitempty"`
}

// RegisterStatus reports the registration state for a user.
func (h *FaceHandler) RegisterStatus(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	status, err := h.service.RegistrationStatus(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	resp := RegisterStatusResponse{
		Captured:   status.Captured,
		Required:   status.Required,
		Registered: status.Registered,
	}
	if status.RegisteredAt != nil {
		resp.RegisteredAt = status.RegisteredAt.Format(time.RFC3339)
	}
	respondJSON(w, http.StatusOK, resp)
}

// Reset drops a user's enrollment, staged and persisted.
func (h *FaceHandler) Reset(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	if err := h.service.ResetEnrollment(r.Context(), userID); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type recognizeRequest struct {
	Image string `json:"image"`
}

// RecognizeResponse is the outcome of a recognition attempt.
type RecognizeResponse struct {
	Recognized    bool      `json:"recognized"`
	User          *UserInfo `json:"user,omitempty"`
	Confidence    float64   `json:"confidence"`
	Distance      *float64  `json:"distance,omitempty"`
	AlreadyLogged bool      `json:"already_logged"`
	AttendanceID  string    `json:"attendance_id,omitempty"`
	Timestamp     string    `json:"timestamp,omitempty"`
}

// Recognize matches a camera frame and logs attendance on success.
func (h *FaceHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	var req recognizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Image == "" {
		respondError(w, http.StatusBadRequest, "image is required")
		return
	}

	result, err := h.service.Recognize(r.Context(), req.Image)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	resp := RecognizeResponse{
		Recognized:    result.Recognized,
		User:          userInfo(result.User),
		Confidence:    result.Confidence,
		AlreadyLogged: result.AlreadyRecorded,
		AttendanceID:  result.AttendanceID,
	}
	if !math.IsInf(result.Distance, 1) {
		d := result.Distance
		resp.Distance = &d
	}
	if !result.RecordedAt.IsZero() {
		resp.Timestamp = result.RecordedAt.Format(time.RFC3339)
	}
	respondJSON(w, http.StatusOK, resp)
}

type similarRequest struct {
	Image string `json:"image"`
	Limit int    `json:"limit"`
}

// SimilarMatch is one nearest-neighbor diagnostic result.
type SimilarMatch struct {
	UserID   string  `json:"user_id"`
	Name     string  `json:"name,omitempty"`
	Distance float64 `json:"distance"`
}

// Similar returns the closest stored face samples to an image.
func (h *FaceHandler) Similar(w http.ResponseWriter, r *http.Request) {
	var req similarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Image == "" {
		respondError(w, http.StatusBadRequest, "image is required")
		return
	}
	limit := req.Limit
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	matches, err := h.service.Similar(r.Context(), req.Image, limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	results := make([]SimilarMatch, 0, len(matches))
	for _, m := range matches {
		sm := SimilarMatch{UserID: m.UserID, Distance: m.Distance}
		if user, err := h.users.Get(r.Context(), m.UserID); err == nil && user != nil {
			sm.Name = user.Name
		}
		results = append(results, sm)
	}
	respondJSON(w, http.StatusOK, map[string]any{"matches": results})
}

// RebuildIndex reloads the match index from the store.
func (h *FaceHandler) RebuildIndex(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RebuildIndex(r.Context()); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"encodings": h.service.Engine().Index().Len(),
	})
}
