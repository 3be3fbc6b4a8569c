package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/store"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
)

const defaultHistoryLimit = 30

// AttendanceHandler handles attendance listing endpoints.
type AttendanceHandler struct {
	service *attendance.Service
	users   store.UserReader
	log     *zap.Logger
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(service *attendance.Service, users store.UserReader, logger *zap.Logger) *AttendanceHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceHandler{
		service: service,
		users:   users,
		log:     logger,
	}
}

// AttendanceEntry is one attendance record in API responses.
type AttendanceEntry struct {
	ID         string  `json:"id"`
	UserID     string  `json:"user_id"`
	Name       string  `json:"name,omitempty"`
	Day        string  `json:"day"`
	RecordedAt string  `json:"recorded_at"`
	Status     string  `json:"status"`
	Confidence float64 `json:"confidence"`
}

func (h *AttendanceHandler) toEntries(r *http.Request, records []store.AttendanceRecord) []AttendanceEntry {
	names := make(map[string]string)
	entries := make([]AttendanceEntry, 0, len(records))
	for _, rec := range records {
		name, ok := names[rec.UserID]
		if !ok {
			if user, err := h.users.Get(r.Context(), rec.UserID); err == nil && user != nil {
				name = user.Name
			}
			names[rec.UserID] = name
		}
		entries = append(entries, AttendanceEntry{
			ID:         rec.ID,
			UserID:     rec.UserID,
			Name:       name,
			Day:        rec.Day,
			RecordedAt: rec.RecordedAt.Format(time.RFC3339),
			Status:     rec.Status,
			Confidence: rec.Confidence,
		})
	}
	return entries
}

// Today lists all attendance records for the current day.
func (h *AttendanceHandler) Today(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.TodayAttendance(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"records": h.toEntries(r, records),
		"count":   len(records),
	})
}

// History lists a user's most recent attendance records. Non-admins can
// only read their own history.
func (h *AttendanceHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	session := middleware.GetSessionFromContext(r.Context())
	if session == nil || (session.Role != "admin" && session.UserID != userID) {
		respondError(w, http.StatusForbidden, "forbidden")
		return
	}

	limit := defaultHistoryLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 365 {
			limit = n
		}
	}

	records, err := h.service.History(r.Context(), userID, limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"records": h.toEntries(r, records),
		"count":   len(records),
	})
}
