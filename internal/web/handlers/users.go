package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/store"
)

// UsersHandler handles user directory endpoints.
type UsersHandler struct {
	users   store.UserWriter
	service *attendance.Service
	log     *zap.Logger
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(users store.UserWriter, service *attendance.Service, logger *zap.Logger) *UsersHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UsersHandler{users: users, service: service, log: logger}
}

// UserEntry is one user in directory listings.
type UserEntry struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	IsActive       bool   `json:"is_active"`
	FaceRegistered bool   `json:"face_registered"`
	CreatedAt      string `json:"created_at"`
}

func toUserEntry(u store.UserRecord) UserEntry {
	return UserEntry{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		Role:           u.Role,
		IsActive:       u.IsActive,
		FaceRegistered: u.FaceRegistered,
		CreatedAt:      u.CreatedAt.Format(time.RFC3339),
	}
}

// List returns the user directory, optionally filtered by a name query.
// The query is diacritics-insensitive.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		users []store.UserRecord
		err   error
	)
	if query := r.URL.Query().Get("query"); query != "" {
		users, err = h.users.Search(r.Context(), query)
	} else {
		users, err = h.users.List(r.Context())
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	entries := make([]UserEntry, 0, len(users))
	for _, u := range users {
		entries = append(entries, toUserEntry(u))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"users": entries,
		"count": len(entries),
	})
}

type createUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

// Create adds a new user to the directory.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "name, email and password are required")
		return
	}
	role := req.Role
	if role == "" {
		role = "employee"
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	user := store.UserRecord{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Email:        req.Email,
		Role:         role,
		PasswordHash: string(hash),
		IsActive:     true,
		CreatedAt:    time.Now(),
	}
	if err := h.users.Create(r.Context(), user); err != nil {
		h.log.Warn("failed to create user",
			zap.String("email", sanitizeForLog(req.Email)),
			zap.Error(err))
		respondError(w, http.StatusConflict, "user could not be created")
		return
	}

	h.log.Info("user created",
		zap.String("user_id", user.ID),
		zap.String("role", user.Role))
	respondJSON(w, http.StatusCreated, toUserEntry(user))
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

// SetActive toggles a user's active flag.
func (h *UsersHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req setActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	if err := h.users.SetActive(r.Context(), userID, req.Active); err != nil {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}

	// the index only holds active users, so toggling the flag must
	// refresh it or the kiosk keeps matching a stale entry
	if err := h.service.RebuildIndex(r.Context()); err != nil {
		h.log.Error("failed to rebuild index after active toggle",
			zap.String("user_id", userID),
			zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to refresh recognition index")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}
