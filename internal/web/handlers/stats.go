package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/attendance"
)

// StatsHandler handles the statistics endpoint.
type StatsHandler struct {
	service *attendance.Service
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(service *attendance.Service) *StatsHandler {
	return &StatsHandler{service: service}
}

// StatsResponse summarizes the directory and today's attendance.
type StatsResponse struct {
	TotalUsers      int `json:"total_users"`
	ActiveUsers     int `json:"active_users"`
	RegisteredFaces int `json:"registered_faces"`
	PresentToday    int `json:"present_today"`
	IndexedFaces    int `json:"indexed_faces"`
}

// Get returns current statistics.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, StatsResponse{
		TotalUsers:      stats.TotalUsers,
		ActiveUsers:     stats.ActiveUsers,
		RegisteredFaces: stats.RegisteredFaces,
		PresentToday:    stats.PresentToday,
		IndexedFaces:    h.service.Engine().Index().Len(),
	})
}
