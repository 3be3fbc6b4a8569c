package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/web/handlers"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	authHandler := handlers.NewAuthHandler(s.store, s.sessionManager, s.log)
	faceHandler := handlers.NewFaceHandler(s.service, s.store, s.log)
	attendanceHandler := handlers.NewAttendanceHandler(s.service, s.store, s.log)
	usersHandler := handlers.NewUsersHandler(s.store, s.service, s.log)
	statsHandler := handlers.NewStatsHandler(s.service)

	// Health check (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Auth routes
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/auth/status", authHandler.Status)

		// The recognition kiosk runs unauthenticated; it only ever
		// answers with a match or a rejection.
		r.Post("/face/recognize", faceHandler.Recognize)

		// Everything else requires a session
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(s.sessionManager))

			// Registration flow
			r.Post("/face/register", faceHandler.Register)
			r.Get("/face/register-status/{userID}", faceHandler.RegisterStatus)

			// Attendance
			r.Get("/attendance/today", attendanceHandler.Today)
			r.Get("/attendance/history/{userID}", attendanceHandler.History)

			// Stats
			r.Get("/stats", statsHandler.Get)

			// Directory
			r.Get("/users", usersHandler.List)

			// Admin-only operations
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole("admin"))

				r.Post("/users", usersHandler.Create)
				r.Put("/users/{userID}/active", usersHandler.SetActive)
				r.Post("/face/reset/{userID}", faceHandler.Reset)
				r.Post("/face/similar", faceHandler.Similar)
				r.Post("/index/rebuild", faceHandler.RebuildIndex)
			})
		})
	})

	s.router.Get("/", s.serveIndex)
}

// serveIndex answers the root path with a minimal landing page pointing at
// the API. The kiosk frontend is deployed separately.
func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Face Attendance</title></head>
<body>
    <h1>Face Attendance API</h1>
    <p>API is available at <a href="/api/v1/health">/api/v1/health</a></p>
</body>
</html>`))
}
