package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/match"
	"github.com/kozaktomas/face-attendance/internal/store"
	"github.com/kozaktomas/face-attendance/internal/store/mock"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
)

// testConfig creates a minimal config for testing
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

// testService creates an attendance service over a mock store
func testService(t *testing.T) (*attendance.Service, *mock.Store) {
	t.Helper()
	st := mock.NewStore()
	engine := match.NewEngine(match.NewIndex(), nil)
	return attendance.NewService(testConfig(), st, engine, nil), st
}

// captureImage produces a distinct base64 PNG per seed
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
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// registerUser runs a full registration flow through the service
func registerUser(t *testing.T, svc *attendance.Service, userID string) {
	t.Helper()
	for seed := uint8(1); seed <= 5; seed++ {
		if _, err := svc.RegisterFace(context.Background(), userID, captureImage(t, seed)); err != nil {
			t.Fatalf("RegisterFace failed: %v", err)
		}
	}
}

// seedUser adds a user to the mock store
func seedUser(st *mock.Store, id, name, role string, active bool) {
	st.AddUser(store.UserRecord{
		ID:       id,
		Name:     name,
		Email:    name + "@example.com",
		Role:     role,
		IsActive: active,
	})
}

// jsonRequest creates a request with a JSON body
func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// requestWithSession attaches a session to the request context
func requestWithSession(r *http.Request, userID, role string) *http.Request {
	session := &middleware.Session{ID: "test-session", UserID: userID, Role: role}
	return r.WithContext(middleware.SetSessionInContext(r.Context(), session))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
