package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/store"
)

func TestUsersList(t *testing.T) {
	svc, st := testService(t)
	handler := NewUsersHandler(st, svc, nil)
	st.AddUser(store.UserRecord{ID: "u1", Name: "Jan Novák", Email: "jan@example.com", IsActive: true})
	st.AddUser(store.UserRecord{ID: "u2", Name: "Alice", Email: "alice@example.com", IsActive: true})

	t.Run("all users", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
		recorder := httptest.NewRecorder()
		handler.List(recorder, req)

		assertStatusCode(t, recorder, http.StatusOK)
		var resp struct {
			Users []UserEntry `json:"users"`
			Count int         `json:"count"`
		}
		parseJSONResponse(t, recorder, &resp)
		if resp.Count != 2 {
			t.Fatalf("expected 2 users, got %d", resp.Count)
		}
		// ordered by name
		if resp.Users[0].Name != "Alice" {
			t.Errorf("unexpected order: %+v", resp.Users)
		}
	})

	t.Run("diacritics insensitive query", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/users?query=novak", nil)
		recorder := httptest.NewRecorder()
		handler.List(recorder, req)

		var resp struct {
			Users []UserEntry `json:"users"`
		}
		parseJSONResponse(t, recorder, &resp)
		if len(resp.Users) != 1 || resp.Users[0].ID != "u1" {
			t.Errorf("expected to find Jan Novák, got %+v", resp.Users)
		}
	})
}

func TestUsersCreate(t *testing.T) {
	svc, st := testService(t)
	handler := NewUsersHandler(st, svc, nil)

	t.Run("success", func(t *testing.T) {
		req := jsonRequest(t, http.MethodPost, "/api/v1/users", map[string]string{
			"name":     "Alice",
			"email":    "alice@example.com",
			"password": "secret123",
		})
		recorder := httptest.NewRecorder()
		handler.Create(recorder, req)

		assertStatusCode(t, recorder, http.StatusCreated)
		var resp UserEntry
		parseJSONResponse(t, recorder, &resp)
		if resp.ID == "" || resp.Role != "employee" || !resp.IsActive {
			t.Errorf("unexpected response %+v", resp)
		}

		created, _ := st.GetByEmail(context.Background(), "alice@example.com")
		if created == nil {
			t.Fatal("user was not stored")
		}
		if created.PasswordHash == "" || created.PasswordHash == "secret123" {
			t.Error("password must be stored hashed")
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		req := jsonRequest(t, http.MethodPost, "/api/v1/users", map[string]string{
			"name":     "Alice Again",
			"email":    "alice@example.com",
			"password": "secret123",
		})
		recorder := httptest.NewRecorder()
		handler.Create(recorder, req)
		assertStatusCode(t, recorder, http.StatusConflict)
	})

	t.Run("missing fields", func(t *testing.T) {
		req := jsonRequest(t, http.MethodPost, "/api/v1/users", map[string]string{
			"name": "No Email",
		})
		recorder := httptest.NewRecorder()
		handler.Create(recorder, req)
		assertStatusCode(t, recorder, http.StatusBadRequest)
	})
}

func TestUsersSetActive(t *testing.T) {
	svc, st := testService(t)
	handler := NewUsersHandler(st, svc, nil)
	st.AddUser(store.UserRecord{ID: "u1", Name: "Alice", Email: "alice@example.com", IsActive: true})
	registerUser(t, svc, "u1")

	req := jsonRequest(t, http.MethodPut, "/api/v1/users/u1/active", map[string]bool{"active": false})
	req = requestWithChiParams(req, map[string]string{"userID": "u1"})
	recorder := httptest.NewRecorder()
	handler.SetActive(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	user, _ := st.Get(context.Background(), "u1")
	if user.IsActive {
		t.Error("user must be deactivated")
	}

	// deactivation refreshes the index, so the kiosk sees a plain
	// not-recognized result instead of an inactive-user error
	if svc.Engine().Index().Len() != 0 {
		t.Errorf("index still holds %d entries after deactivation", svc.Engine().Index().Len())
	}
	result, err := svc.Recognize(context.Background(), captureImage(t, 3))
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if result.Recognized {
		t.Error("deactivated user must not be recognized")
	}

	t.Run("reactivation restores recognition", func(t *testing.T) {
		req := jsonRequest(t, http.MethodPut, "/api/v1/users/u1/active", map[string]bool{"active": true})
		req = requestWithChiParams(req, map[string]string{"userID": "u1"})
		recorder := httptest.NewRecorder()
		handler.SetActive(recorder, req)

		assertStatusCode(t, recorder, http.StatusOK)
		result, err := svc.Recognize(context.Background(), captureImage(t, 3))
		if err != nil {
			t.Fatalf("Recognize failed: %v", err)
		}
		if !result.Recognized {
			t.Error("reactivated user must be recognized again")
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		req := jsonRequest(t, http.MethodPut, "/api/v1/users/missing/active", map[string]bool{"active": true})
		req = requestWithChiParams(req, map[string]string{"userID": "missing"})
		recorder := httptest.NewRecorder()
		handler.SetActive(recorder, req)
		assertStatusCode(t, recorder, http.StatusNotFound)
	})
}
