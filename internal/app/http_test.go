package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"taskhub/api/internal/auth"
	"taskhub/api/internal/store"
)

func issueTestToken(t *testing.T, userID string) string {
	t.Helper()
	token, err := auth.IssueToken([]byte("test-secret"), auth.Claims{
		Sub:  userID,
		Name: "Avery",
		JTI:  "jti-test",
		Exp:  time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func TestLoginReturnsToken(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakeNotifier{})
	server := NewHTTPServer(svc, "*", nil)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		bytes.NewBufferString(`{"name":"  Avery  ","email":"avery@example.com"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if token, _ := payload["token"].(string); token == "" {
		t.Fatal("expected token")
	}
	if userName, _ := payload["userName"].(string); userName != "Avery" {
		t.Fatalf("expected userName Avery, got %q", userName)
	}
}

func TestLoginRejectsMissingEmail(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}, &fakeNotifier{}), "*", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		bytes.NewBufferString(`{"name":"Avery"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestProtectedRoutesRequireBearerToken(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}, &fakeNotifier{}), "*", nil)

	for _, path := range []string{"/api/workspaces", "/api/tasks/my", "/api/notifications"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		server.Handler().ServeHTTP(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected status 401, got %d", path, rr.Code)
		}
	}
}

func TestWorkspaceErrorsMapToStatusCodes(t *testing.T) {
	st := &fakeStore{
		getUserByIDFn: func(_ context.Context, userID string) (store.User, error) {
			return store.User{ID: userID, Name: "Avery"}, nil
		},
	}
	server := NewHTTPServer(newTestService(st, &fakeNotifier{}), "*", nil)
	token := issueTestToken(t, "u1")

	// Missing workspace reads as 404 regardless of the caller.
	req := httptest.NewRequest(http.MethodGet, "/api/workspaces/ws_missing", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d body=%s", rr.Code, rr.Body.String())
	}

	// Existing workspace without membership reads as 403.
	st.getWorkspaceFn = func(context.Context, string) (store.Workspace, error) {
		return store.Workspace{ID: "ws1", OwnerID: "u2"}, nil
	}
	req = httptest.NewRequest(http.MethodGet, "/api/workspaces/ws1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d body=%s", rr.Code, rr.Body.String())
	}

	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if payload["code"] != "FORBIDDEN" {
		t.Fatalf("expected code FORBIDDEN, got %v", payload["code"])
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}, &fakeNotifier{}), "*", nil)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}
