package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tradepost/api/internal/authpw"
	"tradepost/api/internal/config"
	"tradepost/api/internal/store"
)

func newTestHandler(t *testing.T) (http.Handler, *Service, *fakeStore) {
	t.Helper()
	fs := newFakeStore()
	svc := &Service{
		cfg: config.Config{
			JWTSecret:  "test-secret",
			AccessTTL:  time.Hour,
			RefreshTTL: 24 * time.Hour,
		},
		store:    fs,
		sessions: newFakeSessions(),
		search:   &noopSearch{},
		accounts: authpw.NewService(fs),
	}
	server := NewHTTPServer(svc, "*")
	return server.Handler(), svc, fs
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return payload
}

func TestHealthEndpoint(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	rec := doJSON(t, handler, http.MethodGet, "/api/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("CORS origin = %q", got)
	}
	if got := rec.Header().Get("X-Request-ID"); got == "" {
		t.Fatal("missing X-Request-ID header")
	}
	payload := decodeResponse(t, rec)
	if payload["ok"] != true {
		t.Fatalf("payload = %v", payload)
	}
}

func TestReadyEndpoint(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	rec := doJSON(t, handler, http.MethodGet, "/api/ready", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	payload := decodeResponse(t, rec)
	if payload["status"] != "ready" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	for _, path := range []string{"/api/notifications", "/api/items", "/api/profile", "/api/search?q=x"} {
		rec := doJSON(t, handler, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("GET %s = %d, want 401", path, rec.Code)
		}
	}

	rec := doJSON(t, handler, http.MethodGet, "/api/notifications", "not-a-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token = %d, want 401", rec.Code)
	}
}

func TestSessionEndpointWithoutToken(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	rec := doJSON(t, handler, http.MethodGet, "/api/session", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	payload := decodeResponse(t, rec)
	if payload["authenticated"] != false {
		t.Fatalf("payload = %v", payload)
	}
}

func TestSignUpSignInFlow(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	signup := map[string]string{
		"username":  "ulla",
		"email":     "ulla@example.com",
		"password":  "hunter2hunter2",
		"birthdate": "1990-04-01",
	}
	rec := doJSON(t, handler, http.MethodPost, "/api/auth/signup", "", signup)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup = %d: %s", rec.Code, rec.Body.String())
	}
	payload := decodeResponse(t, rec)
	token, _ := payload["token"].(string)
	if token == "" {
		t.Fatalf("signup payload missing token: %v", payload)
	}

	// The issued token opens protected routes.
	rec = doJSON(t, handler, http.MethodGet, "/api/notifications", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("notifications with token = %d", rec.Code)
	}

	// Duplicate email is rejected.
	rec = doJSON(t, handler, http.MethodPost, "/api/auth/signup", "", signup)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate signup = %d, want 409", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/auth/signin", "", map[string]string{
		"email":    "ulla@example.com",
		"password": "hunter2hunter2",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("signin = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/auth/signin", "", map[string]string{
		"email":    "ulla@example.com",
		"password": "wrong-password",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad signin = %d, want 401", rec.Code)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	handler, svc, fs := newTestHandler(t)
	sess := sessionFor(t, svc, fs, "ulla")

	rec := doJSON(t, handler, http.MethodPost, "/api/session/refresh", "", map[string]string{
		"refreshToken": sess.RefreshToken,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh = %d: %s", rec.Code, rec.Body.String())
	}

	// The old refresh token is revoked on rotation.
	rec = doJSON(t, handler, http.MethodPost, "/api/session/refresh", "", map[string]string{
		"refreshToken": sess.RefreshToken,
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("reused refresh = %d, want 401", rec.Code)
	}
}

func sessionFor(t *testing.T, svc *Service, fs *fakeStore, username string) Session {
	t.Helper()
	id, err := fs.CreateUser(context.Background(), store.User{
		Username: username,
		Email:    username + "@example.com",
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	user, _ := fs.GetUser(context.Background(), id)
	sess, err := svc.CreateSession(context.Background(), user)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return sess
}

func TestListingRoutesByKind(t *testing.T) {
	handler, svc, fs := newTestHandler(t)
	owner := sessionFor(t, svc, fs, "ulla")
	actor := sessionFor(t, svc, fs, "viggo")

	rec := doJSON(t, handler, http.MethodPost, "/api/items", owner.Token, map[string]string{
		"title":       "ladder",
		"description": "sturdy ladder",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create item = %d: %s", rec.Code, rec.Body.String())
	}
	itemID, _ := decodeResponse(t, rec)["id"].(string)
	if itemID == "" {
		t.Fatal("create item response missing id")
	}

	// Items toggle on /interest, requests on /offer; the other segment 404s.
	rec = doJSON(t, handler, http.MethodPost, "/api/items/"+itemID+"/interest", actor.Token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("mark interest = %d: %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, handler, http.MethodPost, "/api/items/"+itemID+"/offer", actor.Token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("items /offer = %d, want 404", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/items/"+itemID, actor.Token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get item = %d", rec.Code)
	}
	detail := decodeResponse(t, rec)
	if detail["status"] != store.StatusAvailable {
		t.Fatalf("detail status = %v", detail["status"])
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/items/"+itemID+"/accept", owner.Token, map[string]string{
		"userId": actor.UserID,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("accept = %d: %s", rec.Code, rec.Body.String())
	}
	if got := decodeResponse(t, rec)["status"]; got != store.StatusPending {
		t.Fatalf("status after accept = %v", got)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/items/"+itemID+"/accept", actor.Token, map[string]string{
		"userId": actor.UserID,
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-owner accept = %d, want 403", rec.Code)
	}
}

func TestDismissNotificationRoute(t *testing.T) {
	handler, svc, fs := newTestHandler(t)
	sess := sessionFor(t, svc, fs, "ulla")

	fs.users[sess.UserID].Notifications = []store.Notification{
		{Message: "A"}, {Message: "B"}, {Message: "C"},
	}

	rec := doJSON(t, handler, http.MethodDelete, "/api/notifications/0", sess.Token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dismiss = %d: %s", rec.Code, rec.Body.String())
	}
	user, _ := fs.GetUser(context.Background(), sess.UserID)
	if len(user.Notifications) != 2 || user.Notifications[1].Message != "B" {
		t.Fatalf("notifications after dismiss = %+v", user.Notifications)
	}

	rec = doJSON(t, handler, http.MethodDelete, "/api/notifications/abc", sess.Token, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("non-integer index = %d, want 422", rec.Code)
	}
}

func TestRatingRoutes(t *testing.T) {
	handler, svc, fs := newTestHandler(t)
	target := sessionFor(t, svc, fs, "ulla")
	rater := sessionFor(t, svc, fs, "viggo")

	rec := doJSON(t, handler, http.MethodPost, "/api/users/"+target.UserID+"/ratings", rater.Token, map[string]string{
		"value": "5",
		"emoji": "🎉",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("rate = %d: %s", rec.Code, rec.Body.String())
	}
	payload := decodeResponse(t, rec)
	if payload["average"] != float64(5) {
		t.Fatalf("average = %v, want 5", payload["average"])
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/users/"+target.UserID+"/ratings", target.Token, map[string]string{
		"value": "5",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("self rating = %d, want 422", rec.Code)
	}
	if got := decodeResponse(t, rec)["code"]; got != "SELF_RATING" {
		t.Fatalf("code = %v, want SELF_RATING", got)
	}
}
