package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/userhub/user-service/internal/api/handler"
	"github.com/userhub/user-service/internal/core/domain"
	"github.com/userhub/user-service/internal/core/service"
	"github.com/userhub/user-service/internal/infrastructure/db/memory"
)

const testSecret = "router-test-secret"

type testServer struct {
	e     *echo.Echo
	users *memory.UserRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := zerolog.Nop()

	users := memory.NewUserRepository()
	auth := service.NewAuthService(memory.NewCredentialRepository(), testSecret, "user-service", time.Hour, log)
	resolver := service.NewIdentityResolver(users)
	policy := service.NewOwnershipPolicy(resolver)

	boot := service.NewAdminBootstrapper(users, auth, domain.AdminSeed{
		Enabled:     true,
		Email:       "root@example.com",
		Password:    "root-password",
		DisplayName: "Root",
	}, log)
	if _, err := boot.Run(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	e := NewRouter(Deps{
		Users:     service.NewUserService(users, resolver, policy, log),
		Auth:      auth,
		JWTSecret: testSecret,
		JWTIssuer: "user-service",
		Health:    map[string]handler.Pinger{"store": users},
		Log:       log,
		Registry:  prometheus.NewRegistry(),
	})
	return &testServer{e: e, users: users}
}

func (s *testServer) do(t *testing.T, method, path, token, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("invalid json from %s %s: %v", method, path, err)
		}
	}
	return rec.Code, out
}

// signup registers a local account, logs in and creates the profile. It
// returns the bearer token and the user id.
func (s *testServer) signup(t *testing.T, email, name string) (string, string) {
	t.Helper()
	creds := `{"email":"` + email + `","password":"password123","display_name":"` + name + `"}`
	if code, _ := s.do(t, http.MethodPost, "/auth/register", "", creds); code != http.StatusCreated {
		t.Fatalf("register %s: status %d", email, code)
	}
	token := s.login(t, email, "password123")

	code, body := s.do(t, http.MethodPost, "/v1/users", token, `{"email":"`+email+`","display_name":"`+name+`"}`)
	if code != http.StatusCreated {
		t.Fatalf("create profile %s: status %d body %v", email, code, body)
	}
	return token, body["id"].(string)
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	code, body := s.do(t, http.MethodPost, "/auth/login", "", `{"email":"`+email+`","password":"`+password+`"}`)
	if code != http.StatusOK {
		t.Fatalf("login %s: status %d", email, code)
	}
	return body["token"].(string)
}

func TestRouter_OwnershipOverHTTP(t *testing.T) {
	s := newTestServer(t)
	aliceToken, aliceID := s.signup(t, "alice@example.com", "Alice")
	bobToken, _ := s.signup(t, "bob@example.com", "Bob")
	rootToken := s.login(t, "root@example.com", "root-password")

	if code, body := s.do(t, http.MethodGet, "/v1/users/"+aliceID, aliceToken, ""); code != http.StatusOK || body["email"] != "alice@example.com" {
		t.Fatalf("owner read: %d %v", code, body)
	}

	code, body := s.do(t, http.MethodGet, "/v1/users/"+aliceID, bobToken, "")
	if code != http.StatusNotFound || body["error"] != "user not found" {
		t.Fatalf("non-owner read must look like a miss: %d %v", code, body)
	}
	code, _ = s.do(t, http.MethodGet, "/v1/users/by-email/alice@example.com", bobToken, "")
	if code != http.StatusNotFound {
		t.Fatalf("non-owner email lookup: expected 404, got %d", code)
	}

	if code, _ := s.do(t, http.MethodGet, "/v1/users/"+aliceID, rootToken, ""); code != http.StatusOK {
		t.Fatalf("admin read: expected 200, got %d", code)
	}

	if code, _ := s.do(t, http.MethodPatch, "/v1/users/"+aliceID, bobToken, `{"display_name":"Mallory"}`); code != http.StatusNotFound {
		t.Fatalf("non-owner rename: expected 404, got %d", code)
	}
	code, body = s.do(t, http.MethodPatch, "/v1/users/"+aliceID, aliceToken, `{"display_name":"Alice B"}`)
	if code != http.StatusOK || body["display_name"] != "Alice B" || body["updated_at"] == nil {
		t.Fatalf("owner rename: %d %v", code, body)
	}

	if code, _ := s.do(t, http.MethodDelete, "/v1/users/"+aliceID, aliceToken, ""); code != http.StatusNoContent {
		t.Fatalf("owner delete: expected 204, got %d", code)
	}
	if code, _ := s.do(t, http.MethodGet, "/v1/users/"+aliceID, rootToken, ""); code != http.StatusNotFound {
		t.Fatalf("deleted read: expected 404, got %d", code)
	}
	if code, _ := s.do(t, http.MethodGet, "/v1/users/me", aliceToken, ""); code != http.StatusNotFound {
		t.Fatalf("deleted caller me: expected 404, got %d", code)
	}
}

func TestRouter_Listing(t *testing.T) {
	s := newTestServer(t)
	aliceToken, _ := s.signup(t, "alice@example.com", "Alice")
	s.signup(t, "bob@example.com", "Bob")
	rootToken := s.login(t, "root@example.com", "root-password")

	if code, _ := s.do(t, http.MethodGet, "/v1/users", aliceToken, ""); code != http.StatusForbidden {
		t.Fatalf("non-admin list: expected 403, got %d", code)
	}

	code, body := s.do(t, http.MethodGet, "/v1/users?sort_by=email&order=desc&limit=2", rootToken, "")
	if code != http.StatusOK {
		t.Fatalf("admin list: %d %v", code, body)
	}
	if body["total"] != float64(3) || body["total_pages"] != float64(2) {
		t.Fatalf("unexpected page metadata: %v", body)
	}
	items := body["items"].([]any)
	if first := items[0].(map[string]any); first["email"] != "root@example.com" {
		t.Fatalf("expected descending email order, got %v", first["email"])
	}

	if code, _ := s.do(t, http.MethodGet, "/v1/users?order=sideways", rootToken, ""); code != http.StatusBadRequest {
		t.Fatalf("bad order: expected 400, got %d", code)
	}
	if code, _ := s.do(t, http.MethodGet, "/v1/users?sort_by=age", rootToken, ""); code != http.StatusBadRequest {
		t.Fatalf("bad sort: expected 400, got %d", code)
	}
}

func TestRouter_Authentication(t *testing.T) {
	s := newTestServer(t)

	if code, _ := s.do(t, http.MethodGet, "/v1/users/me", "", ""); code != http.StatusUnauthorized {
		t.Fatalf("no token: expected 401, got %d", code)
	}

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": "admin",
		"iss":  "user-service",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	code, body := s.do(t, http.MethodGet, "/v1/users/me", noSubject, "")
	if code != http.StatusForbidden {
		t.Fatalf("no subject: expected 403, got %d %v", code, body)
	}

	// A forged admin role claim gets past the RBAC gate but not the stored-role check.
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "ext-unknown",
		"role": "admin",
		"iss":  "user-service",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if code, _ := s.do(t, http.MethodGet, "/v1/users", forged, ""); code != http.StatusForbidden {
		t.Fatalf("forged admin list: expected 403, got %d", code)
	}
}

func TestRouter_CreateConflict(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.signup(t, "alice@example.com", "Alice")

	code, _ := s.do(t, http.MethodPost, "/v1/users", token, `{"email":"alice2@example.com","display_name":"Again"}`)
	if code != http.StatusConflict {
		t.Fatalf("second profile: expected 409, got %d", code)
	}

	code, body := s.do(t, http.MethodPost, "/v1/users", token, `{"email":"not-an-email","display_name":"X"}`)
	if code != http.StatusBadRequest || !strings.Contains(body["error"].(string), "email") {
		t.Fatalf("invalid email: %d %v", code, body)
	}
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	if code, body := s.do(t, http.MethodGet, "/health", "", ""); code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("liveness: %d %v", code, body)
	}
	code, body := s.do(t, http.MethodGet, "/health/ready", "", "")
	if code != http.StatusOK {
		t.Fatalf("readiness: %d %v", code, body)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "user_service_requests_total") {
		t.Fatalf("metrics: %d", rec.Code)
	}
}
