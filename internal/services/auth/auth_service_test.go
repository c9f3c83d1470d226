package auth

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	authcore "github.com/rajivgeraev/flippy-core/internal/auth"
	"github.com/rajivgeraev/flippy-core/internal/middleware"
	"github.com/rajivgeraev/flippy-core/internal/sessions"
	"github.com/rajivgeraev/flippy-core/internal/sessionstore"
	"github.com/rajivgeraev/flippy-core/internal/simnet"
	"github.com/rajivgeraev/flippy-core/internal/store"
	"github.com/rajivgeraev/flippy-core/internal/utils"
)

func newApp(t *testing.T) *fiber.App {
	t.Helper()
	sessionsDB, err := sessionstore.Open(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = sessionsDB.Close() })

	backend := simnet.NewBackend()
	jwtService := utils.NewJWTService("secret", time.Hour)
	authSvc := authcore.NewService(backend, jwtService, "123:abc")
	reg := sessions.New(func(userID uuid.UUID) *store.Store {
		return store.New(store.Options{Collaborators: store.Collaborators{
			Auth:      authSvc,
			Session:   sessionsDB.For(userID),
			Items:     backend,
			Swaps:     backend,
			Messages:  backend,
			Reviews:   backend,
			Community: backend,
		}})
	})

	app := fiber.New()
	NewAuthService(reg).SetupRoutes(app, middleware.AuthMiddleware(jwtService, reg))
	return app
}

func do(t *testing.T, app *fiber.App, method, path, token, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	out := map[string]any{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp.StatusCode, out
}

func TestRegisterProfileLogout(t *testing.T) {
	app := newApp(t)

	status, body := do(t, app, http.MethodPost, "/api/auth/register", "",
		`{"email":"alice@example.com","password":"password1","username":"alice"}`)
	if status != http.StatusOK {
		t.Fatalf("register status = %d, body = %v", status, body)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("no token in %v", body)
	}

	status, body = do(t, app, http.MethodGet, "/api/profile", token, "")
	if status != http.StatusOK {
		t.Fatalf("profile status = %d, body = %v", status, body)
	}
	user, _ := body["user"].(map[string]any)
	if user["username"] != "alice" {
		t.Fatalf("profile user = %v", user)
	}

	if status, _ = do(t, app, http.MethodPost, "/api/auth/logout", token, ""); status != http.StatusNoContent {
		t.Fatalf("logout status = %d", status)
	}
	if status, _ = do(t, app, http.MethodGet, "/api/profile", token, ""); status != http.StatusUnauthorized {
		t.Fatalf("profile after logout = %d, want 401", status)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	app := newApp(t)
	if status, _ := do(t, app, http.MethodGet, "/api/profile", "", ""); status != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", status)
	}
	if status, _ := do(t, app, http.MethodGet, "/api/profile", "garbage", ""); status != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", status)
	}
}

func TestLoginErrorsUseDomainStatus(t *testing.T) {
	app := newApp(t)
	status, body := do(t, app, http.MethodPost, "/api/auth/login", "", `{"email":"nobody@example.com","password":"password1"}`)
	if status != http.StatusForbidden || body["kind"] != "authorization" {
		t.Fatalf("status = %d, body = %v", status, body)
	}
	status, body = do(t, app, http.MethodPost, "/api/auth/register", "", `{"email":"bad","password":"x","username":"a"}`)
	if status != http.StatusBadRequest || body["kind"] != "validation" {
		t.Fatalf("status = %d, body = %v", status, body)
	}
}
