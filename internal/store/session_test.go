package store

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/rajivgeraev/flippy-core/internal/apperr"
	"github.com/rajivgeraev/flippy-core/internal/models"
	"github.com/rajivgeraev/flippy-core/internal/permissions"
)

func TestLoginTransportFailureRestoresSession(t *testing.T) {
	e := newEnv(t, Config{})
	e.auth.err = errBoom

	_, err := e.st.Login(context.Background(), models.Credentials{Email: "a@example.com", Password: "password123"})
	if apperr.KindOf(err) != apperr.KindTransport {
		t.Fatalf("expected transport error, got %v", err)
	}
	if !errors.Is(err, errBoom) {
		t.Fatalf("transport error must wrap the cause, got %v", err)
	}
	if e.st.IsAuthenticated() || e.st.IsLoading() {
		t.Fatal("failed login must leave the session closed and not loading")
	}
	if got := e.st.LastError(); got != "Не удалось выполнить вход" {
		t.Fatalf("LastError = %q", got)
	}
	e.st.ClearError()
	if e.st.LastError() != "" {
		t.Fatal("ClearError must reset the last error")
	}
}

func TestLoginValidationDoesNotCallService(t *testing.T) {
	e := newEnv(t, Config{})
	_, err := e.st.Login(context.Background(), models.Credentials{Email: "not-an-email", Password: "password123"})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if e.auth.calls != 0 {
		t.Fatal("invalid credentials must not reach the auth service")
	}
}

func TestLoginResolvesPermissionsAndPersistsSession(t *testing.T) {
	e := newEnv(t, Config{})
	mod := newUser("moderator", models.RoleModerator)
	e.loginAs(t, mod)

	perms := e.st.Permissions()
	if !slices.Contains(perms, permissions.ItemModerate) || slices.Contains(perms, permissions.UserManage) {
		t.Fatalf("unexpected moderator permissions: %v", perms)
	}
	if e.session.saved == nil || e.session.saved.User.ID != mod.ID {
		t.Fatal("session must be persisted after login")
	}
	u, ok := e.st.CurrentUser()
	if !ok || u.TrustScore == 0 {
		t.Fatalf("current user must carry a computed trust score, got %+v", u)
	}
}

func TestRestoreSession(t *testing.T) {
	e := newEnv(t, Config{})
	alice := newUser("alice", models.RoleUser)
	e.loginAs(t, alice)

	other := newEnv(t, Config{})
	other.session.saved = e.session.saved
	ok, err := other.st.RestoreSession(context.Background())
	if err != nil || !ok {
		t.Fatalf("RestoreSession = %v, %v", ok, err)
	}
	u, _ := other.st.CurrentUser()
	if u.ID != alice.ID || !slices.Contains(other.st.Permissions(), permissions.SwapCreate) {
		t.Fatal("restored session must reopen the user with resolved permissions")
	}

	empty := newEnv(t, Config{})
	ok, err = empty.st.RestoreSession(context.Background())
	if err != nil || ok {
		t.Fatalf("RestoreSession without saved data = %v, %v", ok, err)
	}
}

func TestLogoutClearsSnapshot(t *testing.T) {
	e := newEnv(t, Config{})
	e.loginAs(t, newUser("alice", models.RoleUser))
	if _, err := e.st.CreateItem(context.Background(), draft("Книга")); err != nil {
		t.Fatal(err)
	}

	if err := e.st.Logout(context.Background()); err != nil {
		t.Fatal(err)
	}
	if e.st.IsAuthenticated() || len(e.st.GetItemsByStatus(models.ItemAvailable)) != 0 {
		t.Fatal("logout must clear session and collections")
	}
	if e.session.cleared != 1 || len(e.st.Permissions()) != 0 {
		t.Fatal("logout must clear the persisted session and permissions")
	}
}

func TestUpdateProfileRecomputesTrust(t *testing.T) {
	e := newEnv(t, Config{})
	e.loginAs(t, newUser("alice", models.RoleUser))
	before, _ := e.st.CurrentUser()

	first, bio, city := "Алиса", "Меняю книги", "Казань"
	u, err := e.st.UpdateProfile(context.Background(), models.ProfileUpdate{FirstName: &first, Bio: &bio, Location: &city})
	if err != nil {
		t.Fatal(err)
	}
	if u.TrustScore <= before.TrustScore {
		t.Fatalf("trust must grow with profile completeness: %d -> %d", before.TrustScore, u.TrustScore)
	}

	bad := "x"
	if _, err := e.st.UpdateProfile(context.Background(), models.ProfileUpdate{Username: &bad}); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDeactivateAccountLogsOut(t *testing.T) {
	e := newEnv(t, Config{})
	e.loginAs(t, newUser("alice", models.RoleUser))
	if err := e.st.DeactivateAccount(context.Background()); err != nil {
		t.Fatal(err)
	}
	if e.st.IsAuthenticated() {
		t.Fatal("deactivated account must be logged out")
	}
}

func TestSetRoleRequiresAdmin(t *testing.T) {
	e := newEnv(t, Config{})
	alice := newUser("alice", models.RoleUser)
	admin := newUser("admin", models.RoleAdmin)
	e.seed([]models.User{alice, admin})

	e.switchUser(alice)
	if _, err := e.st.SetRole(context.Background(), alice.ID, models.RoleAdmin); apperr.KindOf(err) != apperr.KindAuthorization {
		t.Fatalf("expected authorization error, got %v", err)
	}

	e.switchUser(admin)
	u, err := e.st.SetRole(context.Background(), alice.ID, models.RoleModerator)
	if err != nil || u.Role != models.RoleModerator {
		t.Fatalf("SetRole = %+v, %v", u, err)
	}
	if _, err := e.st.SetRole(context.Background(), alice.ID, "root"); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("unknown role must be rejected, got %v", err)
	}
}
