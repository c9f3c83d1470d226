package sessions

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/flippy-core/internal/apperr"
	"github.com/rajivgeraev/flippy-core/internal/auth"
	"github.com/rajivgeraev/flippy-core/internal/models"
	"github.com/rajivgeraev/flippy-core/internal/sessionstore"
	"github.com/rajivgeraev/flippy-core/internal/simnet"
	"github.com/rajivgeraev/flippy-core/internal/store"
	"github.com/rajivgeraev/flippy-core/internal/utils"
)

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	sessionsDB, err := sessionstore.Open(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = sessionsDB.Close() })

	backend := simnet.NewBackend()
	authSvc := auth.NewService(backend, utils.NewJWTService("secret", time.Hour), "123:abc")

	var reg *Registry
	reg = New(func(userID uuid.UUID) *store.Store {
		return store.New(store.Options{Collaborators: store.Collaborators{
			Auth:      authSvc,
			Session:   sessionsDB.For(userID),
			Items:     backend,
			Swaps:     backend,
			Messages:  backend,
			Reviews:   backend,
			Community: backend,
			Notifier:  reg,
		}})
	})
	return reg
}

func register(t *testing.T, reg *Registry, name string) (*store.Store, models.User) {
	t.Helper()
	ctx := context.Background()
	st := reg.Anonymous()
	user, err := st.Register(ctx, models.Registration{Email: name + "@example.com", Password: "password1", Username: name})
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	if _, err := reg.Adopt(ctx, st); err != nil {
		t.Fatal(err)
	}
	return st, user
}

func TestSwapRequestReachesRecipientSession(t *testing.T) {
	reg := newRegistry(t)
	ctx := context.Background()
	aliceStore, alice := register(t, reg, "alice")
	bobStore, bob := register(t, reg, "bob")

	bike, err := bobStore.CreateItem(ctx, models.ItemDraft{Title: "Велосипед", Category: models.CategorySports, Condition: models.ConditionGood})
	if err != nil {
		t.Fatal(err)
	}
	if err := aliceStore.Sync(ctx); err != nil {
		t.Fatal(err)
	}
	req, err := aliceStore.CreateSwapRequest(ctx, models.SwapProposal{TargetItemID: bike.ID, Message: "Меняю на книгу"})
	if err != nil {
		t.Fatal(err)
	}
	reg.Wait()

	incoming := bobStore.GetSwapRequests().Incoming
	if len(incoming) != 1 || incoming[0].ID != req.ID {
		t.Fatalf("bob incoming = %+v", incoming)
	}
	if bobStore.UnreadNotificationCount() != 1 {
		t.Fatalf("bob must get the request notification, unread = %d", bobStore.UnreadNotificationCount())
	}
	if to, ok := reg.Counterpart(bob.ID, req.ID); !ok || to != alice.ID {
		t.Fatalf("Counterpart = %s, %v", to, ok)
	}
	if _, ok := reg.Counterpart(uuid.New(), req.ID); ok {
		t.Fatal("unknown user has no counterpart")
	}
}

func TestGetRestoresDroppedSession(t *testing.T) {
	reg := newRegistry(t)
	ctx := context.Background()
	_, alice := register(t, reg, "alice")

	reg.Drop(alice.ID)
	if reg.Len() != 0 {
		t.Fatalf("Len = %d after drop", reg.Len())
	}
	st, err := reg.Get(ctx, alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	if u, ok := st.CurrentUser(); !ok || u.ID != alice.ID {
		t.Fatalf("restored user = %+v, %v", u, ok)
	}
	again, err := reg.Get(ctx, alice.ID)
	if err != nil || again != st {
		t.Fatal("second Get must return the live store")
	}

	if _, err := reg.Get(ctx, uuid.New()); apperr.KindOf(err) != apperr.KindAuthorization {
		t.Fatalf("unknown session must be unauthorized, got %v", err)
	}
}

func TestAdoptRequiresLogin(t *testing.T) {
	reg := newRegistry(t)
	if _, err := reg.Adopt(context.Background(), reg.Anonymous()); apperr.KindOf(err) != apperr.KindAuthorization {
		t.Fatalf("anonymous store must not be adopted, got %v", err)
	}
}
