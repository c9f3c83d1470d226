package store

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/flippy-core/internal/apperr"
	"github.com/rajivgeraev/flippy-core/internal/lifecycle"
	"github.com/rajivgeraev/flippy-core/internal/models"
)

// market три пользователя: bob владеет велосипедом, alice предлагает книгу,
// carol предлагает лампу
type market struct {
	*env
	alice, bob, carol models.User
	bike, book, lamp  models.Item
}

func newMarket(t *testing.T, cfg Config) *market {
	t.Helper()
	m := &market{env: newEnv(t, cfg)}
	m.alice = newUser("alice", models.RoleUser)
	m.bob = newUser("bob", models.RoleUser)
	m.carol = newUser("carol", models.RoleUser)
	m.bike = seedItem(m.bob.ID, "Велосипед", models.CategorySports, models.ConditionGood)
	m.book = seedItem(m.alice.ID, "Книга", models.CategoryBooks, models.ConditionGood)
	m.lamp = seedItem(m.carol.ID, "Лампа", models.CategoryHome, models.ConditionFair)
	m.seed([]models.User{m.alice, m.bob, m.carol}, m.bike, m.book, m.lamp)
	return m
}

func (m *market) request(t *testing.T, from models.User, offered models.Item) models.SwapRequest {
	t.Helper()
	m.switchUser(from)
	id := offered.ID
	req, err := m.st.CreateSwapRequest(context.Background(), models.SwapProposal{
		TargetItemID:  m.bike.ID,
		OfferedItemID: &id,
		Message:       "Давайте меняться",
	})
	if err != nil {
		t.Fatalf("CreateSwapRequest from %s: %v", from.Username, err)
	}
	return req
}

func (m *market) status(id uuid.UUID) models.ItemStatus {
	item, _ := m.st.GetItem(id)
	return item.Status
}

func (m *market) user(id uuid.UUID) models.User {
	u, _ := m.st.GetUser(id)
	return u
}

func TestCreateSwapRequestMarksItems(t *testing.T) {
	m := newMarket(t, Config{})
	req := m.request(t, m.alice, m.book)

	if req.Status != models.SwapPending || req.RecipientID != m.bob.ID {
		t.Fatalf("unexpected request %+v", req)
	}
	if m.status(m.bike.ID) != models.ItemRequested || m.status(m.book.ID) != models.ItemRequested {
		t.Fatal("both items must become requested")
	}
	bike, _ := m.st.GetItem(m.bike.ID)
	if bike.Requests != 1 {
		t.Fatalf("request counter = %d", bike.Requests)
	}
	if kinds := m.notifier.kinds(m.bob.ID); !slices.Contains(kinds, models.NotifySwapRequested) {
		t.Fatalf("recipient must be notified, got %v", kinds)
	}

	id := m.book.ID
	_, err := m.st.CreateSwapRequest(context.Background(), models.SwapProposal{TargetItemID: m.bike.ID, OfferedItemID: &id})
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("duplicate request must conflict, got %v", err)
	}
}

func TestCreateSwapRequestValidation(t *testing.T) {
	m := newMarket(t, Config{})
	m.switchUser(m.bob)
	if _, err := m.st.CreateSwapRequest(context.Background(), models.SwapProposal{TargetItemID: m.bike.ID}); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("own item must be rejected, got %v", err)
	}

	m.switchUser(m.alice)
	lamp := m.lamp.ID
	if _, err := m.st.CreateSwapRequest(context.Background(), models.SwapProposal{TargetItemID: m.bike.ID, OfferedItemID: &lamp}); apperr.KindOf(err) != apperr.KindAuthorization {
		t.Fatalf("foreign offered item must be rejected, got %v", err)
	}
	book := m.book.ID
	d := draft("Ещё книга")
	if _, err := m.st.CreateSwapRequest(context.Background(), models.SwapProposal{TargetItemID: m.bike.ID, OfferedItemID: &book, NewOfferedItem: &d}); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("both offered forms must be rejected, got %v", err)
	}
	if len(m.st.GetSwapRequests().Outgoing) != 0 {
		t.Fatal("rejected proposals must not create requests")
	}
}

func TestOfferedItemFailureCreatesNoRequest(t *testing.T) {
	m := newMarket(t, Config{})
	m.switchUser(m.alice)
	m.items.createErr = errBoom

	d := draft("Новая книга")
	_, err := m.st.CreateSwapRequest(context.Background(), models.SwapProposal{TargetItemID: m.bike.ID, NewOfferedItem: &d})
	if apperr.KindOf(err) != apperr.KindTransport {
		t.Fatalf("expected transport error, got %v", err)
	}
	if n := len(m.st.GetSwapRequests().Outgoing); n != 0 || m.swaps.created != 0 {
		t.Fatalf("no request may exist after offered item failure, found %d", n)
	}
	if n := len(m.st.GetUserItems(m.alice.ID)); n != 1 {
		t.Fatalf("offered item must be rolled back, alice has %d items", n)
	}
	if m.status(m.bike.ID) != models.ItemAvailable {
		t.Fatal("target must stay available")
	}
}

func TestRequestFailureWithdrawsOfferedItem(t *testing.T) {
	m := newMarket(t, Config{})
	m.switchUser(m.alice)
	m.swaps.createErr = errBoom

	d := draft("Новая книга")
	_, err := m.st.CreateSwapRequest(context.Background(), models.SwapProposal{TargetItemID: m.bike.ID, NewOfferedItem: &d})
	if apperr.KindOf(err) != apperr.KindTransport {
		t.Fatalf("expected transport error, got %v", err)
	}
	if len(m.st.GetSwapRequests().Outgoing) != 0 {
		t.Fatal("failed request must not remain")
	}
	for _, item := range m.st.GetUserItems(m.alice.ID) {
		if item.Title == "Новая книга" && item.Status != models.ItemRemoved {
			t.Fatalf("orphan offered item must be removed, got %s", item.Status)
		}
	}
	if m.status(m.bike.ID) != models.ItemAvailable {
		t.Fatal("target must be restored")
	}
	if got := m.st.LastError(); got != "Не удалось отправить заявку на обмен" {
		t.Fatalf("LastError = %q", got)
	}
}

func TestCreateSwapRequestWithNewOfferedItem(t *testing.T) {
	m := newMarket(t, Config{RequireModeration: true})
	m.switchUser(m.alice)

	d := draft("Новая книга")
	req, err := m.st.CreateSwapRequest(context.Background(), models.SwapProposal{TargetItemID: m.bike.ID, NewOfferedItem: &d})
	if err != nil {
		t.Fatal(err)
	}
	if req.OfferedItemID == nil {
		t.Fatal("request must reference the new item")
	}
	if m.status(*req.OfferedItemID) != models.ItemRequested {
		t.Fatal("new offered item skips moderation and is attached to the request")
	}
}

func TestAcceptSwap(t *testing.T) {
	m := newMarket(t, Config{})
	first := m.request(t, m.alice, m.book)
	second := m.request(t, m.carol, m.lamp)

	m.switchUser(m.bob)
	accepted, err := m.st.RespondToSwapRequest(context.Background(), first.ID, models.SwapAccepted)
	if err != nil || accepted.Status != models.SwapAccepted {
		t.Fatalf("accept = %+v, %v", accepted, err)
	}

	if m.status(m.bike.ID) != models.ItemSwapped || m.status(m.book.ID) != models.ItemSwapped {
		t.Fatal("both items must be swapped")
	}
	if m.status(m.lamp.ID) != models.ItemAvailable {
		t.Fatal("competing offered item must be released")
	}
	competing, _ := m.st.GetSwapRequest(second.ID)
	if competing.Status != models.SwapRejected {
		t.Fatalf("competing request = %s, want rejected", competing.Status)
	}

	if m.user(m.alice.ID).Stats.SuccessfulSwaps != 1 || m.user(m.bob.ID).Stats.SuccessfulSwaps != 1 {
		t.Fatal("both participants must count the swap")
	}
	if m.user(m.carol.ID).Stats.SuccessfulSwaps != 0 {
		t.Fatal("rejected requester must not count a swap")
	}
	if !m.user(m.bob.ID).HasBadge(models.BadgeSeedling) {
		t.Fatal("bob saved 20 kg and must earn the first badge")
	}

	conv, ok := m.st.GetConversation(first.ID)
	if !ok || len(conv.Messages) != 1 || !conv.Messages[0].System || conv.Messages[0].Text != lifecycle.SwapSystemMessage {
		t.Fatalf("accept must post a system message, got %+v", conv.Messages)
	}
	bike, _ := m.st.GetItem(m.bike.ID)
	if bike.Impact == nil || bike.Impact.CarbonSavedKg != 20 {
		t.Fatalf("swapped item must cache its impact, got %+v", bike.Impact)
	}
	if m.analytics.invalidations != 1 {
		t.Fatalf("analytics cache invalidations = %d", m.analytics.invalidations)
	}
	if !slices.Contains(m.notifier.kinds(m.alice.ID), models.NotifySwapAccepted) {
		t.Fatal("requester must be notified about acceptance")
	}
	if !slices.Contains(m.notifier.kinds(m.carol.ID), models.NotifySwapRejected) {
		t.Fatal("competing requester must be notified about rejection")
	}
	if m.st.UnreadNotificationCount() == 0 {
		t.Fatal("badge notification must reach the current user")
	}
}

func TestRespondTwiceConflicts(t *testing.T) {
	m := newMarket(t, Config{})
	req := m.request(t, m.alice, m.book)
	m.switchUser(m.bob)
	if _, err := m.st.RespondToSwapRequest(context.Background(), req.ID, models.SwapAccepted); err != nil {
		t.Fatal(err)
	}

	_, err := m.st.RespondToSwapRequest(context.Background(), req.ID, models.SwapRejected)
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	got, _ := m.st.GetSwapRequest(req.ID)
	if got.Status != models.SwapAccepted {
		t.Fatalf("status = %s, must stay accepted", got.Status)
	}
	if got := m.st.LastError(); got != lifecycle.MsgRequestResolved {
		t.Fatalf("LastError = %q", got)
	}
}

func TestOnlyRecipientResponds(t *testing.T) {
	m := newMarket(t, Config{})
	req := m.request(t, m.alice, m.book)

	if _, err := m.st.RespondToSwapRequest(context.Background(), req.ID, models.SwapAccepted); apperr.KindOf(err) != apperr.KindAuthorization {
		t.Fatalf("requester must not respond, got %v", err)
	}
	m.switchUser(m.bob)
	if _, err := m.st.CancelSwapRequest(context.Background(), req.ID); apperr.KindOf(err) != apperr.KindAuthorization {
		t.Fatalf("recipient must not cancel, got %v", err)
	}
}

func TestAcceptRollbackOnTransportFailure(t *testing.T) {
	m := newMarket(t, Config{})
	req := m.request(t, m.alice, m.book)
	m.switchUser(m.bob)
	m.swaps.updateErr = errBoom

	if _, err := m.st.RespondToSwapRequest(context.Background(), req.ID, models.SwapAccepted); apperr.KindOf(err) != apperr.KindTransport {
		t.Fatalf("expected transport error, got %v", err)
	}
	got, _ := m.st.GetSwapRequest(req.ID)
	if got.Status != models.SwapPending {
		t.Fatalf("request must be pending again, got %s", got.Status)
	}
	if m.status(m.bike.ID) != models.ItemRequested || m.status(m.book.ID) != models.ItemRequested {
		t.Fatal("items must return to requested")
	}
	if m.user(m.bob.ID).Stats.SuccessfulSwaps != 0 || len(m.user(m.bob.ID).Badges) != 0 {
		t.Fatal("stats and badges must be rolled back")
	}
	if conv, _ := m.st.GetConversation(req.ID); len(conv.Messages) != 0 {
		t.Fatal("system message must be removed")
	}
	if m.analytics.invalidations != 0 || m.st.UnreadNotificationCount() != 0 {
		t.Fatal("effects of a failed action must not run")
	}
	if slices.Contains(m.notifier.kinds(m.alice.ID), models.NotifySwapAccepted) {
		t.Fatal("acceptance must not be announced")
	}
}

func TestAcceptPartialWriteRestoresServer(t *testing.T) {
	m := newMarket(t, Config{})
	req := m.request(t, m.alice, m.book)
	m.switchUser(m.bob)
	m.items.updateErr = errBoom

	if _, err := m.st.RespondToSwapRequest(context.Background(), req.ID, models.SwapAccepted); apperr.KindOf(err) != apperr.KindTransport {
		t.Fatalf("expected transport error, got %v", err)
	}
	if n := len(m.swaps.updates); n != 2 {
		t.Fatalf("expected accepted write and its reversal, got %d writes", n)
	}
	if first := m.swaps.updates[0]; first.ID != req.ID || first.Status != models.SwapAccepted {
		t.Fatalf("first write = %s %s", first.ID, first.Status)
	}
	if last := m.swaps.updates[1]; last.ID != req.ID || last.Status != models.SwapPending {
		t.Fatalf("server must end with a pending request, got %s", last.Status)
	}
	got, _ := m.st.GetSwapRequest(req.ID)
	if got.Status != models.SwapPending {
		t.Fatalf("local request must be pending, got %s", got.Status)
	}
	if m.status(m.bike.ID) != models.ItemRequested || m.status(m.book.ID) != models.ItemRequested {
		t.Fatal("items must stay requested")
	}
}

func TestAcceptCommitsOneChangeSet(t *testing.T) {
	m := newMarket(t, Config{})
	commit := &fakeCommit{}
	m.st.api.Commit = commit

	req := m.request(t, m.alice, m.book)
	if m.swaps.created != 0 || len(commit.batches) != 1 {
		t.Fatalf("request must be created inside the batch, created=%d batches=%d", m.swaps.created, len(commit.batches))
	}
	if b := commit.batches[0]; len(b.NewRequests) != 1 || len(b.Items) != 2 || len(b.Requests) != 0 {
		t.Fatalf("unexpected creation batch %+v", b)
	}
	second := m.request(t, m.carol, m.lamp)

	m.switchUser(m.bob)
	commit.err = errBoom
	if _, err := m.st.RespondToSwapRequest(context.Background(), second.ID, models.SwapRejected); apperr.KindOf(err) != apperr.KindTransport {
		t.Fatalf("expected transport error, got %v", err)
	}
	if got, _ := m.st.GetSwapRequest(second.ID); got.Status != models.SwapPending {
		t.Fatalf("failed batch must leave the request pending, got %s", got.Status)
	}
	if m.status(m.lamp.ID) != models.ItemRequested {
		t.Fatal("lamp must stay requested")
	}

	commit.err = nil
	if _, err := m.st.RespondToSwapRequest(context.Background(), req.ID, models.SwapAccepted); err != nil {
		t.Fatal(err)
	}
	if len(commit.batches) != 3 || len(m.swaps.updates) != 0 || m.items.updates != 0 {
		t.Fatal("acceptance must go out as a single batch")
	}
	b := commit.batches[2]
	statuses := map[uuid.UUID]models.SwapStatus{}
	for _, r := range b.Requests {
		statuses[r.ID] = r.Status
	}
	if statuses[req.ID] != models.SwapAccepted || statuses[second.ID] != models.SwapRejected {
		t.Fatalf("batch requests = %v", statuses)
	}
	if len(b.Items) != 3 || len(b.Users) == 0 {
		t.Fatalf("batch must carry all three items and the stats, got %d items %d users", len(b.Items), len(b.Users))
	}
}

func TestRejectAndCancelReleaseItems(t *testing.T) {
	m := newMarket(t, Config{})
	first := m.request(t, m.alice, m.book)
	second := m.request(t, m.carol, m.lamp)

	m.switchUser(m.bob)
	if _, err := m.st.RespondToSwapRequest(context.Background(), first.ID, models.SwapRejected); err != nil {
		t.Fatal(err)
	}
	if m.status(m.book.ID) != models.ItemAvailable {
		t.Fatal("rejected offered item must be released")
	}
	if m.status(m.bike.ID) != models.ItemRequested {
		t.Fatal("target stays requested while another request is pending")
	}

	m.switchUser(m.carol)
	if _, err := m.st.CancelSwapRequest(context.Background(), second.ID); err != nil {
		t.Fatal(err)
	}
	if m.status(m.bike.ID) != models.ItemAvailable || m.status(m.lamp.ID) != models.ItemAvailable {
		t.Fatal("cancel must release both items")
	}
	if !slices.Contains(m.notifier.kinds(m.bob.ID), models.NotifySwapCancelled) {
		t.Fatal("recipient must be notified about cancellation")
	}
	if _, err := m.st.CancelSwapRequest(context.Background(), second.ID); apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("second cancel must conflict, got %v", err)
	}
}

func TestRemoveItemRejectsPendingRequests(t *testing.T) {
	m := newMarket(t, Config{})
	req := m.request(t, m.alice, m.book)

	m.switchUser(m.bob)
	if _, err := m.st.RemoveItem(context.Background(), m.bike.ID); err != nil {
		t.Fatal(err)
	}
	got, _ := m.st.GetSwapRequest(req.ID)
	if got.Status != models.SwapRejected {
		t.Fatalf("request = %s, want rejected", got.Status)
	}
	if m.status(m.book.ID) != models.ItemAvailable || m.status(m.bike.ID) != models.ItemRemoved {
		t.Fatal("offered item must be released and target removed")
	}
}

func TestRenewRequestedItemRejectsOpenRequests(t *testing.T) {
	m := newMarket(t, Config{})
	first := m.request(t, m.alice, m.book)
	second := m.request(t, m.carol, m.lamp)
	m.clock.Advance(20 * 24 * time.Hour)

	m.switchUser(m.bob)
	item, err := m.st.RenewItem(context.Background(), m.bike.ID)
	if err != nil {
		t.Fatal(err)
	}
	if item.Status != models.ItemAvailable || m.status(m.bike.ID) != models.ItemAvailable {
		t.Fatalf("renewed item must be available, got %s", item.Status)
	}
	if want := m.clock.Now().Add(lifecycle.ListingDuration); !item.ExpiresAt.Equal(want) {
		t.Fatalf("ExpiresAt = %v, want %v", item.ExpiresAt, want)
	}
	for _, id := range []uuid.UUID{first.ID, second.ID} {
		if got, _ := m.st.GetSwapRequest(id); got.Status != models.SwapRejected {
			t.Fatalf("request %s = %s, want rejected", id, got.Status)
		}
	}
	if m.status(m.book.ID) != models.ItemAvailable || m.status(m.lamp.ID) != models.ItemAvailable {
		t.Fatal("offered items must be released")
	}
	if !slices.Contains(m.notifier.kinds(m.alice.ID), models.NotifySwapRejected) {
		t.Fatal("requesters must be told about the rejection")
	}
}
