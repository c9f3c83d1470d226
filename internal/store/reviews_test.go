package store

import (
	"context"
	"slices"
	"testing"

	"github.com/rajivgeraev/flippy-core/internal/apperr"
	"github.com/rajivgeraev/flippy-core/internal/models"
)

// swapped рынок с принятым обменом велосипеда на книгу, текущий пользователь bob
func swapped(t *testing.T, cfg Config) (*market, models.SwapRequest) {
	t.Helper()
	m := newMarket(t, cfg)
	req := m.request(t, m.alice, m.book)
	m.switchUser(m.bob)
	req, err := m.st.RespondToSwapRequest(context.Background(), req.ID, models.SwapAccepted)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	return m, req
}

func TestCreateReviewUpdatesRating(t *testing.T) {
	m, req := swapped(t, Config{})

	review, err := m.st.CreateReview(context.Background(), models.ReviewDraft{RequestID: req.ID, Rating: 4, Comment: "Всё отлично"})
	if err != nil {
		t.Fatal(err)
	}
	if review.RevieweeID != m.alice.ID || review.Status != models.ReviewApproved {
		t.Fatalf("unexpected review %+v", review)
	}
	alice := m.user(m.alice.ID)
	if alice.Stats.Rating != 4 || alice.Stats.ReviewCount != 1 {
		t.Fatalf("rating = %v/%d", alice.Stats.Rating, alice.Stats.ReviewCount)
	}
	if !slices.Contains(m.notifier.kinds(m.alice.ID), models.NotifyNewReview) {
		t.Fatal("reviewee must be notified")
	}
	if got := m.st.GetReviews(m.alice.ID); len(got) != 1 {
		t.Fatalf("GetReviews = %d", len(got))
	}

	if _, err := m.st.CreateReview(context.Background(), models.ReviewDraft{RequestID: req.ID, Rating: 5}); apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("second review must conflict, got %v", err)
	}
}

func TestCreateReviewRules(t *testing.T) {
	m, req := swapped(t, Config{})

	if _, err := m.st.CreateReview(context.Background(), models.ReviewDraft{RequestID: req.ID, Rating: 6}); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("rating out of range must be rejected, got %v", err)
	}
	m.switchUser(m.carol)
	if _, err := m.st.CreateReview(context.Background(), models.ReviewDraft{RequestID: req.ID, Rating: 5}); apperr.KindOf(err) != apperr.KindAuthorization {
		t.Fatalf("outsider must not review, got %v", err)
	}

	other := newMarket(t, Config{})
	open := other.request(t, other.alice, other.book)
	if _, err := other.st.CreateReview(context.Background(), models.ReviewDraft{RequestID: open.ID, Rating: 5}); apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("review of a pending swap must conflict, got %v", err)
	}
}

func TestRespondToReview(t *testing.T) {
	m, req := swapped(t, Config{})
	review, _ := m.st.CreateReview(context.Background(), models.ReviewDraft{RequestID: req.ID, Rating: 5})

	if _, err := m.st.RespondToReview(context.Background(), review.ID, "Спасибо!"); apperr.KindOf(err) != apperr.KindAuthorization {
		t.Fatalf("reviewer must not answer own review, got %v", err)
	}
	m.switchUser(m.alice)
	if _, err := m.st.RespondToReview(context.Background(), review.ID, "  "); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("empty response must be rejected, got %v", err)
	}
	got, err := m.st.RespondToReview(context.Background(), review.ID, "Спасибо!")
	if err != nil || got.Response != "Спасибо!" {
		t.Fatalf("RespondToReview = %+v, %v", got, err)
	}
	if _, err := m.st.RespondToReview(context.Background(), review.ID, "Ещё раз"); apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("second response must conflict, got %v", err)
	}
}

func TestFlagReviewHidesAtLimit(t *testing.T) {
	m, req := swapped(t, Config{ReviewFlagLimit: 2})
	review, _ := m.st.CreateReview(context.Background(), models.ReviewDraft{RequestID: req.ID, Rating: 2})

	if _, err := m.st.FlagReview(context.Background(), review.ID, "спам"); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("author must not flag own review, got %v", err)
	}

	m.switchUser(m.carol)
	if _, err := m.st.FlagReview(context.Background(), review.ID, "спам"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.st.FlagReview(context.Background(), review.ID, "спам"); apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("duplicate flag must conflict, got %v", err)
	}

	m.switchUser(m.alice)
	got, err := m.st.FlagReview(context.Background(), review.ID, "неправда")
	if err != nil || got.Status != models.ReviewHidden {
		t.Fatalf("review must be hidden at the limit, got %+v, %v", got, err)
	}
	if alice := m.user(m.alice.ID); alice.Stats.ReviewCount != 0 || alice.Stats.Rating != 0 {
		t.Fatalf("hidden review must not count, got %v/%d", alice.Stats.Rating, alice.Stats.ReviewCount)
	}
}

func TestModerateReview(t *testing.T) {
	m, req := swapped(t, Config{RequireModeration: true})
	mod := newUser("mod", models.RoleModerator)
	m.seed([]models.User{mod})

	review, err := m.st.CreateReview(context.Background(), models.ReviewDraft{RequestID: req.ID, Rating: 5})
	if err != nil || review.Status != models.ReviewPending {
		t.Fatalf("CreateReview = %+v, %v", review, err)
	}
	if len(m.st.GetReviews(m.alice.ID)) != 0 || len(m.st.GetPendingReviews()) != 1 {
		t.Fatal("pending review must wait for moderation")
	}
	if _, err := m.st.ModerateReview(context.Background(), review.ID, true); apperr.KindOf(err) != apperr.KindAuthorization {
		t.Fatalf("regular user must not moderate, got %v", err)
	}

	m.switchUser(mod)
	if _, err := m.st.ModerateReview(context.Background(), review.ID, true); err != nil {
		t.Fatal(err)
	}
	if alice := m.user(m.alice.ID); alice.Stats.Rating != 5 || alice.Stats.ReviewCount != 1 {
		t.Fatalf("approved review must count, got %v/%d", alice.Stats.Rating, alice.Stats.ReviewCount)
	}
	if _, err := m.st.ModerateReview(context.Background(), review.ID, true); apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("approving twice must conflict, got %v", err)
	}
}
