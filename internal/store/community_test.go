package store

import (
	"context"
	"testing"
	"time"

	"github.com/rajivgeraev/flippy-core/internal/apperr"
	"github.com/rajivgeraev/flippy-core/internal/models"
)

func TestVotePostToggles(t *testing.T) {
	e := newEnv(t, Config{})
	alice := newUser("alice", models.RoleUser)
	bob := newUser("bob", models.RoleUser)
	e.seed([]models.User{alice, bob})
	e.switchUser(alice)

	if _, err := e.st.CreatePost(context.Background(), models.PostDraft{Title: "ab", Body: "x"}); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("short title must be rejected, got %v", err)
	}
	post, err := e.st.CreatePost(context.Background(), models.PostDraft{Title: "Своп-вечеринка", Body: "Кто придёт в субботу?"})
	if err != nil {
		t.Fatal(err)
	}

	e.switchUser(bob)
	steps := []struct {
		vote     models.Vote
		up, down int
	}{
		{models.VoteUp, 1, 0},
		{models.VoteUp, 0, 0},
		{models.VoteDown, 0, 1},
		{models.VoteUp, 1, 0},
	}
	for i, step := range steps {
		got, err := e.st.VotePost(context.Background(), post.ID, step.vote)
		if err != nil {
			t.Fatal(err)
		}
		if got.Upvotes != step.up || got.Downvotes != step.down {
			t.Fatalf("step %d: votes = +%d/-%d, want +%d/-%d", i, got.Upvotes, got.Downvotes, step.up, step.down)
		}
	}
	if _, err := e.st.VotePost(context.Background(), post.ID, 5); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("unknown vote must be rejected, got %v", err)
	}
}

func TestEventAttendance(t *testing.T) {
	e := newEnv(t, Config{})
	alice := newUser("alice", models.RoleUser)
	bob := newUser("bob", models.RoleUser)
	mod := newUser("mod", models.RoleModerator)
	e.seed([]models.User{alice, bob, mod})

	draft := models.EventDraft{Title: "Субботник", StartsAt: t0.Add(48 * time.Hour), Capacity: 1}
	e.switchUser(alice)
	if _, err := e.st.CreateEvent(context.Background(), draft); apperr.KindOf(err) != apperr.KindAuthorization {
		t.Fatalf("regular user must not create events, got %v", err)
	}

	e.switchUser(mod)
	past := draft
	past.StartsAt = t0.Add(-time.Hour)
	if _, err := e.st.CreateEvent(context.Background(), past); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("past event must be rejected, got %v", err)
	}
	event, err := e.st.CreateEvent(context.Background(), draft)
	if err != nil {
		t.Fatal(err)
	}

	e.switchUser(alice)
	if _, err := e.st.JoinEvent(context.Background(), event.ID); err != nil {
		t.Fatal(err)
	}
	if u, _ := e.st.GetUser(alice.ID); u.Stats.EventsAttended != 1 {
		t.Fatalf("EventsAttended = %d", u.Stats.EventsAttended)
	}
	if _, err := e.st.JoinEvent(context.Background(), event.ID); apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("second join must conflict, got %v", err)
	}

	e.switchUser(bob)
	if _, err := e.st.JoinEvent(context.Background(), event.ID); apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("full event must reject, got %v", err)
	}
	if u, _ := e.st.GetUser(bob.ID); u.Stats.EventsAttended != 0 {
		t.Fatal("rejected join must not count")
	}

	e.switchUser(alice)
	left, err := e.st.LeaveEvent(context.Background(), event.ID)
	if err != nil || len(left.Participants) != 0 {
		t.Fatalf("LeaveEvent = %+v, %v", left, err)
	}
	if u, _ := e.st.GetUser(alice.ID); u.Stats.EventsAttended != 0 {
		t.Fatalf("EventsAttended after leave = %d", u.Stats.EventsAttended)
	}

	e.clock.Advance(72 * time.Hour)
	if _, err := e.st.JoinEvent(context.Background(), event.ID); apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("started event must reject, got %v", err)
	}
}

func TestJoinEventCommitsEventAndStatsTogether(t *testing.T) {
	e := newEnv(t, Config{})
	alice := newUser("alice", models.RoleUser)
	mod := newUser("mod", models.RoleModerator)
	e.seed([]models.User{alice, mod})

	e.switchUser(mod)
	event, err := e.st.CreateEvent(context.Background(), models.EventDraft{Title: "Обмен книгами", StartsAt: t0.Add(24 * time.Hour), Capacity: 5})
	if err != nil {
		t.Fatal(err)
	}

	commit := &fakeCommit{err: errBoom}
	e.st.api.Commit = commit
	e.switchUser(alice)
	if _, err := e.st.JoinEvent(context.Background(), event.ID); apperr.KindOf(err) != apperr.KindTransport {
		t.Fatalf("expected transport error, got %v", err)
	}
	if u, _ := e.st.GetUser(alice.ID); u.Stats.EventsAttended != 0 {
		t.Fatal("failed join must not count")
	}

	commit.err = nil
	if _, err := e.st.JoinEvent(context.Background(), event.ID); err != nil {
		t.Fatal(err)
	}
	if len(commit.batches) != 1 {
		t.Fatalf("batches = %d", len(commit.batches))
	}
	b := commit.batches[0]
	if len(b.Events) != 1 || len(b.Events[0].Participants) != 1 || len(b.Users) == 0 || b.Users[0].ID != alice.ID || b.Users[0].Stats.EventsAttended != 1 {
		t.Fatalf("join must carry the event and the stats, got %+v", b)
	}
}
