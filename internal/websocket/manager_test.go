package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rajivgeraev/flippy-core/internal/models"
)

type tokens map[string]uuid.UUID

func (t tokens) ExtractUserID(token string) (uuid.UUID, error) {
	id, ok := t[token]
	if !ok {
		return uuid.Nil, errors.New("bad token")
	}
	return id, nil
}

type fakeConversations struct {
	mu        sync.Mutex
	pairs     map[uuid.UUID][2]uuid.UUID
	readCalls int
}

func (f *fakeConversations) Counterpart(userID, requestID uuid.UUID) (uuid.UUID, bool) {
	p, ok := f.pairs[requestID]
	switch {
	case !ok:
		return uuid.Nil, false
	case p[0] == userID:
		return p[1], true
	case p[1] == userID:
		return p[0], true
	}
	return uuid.Nil, false
}

func (f *fakeConversations) MarkRead(context.Context, uuid.UUID, uuid.UUID) error {
	f.mu.Lock()
	f.readCalls++
	f.mu.Unlock()
	return nil
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if ev := readEvent(t, conn); ev.Type != EventConnected {
		t.Fatalf("first event = %s, want connected", ev.Type)
	}
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return ev
}

func TestNotifyReachesConnectedUser(t *testing.T) {
	alice := uuid.New()
	m := NewManager(tokens{"a": alice}, nil)
	srv := httptest.NewServer(m)
	defer srv.Close()
	defer m.Shutdown()

	conn := dial(t, srv, "a")
	if !m.Online(alice) {
		t.Fatal("alice must be online")
	}

	requestID := uuid.New()
	n := models.Notification{ID: uuid.New(), UserID: alice, Kind: models.NotifyNewMessage, Title: "Новое сообщение", EntityID: requestID}
	if err := m.Notify(context.Background(), n); err != nil {
		t.Fatal(err)
	}
	ev := readEvent(t, conn)
	if ev.Type != EventNotification || ev.RequestID != requestID.String() {
		t.Fatalf("event = %+v", ev)
	}
	var got models.Notification
	if err := json.Unmarshal(ev.Payload, &got); err != nil || got.ID != n.ID {
		t.Fatalf("payload = %s, %v", ev.Payload, err)
	}
}

func TestRejectsInvalidToken(t *testing.T) {
	m := NewManager(tokens{}, nil)
	srv := httptest.NewServer(m)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?token=nope"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("dial with a bad token must fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("response = %+v", resp)
	}
}

func TestTypingAndReadAreRelayedToCounterpart(t *testing.T) {
	alice, bob := uuid.New(), uuid.New()
	requestID := uuid.New()
	conv := &fakeConversations{pairs: map[uuid.UUID][2]uuid.UUID{requestID: {alice, bob}}}
	m := NewManager(tokens{"a": alice, "b": bob}, conv)
	srv := httptest.NewServer(m)
	defer srv.Close()
	defer m.Shutdown()

	aliceConn := dial(t, srv, "a")
	bobConn := dial(t, srv, "b")

	if err := aliceConn.WriteJSON(Event{Type: EventTyping, RequestID: requestID.String()}); err != nil {
		t.Fatal(err)
	}
	ev := readEvent(t, bobConn)
	if ev.Type != EventTyping || ev.UserID != alice.String() {
		t.Fatalf("bob got %+v", ev)
	}

	if err := bobConn.WriteJSON(Event{Type: EventMessageRead, RequestID: requestID.String()}); err != nil {
		t.Fatal(err)
	}
	ev = readEvent(t, aliceConn)
	if ev.Type != EventMessageRead || ev.UserID != bob.String() {
		t.Fatalf("alice got %+v", ev)
	}
	conv.mu.Lock()
	defer conv.mu.Unlock()
	if conv.readCalls != 1 {
		t.Fatalf("MarkRead calls = %d", conv.readCalls)
	}
}

func TestSpoofedSenderIsDropped(t *testing.T) {
	alice, bob := uuid.New(), uuid.New()
	requestID := uuid.New()
	conv := &fakeConversations{pairs: map[uuid.UUID][2]uuid.UUID{requestID: {alice, bob}}}
	m := NewManager(tokens{"a": alice, "b": bob}, conv)
	srv := httptest.NewServer(m)
	defer srv.Close()
	defer m.Shutdown()

	aliceConn := dial(t, srv, "a")
	bobConn := dial(t, srv, "b")

	spoofed := Event{Type: EventTyping, RequestID: requestID.String(), UserID: bob.String()}
	if err := aliceConn.WriteJSON(spoofed); err != nil {
		t.Fatal(err)
	}
	if err := aliceConn.WriteJSON(Event{Type: EventStopTyping, RequestID: requestID.String()}); err != nil {
		t.Fatal(err)
	}
	if ev := readEvent(t, bobConn); ev.Type != EventStopTyping {
		t.Fatalf("spoofed event must be dropped, bob got %+v", ev)
	}
}
