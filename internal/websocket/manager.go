package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rajivgeraev/flippy-core/internal/models"
)

// EventType определяет тип события WebSocket
type EventType string

const (
	EventConnected    EventType = "connected"
	EventNotification EventType = "notification"
	EventMessageRead  EventType = "message_read"
	EventTyping       EventType = "typing"
	EventStopTyping   EventType = "stop_typing"
	EventUnreadCount  EventType = "unread_count"
)

// Event представляет структуру сообщения для WebSocket
type Event struct {
	Type      EventType       `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	UserID    string          `json:"user_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// TokenValidator извлекает пользователя из JWT
type TokenValidator interface {
	ExtractUserID(token string) (uuid.UUID, error)
}

// Conversations доступ к перепискам подключённых пользователей
type Conversations interface {
	// Counterpart возвращает собеседника пользователя по заявке
	Counterpart(userID, requestID uuid.UUID) (uuid.UUID, bool)
	// MarkRead отмечает переписку прочитанной от имени пользователя
	MarkRead(ctx context.Context, userID, requestID uuid.UUID) error
}

// Manager представляет центральный менеджер для всех WebSocket соединений
type Manager struct {
	clients     map[uuid.UUID]*Client
	userClients map[uuid.UUID]map[uuid.UUID]bool // userID -> map[clientID]bool
	mu          sync.RWMutex

	tokens        TokenValidator
	conversations Conversations
	upgrader      websocket.Upgrader
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewManager создает новый экземпляр Manager
func NewManager(tokens TokenValidator, conversations Conversations) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		clients:       make(map[uuid.UUID]*Client),
		userClients:   make(map[uuid.UUID]map[uuid.UUID]bool),
		tokens:        tokens,
		conversations: conversations,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Мини-приложение открывается с домена Telegram
			CheckOrigin: func(*http.Request) bool { return true },
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// SetConversations подключает доступ к перепискам после создания реестра сессий
func (m *Manager) SetConversations(c Conversations) {
	m.mu.Lock()
	m.conversations = c
	m.mu.Unlock()
}

// ServeHTTP принимает соединение. Токен передаётся параметром ?token=.
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := m.tokens.ExtractUserID(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
		return
	}

	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("❌ Ошибка установки WebSocket соединения: %v", err)
		return
	}

	client := NewClient(userID, conn, m)
	client.Start()
	m.SendToUser(userID, Event{Type: EventConnected, UserID: userID.String()})
}

// AddClient регистрирует нового клиента
func (m *Manager) AddClient(client *Client) {
	m.mu.Lock()
	m.clients[client.ID] = client
	if _, exists := m.userClients[client.UserID]; !exists {
		m.userClients[client.UserID] = make(map[uuid.UUID]bool)
	}
	m.userClients[client.UserID][client.ID] = true
	m.mu.Unlock()

	log.Printf("WebSocket клиент %s подключён для пользователя %s", client.ID, client.UserID)
}

// RemoveClient удаляет клиента
func (m *Manager) RemoveClient(clientID uuid.UUID) {
	m.mu.Lock()
	client, exists := m.clients[clientID]
	if !exists {
		m.mu.Unlock()
		return
	}
	delete(m.clients, clientID)
	if clients, ok := m.userClients[client.UserID]; ok {
		delete(clients, clientID)
		// Если это был последний клиент пользователя, удаляем запись пользователя
		if len(clients) == 0 {
			delete(m.userClients, client.UserID)
		}
	}
	m.mu.Unlock()

	log.Printf("WebSocket клиент %s отключён для пользователя %s", clientID, client.UserID)
}

// Online сообщает, подключён ли пользователь
func (m *Manager) Online(userID uuid.UUID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.userClients[userID]) > 0
}

// SendToUser отправляет событие всем соединениям конкретного пользователя
func (m *Manager) SendToUser(userID uuid.UUID, event Event) {
	if userID == uuid.Nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	eventJSON, err := json.Marshal(event)
	if err != nil {
		log.Printf("❌ Ошибка сериализации события: %v", err)
		return
	}

	m.mu.RLock()
	targets := make([]*Client, 0, len(m.userClients[userID]))
	for clientID := range m.userClients[userID] {
		if c, ok := m.clients[clientID]; ok {
			targets = append(targets, c)
		}
	}
	m.mu.RUnlock()

	for _, c := range targets {
		select {
		case c.send <- eventJSON:
		default:
			// Канал заполнен, клиент слишком медленный - закрываем соединение
			log.Printf("⚠️ Очередь клиента %s переполнена, соединение закрыто", c.ID)
			c.conn.Close()
			m.RemoveClient(c.ID)
		}
	}
}

// Notify доставляет уведомление хранилища подключённым клиентам адресата
func (m *Manager) Notify(_ context.Context, n models.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	m.SendToUser(n.UserID, Event{
		Type:      EventNotification,
		RequestID: requestOf(n),
		UserID:    n.UserID.String(),
		Timestamp: n.CreatedAt,
		Payload:   payload,
	})
	return nil
}

// BroadcastUnreadCount отправляет пользователю число непрочитанных уведомлений
func (m *Manager) BroadcastUnreadCount(userID uuid.UUID, unread int) {
	payload, _ := json.Marshal(map[string]int{"count": unread})
	m.SendToUser(userID, Event{Type: EventUnreadCount, UserID: userID.String(), Payload: payload})
}

// relay пересылает событие клиента собеседнику по заявке
func (m *Manager) relay(from uuid.UUID, event Event) {
	requestID, err := uuid.Parse(event.RequestID)
	if err != nil {
		return
	}
	m.mu.RLock()
	conv := m.conversations
	m.mu.RUnlock()
	if conv == nil {
		return
	}

	switch event.Type {
	case EventTyping, EventStopTyping:
		if to, ok := conv.Counterpart(from, requestID); ok {
			m.SendToUser(to, event)
		}
	case EventMessageRead:
		if err := conv.MarkRead(m.ctx, from, requestID); err != nil {
			log.Printf("⚠️ Не удалось отметить переписку %s прочитанной: %v", requestID, err)
			return
		}
		if to, ok := conv.Counterpart(from, requestID); ok {
			m.SendToUser(to, event)
		}
	}
}

// Shutdown корректно завершает работу менеджера WebSocket
func (m *Manager) Shutdown() {
	m.cancel()

	m.mu.Lock()
	for _, client := range m.clients {
		client.conn.Close()
	}
	m.clients = make(map[uuid.UUID]*Client)
	m.userClients = make(map[uuid.UUID]map[uuid.UUID]bool)
	m.mu.Unlock()
}

// requestOf возвращает заявку, к которой относится уведомление
func requestOf(n models.Notification) string {
	switch n.Kind {
	case models.NotifySwapRequested, models.NotifySwapAccepted, models.NotifySwapRejected,
		models.NotifySwapCancelled, models.NotifyNewMessage:
		return n.EntityID.String()
	}
	return ""
}
