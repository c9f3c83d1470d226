package store

import (
	"slices"

	"github.com/google/uuid"

	"github.com/rajivgeraev/flippy-core/internal/models"
	"github.com/rajivgeraev/flippy-core/internal/permissions"
)

// collection хранит сущности по ID в порядке добавления.
// Значения копируются на чтении и записи, поэтому наружу никогда не
// уходят ссылки на внутреннее состояние.
type collection[T any] struct {
	byID  map[uuid.UUID]T
	order []uuid.UUID
	clone func(T) T
}

func newCollection[T any](clone func(T) T) *collection[T] {
	return &collection[T]{byID: make(map[uuid.UUID]T), clone: clone}
}

func (c *collection[T]) get(id uuid.UUID) (T, bool) {
	v, ok := c.byID[id]
	if !ok {
		var zero T
		return zero, false
	}
	return c.clone(v), true
}

func (c *collection[T]) has(id uuid.UUID) bool {
	_, ok := c.byID[id]
	return ok
}

func (c *collection[T]) put(id uuid.UUID, v T) {
	if _, ok := c.byID[id]; !ok {
		c.order = append(c.order, id)
	}
	c.byID[id] = c.clone(v)
}

func (c *collection[T]) remove(id uuid.UUID) {
	if _, ok := c.byID[id]; !ok {
		return
	}
	delete(c.byID, id)
	c.order = slices.DeleteFunc(c.order, func(x uuid.UUID) bool { return x == id })
}

func (c *collection[T]) values() []T {
	out := make([]T, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.clone(c.byID[id]))
	}
	return out
}

func (c *collection[T]) filter(keep func(T) bool) []T {
	var out []T
	for _, id := range c.order {
		if v := c.byID[id]; keep(v) {
			out = append(out, c.clone(v))
		}
	}
	return out
}

func (c *collection[T]) reset() {
	clear(c.byID)
	c.order = c.order[:0]
}

func (c *collection[T]) len() int {
	return len(c.order)
}

// session состояние авторизации
type session struct {
	UserID        uuid.UUID
	Token         string
	Authenticated bool
	Loading       bool
}

// snapshot единственное изменяемое состояние хранилища
type snapshot struct {
	users    *collection[models.User]
	items    *collection[models.Item]
	requests *collection[models.SwapRequest]
	reviews  *collection[models.Review]
	posts    *collection[models.CommunityPost]
	events   *collection[models.CommunityEvent]

	// переписки и их метаданные по ID заявки
	messages      map[uuid.UUID][]models.ChatMessage
	conversations map[uuid.UUID]models.ConversationMetadata

	notifications []models.Notification
	saved         []uuid.UUID

	session   session
	perms     permissions.Set
	lastError string

	// версии сущностей для безопасного отката, см. journal
	rev   map[revKey]uint64
	clock uint64
}

func newSnapshot() *snapshot {
	return &snapshot{
		users:         newCollection(models.User.Clone),
		items:         newCollection(models.Item.Clone),
		requests:      newCollection(models.SwapRequest.Clone),
		reviews:       newCollection(models.Review.Clone),
		posts:         newCollection(models.CommunityPost.Clone),
		events:        newCollection(models.CommunityEvent.Clone),
		messages:      make(map[uuid.UUID][]models.ChatMessage),
		conversations: make(map[uuid.UUID]models.ConversationMetadata),
		perms:         permissions.Set{},
		rev:           make(map[revKey]uint64),
	}
}

// resetData очищает все коллекции при выходе пользователя.
// Счётчик clock не сбрасывается, чтобы старые журналы не совпали с новыми версиями.
func (sn *snapshot) resetData() {
	sn.users.reset()
	sn.items.reset()
	sn.requests.reset()
	sn.reviews.reset()
	sn.posts.reset()
	sn.events.reset()
	clear(sn.messages)
	clear(sn.conversations)
	sn.notifications = nil
	sn.saved = nil
	clear(sn.rev)
}

func (sn *snapshot) currentUser() (models.User, bool) {
	if !sn.session.Authenticated {
		return models.User{}, false
	}
	return sn.users.get(sn.session.UserID)
}

func (sn *snapshot) meta(requestID uuid.UUID) models.ConversationMetadata {
	m, ok := sn.conversations[requestID]
	if !ok {
		m = models.ConversationMetadata{RequestID: requestID}
	}
	return m
}

func (sn *snapshot) appendMessage(msg models.ChatMessage) {
	sn.messages[msg.RequestID] = append(sn.messages[msg.RequestID], msg)
}

func (sn *snapshot) removeMessage(requestID, id uuid.UUID) {
	msgs := sn.messages[requestID]
	sn.messages[requestID] = slices.DeleteFunc(msgs, func(m models.ChatMessage) bool { return m.ID == id || m.TempID == id })
}

func (sn *snapshot) removeNotification(id uuid.UUID) {
	sn.notifications = slices.DeleteFunc(sn.notifications, func(n models.Notification) bool { return n.ID == id })
}

func (sn *snapshot) isSaved(itemID uuid.UUID) bool {
	return slices.Contains(sn.saved, itemID)
}

// pendingRequests возвращает открытые заявки
func (sn *snapshot) pendingRequests() []models.SwapRequest {
	return sn.requests.filter(func(r models.SwapRequest) bool { return r.Status == models.SwapPending })
}

func copyMessages(msgs []models.ChatMessage) []models.ChatMessage {
	if msgs == nil {
		return nil
	}
	return append([]models.ChatMessage(nil), msgs...)
}
