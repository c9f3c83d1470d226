package simnet

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/rajivgeraev/flippy-core/internal/apperr"
	"github.com/rajivgeraev/flippy-core/internal/db"
	"github.com/rajivgeraev/flippy-core/internal/models"
)

// Backend сервер в памяти, общий для всех сессий процесса.
// Реализует те же операции, что и репозитории PostgreSQL.
type Backend struct {
	mu        sync.RWMutex
	users     map[uuid.UUID]models.User
	passwords map[string]passwordEntry
	telegram  map[int64]uuid.UUID
	items     map[uuid.UUID]models.Item
	requests  map[uuid.UUID]models.SwapRequest
	messages  map[uuid.UUID][]models.ChatMessage
	reviews   map[uuid.UUID]models.Review
	posts     map[uuid.UUID]models.CommunityPost
	events    map[uuid.UUID]models.CommunityEvent
	now       func() time.Time
}

type passwordEntry struct {
	userID uuid.UUID
	hash   []byte
}

// NewBackend создаёт пустой сервер
func NewBackend() *Backend {
	return &Backend{
		users:     make(map[uuid.UUID]models.User),
		passwords: make(map[string]passwordEntry),
		telegram:  make(map[int64]uuid.UUID),
		items:     make(map[uuid.UUID]models.Item),
		requests:  make(map[uuid.UUID]models.SwapRequest),
		messages:  make(map[uuid.UUID][]models.ChatMessage),
		reviews:   make(map[uuid.UUID]models.Review),
		posts:     make(map[uuid.UUID]models.CommunityPost),
		events:    make(map[uuid.UUID]models.CommunityEvent),
		now:       time.Now,
	}
}

// Create регистрирует пользователя с паролем
func (b *Backend) Create(_ context.Context, reg models.Registration) (models.User, error) {
	email := strings.ToLower(strings.TrimSpace(reg.Email))
	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.MinCost)
	if err != nil {
		return models.User{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.passwords[email]; ok {
		return models.User{}, apperr.Conflict("Пользователь с таким email уже существует")
	}
	now := b.now()
	u := models.User{
		ID:        uuid.New(),
		Email:     email,
		Username:  reg.Username,
		FirstName: reg.FirstName,
		LastName:  reg.LastName,
		Role:      models.RoleUser,
		Security:  models.UserSecurity{AccountStatus: models.AccountActive},
		CreatedAt: now,
		UpdatedAt: now,
	}
	b.users[u.ID] = u
	b.passwords[email] = passwordEntry{userID: u.ID, hash: hash}
	return u.Clone(), nil
}

// Authenticate проверяет email и пароль
func (b *Backend) Authenticate(_ context.Context, email, password string) (models.User, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	entry, ok := b.passwords[strings.ToLower(strings.TrimSpace(email))]
	if !ok || bcrypt.CompareHashAndPassword(entry.hash, []byte(password)) != nil {
		return models.User{}, apperr.Unauthorized("Неверный email или пароль")
	}
	return b.users[entry.userID].Clone(), nil
}

// UpsertTelegramUser создаёт пользователя Telegram или обновляет его профиль
func (b *Backend) UpsertTelegramUser(_ context.Context, p db.TelegramProfile) (models.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if id, ok := b.telegram[p.TelegramID]; ok {
		return b.users[id].Clone(), nil
	}
	now := b.now()
	u := models.User{
		ID:         uuid.New(),
		Username:   p.Username,
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		AvatarURL:  p.PhotoURL,
		TelegramID: p.TelegramID,
		Role:       models.RoleUser,
		Security:   models.UserSecurity{AccountStatus: models.AccountActive},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	b.users[u.ID] = u
	b.telegram[p.TelegramID] = u.ID
	return u.Clone(), nil
}

// Update сохраняет изменённого пользователя
func (b *Backend) Update(_ context.Context, u models.User) (models.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.users[u.ID]; !ok {
		return models.User{}, apperr.NotFound("Пользователь не найден")
	}
	b.users[u.ID] = u.Clone()
	return u, nil
}

// List возвращает всех пользователей
func (b *Backend) List(context.Context) ([]models.User, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]models.User, 0, len(b.users))
	for _, u := range b.users {
		out = append(out, u.Clone())
	}
	slices.SortFunc(out, func(a, c models.User) int { return a.CreatedAt.Compare(c.CreatedAt) })
	return out, nil
}

// ChatID возвращает чат Telegram пользователя
func (b *Backend) ChatID(_ context.Context, userID uuid.UUID) (int64, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	u, ok := b.users[userID]
	return u.TelegramID, ok && u.TelegramID != 0, nil
}

// CreateItem сохраняет новое объявление
func (b *Backend) CreateItem(_ context.Context, item models.Item) (models.Item, error) {
	return item, insert(b, b.items, item.ID, item.Clone(), "Объявление уже существует")
}

// UpdateItem сохраняет изменённое объявление
func (b *Backend) UpdateItem(_ context.Context, item models.Item) (models.Item, error) {
	return item, replace(b, b.items, item.ID, item.Clone(), "Объявление не найдено")
}

// FetchItems возвращает все объявления
func (b *Backend) FetchItems(context.Context) ([]models.Item, error) {
	return values(b, b.items, models.Item.Clone), nil
}

// CreateSwapRequest сохраняет новую заявку
func (b *Backend) CreateSwapRequest(_ context.Context, req models.SwapRequest) (models.SwapRequest, error) {
	return req, insert(b, b.requests, req.ID, req.Clone(), "Заявка уже существует")
}

// UpdateSwapRequest сохраняет изменённую заявку
func (b *Backend) UpdateSwapRequest(_ context.Context, req models.SwapRequest) (models.SwapRequest, error) {
	return req, replace(b, b.requests, req.ID, req.Clone(), "Заявка не найдена")
}

// FetchSwapRequests возвращает заявки пользователя
func (b *Backend) FetchSwapRequests(_ context.Context, userID uuid.UUID) ([]models.SwapRequest, error) {
	all := values(b, b.requests, models.SwapRequest.Clone)
	return slices.DeleteFunc(all, func(r models.SwapRequest) bool { return !r.Involves(userID) }), nil
}

// SendMessage сохраняет сообщение и выдаёт ему постоянный ID
func (b *Backend) SendMessage(_ context.Context, msg models.ChatMessage) (models.ChatMessage, error) {
	if msg.TempID == uuid.Nil {
		msg.TempID = msg.ID
	}
	msg.ID = uuid.New()
	msg.Status = models.MessageSent

	b.mu.Lock()
	defer b.mu.Unlock()
	msg.UpdatedAt = b.now()
	b.messages[msg.RequestID] = append(b.messages[msg.RequestID], msg)
	return msg, nil
}

// MarkRead отмечает прочитанными сообщения собеседника
func (b *Backend) MarkRead(_ context.Context, requestID, readerID uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	msgs := b.messages[requestID]
	for i := range msgs {
		if msgs[i].SenderID != readerID && msgs[i].Status != models.MessageRead {
			msgs[i].Status = models.MessageRead
			msgs[i].UpdatedAt = b.now()
		}
	}
	return nil
}

// FetchMessages возвращает сообщения переписки
func (b *Backend) FetchMessages(_ context.Context, requestID uuid.UUID) ([]models.ChatMessage, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.messages[requestID]), nil
}

// CreateReview сохраняет новый отзыв
func (b *Backend) CreateReview(_ context.Context, r models.Review) (models.Review, error) {
	return r, insert(b, b.reviews, r.ID, r.Clone(), "Отзыв уже существует")
}

// UpdateReview сохраняет изменённый отзыв
func (b *Backend) UpdateReview(_ context.Context, r models.Review) (models.Review, error) {
	return r, replace(b, b.reviews, r.ID, r.Clone(), "Отзыв не найден")
}

// FetchReviews возвращает все отзывы
func (b *Backend) FetchReviews(context.Context) ([]models.Review, error) {
	return values(b, b.reviews, models.Review.Clone), nil
}

// CreatePost сохраняет новый пост
func (b *Backend) CreatePost(_ context.Context, p models.CommunityPost) (models.CommunityPost, error) {
	return p, insert(b, b.posts, p.ID, p.Clone(), "Пост уже существует")
}

// UpdatePost сохраняет изменённый пост
func (b *Backend) UpdatePost(_ context.Context, p models.CommunityPost) (models.CommunityPost, error) {
	return p, replace(b, b.posts, p.ID, p.Clone(), "Пост не найден")
}

// FetchPosts возвращает все посты
func (b *Backend) FetchPosts(context.Context) ([]models.CommunityPost, error) {
	return values(b, b.posts, models.CommunityPost.Clone), nil
}

// CreateEvent сохраняет новое событие
func (b *Backend) CreateEvent(_ context.Context, e models.CommunityEvent) (models.CommunityEvent, error) {
	return e, insert(b, b.events, e.ID, e.Clone(), "Событие уже существует")
}

// UpdateEvent сохраняет изменённое событие
func (b *Backend) UpdateEvent(_ context.Context, e models.CommunityEvent) (models.CommunityEvent, error) {
	return e, replace(b, b.events, e.ID, e.Clone(), "Событие не найдено")
}

// FetchEvents возвращает все события
func (b *Backend) FetchEvents(context.Context) ([]models.CommunityEvent, error) {
	return values(b, b.events, models.CommunityEvent.Clone), nil
}

// Commit применяет пакет под одной блокировкой: сначала проверяет
// все сущности, затем записывает
func (b *Backend) Commit(_ context.Context, changes models.ChangeSet) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, req := range changes.NewRequests {
		if _, ok := b.requests[req.ID]; ok {
			return apperr.Conflict("Заявка уже существует")
		}
	}
	if err := missing(b.requests, changes.Requests, func(r models.SwapRequest) uuid.UUID { return r.ID }, "Заявка не найдена"); err != nil {
		return err
	}
	if err := missing(b.items, changes.Items, func(i models.Item) uuid.UUID { return i.ID }, "Объявление не найдено"); err != nil {
		return err
	}
	if err := missing(b.users, changes.Users, func(u models.User) uuid.UUID { return u.ID }, "Пользователь не найден"); err != nil {
		return err
	}
	if err := missing(b.events, changes.Events, func(e models.CommunityEvent) uuid.UUID { return e.ID }, "Событие не найдено"); err != nil {
		return err
	}

	for _, req := range changes.Requests {
		b.requests[req.ID] = req.Clone()
	}
	for _, req := range changes.NewRequests {
		b.requests[req.ID] = req.Clone()
	}
	for _, item := range changes.Items {
		b.items[item.ID] = item.Clone()
	}
	for _, u := range changes.Users {
		b.users[u.ID] = u.Clone()
	}
	for _, ev := range changes.Events {
		b.events[ev.ID] = ev.Clone()
	}
	return nil
}

func missing[T any](m map[uuid.UUID]T, vs []T, key func(T) uuid.UUID, notFound string) error {
	for _, v := range vs {
		if _, ok := m[key(v)]; !ok {
			return apperr.NotFound(notFound)
		}
	}
	return nil
}

func insert[T any](b *Backend, m map[uuid.UUID]T, id uuid.UUID, v T, duplicate string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := m[id]; ok {
		return apperr.Conflict(duplicate)
	}
	m[id] = v
	return nil
}

func replace[T any](b *Backend, m map[uuid.UUID]T, id uuid.UUID, v T, notFound string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := m[id]; !ok {
		return apperr.NotFound(notFound)
	}
	m[id] = v
	return nil
}

func values[T any](b *Backend, m map[uuid.UUID]T, clone func(T) T) []T {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, clone(v))
	}
	return out
}
