package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/rajivgeraev/flippy-core/internal/analytics"
	"github.com/rajivgeraev/flippy-core/internal/models"
)

// AuthAPI выполняет вход, регистрацию и изменение пользователей
type AuthAPI interface {
	Login(ctx context.Context, creds models.Credentials) (models.User, string, error)
	LoginTelegram(ctx context.Context, initData string) (models.User, string, error)
	Register(ctx context.Context, reg models.Registration) (models.User, string, error)
	UpdateUser(ctx context.Context, user models.User) (models.User, error)
	FetchUsers(ctx context.Context) ([]models.User, error)
}

// SessionPersister сохраняет сессию между запусками
type SessionPersister interface {
	LoadSession(ctx context.Context) (*models.SessionSnapshot, error)
	SaveSession(ctx context.Context, snap models.SessionSnapshot) error
	ClearSession(ctx context.Context) error
}

// ItemAPI хранит объявления. Объявления никогда не удаляются, только меняют статус.
type ItemAPI interface {
	CreateItem(ctx context.Context, item models.Item) (models.Item, error)
	UpdateItem(ctx context.Context, item models.Item) (models.Item, error)
	FetchItems(ctx context.Context) ([]models.Item, error)
}

// SwapAPI хранит заявки на обмен
type SwapAPI interface {
	CreateSwapRequest(ctx context.Context, req models.SwapRequest) (models.SwapRequest, error)
	UpdateSwapRequest(ctx context.Context, req models.SwapRequest) (models.SwapRequest, error)
	FetchSwapRequests(ctx context.Context, userID uuid.UUID) ([]models.SwapRequest, error)
}

// MessageAPI доставляет сообщения переписки
type MessageAPI interface {
	SendMessage(ctx context.Context, msg models.ChatMessage) (models.ChatMessage, error)
	MarkRead(ctx context.Context, requestID, readerID uuid.UUID) error
	FetchMessages(ctx context.Context, requestID uuid.UUID) ([]models.ChatMessage, error)
}

// ReviewAPI хранит отзывы
type ReviewAPI interface {
	CreateReview(ctx context.Context, review models.Review) (models.Review, error)
	UpdateReview(ctx context.Context, review models.Review) (models.Review, error)
	FetchReviews(ctx context.Context) ([]models.Review, error)
}

// CommunityAPI хранит посты и события сообщества
type CommunityAPI interface {
	CreatePost(ctx context.Context, post models.CommunityPost) (models.CommunityPost, error)
	UpdatePost(ctx context.Context, post models.CommunityPost) (models.CommunityPost, error)
	FetchPosts(ctx context.Context) ([]models.CommunityPost, error)
	CreateEvent(ctx context.Context, event models.CommunityEvent) (models.CommunityEvent, error)
	UpdateEvent(ctx context.Context, event models.CommunityEvent) (models.CommunityEvent, error)
	FetchEvents(ctx context.Context) ([]models.CommunityEvent, error)
}

// CommitAPI применяет все изменения одного действия атомарно
type CommitAPI interface {
	Commit(ctx context.Context, changes models.ChangeSet) error
}

// Notifier доставляет уведомления адресатам (websocket, Telegram)
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// AnalyticsCache кэширует таблицу лидеров. Кэш сбрасывается после каждого завершённого обмена.
type AnalyticsCache interface {
	Invalidate(ctx context.Context) error
	LeaderboardOrCompute(ctx context.Context, compute func() []analytics.LeaderboardEntry) []analytics.LeaderboardEntry
}

// Collaborators внешние сервисы хранилища. Незаданные заменяются
// локальными реализациями, которые подтверждают любое изменение.
// Без Commit изменения отправляются по одной сущности с возвратом
// записанных при ошибке.
type Collaborators struct {
	Auth      AuthAPI
	Session   SessionPersister
	Items     ItemAPI
	Swaps     SwapAPI
	Messages  MessageAPI
	Reviews   ReviewAPI
	Community CommunityAPI
	Commit    CommitAPI
	Notifier  Notifier
	Analytics AnalyticsCache
}

func (c Collaborators) withDefaults() Collaborators {
	if c.Auth == nil {
		c.Auth = localAuth{}
	}
	if c.Session == nil {
		c.Session = localSession{}
	}
	if c.Items == nil {
		c.Items = localItems{}
	}
	if c.Swaps == nil {
		c.Swaps = localSwaps{}
	}
	if c.Messages == nil {
		c.Messages = localMessages{}
	}
	if c.Reviews == nil {
		c.Reviews = localReviews{}
	}
	if c.Community == nil {
		c.Community = localCommunity{}
	}
	if c.Notifier == nil {
		c.Notifier = localNotifier{}
	}
	if c.Analytics == nil {
		c.Analytics = localAnalytics{}
	}
	return c
}

type localAuth struct{}

func (localAuth) Login(context.Context, models.Credentials) (models.User, string, error) {
	return models.User{}, "", errOffline
}

func (localAuth) LoginTelegram(context.Context, string) (models.User, string, error) {
	return models.User{}, "", errOffline
}

func (localAuth) Register(context.Context, models.Registration) (models.User, string, error) {
	return models.User{}, "", errOffline
}

func (localAuth) UpdateUser(_ context.Context, u models.User) (models.User, error) { return u, nil }
func (localAuth) FetchUsers(context.Context) ([]models.User, error)                { return nil, nil }

type localSession struct{}

func (localSession) LoadSession(context.Context) (*models.SessionSnapshot, error) { return nil, nil }
func (localSession) SaveSession(context.Context, models.SessionSnapshot) error    { return nil }
func (localSession) ClearSession(context.Context) error                           { return nil }

type localItems struct{}

func (localItems) CreateItem(_ context.Context, i models.Item) (models.Item, error) { return i, nil }
func (localItems) UpdateItem(_ context.Context, i models.Item) (models.Item, error) { return i, nil }
func (localItems) FetchItems(context.Context) ([]models.Item, error)               { return nil, nil }

type localSwaps struct{}

func (localSwaps) CreateSwapRequest(_ context.Context, r models.SwapRequest) (models.SwapRequest, error) {
	return r, nil
}

func (localSwaps) UpdateSwapRequest(_ context.Context, r models.SwapRequest) (models.SwapRequest, error) {
	return r, nil
}

func (localSwaps) FetchSwapRequests(context.Context, uuid.UUID) ([]models.SwapRequest, error) {
	return nil, nil
}

type localMessages struct{}

func (localMessages) SendMessage(_ context.Context, m models.ChatMessage) (models.ChatMessage, error) {
	return m, nil
}

func (localMessages) MarkRead(context.Context, uuid.UUID, uuid.UUID) error { return nil }

func (localMessages) FetchMessages(context.Context, uuid.UUID) ([]models.ChatMessage, error) {
	return nil, nil
}

type localReviews struct{}

func (localReviews) CreateReview(_ context.Context, r models.Review) (models.Review, error) { return r, nil }
func (localReviews) UpdateReview(_ context.Context, r models.Review) (models.Review, error) { return r, nil }
func (localReviews) FetchReviews(context.Context) ([]models.Review, error)                 { return nil, nil }

type localCommunity struct{}

func (localCommunity) CreatePost(_ context.Context, p models.CommunityPost) (models.CommunityPost, error) {
	return p, nil
}

func (localCommunity) UpdatePost(_ context.Context, p models.CommunityPost) (models.CommunityPost, error) {
	return p, nil
}

func (localCommunity) FetchPosts(context.Context) ([]models.CommunityPost, error) { return nil, nil }

func (localCommunity) CreateEvent(_ context.Context, e models.CommunityEvent) (models.CommunityEvent, error) {
	return e, nil
}

func (localCommunity) UpdateEvent(_ context.Context, e models.CommunityEvent) (models.CommunityEvent, error) {
	return e, nil
}

func (localCommunity) FetchEvents(context.Context) ([]models.CommunityEvent, error) { return nil, nil }

type localNotifier struct{}

func (localNotifier) Notify(context.Context, models.Notification) error { return nil }

type localAnalytics struct{}

func (localAnalytics) Invalidate(context.Context) error { return nil }

func (localAnalytics) LeaderboardOrCompute(_ context.Context, compute func() []analytics.LeaderboardEntry) []analytics.LeaderboardEntry {
	return compute()
}
