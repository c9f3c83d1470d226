package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/flippy-core/internal/analytics"
	"github.com/rajivgeraev/flippy-core/internal/lifecycle"
	"github.com/rajivgeraev/flippy-core/internal/models"
)

var (
	errBoom = errors.New("connection reset")
	t0      = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeTimers копит отложенные функции, тест запускает их сам
type fakeTimers struct {
	mu    sync.Mutex
	funcs []func()
}

func (f *fakeTimers) AfterFunc(_ time.Duration, fn func()) {
	f.mu.Lock()
	f.funcs = append(f.funcs, fn)
	f.mu.Unlock()
}

func (f *fakeTimers) Fire() {
	f.mu.Lock()
	funcs := f.funcs
	f.funcs = nil
	f.mu.Unlock()
	for _, fn := range funcs {
		fn()
	}
}

type fakeAuth struct {
	localAuth
	user  models.User
	err   error
	calls int
}

func (a *fakeAuth) Login(context.Context, models.Credentials) (models.User, string, error) {
	a.calls++
	if a.err != nil {
		return models.User{}, "", a.err
	}
	return a.user, "token-" + a.user.ID.String(), nil
}

func (a *fakeAuth) Register(_ context.Context, reg models.Registration) (models.User, string, error) {
	if a.err != nil {
		return models.User{}, "", a.err
	}
	u := a.user
	u.Email = reg.Email
	u.Username = reg.Username
	return u, "token", nil
}

type fakeItems struct {
	localItems
	mu        sync.Mutex
	createErr error
	updateErr error
	updates   int
	fetched   []models.Item
	fetchErr  error
	// onFetch вызывается во время загрузки, пока блокировка хранилища свободна
	onFetch   func()
	// gate блокирует первый UpdateItem, пока тест не отправит в него ошибку или nil
	gate      chan error
	entered   chan struct{}
}

func (f *fakeItems) CreateItem(_ context.Context, i models.Item) (models.Item, error) {
	if f.createErr != nil {
		return models.Item{}, f.createErr
	}
	return i, nil
}

func (f *fakeItems) UpdateItem(_ context.Context, i models.Item) (models.Item, error) {
	f.mu.Lock()
	f.updates++
	gate := f.gate
	f.gate = nil
	f.mu.Unlock()
	if gate != nil {
		f.entered <- struct{}{}
		if err := <-gate; err != nil {
			return models.Item{}, err
		}
	}
	if f.updateErr != nil {
		return models.Item{}, f.updateErr
	}
	return i, nil
}

func (f *fakeItems) FetchItems(context.Context) ([]models.Item, error) {
	if f.onFetch != nil {
		f.onFetch()
	}
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.fetched, nil
}

type fakeSwaps struct {
	localSwaps
	createErr error
	updateErr error
	created   int
	updates   []models.SwapRequest
	fetched   []models.SwapRequest
}

func (f *fakeSwaps) CreateSwapRequest(_ context.Context, r models.SwapRequest) (models.SwapRequest, error) {
	if f.createErr != nil {
		return models.SwapRequest{}, f.createErr
	}
	f.created++
	return r, nil
}

func (f *fakeSwaps) UpdateSwapRequest(_ context.Context, r models.SwapRequest) (models.SwapRequest, error) {
	if f.updateErr != nil {
		return models.SwapRequest{}, f.updateErr
	}
	f.updates = append(f.updates, r)
	return r, nil
}

func (f *fakeSwaps) FetchSwapRequests(context.Context, uuid.UUID) ([]models.SwapRequest, error) {
	return f.fetched, nil
}

// fakeCommit принимает пакеты изменений целиком
type fakeCommit struct {
	err     error
	batches []models.ChangeSet
}

func (f *fakeCommit) Commit(_ context.Context, changes models.ChangeSet) error {
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, changes)
	return nil
}

type fakeMessages struct {
	localMessages
	sendErr   error
	markReads int
	fetched   map[uuid.UUID][]models.ChatMessage
	// gate держит каждую отправку, пока тест не передаст ей результат
	gate    chan error
	entered chan struct{}
}

func (f *fakeMessages) FetchMessages(_ context.Context, requestID uuid.UUID) ([]models.ChatMessage, error) {
	return f.fetched[requestID], nil
}

func (f *fakeMessages) SendMessage(_ context.Context, m models.ChatMessage) (models.ChatMessage, error) {
	if f.gate != nil {
		f.entered <- struct{}{}
		if err := <-f.gate; err != nil {
			return models.ChatMessage{}, err
		}
	}
	if f.sendErr != nil {
		return models.ChatMessage{}, f.sendErr
	}
	m.ID = uuid.New()
	return m, nil
}

func (f *fakeMessages) MarkRead(context.Context, uuid.UUID, uuid.UUID) error {
	f.markReads++
	return nil
}

type fakeSession struct {
	mu      sync.Mutex
	saved   *models.SessionSnapshot
	cleared int
}

func (f *fakeSession) LoadSession(context.Context) (*models.SessionSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saved, nil
}

func (f *fakeSession) SaveSession(_ context.Context, snap models.SessionSnapshot) error {
	f.mu.Lock()
	f.saved = &snap
	f.mu.Unlock()
	return nil
}

func (f *fakeSession) ClearSession(context.Context) error {
	f.mu.Lock()
	f.saved = nil
	f.cleared++
	f.mu.Unlock()
	return nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (f *fakeNotifier) Notify(_ context.Context, n models.Notification) error {
	f.mu.Lock()
	f.sent = append(f.sent, n)
	f.mu.Unlock()
	return nil
}

func (f *fakeNotifier) kinds(userID uuid.UUID) []models.NotificationKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.NotificationKind
	for _, n := range f.sent {
		if n.UserID == userID {
			out = append(out, n.Kind)
		}
	}
	return out
}

type fakeAnalytics struct {
	invalidations int
}

func (f *fakeAnalytics) Invalidate(context.Context) error {
	f.invalidations++
	return nil
}

func (f *fakeAnalytics) LeaderboardOrCompute(_ context.Context, compute func() []analytics.LeaderboardEntry) []analytics.LeaderboardEntry {
	return compute()
}

// env тестовое окружение хранилища
type env struct {
	st        *Store
	clock     *fakeClock
	timers    *fakeTimers
	auth      *fakeAuth
	items     *fakeItems
	swaps     *fakeSwaps
	messages  *fakeMessages
	session   *fakeSession
	notifier  *fakeNotifier
	analytics *fakeAnalytics
}

func newEnv(t *testing.T, cfg Config) *env {
	t.Helper()
	e := &env{
		clock:     &fakeClock{now: t0},
		timers:    &fakeTimers{},
		auth:      &fakeAuth{},
		items:     &fakeItems{},
		swaps:     &fakeSwaps{},
		messages:  &fakeMessages{},
		session:   &fakeSession{},
		notifier:  &fakeNotifier{},
		analytics: &fakeAnalytics{},
	}
	e.st = New(Options{
		Config: cfg,
		Collaborators: Collaborators{
			Auth:      e.auth,
			Session:   e.session,
			Items:     e.items,
			Swaps:     e.swaps,
			Messages:  e.messages,
			Notifier:  e.notifier,
			Analytics: e.analytics,
		},
		Now:       e.clock.Now,
		AfterFunc: e.timers.AfterFunc,
	})
	return e
}

func newUser(name string, role models.Role) models.User {
	return models.User{
		ID:        uuid.New(),
		Username:  name,
		Email:     name + "@example.com",
		Role:      role,
		Security:  models.UserSecurity{AccountStatus: models.AccountActive},
		CreatedAt: t0.Add(-24 * time.Hour),
	}
}

// loginAs открывает сессию через Login с подменённым ответом сервиса
func (e *env) loginAs(t *testing.T, u models.User) {
	t.Helper()
	e.auth.user = u
	if _, err := e.st.Login(context.Background(), models.Credentials{Email: u.Email, Password: "password123"}); err != nil {
		t.Fatalf("login %s: %v", u.Username, err)
	}
}

// switchUser меняет текущего пользователя без очистки снимка
func (e *env) switchUser(u models.User) {
	e.st.mu.Lock()
	defer e.st.mu.Unlock()
	if cur, ok := e.st.snap.users.get(u.ID); ok {
		u = cur
	}
	setSession(e.st.snap, u, "token")
}

// seed кладёт пользователей и вещи прямо в снимок
func (e *env) seed(users []models.User, items ...models.Item) {
	e.st.mu.Lock()
	defer e.st.mu.Unlock()
	for _, u := range users {
		e.st.snap.users.put(u.ID, u)
	}
	for _, i := range items {
		e.st.snap.items.put(i.ID, i)
	}
}

func seedItem(owner uuid.UUID, title string, category models.Category, condition models.Condition) models.Item {
	return lifecycle.NewItem(uuid.New(), owner, models.ItemDraft{
		Title:     title,
		Category:  category,
		Condition: condition,
	}, t0, false)
}

func draft(title string) models.ItemDraft {
	return models.ItemDraft{
		Title:     title,
		Category:  models.CategoryBooks,
		Condition: models.ConditionGood,
	}
}
