package simnet

import (
	"context"

	"github.com/google/uuid"

	"github.com/rajivgeraev/flippy-core/internal/models"
	"github.com/rajivgeraev/flippy-core/internal/store"
)

// Wrap пропускает вызовы внешних сервисов через имитацию сети.
// Уведомления, кэш аналитики и сохранение сессии остаются локальными.
func Wrap(n *Network, c store.Collaborators) store.Collaborators {
	if c.Auth != nil {
		c.Auth = authAPI{n, c.Auth}
	}
	if c.Items != nil {
		c.Items = itemAPI{n, c.Items}
	}
	if c.Swaps != nil {
		c.Swaps = swapAPI{n, c.Swaps}
	}
	if c.Messages != nil {
		c.Messages = messageAPI{n, c.Messages}
	}
	if c.Reviews != nil {
		c.Reviews = reviewAPI{n, c.Reviews}
	}
	if c.Community != nil {
		c.Community = communityAPI{n, c.Community}
	}
	if c.Commit != nil {
		c.Commit = commitAPI{n, c.Commit}
	}
	return c
}

// through выполняет вызов после удачного прохода по сети
func through[T any](ctx context.Context, n *Network, call func() (T, error)) (T, error) {
	if err := n.Roundtrip(ctx); err != nil {
		var zero T
		return zero, err
	}
	return call()
}

type authAPI struct {
	n    *Network
	next store.AuthAPI
}

func (a authAPI) Login(ctx context.Context, creds models.Credentials) (models.User, string, error) {
	if err := a.n.Roundtrip(ctx); err != nil {
		return models.User{}, "", err
	}
	return a.next.Login(ctx, creds)
}

func (a authAPI) LoginTelegram(ctx context.Context, initData string) (models.User, string, error) {
	if err := a.n.Roundtrip(ctx); err != nil {
		return models.User{}, "", err
	}
	return a.next.LoginTelegram(ctx, initData)
}

func (a authAPI) Register(ctx context.Context, reg models.Registration) (models.User, string, error) {
	if err := a.n.Roundtrip(ctx); err != nil {
		return models.User{}, "", err
	}
	return a.next.Register(ctx, reg)
}

func (a authAPI) UpdateUser(ctx context.Context, u models.User) (models.User, error) {
	return through(ctx, a.n, func() (models.User, error) { return a.next.UpdateUser(ctx, u) })
}

func (a authAPI) FetchUsers(ctx context.Context) ([]models.User, error) {
	return through(ctx, a.n, func() ([]models.User, error) { return a.next.FetchUsers(ctx) })
}

type itemAPI struct {
	n    *Network
	next store.ItemAPI
}

func (a itemAPI) CreateItem(ctx context.Context, item models.Item) (models.Item, error) {
	return through(ctx, a.n, func() (models.Item, error) { return a.next.CreateItem(ctx, item) })
}

func (a itemAPI) UpdateItem(ctx context.Context, item models.Item) (models.Item, error) {
	return through(ctx, a.n, func() (models.Item, error) { return a.next.UpdateItem(ctx, item) })
}

func (a itemAPI) FetchItems(ctx context.Context) ([]models.Item, error) {
	return through(ctx, a.n, func() ([]models.Item, error) { return a.next.FetchItems(ctx) })
}

type swapAPI struct {
	n    *Network
	next store.SwapAPI
}

func (a swapAPI) CreateSwapRequest(ctx context.Context, r models.SwapRequest) (models.SwapRequest, error) {
	return through(ctx, a.n, func() (models.SwapRequest, error) { return a.next.CreateSwapRequest(ctx, r) })
}

func (a swapAPI) UpdateSwapRequest(ctx context.Context, r models.SwapRequest) (models.SwapRequest, error) {
	return through(ctx, a.n, func() (models.SwapRequest, error) { return a.next.UpdateSwapRequest(ctx, r) })
}

func (a swapAPI) FetchSwapRequests(ctx context.Context, userID uuid.UUID) ([]models.SwapRequest, error) {
	return through(ctx, a.n, func() ([]models.SwapRequest, error) { return a.next.FetchSwapRequests(ctx, userID) })
}

type messageAPI struct {
	n    *Network
	next store.MessageAPI
}

func (a messageAPI) SendMessage(ctx context.Context, m models.ChatMessage) (models.ChatMessage, error) {
	return through(ctx, a.n, func() (models.ChatMessage, error) { return a.next.SendMessage(ctx, m) })
}

func (a messageAPI) MarkRead(ctx context.Context, requestID, readerID uuid.UUID) error {
	if err := a.n.Roundtrip(ctx); err != nil {
		return err
	}
	return a.next.MarkRead(ctx, requestID, readerID)
}

func (a messageAPI) FetchMessages(ctx context.Context, requestID uuid.UUID) ([]models.ChatMessage, error) {
	return through(ctx, a.n, func() ([]models.ChatMessage, error) { return a.next.FetchMessages(ctx, requestID) })
}

type reviewAPI struct {
	n    *Network
	next store.ReviewAPI
}

func (a reviewAPI) CreateReview(ctx context.Context, r models.Review) (models.Review, error) {
	return through(ctx, a.n, func() (models.Review, error) { return a.next.CreateReview(ctx, r) })
}

func (a reviewAPI) UpdateReview(ctx context.Context, r models.Review) (models.Review, error) {
	return through(ctx, a.n, func() (models.Review, error) { return a.next.UpdateReview(ctx, r) })
}

func (a reviewAPI) FetchReviews(ctx context.Context) ([]models.Review, error) {
	return through(ctx, a.n, func() ([]models.Review, error) { return a.next.FetchReviews(ctx) })
}

type communityAPI struct {
	n    *Network
	next store.CommunityAPI
}

func (a communityAPI) CreatePost(ctx context.Context, p models.CommunityPost) (models.CommunityPost, error) {
	return through(ctx, a.n, func() (models.CommunityPost, error) { return a.next.CreatePost(ctx, p) })
}

func (a communityAPI) UpdatePost(ctx context.Context, p models.CommunityPost) (models.CommunityPost, error) {
	return through(ctx, a.n, func() (models.CommunityPost, error) { return a.next.UpdatePost(ctx, p) })
}

func (a communityAPI) FetchPosts(ctx context.Context) ([]models.CommunityPost, error) {
	return through(ctx, a.n, func() ([]models.CommunityPost, error) { return a.next.FetchPosts(ctx) })
}

func (a communityAPI) CreateEvent(ctx context.Context, e models.CommunityEvent) (models.CommunityEvent, error) {
	return through(ctx, a.n, func() (models.CommunityEvent, error) { return a.next.CreateEvent(ctx, e) })
}

func (a communityAPI) UpdateEvent(ctx context.Context, e models.CommunityEvent) (models.CommunityEvent, error) {
	return through(ctx, a.n, func() (models.CommunityEvent, error) { return a.next.UpdateEvent(ctx, e) })
}

func (a communityAPI) FetchEvents(ctx context.Context) ([]models.CommunityEvent, error) {
	return through(ctx, a.n, func() ([]models.CommunityEvent, error) { return a.next.FetchEvents(ctx) })
}

type commitAPI struct {
	n    *Network
	next store.CommitAPI
}

func (a commitAPI) Commit(ctx context.Context, changes models.ChangeSet) error {
	if err := a.n.Roundtrip(ctx); err != nil {
		return err
	}
	return a.next.Commit(ctx, changes)
}
