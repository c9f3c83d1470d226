package store

import (
	"slices"
	"sort"

	"github.com/google/uuid"

	"github.com/rajivgeraev/flippy-core/internal/lifecycle"
	"github.com/rajivgeraev/flippy-core/internal/models"
	"github.com/rajivgeraev/flippy-core/internal/permissions"
)

// Селекторы только читают снимок и всегда возвращают копии.

// GetItemsByStatus возвращает объявления с указанным статусом
func (s *Store) GetItemsByStatus(status models.ItemStatus) []models.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.items.filter(func(i models.Item) bool { return i.Status == status })
}

// GetBoostedItems возвращает продвигаемые объявления
func (s *Store) GetBoostedItems() []models.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.items.filter(func(i models.Item) bool { return i.IsBoosted })
}

// GetItemsNeedingStatusUpdate возвращает объявления с истёкшим продвижением
// или сроком публикации. Сами понижения применяет ApplyStatusUpdates.
func (s *Store) GetItemsNeedingStatusUpdate() []lifecycle.StatusUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lifecycle.ItemsNeedingStatusUpdate(s.snap.items.values(), s.now())
}

// GetItem возвращает объявление по ID
func (s *Store) GetItem(id uuid.UUID) (models.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.items.get(id)
}

// GetUserItems возвращает объявления пользователя
func (s *Store) GetUserItems(userID uuid.UUID) []models.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.items.filter(func(i models.Item) bool { return i.OwnerID == userID })
}

// GetSavedItems возвращает избранные объявления текущего пользователя
func (s *Store) GetSavedItems() []models.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Item, 0, len(s.snap.saved))
	for _, id := range s.snap.saved {
		if item, ok := s.snap.items.get(id); ok {
			out = append(out, item)
		}
	}
	return out
}

// SwapRequests входящие и исходящие заявки пользователя
type SwapRequests struct {
	Incoming []models.SwapRequest `json:"incoming"`
	Outgoing []models.SwapRequest `json:"outgoing"`
}

// GetSwapRequests возвращает заявки текущего пользователя
func (s *Store) GetSwapRequests() SwapRequests {
	s.mu.Lock()
	defer s.mu.Unlock()
	me := s.snap.session.UserID
	var out SwapRequests
	for _, r := range s.snap.requests.values() {
		switch {
		case r.RecipientID == me:
			out.Incoming = append(out.Incoming, r)
		case r.RequesterID == me:
			out.Outgoing = append(out.Outgoing, r)
		}
	}
	return out
}

// GetSwapRequest возвращает заявку по ID
func (s *Store) GetSwapRequest(id uuid.UUID) (models.SwapRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.requests.get(id)
}

// GetConversation возвращает переписку по заявке
func (s *Store) GetConversation(requestID uuid.UUID) (models.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.snap.requests.get(requestID)
	if !ok {
		return models.Conversation{}, false
	}
	return s.conversationViewLocked(req), true
}

func (s *Store) conversationViewLocked(req models.SwapRequest) models.Conversation {
	msgs := copyMessages(s.snap.messages[req.ID])
	if msgs == nil {
		msgs = []models.ChatMessage{}
	}
	return models.Conversation{
		Request:  req,
		Meta:     s.snap.meta(req.ID),
		Messages: msgs,
	}
}

// GetConversations возвращает переписки текущего пользователя: сначала
// закреплённые, затем по времени последнего сообщения. Архивные
// возвращаются только при includeArchived.
func (s *Store) GetConversations(includeArchived bool) []models.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	me := s.snap.session.UserID
	var out []models.Conversation
	for _, req := range s.snap.requests.values() {
		if !req.Involves(me) {
			continue
		}
		c := s.conversationViewLocked(req)
		if c.Meta.Archived && !includeArchived {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Meta, out[j].Meta
		if a.Pinned != b.Pinned {
			return a.Pinned
		}
		switch {
		case a.LastMessageAt == nil:
			return false
		case b.LastMessageAt == nil:
			return true
		}
		return a.LastMessageAt.After(*b.LastMessageAt)
	})
	return out
}

// GetReviews возвращает одобренные отзывы о пользователе
func (s *Store) GetReviews(userID uuid.UUID) []models.Review {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.reviews.filter(func(r models.Review) bool {
		return r.RevieweeID == userID && r.Status == models.ReviewApproved
	})
}

// GetPendingReviews возвращает отзывы, ожидающие модерации
func (s *Store) GetPendingReviews() []models.Review {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.reviews.filter(func(r models.Review) bool { return r.Status == models.ReviewPending })
}

// GetPosts возвращает посты сообщества
func (s *Store) GetPosts() []models.CommunityPost {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.posts.values()
}

// GetEvents возвращает события сообщества
func (s *Store) GetEvents() []models.CommunityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.events.values()
}

// GetNotifications возвращает уведомления текущего пользователя, новые первыми
func (s *Store) GetNotifications() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Clone(s.snap.notifications)
	slices.Reverse(out)
	return out
}

// UnreadNotificationCount возвращает число непрочитанных уведомлений
func (s *Store) UnreadNotificationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, x := range s.snap.notifications {
		if !x.Read {
			n++
		}
	}
	return n
}

// CurrentUser возвращает текущего пользователя
func (s *Store) CurrentUser() (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.currentUser()
}

// GetUser возвращает пользователя по ID
func (s *Store) GetUser(id uuid.UUID) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.users.get(id)
}

// IsAuthenticated сообщает, открыта ли сессия
func (s *Store) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.session.Authenticated
}

// IsLoading сообщает, выполняется ли вход
func (s *Store) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.session.Loading
}

// Token возвращает токен текущей сессии
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.session.Token
}

// Permissions возвращает права текущего пользователя
func (s *Store) Permissions() []permissions.Permission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.perms.List()
}
