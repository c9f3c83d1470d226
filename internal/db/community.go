package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/rajivgeraev/flippy-core/internal/models"
)

// ReviewRepo хранит отзывы
type ReviewRepo struct {
	db *DB
}

// NewReviewRepo создаёт репозиторий отзывов
func NewReviewRepo(db *DB) *ReviewRepo {
	return &ReviewRepo{db: db}
}

// CreateReview сохраняет новый отзыв
func (r *ReviewRepo) CreateReview(ctx context.Context, review models.Review) (models.Review, error) {
	if err := r.db.insertDoc(ctx, "reviews", "Отзыв уже существует", review.ID, review); err != nil {
		return models.Review{}, fmt.Errorf("ошибка при создании отзыва: %w", err)
	}
	return review, nil
}

// UpdateReview сохраняет изменённый отзыв
func (r *ReviewRepo) UpdateReview(ctx context.Context, review models.Review) (models.Review, error) {
	if err := r.db.updateDoc(ctx, "reviews", "Отзыв не найден", review.ID, review); err != nil {
		return models.Review{}, fmt.Errorf("ошибка при обновлении отзыва: %w", err)
	}
	return review, nil
}

// FetchReviews возвращает все отзывы
func (r *ReviewRepo) FetchReviews(ctx context.Context) ([]models.Review, error) {
	return queryDocs[models.Review](ctx, r.db, `SELECT doc FROM reviews ORDER BY updated_at DESC`)
}

// CommunityRepo хранит посты и события сообщества
type CommunityRepo struct {
	db *DB
}

// NewCommunityRepo создаёт репозиторий сообщества
func NewCommunityRepo(db *DB) *CommunityRepo {
	return &CommunityRepo{db: db}
}

// CreatePost сохраняет новый пост
func (r *CommunityRepo) CreatePost(ctx context.Context, post models.CommunityPost) (models.CommunityPost, error) {
	if err := r.db.insertDoc(ctx, "community_posts", "Пост уже существует", post.ID, post); err != nil {
		return models.CommunityPost{}, fmt.Errorf("ошибка при создании поста: %w", err)
	}
	return post, nil
}

// UpdatePost сохраняет изменённый пост
func (r *CommunityRepo) UpdatePost(ctx context.Context, post models.CommunityPost) (models.CommunityPost, error) {
	if err := r.db.updateDoc(ctx, "community_posts", "Пост не найден", post.ID, post); err != nil {
		return models.CommunityPost{}, fmt.Errorf("ошибка при обновлении поста: %w", err)
	}
	return post, nil
}

// FetchPosts возвращает ленту постов
func (r *CommunityRepo) FetchPosts(ctx context.Context) ([]models.CommunityPost, error) {
	return queryDocs[models.CommunityPost](ctx, r.db, `SELECT doc FROM community_posts ORDER BY updated_at DESC`)
}

// CreateEvent сохраняет новое событие
func (r *CommunityRepo) CreateEvent(ctx context.Context, event models.CommunityEvent) (models.CommunityEvent, error) {
	if err := r.db.insertDoc(ctx, "community_events", "Событие уже существует", event.ID, event); err != nil {
		return models.CommunityEvent{}, fmt.Errorf("ошибка при создании события: %w", err)
	}
	return event, nil
}

// UpdateEvent сохраняет изменённое событие
func (r *CommunityRepo) UpdateEvent(ctx context.Context, event models.CommunityEvent) (models.CommunityEvent, error) {
	if err := r.db.updateDoc(ctx, "community_events", "Событие не найдено", event.ID, event); err != nil {
		return models.CommunityEvent{}, fmt.Errorf("ошибка при обновлении события: %w", err)
	}
	return event, nil
}

// FetchEvents возвращает события по дате начала
func (r *CommunityRepo) FetchEvents(ctx context.Context) ([]models.CommunityEvent, error) {
	return queryDocs[models.CommunityEvent](ctx, r.db, `
		SELECT doc FROM community_events ORDER BY doc->>'starts_at'
	`)
}

// insertDoc вставляет документ в таблицу вида (id, doc, updated_at)
func (d *DB) insertDoc(ctx context.Context, table, duplicate string, id uuid.UUID, v any) error {
	doc, err := marshalDoc(v)
	if err != nil {
		return err
	}
	return d.execInsert(ctx, duplicate,
		fmt.Sprintf(`INSERT INTO %s (id, doc) VALUES ($1, $2)`, table), id, doc)
}

// updateDoc заменяет документ в таблице вида (id, doc, updated_at)
func (d *DB) updateDoc(ctx context.Context, table, notFound string, id uuid.UUID, v any) error {
	doc, err := marshalDoc(v)
	if err != nil {
		return err
	}
	return d.execUpdate(ctx, notFound,
		fmt.Sprintf(`UPDATE %s SET doc = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`, table), id, doc)
}
