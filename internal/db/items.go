package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/rajivgeraev/flippy-core/internal/models"
)

// ItemRepo хранит объявления
type ItemRepo struct {
	db *DB
}

// NewItemRepo создаёт репозиторий объявлений
func NewItemRepo(db *DB) *ItemRepo {
	return &ItemRepo{db: db}
}

// CreateItem сохраняет новое объявление
func (r *ItemRepo) CreateItem(ctx context.Context, item models.Item) (models.Item, error) {
	doc, err := marshalDoc(item)
	if err != nil {
		return models.Item{}, err
	}
	err = r.db.execInsert(ctx, "Объявление уже существует", `
		INSERT INTO items (id, owner_id, status, doc, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, item.ID, item.OwnerID, string(item.Status), doc, item.UpdatedAt)
	if err != nil {
		return models.Item{}, fmt.Errorf("ошибка при создании объявления: %w", err)
	}
	return item, nil
}

// UpdateItem сохраняет изменённое объявление
func (r *ItemRepo) UpdateItem(ctx context.Context, item models.Item) (models.Item, error) {
	doc, err := marshalDoc(item)
	if err != nil {
		return models.Item{}, err
	}
	err = r.db.execUpdate(ctx, "Объявление не найдено", `
		UPDATE items SET owner_id = $2, status = $3, doc = $4, updated_at = $5
		WHERE id = $1
	`, item.ID, item.OwnerID, string(item.Status), doc, item.UpdatedAt)
	if err != nil {
		return models.Item{}, fmt.Errorf("ошибка при обновлении объявления: %w", err)
	}
	return item, nil
}

// FetchItems возвращает все объявления, новые первыми
func (r *ItemRepo) FetchItems(ctx context.Context) ([]models.Item, error) {
	return queryDocs[models.Item](ctx, r.db, `SELECT doc FROM items ORDER BY updated_at DESC`)
}

// SwapRepo хранит заявки на обмен
type SwapRepo struct {
	db *DB
}

// NewSwapRepo создаёт репозиторий заявок
func NewSwapRepo(db *DB) *SwapRepo {
	return &SwapRepo{db: db}
}

// CreateSwapRequest сохраняет новую заявку
func (r *SwapRepo) CreateSwapRequest(ctx context.Context, req models.SwapRequest) (models.SwapRequest, error) {
	doc, err := marshalDoc(req)
	if err != nil {
		return models.SwapRequest{}, err
	}
	err = r.db.execInsert(ctx, "Заявка уже существует", `
		INSERT INTO swap_requests (id, requester_id, recipient_id, status, doc, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, req.ID, req.RequesterID, req.RecipientID, string(req.Status), doc, req.UpdatedAt)
	if err != nil {
		return models.SwapRequest{}, fmt.Errorf("ошибка при создании заявки: %w", err)
	}
	return req, nil
}

// UpdateSwapRequest сохраняет изменённую заявку
func (r *SwapRepo) UpdateSwapRequest(ctx context.Context, req models.SwapRequest) (models.SwapRequest, error) {
	doc, err := marshalDoc(req)
	if err != nil {
		return models.SwapRequest{}, err
	}
	err = r.db.execUpdate(ctx, "Заявка не найдена", `
		UPDATE swap_requests SET status = $2, doc = $3, updated_at = $4
		WHERE id = $1
	`, req.ID, string(req.Status), doc, req.UpdatedAt)
	if err != nil {
		return models.SwapRequest{}, fmt.Errorf("ошибка при обновлении заявки: %w", err)
	}
	return req, nil
}

// FetchSwapRequests возвращает входящие и исходящие заявки пользователя
func (r *SwapRepo) FetchSwapRequests(ctx context.Context, userID uuid.UUID) ([]models.SwapRequest, error) {
	return queryDocs[models.SwapRequest](ctx, r.db, `
		SELECT doc FROM swap_requests
		WHERE requester_id = $1 OR recipient_id = $1
		ORDER BY updated_at DESC
	`, userID)
}
