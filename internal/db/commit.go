package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rajivgeraev/flippy-core/internal/apperr"
	"github.com/rajivgeraev/flippy-core/internal/models"
)

// CommitRepo применяет изменения одного действия в одной транзакции
type CommitRepo struct {
	db *DB
}

// NewCommitRepo создаёт репозиторий пакетных изменений
func NewCommitRepo(db *DB) *CommitRepo {
	return &CommitRepo{db: db}
}

// Commit записывает все сущности пакета или ни одной
func (r *CommitRepo) Commit(ctx context.Context, changes models.ChangeSet) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка при начале транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, req := range changes.Requests {
		doc, err := marshalDoc(req)
		if err != nil {
			return err
		}
		if err := txUpdate(ctx, tx, "Заявка не найдена", `
			UPDATE swap_requests SET status = $2, doc = $3, updated_at = $4
			WHERE id = $1
		`, req.ID, string(req.Status), doc, req.UpdatedAt); err != nil {
			return fmt.Errorf("ошибка при обновлении заявки: %w", err)
		}
	}
	for _, item := range changes.Items {
		doc, err := marshalDoc(item)
		if err != nil {
			return err
		}
		if err := txUpdate(ctx, tx, "Объявление не найдено", `
			UPDATE items SET owner_id = $2, status = $3, doc = $4, updated_at = $5
			WHERE id = $1
		`, item.ID, item.OwnerID, string(item.Status), doc, item.UpdatedAt); err != nil {
			return fmt.Errorf("ошибка при обновлении объявления: %w", err)
		}
	}
	for _, user := range changes.Users {
		doc, err := marshalDoc(user)
		if err != nil {
			return err
		}
		if err := txUpdate(ctx, tx, "Пользователь не найден", `
			UPDATE users SET doc = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2
		`, doc, user.ID); err != nil {
			return fmt.Errorf("ошибка при обновлении пользователя: %w", err)
		}
		if err := addToUserHistory(ctx, tx, user.ID, "users", user.ID, user); err != nil {
			return err
		}
	}
	for _, event := range changes.Events {
		doc, err := marshalDoc(event)
		if err != nil {
			return err
		}
		if err := txUpdate(ctx, tx, "Событие не найдено", `
			UPDATE community_events SET doc = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1
		`, event.ID, doc); err != nil {
			return fmt.Errorf("ошибка при обновлении события: %w", err)
		}
	}
	for _, req := range changes.NewRequests {
		doc, err := marshalDoc(req)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO swap_requests (id, requester_id, recipient_id, status, doc, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, req.ID, req.RequesterID, req.RecipientID, string(req.Status), doc, req.UpdatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return apperr.Conflict("Заявка уже существует")
			}
			return fmt.Errorf("ошибка при создании заявки: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("ошибка при фиксации транзакции: %w", err)
	}
	return nil
}

// txUpdate изменяет одну строку внутри транзакции
func txUpdate(ctx context.Context, tx pgx.Tx, notFound, sql string, args ...any) error {
	tag, err := tx.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(notFound)
	}
	return nil
}
