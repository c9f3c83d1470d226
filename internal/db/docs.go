package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rajivgeraev/flippy-core/internal/apperr"
)

// collectDocs читает строки с единственной колонкой doc (JSONB)
func collectDocs[T any](rows pgx.Rows) ([]T, error) {
	docs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (T, error) {
		var (
			raw []byte
			v   T
		)
		if err := row.Scan(&raw); err != nil {
			return v, err
		}
		err := json.Unmarshal(raw, &v)
		return v, err
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка при чтении документов: %w", err)
	}
	return docs, nil
}

// marshalDoc сериализует сущность для колонки doc
func marshalDoc(v any) ([]byte, error) {
	doc, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("ошибка при сериализации документа: %w", err)
	}
	return doc, nil
}

// execInsert выполняет вставку, превращая повтор ключа в конфликт
func (d *DB) execInsert(ctx context.Context, duplicate, sql string, args ...any) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if _, err := d.Pool.Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return apperr.Conflict(duplicate)
		}
		return err
	}
	return nil
}

// execUpdate выполняет изменение одной строки, отсутствие строки означает "не найдено"
func (d *DB) execUpdate(ctx context.Context, notFound, sql string, args ...any) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tag, err := d.Pool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(notFound)
	}
	return nil
}

// queryDocs выполняет выборку документов
func queryDocs[T any](ctx context.Context, d *DB, sql string, args ...any) ([]T, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := d.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return collectDocs[T](rows)
}
