// Package db реализует внешние сервисы хранилища поверх PostgreSQL.
package db

import (
	"context"
	_ "embed"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

// queryTimeout ограничение на один запрос к базе
const queryTimeout = 5 * time.Second

// DB пул соединений с базой данных
type DB struct {
	Pool *pgxpool.Pool
}

// Connect открывает пул соединений и проверяет его
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	log.Println("Подключение к базе данных...")

	// Создаем контекст с таймаутом для подключения
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("ошибка при разборе URL базы данных: %w", err)
	}
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("ошибка при создании пула соединений: %w", err)
	}
	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка при проверке соединения: %w", err)
	}

	log.Println("✅ Успешное подключение к базе данных")
	return &DB{Pool: pool}, nil
}

// Migrate создаёт недостающие таблицы
func (d *DB) Migrate(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	if _, err := d.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ошибка при применении схемы: %w", err)
	}
	return nil
}

// Close закрывает соединение с базой данных
func (d *DB) Close() {
	if d != nil && d.Pool != nil {
		d.Pool.Close()
	}
}

// withTimeout возвращает контекст с таймаутом для запросов к базе данных
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, queryTimeout)
}
