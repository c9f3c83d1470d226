// Package sessionstore сохраняет сессии пользователей в SQLite между перезапусками.
package sessionstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/rajivgeraev/flippy-core/internal/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store файл SQLite с сессиями
type Store struct {
	sqlDB *sql.DB
}

// Open открывает базу и применяет миграции
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("не указан путь к базе сессий")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close закрывает базу
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Load возвращает сохранённую сессию пользователя или nil
func (s *Store) Load(ctx context.Context, userID uuid.UUID) (*models.SessionSnapshot, error) {
	var doc string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT doc FROM sessions WHERE user_id = ?`, userID.String()).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var snap models.SessionSnapshot
	if err := json.Unmarshal([]byte(doc), &snap); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &snap, nil
}

// Save сохраняет сессию, заменяя предыдущую
func (s *Store) Save(ctx context.Context, snap models.SessionSnapshot) error {
	if snap.User.ID == uuid.Nil {
		return fmt.Errorf("сессия без пользователя")
	}
	if snap.SavedAt.IsZero() {
		snap.SavedAt = time.Now()
	}
	doc, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx, `
		INSERT INTO sessions (user_id, doc, saved_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET doc = excluded.doc, saved_at = excluded.saved_at
	`, snap.User.ID.String(), string(doc), snap.SavedAt.UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Delete удаляет сессию пользователя
func (s *Store) Delete(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID.String()); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Persister сессия одного пользователя. Реализует store.SessionPersister.
// Пользователь становится известен после первого сохранения, если не задан сразу.
type Persister struct {
	store  *Store
	mu     sync.Mutex
	userID uuid.UUID
}

// For возвращает хранитель сессии пользователя. uuid.Nil допустим до входа.
func (s *Store) For(userID uuid.UUID) *Persister {
	return &Persister{store: s, userID: userID}
}

func (p *Persister) user() uuid.UUID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.userID
}

// LoadSession загружает сессию
func (p *Persister) LoadSession(ctx context.Context) (*models.SessionSnapshot, error) {
	id := p.user()
	if id == uuid.Nil {
		return nil, nil
	}
	return p.store.Load(ctx, id)
}

// SaveSession сохраняет сессию
func (p *Persister) SaveSession(ctx context.Context, snap models.SessionSnapshot) error {
	p.mu.Lock()
	p.userID = snap.User.ID
	p.mu.Unlock()
	return p.store.Save(ctx, snap)
}

// ClearSession удаляет сессию
func (p *Persister) ClearSession(ctx context.Context) error {
	id := p.user()
	if id == uuid.Nil {
		return nil
	}
	return p.store.Delete(ctx, id)
}

// applyMigrations выполняет встроенные миграции не более одного раза
func applyMigrations(sqlDB *sql.DB) error {
	if _, err := sqlDB.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name       TEXT PRIMARY KEY,
			applied_at INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	files, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(files)

	for _, file := range files {
		var applied int
		if err := sqlDB.QueryRow(`SELECT COUNT(1) FROM schema_migrations WHERE name = ?`, file).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", file, err)
		}
		if applied > 0 {
			continue
		}
		content, err := migrationsFS.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}

		tx, err := sqlDB.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", file, err)
		}
		if _, err := tx.Exec(upSection(string(content))); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", file, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?)`,
			file, time.Now().UTC().UnixMilli()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}

// upSection возвращает SQL между "-- +migrate Up" и "-- +migrate Down"
func upSection(content string) string {
	if i := strings.Index(content, "-- +migrate Up"); i >= 0 {
		content = content[i+len("-- +migrate Up"):]
	}
	if i := strings.Index(content, "-- +migrate Down"); i >= 0 {
		content = content[:i]
	}
	return content
}
