package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/crypto/bcrypt"

	"github.com/rajivgeraev/flippy-core/internal/apperr"
	"github.com/rajivgeraev/flippy-core/internal/models"
)

const uniqueViolation = "23505"

// TelegramProfile представляет данные пользователя из Telegram
type TelegramProfile struct {
	TelegramID   int64
	ChatID       int64
	Username     string
	FirstName    string
	LastName     string
	PhotoURL     string
	IsPremium    bool
	LanguageCode string
	RawData      []byte // JSONB данные
}

// UserRepo хранит пользователей, их входы и историю изменений
type UserRepo struct {
	db  *DB
	now func() time.Time
}

// NewUserRepo создаёт репозиторий пользователей
func NewUserRepo(db *DB) *UserRepo {
	return &UserRepo{db: db, now: time.Now}
}

// Create регистрирует пользователя с паролем
func (r *UserRepo) Create(ctx context.Context, reg models.Registration) (models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("ошибка при хешировании пароля: %w", err)
	}

	now := r.now()
	user := models.User{
		ID:        uuid.New(),
		Email:     strings.ToLower(strings.TrimSpace(reg.Email)),
		Username:  reg.Username,
		FirstName: reg.FirstName,
		LastName:  reg.LastName,
		Role:      models.RoleUser,
		Security:  models.UserSecurity{AccountStatus: models.AccountActive},
		CreatedAt: now,
		UpdatedAt: now,
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("ошибка при начале транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertUser(ctx, tx, user, string(hash)); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return models.User{}, apperr.Conflict("Пользователь с таким email уже существует")
		}
		return models.User{}, fmt.Errorf("ошибка при создании пользователя: %w", err)
	}
	if err := addToUserHistory(ctx, tx, user.ID, "users", user.ID, user); err != nil {
		return models.User{}, err
	}
	if err := addSession(ctx, tx, user.ID, "password"); err != nil {
		return models.User{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.User{}, fmt.Errorf("ошибка при фиксации транзакции: %w", err)
	}
	return user, nil
}

// Authenticate проверяет email и пароль
func (r *UserRepo) Authenticate(ctx context.Context, email, password string) (models.User, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var (
		raw  []byte
		hash pgtype.Text
	)
	err := r.db.Pool.QueryRow(ctx, `
		SELECT doc, password_hash FROM users WHERE email = $1
	`, strings.ToLower(strings.TrimSpace(email))).Scan(&raw, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, apperr.Unauthorized("Неверный email или пароль")
	}
	if err != nil {
		return models.User{}, fmt.Errorf("ошибка при поиске пользователя: %w", err)
	}
	if !hash.Valid || bcrypt.CompareHashAndPassword([]byte(hash.String), []byte(password)) != nil {
		return models.User{}, apperr.Unauthorized("Неверный email или пароль")
	}

	var user models.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return models.User{}, fmt.Errorf("ошибка при чтении пользователя: %w", err)
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("ошибка при начале транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err = tx.Exec(ctx, `UPDATE users SET last_login_at = CURRENT_TIMESTAMP WHERE id = $1`, user.ID); err != nil {
		return models.User{}, fmt.Errorf("ошибка при обновлении времени входа пользователя: %w", err)
	}
	if err := addSession(ctx, tx, user.ID, "password"); err != nil {
		return models.User{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return models.User{}, fmt.Errorf("ошибка при фиксации транзакции: %w", err)
	}
	return user, nil
}

// UpsertTelegramUser создает нового пользователя через Telegram или обновляет существующего
func (r *UserRepo) UpsertTelegramUser(ctx context.Context, p TelegramProfile) (models.User, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("ошибка при начале транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	var telegramUserID, userID uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT id, user_id FROM telegram_users WHERE telegram_id = $1
	`, p.TelegramID).Scan(&telegramUserID, &userID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, fmt.Errorf("ошибка при проверке существования пользователя Telegram: %w", err)
	}

	var user models.User
	if errors.Is(err, pgx.ErrNoRows) {
		now := r.now()
		user = models.User{
			ID:         uuid.New(),
			Username:   p.Username,
			FirstName:  p.FirstName,
			LastName:   p.LastName,
			AvatarURL:  p.PhotoURL,
			TelegramID: p.TelegramID,
			Role:       models.RoleUser,
			Security:   models.UserSecurity{AccountStatus: models.AccountActive},
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := insertUser(ctx, tx, user, ""); err != nil {
			return models.User{}, fmt.Errorf("ошибка при создании пользователя: %w", err)
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO telegram_users (user_id, telegram_id, chat_id, username, first_name, last_name, photo_url, is_premium, language_code, raw_data)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id
		`, user.ID, p.TelegramID, nullableInt(p.ChatID), p.Username, p.FirstName, p.LastName,
			p.PhotoURL, p.IsPremium, p.LanguageCode, rawJSON(p.RawData)).Scan(&telegramUserID)
		if err != nil {
			return models.User{}, fmt.Errorf("ошибка при создании Telegram пользователя: %w", err)
		}

		if err = addToUserHistory(ctx, tx, user.ID, "users", user.ID, user); err != nil {
			return models.User{}, err
		}
		if err = addToUserHistory(ctx, tx, user.ID, "telegram_users", telegramUserID, p); err != nil {
			return models.User{}, err
		}
	} else {
		if user, err = getUser(ctx, tx, userID); err != nil {
			return models.User{}, fmt.Errorf("ошибка при получении пользователя: %w", err)
		}
		if _, err = tx.Exec(ctx, `UPDATE users SET last_login_at = CURRENT_TIMESTAMP WHERE id = $1`, userID); err != nil {
			return models.User{}, fmt.Errorf("ошибка при обновлении времени входа пользователя: %w", err)
		}

		// Получаем текущие данные пользователя для сравнения
		var current struct {
			Username     pgtype.Text
			FirstName    pgtype.Text
			LastName     pgtype.Text
			PhotoURL     pgtype.Text
			IsPremium    bool
			LanguageCode pgtype.Text
		}
		err = tx.QueryRow(ctx, `
			SELECT username, first_name, last_name, photo_url, is_premium, language_code
			FROM telegram_users
			WHERE id = $1
		`, telegramUserID).Scan(
			&current.Username,
			&current.FirstName,
			&current.LastName,
			&current.PhotoURL,
			&current.IsPremium,
			&current.LanguageCode,
		)
		if err != nil {
			return models.User{}, fmt.Errorf("ошибка при получении текущих данных Telegram пользователя: %w", err)
		}

		hasChanges := p.Username != current.Username.String ||
			p.FirstName != current.FirstName.String ||
			p.LastName != current.LastName.String ||
			p.PhotoURL != current.PhotoURL.String ||
			p.IsPremium != current.IsPremium ||
			p.LanguageCode != current.LanguageCode.String

		_, err = tx.Exec(ctx, `
			UPDATE telegram_users
			SET username = $1, first_name = $2, last_name = $3, photo_url = $4,
				is_premium = $5, language_code = $6, raw_data = $7,
				chat_id = COALESCE($8, chat_id), updated_at = CURRENT_TIMESTAMP
			WHERE id = $9
		`, p.Username, p.FirstName, p.LastName, p.PhotoURL, p.IsPremium, p.LanguageCode,
			rawJSON(p.RawData), nullableInt(p.ChatID), telegramUserID)
		if err != nil {
			return models.User{}, fmt.Errorf("ошибка при обновлении Telegram пользователя: %w", err)
		}

		// Добавляем запись в историю только если были изменения
		if hasChanges {
			if err = addToUserHistory(ctx, tx, userID, "telegram_users", telegramUserID, p); err != nil {
				return models.User{}, err
			}
		}
	}

	if err = addSession(ctx, tx, user.ID, "telegram"); err != nil {
		return models.User{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return models.User{}, fmt.Errorf("ошибка при фиксации транзакции: %w", err)
	}
	return user, nil
}

// Update сохраняет изменённого пользователя
func (r *UserRepo) Update(ctx context.Context, user models.User) (models.User, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	doc, err := json.Marshal(user)
	if err != nil {
		return models.User{}, fmt.Errorf("ошибка при сериализации пользователя: %w", err)
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("ошибка при начале транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE users SET doc = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2
	`, doc, user.ID)
	if err != nil {
		return models.User{}, fmt.Errorf("ошибка при обновлении пользователя: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.User{}, apperr.NotFound("Пользователь не найден")
	}
	if err := addToUserHistory(ctx, tx, user.ID, "users", user.ID, user); err != nil {
		return models.User{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return models.User{}, fmt.Errorf("ошибка при фиксации транзакции: %w", err)
	}
	return user, nil
}

// List возвращает всех пользователей
func (r *UserRepo) List(ctx context.Context) ([]models.User, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, `SELECT doc FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении пользователей: %w", err)
	}
	return collectDocs[models.User](rows)
}

// ChatID возвращает чат Telegram пользователя. ok=false, если бот ему не писал.
func (r *UserRepo) ChatID(ctx context.Context, userID uuid.UUID) (int64, bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var chatID pgtype.Int8
	err := r.db.Pool.QueryRow(ctx, `
		SELECT chat_id FROM telegram_users WHERE user_id = $1
	`, userID).Scan(&chatID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("ошибка при получении чата Telegram: %w", err)
	}
	return chatID.Int64, chatID.Valid, nil
}

func insertUser(ctx context.Context, tx pgx.Tx, user models.User, passwordHash string) error {
	doc, err := json.Marshal(user)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, doc, created_at, updated_at, last_login_at)
		VALUES ($1, $2, $3, $4, $5, $5, CURRENT_TIMESTAMP)
	`, user.ID, nullableText(user.Email), nullableText(passwordHash), doc, user.CreatedAt)
	return err
}

// getUser получает пользователя по ID внутри транзакции
func getUser(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (models.User, error) {
	var (
		raw  []byte
		user models.User
	)
	if err := tx.QueryRow(ctx, `SELECT doc FROM users WHERE id = $1`, userID).Scan(&raw); err != nil {
		return user, err
	}
	err := json.Unmarshal(raw, &user)
	return user, err
}

func addSession(ctx context.Context, tx pgx.Tx, userID uuid.UUID, method string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO user_sessions (user_id, method, login_time)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
	`, userID, method)
	if err != nil {
		return fmt.Errorf("ошибка при создании сессии пользователя: %w", err)
	}
	return nil
}

// addToUserHistory добавляет запись в историю изменений пользователя
func addToUserHistory(ctx context.Context, tx pgx.Tx, userID uuid.UUID, tableName string, referenceID uuid.UUID, snapshot any) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("ошибка при сериализации данных: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO user_history (user_id, reference_table, reference_id, data)
		VALUES ($1, $2, $3, $4)
	`, userID, tableName, referenceID, data)
	if err != nil {
		return fmt.Errorf("ошибка при добавлении записи в историю: %w", err)
	}
	return nil
}

func nullableText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func nullableInt(v int64) pgtype.Int8 {
	return pgtype.Int8{Int64: v, Valid: v != 0}
}

func rawJSON(raw []byte) []byte {
	if len(raw) == 0 {
		return []byte("{}")
	}
	return raw
}
