// Package store содержит единственный изменяемый снимок состояния обменов
// и действия над ним.
//
// Каждое действие выполняется как двухфазная команда: под блокировкой
// проверяются предусловия и применяется оптимистичное изменение, затем без
// блокировки вызывается внешний сервис, и под блокировкой изменение
// подтверждается или откатывается. Синхронные фазы разных действий никогда
// не перемежаются, а их асинхронные хвосты могут завершаться в любом порядке.
package store

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/rajivgeraev/flippy-core/internal/apperr"
	"github.com/rajivgeraev/flippy-core/internal/lifecycle"
	"github.com/rajivgeraev/flippy-core/internal/models"
	"github.com/rajivgeraev/flippy-core/internal/permissions"
)

var tracer = otel.Tracer("github.com/rajivgeraev/flippy-core/internal/store")

var errOffline = apperr.New(apperr.KindTransport, "Сервис авторизации недоступен")

// Сообщения об ошибках предусловий
const (
	msgAuthRequired         = "Требуется авторизация"
	msgAccountBlocked       = "Аккаунт заблокирован или деактивирован"
	msgForbidden            = "Недостаточно прав для выполнения действия"
	msgItemNotFound         = "Объявление не найдено"
	msgSwapNotFound         = "Заявка не найдена"
	msgUserNotFound         = "Пользователь не найден"
	msgReviewNotFound       = "Отзыв не найден"
	msgPostNotFound         = "Пост не найден"
	msgEventNotFound        = "Событие не найдено"
	msgMessageNotFound      = "Сообщение не найдено"
	msgNotificationNotFound = "Уведомление не найдено"
)

// Config настройки поведения хранилища
type Config struct {
	// RequireModeration отправляет новые объявления и отзывы на модерацию
	RequireModeration bool
	// DeliveryDelay задержка перед отметкой сообщения как доставленного
	DeliveryDelay time.Duration
	// ReviewFlagLimit число жалоб, после которого отзыв скрывается
	ReviewFlagLimit int
}

// Options параметры создания хранилища
type Options struct {
	Config        Config
	Collaborators Collaborators
	// Now источник времени, по умолчанию time.Now
	Now func() time.Time
	// AfterFunc планирует отложенные действия, по умолчанию time.AfterFunc
	AfterFunc func(time.Duration, func())
	// NewID генератор идентификаторов, по умолчанию uuid.New
	NewID func() uuid.UUID
}

// Store владеет снимком состояния. Методы безопасны для одновременного вызова.
type Store struct {
	mu   sync.Mutex
	snap *snapshot

	api      Collaborators
	cfg      Config
	now      func() time.Time
	after    func(time.Duration, func())
	newID    func() uuid.UUID
	validate *validator.Validate
}

// New создаёт хранилище с пустым снимком
func New(opts Options) *Store {
	s := &Store{
		snap:     newSnapshot(),
		api:      opts.Collaborators.withDefaults(),
		cfg:      opts.Config,
		now:      opts.Now,
		after:    opts.AfterFunc,
		newID:    opts.NewID,
		validate: validator.New(),
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.after == nil {
		s.after = func(d time.Duration, f func()) { time.AfterFunc(d, f) }
	}
	if s.newID == nil {
		s.newID = uuid.New
	}
	if s.cfg.DeliveryDelay <= 0 {
		s.cfg.DeliveryDelay = lifecycle.DeliveryDelay
	}
	if s.cfg.ReviewFlagLimit <= 0 {
		s.cfg.ReviewFlagLimit = 3
	}
	return s
}

// LastError возвращает сообщение последней ошибки
func (s *Store) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.lastError
}

// ClearError сбрасывает последнюю ошибку
func (s *Store) ClearError() {
	s.mu.Lock()
	s.snap.lastError = ""
	s.mu.Unlock()
}

// checkInput проверяет структуру тегами validate
func (s *Store) checkInput(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return apperr.Wrap(apperr.KindValidation,
			fmt.Sprintf("Некорректное значение поля %s", fe.Field()), err)
	}
	return apperr.Wrap(apperr.KindValidation, "Некорректные данные", err)
}

// requireUser возвращает активного текущего пользователя
func requireUser(sn *snapshot) (models.User, error) {
	u, ok := sn.currentUser()
	if !ok {
		return models.User{}, apperr.Unauthorized(msgAuthRequired)
	}
	if !u.Active() {
		return models.User{}, apperr.Unauthorized(msgAccountBlocked)
	}
	return u, nil
}

// requirePermission проверяет наличие права у текущего пользователя
func requirePermission(sn *snapshot, p permissions.Permission) (models.User, error) {
	u, err := requireUser(sn)
	if err != nil {
		return u, err
	}
	if !sn.perms.Has(p) {
		return u, apperr.Unauthorized(msgForbidden)
	}
	return u, nil
}

// requireAction проверяет действие над ресурсом с учётом владения
func requireAction(sn *snapshot, action permissions.Action, res permissions.Resource) (models.User, error) {
	u, err := requireUser(sn)
	if err != nil {
		return u, err
	}
	if !sn.perms.CanPerform(u.ID, action, res) {
		return u, apperr.Unauthorized(msgForbidden)
	}
	return u, nil
}

func findItem(sn *snapshot, id uuid.UUID) (models.Item, error) {
	item, ok := sn.items.get(id)
	if !ok {
		return models.Item{}, apperr.NotFound(msgItemNotFound)
	}
	return item, nil
}

func findRequest(sn *snapshot, id uuid.UUID) (models.SwapRequest, error) {
	req, ok := sn.requests.get(id)
	if !ok {
		return models.SwapRequest{}, apperr.NotFound(msgSwapNotFound)
	}
	return req, nil
}

// setSession делает пользователя текущим и пересчитывает права
func setSession(sn *snapshot, user models.User, token string) {
	sn.users.put(user.ID, user)
	sn.session = session{UserID: user.ID, Token: token, Authenticated: true}
	sn.perms = permissions.Resolve(user.Role)
}

func clearSession(sn *snapshot) {
	sn.session = session{}
	sn.perms = permissions.Set{}
	sn.resetData()
}
