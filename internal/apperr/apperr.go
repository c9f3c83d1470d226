// Package apperr описывает типизированные ошибки ядра обменов.
//
// Каждая ошибка несёт машинно-проверяемый вид (Kind) и одно
// человекочитаемое сообщение для пользователя.
package apperr

import (
	"errors"
	"fmt"
)

// Kind машинно-проверяемый вид ошибки
type Kind string

const (
	// KindValidation некорректный ввод, ничего не применено
	KindValidation Kind = "validation"
	// KindAuthorization нет прав или пользователь не авторизован, ничего не применено
	KindAuthorization Kind = "authorization"
	// KindNotFound сущность не найдена, ничего не применено
	KindNotFound Kind = "not_found"
	// KindConflict сущность в неподходящем состоянии, ничего не применено
	KindConflict Kind = "conflict"
	// KindTransport внешний сервис отказал после оптимистичного изменения
	KindTransport Kind = "transport"
	// KindUnknown ошибка без вида
	KindUnknown Kind = "unknown"
)

// Error доменная ошибка с видом и сообщением
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error реализует интерфейс error
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap возвращает исходную причину
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is сравнивает ошибки по виду, чтобы работал errors.Is(err, apperr.ErrConflict)
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && (t.Message == "" || t.Message == e.Message)
}

// Шаблоны для errors.Is
var (
	ErrValidation    = &Error{Kind: KindValidation}
	ErrAuthorization = &Error{Kind: KindAuthorization}
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrConflict      = &Error{Kind: KindConflict}
	ErrTransport     = &Error{Kind: KindTransport}
)

// New создаёт ошибку заданного вида
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap создаёт ошибку заданного вида с причиной
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Validation создаёт ошибку валидации
func Validation(message string) *Error { return New(KindValidation, message) }

// Unauthorized создаёт ошибку авторизации
func Unauthorized(message string) *Error { return New(KindAuthorization, message) }

// NotFound создаёт ошибку "не найдено"
func NotFound(message string) *Error { return New(KindNotFound, message) }

// Conflict создаёт ошибку конфликта состояний
func Conflict(message string) *Error { return New(KindConflict, message) }

// Transport оборачивает отказ внешнего сервиса
func Transport(message string, cause error) *Error {
	return Wrap(KindTransport, message, cause)
}

// KindOf возвращает вид ошибки или KindUnknown
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// Message возвращает сообщение для пользователя
func Message(err error) string {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
