package services

import (
	"errors"

	"github.com/thereayou/guildchat/internal/broadcast"
)

// Классы ошибок. Проверяются через errors.Is.
var (
	ErrValidation  = errors.New("validation error")
	ErrForbidden   = errors.New("forbidden")
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUpload      = errors.New("upload failed")
	ErrPersistence = errors.New("persistence failed")

	// Не возвращается вызывающему, только логируется
	ErrBroadcastDegraded = broadcast.ErrDegraded
)

// Error ошибка сервиса: класс, сообщение для клиента и исходная причина
type Error struct {
	Kind  error
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Msg + ": " + e.Cause.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

// Public сообщение, которое можно показать клиенту
func (e *Error) Public() string {
	return e.Msg
}

func newError(kind error, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

func validation(msg string) error { return newError(ErrValidation, msg, nil) }
func forbidden(msg string) error  { return newError(ErrForbidden, msg, nil) }
func notFound(msg string) error   { return newError(ErrNotFound, msg, nil) }
func conflict(msg string) error   { return newError(ErrConflict, msg, nil) }
