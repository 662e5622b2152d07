// Package apperr описывает виды прикладных ошибок, которые HTTP-слой
// превращает в коды ответа.
package apperr

import (
	"errors"
	"fmt"
)

// Kind вид прикладной ошибки.
type Kind int

const (
	// KindInternal непредвиденная ошибка.
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	// KindUpstream внешний сервис (платёжный провайдер, канал уведомлений) ответил ошибкой.
	KindUpstream
	// KindInvalidSignature подпись вебхука не прошла проверку.
	KindInvalidSignature
	// KindInvalidUpstreamResponse внешний провайдер вернул неполные данные.
	KindInvalidUpstreamResponse
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_failed"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUpstream:
		return "upstream_failure"
	case KindInvalidSignature:
		return "invalid_signature"
	case KindInvalidUpstreamResponse:
		return "invalid_upstream_response"
	default:
		return "internal"
	}
}

// Error прикладная ошибка. Message безопасно показывать клиенту,
// Fields содержит ошибки по полям, Err исходную причину для логов.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is сравнивает ошибки по виду, чтобы работали errors.Is(err, apperr.ErrNotFound).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// Сторожевые значения для errors.Is.
var (
	ErrValidation              = &Error{Kind: KindValidation}
	ErrUnauthorized            = &Error{Kind: KindUnauthorized}
	ErrForbidden               = &Error{Kind: KindForbidden}
	ErrNotFound                = &Error{Kind: KindNotFound}
	ErrConflict                = &Error{Kind: KindConflict}
	ErrUpstream                = &Error{Kind: KindUpstream}
	ErrInvalidSignature        = &Error{Kind: KindInvalidSignature}
	ErrInvalidUpstreamResponse = &Error{Kind: KindInvalidUpstreamResponse}
)

// New создаёт ошибку заданного вида.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap создаёт ошибку заданного вида поверх причины err.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Validation создаёт ошибку валидации с ошибками по полям.
func Validation(msg string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

// KindOf возвращает вид первой прикладной ошибки в цепочке, иначе KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As возвращает первую прикладную ошибку в цепочке.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
