// Package apperr описывает таксономию ошибок прикладного уровня и их
// отображение на HTTP-статусы.
package apperr

import (
	"errors"
	"net/http"
)

// Kind — класс ошибки.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindAuth
	KindForbidden
)

// Error — ошибка с классом, машинным кодом и сообщением для клиента.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

// New создаёт новую ошибку.
func New(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func (e *Error) Error() string {
	return e.Message
}

// Is сравнивает ошибки по коду, поэтому копии с другим сообщением
// остаются равны исходной.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithMessage возвращает копию ошибки с другим сообщением.
func (e *Error) WithMessage(msg string) *Error {
	cp := *e
	cp.Message = msg
	return &cp
}

// KindOf возвращает класс ошибки; всё, что не *Error, считается внутренней ошибкой.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf возвращает машинный код ошибки или "internal".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal"
}

// HTTPStatus отображает класс ошибки на HTTP-статус.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation, KindConflict, KindAuth:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
