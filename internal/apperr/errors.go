package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind: машинно-проверяемый тип ошибки, уходит клиенту в поле "kind".
type Kind string

const (
	KindValidation   Kind = "validation"
	KindPrecondition Kind = "precondition_failed"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindStorage      Kind = "storage"
)

// ErrRecordNotFound возвращают хранилища; сервисы переводят его в NotFound
// или PreconditionFailed в зависимости от операции.
var ErrRecordNotFound = errors.New("record not found")

// ErrDuplicate: запись нарушает уникальный индекс.
var ErrDuplicate = errors.New("duplicate record")

type Error struct {
	Kind    Kind
	Message string
	Fields  []string
	// Details: описания проблем документа, когда их не свести к имени поля.
	Details []string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if len(e.Fields) > 0 {
		msg += ": " + strings.Join(e.Fields, ", ")
	}
	if len(e.Details) > 0 {
		msg += ": " + strings.Join(e.Details, "; ")
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(msg string, fields ...string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

// Invalid: ошибка валидации с описаниями проблем вместо имён полей.
func Invalid(msg string, details ...string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Details: details}
}

func Precondition(msg string) *Error {
	return &Error{Kind: KindPrecondition, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

// Storage скрывает причину от клиента: наружу уходит только msg.
func Storage(err error, msg string) *Error {
	return &Error{Kind: KindStorage, Message: msg, Err: err}
}

// Wrap оставляет уже типизированную ошибку как есть, остальное считает
// ошибкой хранилища.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}
	return Storage(err, msg)
}

func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindStorage
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindPrecondition:
		return http.StatusPreconditionFailed
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Fields собирает отсутствующие обязательные поля до любых побочных эффектов.
type Fields struct {
	missing []string
}

func (f *Fields) Require(name string, present bool) {
	if !present {
		f.missing = append(f.missing, name)
	}
}

func (f *Fields) Err() error {
	if len(f.missing) == 0 {
		return nil
	}
	return Validation("missing required fields", f.missing...)
}
