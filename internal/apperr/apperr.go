// Package apperr описывает классы ошибок, по которым принимаются решения об откате
// и о том, показывать ли ошибку пользователю.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	// KindNetwork — удалённый вызов упал: таймаут, обрыв соединения, не-2xx ответ.
	KindNetwork Kind = "network_failure"
	// KindEmptyResponse — create ответил успешно, но без пригодной сущности.
	KindEmptyResponse Kind = "empty_response"
	// KindPrecondition — проверка до каких-либо изменений (например, нет store id).
	KindPrecondition Kind = "validation_precondition"
	// KindInconclusive — провайдер платежей не дал ответа (PENDING или ошибка).
	KindInconclusive Kind = "provider_inconclusive"
)

// Error — ошибка с классом. Op и Resource нужны только для логов.
type Error struct {
	Kind     Kind
	Op       string
	Resource string
	Status   int // HTTP-статус, если он был
	Err      error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Resource != "" {
		msg += " (" + e.Resource + ")"
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(" status=%d", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is позволяет сравнивать с шаблонами вида &Error{Kind: KindNetwork}.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

func Network(op, resource string, status int, err error) *Error {
	return &Error{Kind: KindNetwork, Op: op, Resource: resource, Status: status, Err: err}
}

func EmptyResponse(op, resource string) *Error {
	return &Error{Kind: KindEmptyResponse, Op: op, Resource: resource}
}

func Precondition(op, msg string) *Error {
	return &Error{Kind: KindPrecondition, Op: op, Err: errors.New(msg)}
}

func Inconclusive(op string, err error) *Error {
	return &Error{Kind: KindInconclusive, Op: op, Err: err}
}

// KindOf возвращает класс ошибки. Неизвестные ошибки считаются сетевыми:
// для отката это одно и то же.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindNetwork
}

func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// Rollbackable — true для ошибок, после которых коллекция восстанавливается из снимка.
func Rollbackable(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindEmptyResponse:
		return true
	default:
		return false
	}
}
