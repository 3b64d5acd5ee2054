// Package optimistic применяет изменения к локальной коллекции до ответа сервера
// и откатывает их к снимку, если удалённый вызов не удался.
package optimistic

import (
	"strings"

	"github.com/oklog/ulid/v2"
)

// TempPrefix — префикс локальных id у ещё не подтверждённых сервером сущностей.
const TempPrefix = "temp-"

// Entity — всё, что хранится в коллекции. Реализуют типы-значения (не указатели).
type Entity interface {
	EntityID() string
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
)

// Item — элемент коллекции: либо ожидающий ответа сервера (LocalID), либо подтверждённый.
type Item[T Entity] struct {
	Status  Status
	LocalID string
	Entity  T
}

func Pending[T Entity](localID string, e T) Item[T] {
	return Item[T]{Status: StatusPending, LocalID: localID, Entity: e}
}

func Confirmed[T Entity](e T) Item[T] {
	return Item[T]{Status: StatusConfirmed, Entity: e}
}

func (it Item[T]) ID() string {
	if it.Status == StatusPending {
		return it.LocalID
	}
	return it.Entity.EntityID()
}

func (it Item[T]) IsPending() bool { return it.Status == StatusPending }

// NewTempID — temp-<ULID>; ULID начинается с метки времени в мс.
func NewTempID() string {
	return TempPrefix + ulid.Make().String()
}

func IsTempID(id string) bool { return strings.HasPrefix(id, TempPrefix) }
