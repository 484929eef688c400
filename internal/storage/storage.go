// Package storage описывает общие ошибки и фильтры драйверов хранения
// пропусков и пользователей.
package storage

import (
	"errors"

	"github.com/magabrotheeeer/campus-pass/internal/models"
)

var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("record not found")
	// ErrPendingExists — у пользователя уже есть ожидающий пропуск.
	ErrPendingExists = errors.New("user already has a pending pass")
	// ErrEmailTaken — e-mail уже зарегистрирован.
	ErrEmailTaken = errors.New("email already registered")
	// ErrDuplicateID — запись с таким идентификатором уже существует.
	ErrDuplicateID = errors.New("duplicate id")
)

// PassFilter ограничивает выборку пропусков. Пустые поля не фильтруют.
type PassFilter struct {
	UserID string
	Status models.PassStatus
}

// Match сообщает, подходит ли пропуск под фильтр.
func (f PassFilter) Match(p models.Pass) bool {
	if f.UserID != "" && p.UserID != f.UserID {
		return false
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	return true
}

// ClonePass возвращает копию пропуска, не разделяющую указатели с исходником.
func ClonePass(p models.Pass) models.Pass {
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		p.CompletedAt = &t
	}
	return p
}
