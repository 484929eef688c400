// Package memory — хранилище пропусков и пользователей в памяти процесса.
// Используется в тестах и для запуска без диска.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/magabrotheeeer/campus-pass/internal/models"
	"github.com/magabrotheeeer/campus-pass/internal/storage"
)

type Storage struct {
	mu     sync.RWMutex
	passes map[string]models.Pass
	users  map[string]models.User
}

func New() *Storage {
	return &Storage{
		passes: make(map[string]models.Pass),
		users:  make(map[string]models.User),
	}
}

func (s *Storage) CreatePass(ctx context.Context, p models.Pass) error {
	const op = "storage.memory.CreatePass"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.passes[p.ID]; ok {
		return fmt.Errorf("%s: %w", op, storage.ErrDuplicateID)
	}
	if p.IsPending() {
		for _, other := range s.passes {
			if other.UserID == p.UserID && other.IsPending() {
				return fmt.Errorf("%s: %w", op, storage.ErrPendingExists)
			}
		}
	}
	s.passes[p.ID] = storage.ClonePass(p)
	return nil
}

func (s *Storage) GetPass(ctx context.Context, id string) (models.Pass, error) {
	const op = "storage.memory.GetPass"
	if err := ctx.Err(); err != nil {
		return models.Pass{}, fmt.Errorf("%s: %w", op, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.passes[id]
	if !ok {
		return models.Pass{}, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return storage.ClonePass(p), nil
}

func (s *Storage) UpdatePass(ctx context.Context, p models.Pass) error {
	const op = "storage.memory.UpdatePass"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.passes[p.ID]; !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	s.passes[p.ID] = storage.ClonePass(p)
	return nil
}

func (s *Storage) DeletePass(ctx context.Context, id string) error {
	const op = "storage.memory.DeletePass"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.passes[id]; !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	delete(s.passes, id)
	return nil
}

func (s *Storage) ListPasses(ctx context.Context, filter storage.PassFilter) ([]models.Pass, error) {
	const op = "storage.memory.ListPasses"
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]models.Pass, 0, len(s.passes))
	for _, p := range s.passes {
		if filter.Match(p) {
			res = append(res, storage.ClonePass(p))
		}
	}
	return res, nil
}

func (s *Storage) CreateUser(ctx context.Context, u models.User) error {
	const op = "storage.memory.CreateUser"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.ID]; ok {
		return fmt.Errorf("%s: %w", op, storage.ErrDuplicateID)
	}
	for _, other := range s.users {
		if strings.EqualFold(other.Email, u.Email) {
			return fmt.Errorf("%s: %w", op, storage.ErrEmailTaken)
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s *Storage) GetUser(ctx context.Context, id string) (models.User, error) {
	const op = "storage.memory.GetUser"
	if err := ctx.Err(); err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return u, nil
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	const op = "storage.memory.GetUserByEmail"
	if err := ctx.Err(); err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
}
