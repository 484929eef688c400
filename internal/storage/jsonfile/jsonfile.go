// Package jsonfile хранит пропуска и пользователей в плоских JSON-файлах
// passes.json и users.json. Каждая коллекция читается и переписывается
// целиком под своим мьютексом; запись идёт через временный файл и rename.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/magabrotheeeer/campus-pass/internal/models"
	"github.com/magabrotheeeer/campus-pass/internal/storage"
)

const (
	passesFile = "passes.json"
	usersFile  = "users.json"
)

type collection struct {
	mu   sync.Mutex
	path string
}

type Storage struct {
	passes collection
	users  collection
}

// New открывает каталог dir, создавая его и пустые коллекции при необходимости.
func New(dir string) (*Storage, error) {
	const op = "storage.jsonfile.New"

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s := &Storage{
		passes: collection{path: filepath.Join(dir, passesFile)},
		users:  collection{path: filepath.Join(dir, usersFile)},
	}
	for _, c := range []*collection{&s.passes, &s.users} {
		if err := ensureFile(c.path); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	return s, nil
}

func ensureFile(path string) error {
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return writeAtomic(path, []byte("[]"))
}

func readAll[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return []T{}, nil
	}
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return []T{}, nil
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func writeAll[T any](path string, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(path, data)
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err = os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

func (s *Storage) CreatePass(ctx context.Context, p models.Pass) error {
	const op = "storage.jsonfile.CreatePass"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.passes.mu.Lock()
	defer s.passes.mu.Unlock()

	passes, err := readAll[models.Pass](s.passes.path)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	for _, other := range passes {
		if other.ID == p.ID {
			return fmt.Errorf("%s: %w", op, storage.ErrDuplicateID)
		}
		if p.IsPending() && other.UserID == p.UserID && other.IsPending() {
			return fmt.Errorf("%s: %w", op, storage.ErrPendingExists)
		}
	}
	if err = writeAll(s.passes.path, append(passes, p)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) GetPass(ctx context.Context, id string) (models.Pass, error) {
	const op = "storage.jsonfile.GetPass"
	if err := ctx.Err(); err != nil {
		return models.Pass{}, fmt.Errorf("%s: %w", op, err)
	}
	s.passes.mu.Lock()
	defer s.passes.mu.Unlock()

	passes, err := readAll[models.Pass](s.passes.path)
	if err != nil {
		return models.Pass{}, fmt.Errorf("%s: %w", op, err)
	}
	for _, p := range passes {
		if p.ID == id {
			return p, nil
		}
	}
	return models.Pass{}, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
}

func (s *Storage) UpdatePass(ctx context.Context, p models.Pass) error {
	const op = "storage.jsonfile.UpdatePass"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.passes.mu.Lock()
	defer s.passes.mu.Unlock()

	passes, err := readAll[models.Pass](s.passes.path)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	for i := range passes {
		if passes[i].ID == p.ID {
			passes[i] = p
			if err = writeAll(s.passes.path, passes); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
			return nil
		}
	}
	return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
}

func (s *Storage) DeletePass(ctx context.Context, id string) error {
	const op = "storage.jsonfile.DeletePass"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.passes.mu.Lock()
	defer s.passes.mu.Unlock()

	passes, err := readAll[models.Pass](s.passes.path)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	for i := range passes {
		if passes[i].ID == id {
			passes = append(passes[:i], passes[i+1:]...)
			if err = writeAll(s.passes.path, passes); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
			return nil
		}
	}
	return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
}

func (s *Storage) ListPasses(ctx context.Context, filter storage.PassFilter) ([]models.Pass, error) {
	const op = "storage.jsonfile.ListPasses"
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.passes.mu.Lock()
	defer s.passes.mu.Unlock()

	passes, err := readAll[models.Pass](s.passes.path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	res := make([]models.Pass, 0, len(passes))
	for _, p := range passes {
		if filter.Match(p) {
			res = append(res, p)
		}
	}
	return res, nil
}

func (s *Storage) CreateUser(ctx context.Context, u models.User) error {
	const op = "storage.jsonfile.CreateUser"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.users.mu.Lock()
	defer s.users.mu.Unlock()

	users, err := readAll[models.User](s.users.path)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	for _, other := range users {
		if other.ID == u.ID {
			return fmt.Errorf("%s: %w", op, storage.ErrDuplicateID)
		}
		if strings.EqualFold(other.Email, u.Email) {
			return fmt.Errorf("%s: %w", op, storage.ErrEmailTaken)
		}
	}
	if err = writeAll(s.users.path, append(users, u)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) GetUser(ctx context.Context, id string) (models.User, error) {
	const op = "storage.jsonfile.GetUser"
	return s.findUser(ctx, op, func(u models.User) bool { return u.ID == id })
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	const op = "storage.jsonfile.GetUserByEmail"
	return s.findUser(ctx, op, func(u models.User) bool { return strings.EqualFold(u.Email, email) })
}

func (s *Storage) findUser(ctx context.Context, op string, match func(models.User) bool) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	s.users.mu.Lock()
	defer s.users.mu.Unlock()

	users, err := readAll[models.User](s.users.path)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	for _, u := range users {
		if match(u) {
			return u, nil
		}
	}
	return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
}
