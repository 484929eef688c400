package pass

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/magabrotheeeer/campus-pass/internal/lib/sl"
	"github.com/magabrotheeeer/campus-pass/internal/metrics"
	"github.com/magabrotheeeer/campus-pass/internal/models"
	"github.com/magabrotheeeer/campus-pass/internal/storage"
)

// Owner — пользователь, от имени которого создаётся пропуск.
type Owner struct {
	ID   string
	Name string
}

// CreatePass выпускает пропуск для owner. У пользователя не может быть
// больше одного ожидающего пропуска.
func (s *Service) CreatePass(ctx context.Context, owner Owner, purpose string, passType models.PassType) (models.Pass, error) {
	const op = "pass.CreatePass"
	log := s.log.With(sl.Op(op), slog.String("user_id", owner.ID))

	if !models.IsValidDestination(purpose) {
		return models.Pass{}, ErrInvalidDestination
	}
	if passType == "" {
		passType = models.TypeStandard
	}
	if !passType.Valid() {
		return models.Pass{}, ErrInvalidPassType
	}

	unlock := s.userLocks.Lock(owner.ID)
	defer unlock()

	pending, err := s.repo.ListPasses(ctx, storage.PassFilter{UserID: owner.ID, Status: models.StatusPending})
	if err != nil {
		return models.Pass{}, fmt.Errorf("%s: %w", op, err)
	}
	for _, p := range pending {
		current, err := s.ExpireIfDue(ctx, p)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return models.Pass{}, fmt.Errorf("%s: %w", op, err)
		}
		if current.IsPending() {
			return models.Pass{}, ErrActivePassExists
		}
	}

	id, err := s.newID()
	if err != nil {
		return models.Pass{}, fmt.Errorf("%s: %w", op, err)
	}
	createdAt := s.now().UTC()
	p := models.Pass{
		ID:        id,
		UserID:    owner.ID,
		UserName:  owner.Name,
		Purpose:   purpose,
		Type:      passType,
		Status:    models.StatusPending,
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(models.PassValidity),
	}

	token, err := s.tokens.Issue(p.ID, p.ExpiresAt)
	if err != nil {
		return models.Pass{}, fmt.Errorf("%s: %w", op, err)
	}
	p.QRCode, err = s.renderer.Render(token)
	if err != nil {
		return models.Pass{}, fmt.Errorf("%s: %w", op, err)
	}

	if err = s.repo.CreatePass(ctx, p); err != nil {
		if errors.Is(err, storage.ErrPendingExists) {
			return models.Pass{}, ErrActivePassExists
		}
		return models.Pass{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("pass created", slog.String("pass_id", p.ID), slog.String("purpose", p.Purpose))
	metrics.PassTransitions.WithLabelValues(models.EventPassCreated).Inc()
	s.publish(ctx, models.EventPassCreated, p, "")
	return p, nil
}

// ListMine возвращает пропуска пользователя, новые первыми.
func (s *Service) ListMine(ctx context.Context, userID string) ([]models.Pass, error) {
	const op = "pass.ListMine"
	passes, err := s.list(ctx, storage.PassFilter{UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return passes, nil
}

// ListAll возвращает все пропуска, новые первыми.
func (s *Service) ListAll(ctx context.Context) ([]models.Pass, error) {
	const op = "pass.ListAll"
	passes, err := s.list(ctx, storage.PassFilter{})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return passes, nil
}

func (s *Service) list(ctx context.Context, filter storage.PassFilter) ([]models.Pass, error) {
	passes, err := s.repo.ListPasses(ctx, filter)
	if err != nil {
		return nil, err
	}

	res := make([]models.Pass, 0, len(passes))
	for _, p := range passes {
		current, err := s.ExpireIfDue(ctx, p)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		res = append(res, current)
	}
	SortNewestFirst(res)
	return res, nil
}

// SortNewestFirst упорядочивает пропуска по убыванию времени создания.
func SortNewestFirst(passes []models.Pass) {
	slices.SortStableFunc(passes, func(a, b models.Pass) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}

// DropPass безвозвратно удаляет ожидающий пропуск владельца.
func (s *Service) DropPass(ctx context.Context, passID, userID string) error {
	const op = "pass.DropPass"
	log := s.log.With(sl.Op(op), slog.String("pass_id", passID), slog.String("user_id", userID))

	dropped, err := s.dropLocked(ctx, passID, userID)
	if err != nil {
		return err
	}

	if err := s.codes.Discard(ctx, passID); err != nil {
		log.Warn("failed to discard approval code", sl.Err(err))
	}
	log.Info("pass dropped")
	metrics.PassTransitions.WithLabelValues(models.EventPassDropped).Inc()
	s.publish(ctx, models.EventPassDropped, dropped, "")
	return nil
}

func (s *Service) dropLocked(ctx context.Context, passID, userID string) (models.Pass, error) {
	const op = "pass.DropPass"

	unlock := s.passLocks.Lock(passID)
	defer unlock()

	p, err := s.repo.GetPass(ctx, passID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Pass{}, ErrNotFoundOrUnauthorized
	}
	if err != nil {
		return models.Pass{}, fmt.Errorf("%s: %w", op, err)
	}
	if p.UserID != userID {
		return models.Pass{}, ErrNotFoundOrUnauthorized
	}

	if p.IsPending() && p.Lapsed(s.now()) {
		if _, err = s.markExpired(ctx, p); err != nil {
			return models.Pass{}, fmt.Errorf("%s: %w", op, err)
		}
		return models.Pass{}, ErrNotPending
	}
	if !p.IsPending() {
		return models.Pass{}, ErrNotPending
	}

	if err = s.repo.DeletePass(ctx, passID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Pass{}, ErrNotFoundOrUnauthorized
		}
		return models.Pass{}, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// ExpireIfDue переводит ожидающий пропуск с истёкшим окном в expired и
// сохраняет его. Возвращает актуальное состояние пропуска. Повторный вызов
// ничего не меняет.
func (s *Service) ExpireIfDue(ctx context.Context, p models.Pass) (models.Pass, error) {
	const op = "pass.ExpireIfDue"

	if !p.IsPending() || !p.Lapsed(s.now()) {
		return p, nil
	}

	unlock := s.passLocks.Lock(p.ID)
	defer unlock()

	current, err := s.repo.GetPass(ctx, p.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Pass{}, ErrNotFound
	}
	if err != nil {
		return models.Pass{}, fmt.Errorf("%s: %w", op, err)
	}
	if !current.IsPending() || !current.Lapsed(s.now()) {
		return current, nil
	}
	expired, err := s.markExpired(ctx, current)
	if err != nil {
		return models.Pass{}, fmt.Errorf("%s: %w", op, err)
	}
	return expired, nil
}

// ExpireDue проходит по всем ожидающим пропускам и истекает просроченные.
// Возвращает число переведённых в expired.
func (s *Service) ExpireDue(ctx context.Context) (int, error) {
	const op = "pass.ExpireDue"

	pending, err := s.repo.ListPasses(ctx, storage.PassFilter{Status: models.StatusPending})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	expired := 0
	for _, p := range pending {
		if !p.Lapsed(s.now()) {
			continue
		}
		current, err := s.ExpireIfDue(ctx, p)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return expired, fmt.Errorf("%s: %w", op, err)
		}
		if current.Status == models.StatusExpired {
			expired++
		}
	}
	return expired, nil
}

// markExpired сохраняет пропуск в статусе expired. Вызывается под замком пропуска.
func (s *Service) markExpired(ctx context.Context, p models.Pass) (models.Pass, error) {
	p.Status = models.StatusExpired
	if err := s.repo.UpdatePass(ctx, p); err != nil {
		return models.Pass{}, err
	}
	if err := s.codes.Discard(ctx, p.ID); err != nil {
		s.log.Warn("failed to discard approval code", slog.String("pass_id", p.ID), sl.Err(err))
	}
	s.log.Info("pass expired", slog.String("pass_id", p.ID))
	metrics.PassTransitions.WithLabelValues(models.EventPassExpired).Inc()
	s.publish(ctx, models.EventPassExpired, p, "")
	return p, nil
}
