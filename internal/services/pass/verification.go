package pass

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/campus-pass/internal/approval"
	"github.com/magabrotheeeer/campus-pass/internal/lib/apperr"
	"github.com/magabrotheeeer/campus-pass/internal/lib/passtoken"
	"github.com/magabrotheeeer/campus-pass/internal/lib/sl"
	"github.com/magabrotheeeer/campus-pass/internal/metrics"
	"github.com/magabrotheeeer/campus-pass/internal/models"
	"github.com/magabrotheeeer/campus-pass/internal/storage"
)

const (
	unknownEmail = "N/A"
	outcomeOK    = "ok"
)

// VerifyResult — данные пропуска и код подтверждения для экрана администратора.
type VerifyResult struct {
	PassID       string          `json:"passId"`
	UserName     string          `json:"userName"`
	UserEmail    string          `json:"userEmail"`
	UserRole     models.Role     `json:"userRole"`
	Purpose      string          `json:"purpose"`
	Type         models.PassType `json:"type"`
	CreatedAt    time.Time       `json:"createdAt"`
	ExpiresAt    time.Time       `json:"expiresAt"`
	ApprovalCode string          `json:"approvalCode"`
}

func outcome(err error) string {
	if err == nil {
		return outcomeOK
	}
	return apperr.CodeOf(err)
}

// Verify проверяет отсканированный токен и выдаёт код подтверждения.
// Код замещает ранее выданный для этого пропуска.
func (s *Service) Verify(ctx context.Context, token string) (VerifyResult, error) {
	res, err := s.verify(ctx, token)
	metrics.VerifyOutcomes.WithLabelValues(outcome(err)).Inc()
	return res, err
}

func (s *Service) verify(ctx context.Context, token string) (VerifyResult, error) {
	const op = "pass.Verify"
	log := s.log.With(sl.Op(op))

	passID, err := s.tokens.Parse(token)
	tokenExpired := errors.Is(err, passtoken.ErrExpired) && passID != ""
	if err != nil && !tokenExpired {
		log.Debug("rejected pass token", sl.Err(err))
		return VerifyResult{}, ErrInvalidToken
	}
	log = log.With(slog.String("pass_id", passID))

	unlock := s.passLocks.Lock(passID)
	defer unlock()

	p, err := s.repo.GetPass(ctx, passID)
	if errors.Is(err, storage.ErrNotFound) {
		return VerifyResult{}, ErrNotFound
	}
	if err != nil {
		return VerifyResult{}, fmt.Errorf("%s: %w", op, err)
	}
	if !p.IsPending() {
		return VerifyResult{}, wrongState(string(p.Status))
	}
	if tokenExpired || p.Lapsed(s.now()) {
		if _, err = s.markExpired(ctx, p); err != nil {
			return VerifyResult{}, fmt.Errorf("%s: %w", op, err)
		}
		return VerifyResult{}, ErrExpired
	}

	code, err := approval.Generate()
	if err != nil {
		return VerifyResult{}, fmt.Errorf("%s: %w", op, err)
	}
	if err = s.codes.Put(ctx, p.ID, code, s.codeTTL); err != nil {
		return VerifyResult{}, fmt.Errorf("%s: %w", op, err)
	}

	email, role := s.ownerContact(ctx, p.UserID)
	log.Info("pass verified, approval code issued")

	return VerifyResult{
		PassID:       p.ID,
		UserName:     p.UserName,
		UserEmail:    email,
		UserRole:     role,
		Purpose:      p.Purpose,
		Type:         p.Type,
		CreatedAt:    p.CreatedAt,
		ExpiresAt:    p.ExpiresAt,
		ApprovalCode: code,
	}, nil
}

// ownerContact возвращает e-mail и роль владельца либо значения по умолчанию.
func (s *Service) ownerContact(ctx context.Context, userID string) (string, models.Role) {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.log.Warn("failed to load pass owner", slog.String("user_id", userID), sl.Err(err))
		}
		return unknownEmail, models.RoleUser
	}
	email, role := u.Email, u.Role
	if email == "" {
		email = unknownEmail
	}
	if role == "" {
		role = models.RoleUser
	}
	return email, role
}

// Approve подтверждает пропуск кодом, выданным при сканировании. Неверный
// код аннулирует выданный, и пропуск нужно сканировать заново.
func (s *Service) Approve(ctx context.Context, passID, code string) (models.Pass, error) {
	const op = "pass.Approve"
	log := s.log.With(sl.Op(op), slog.String("pass_id", passID))

	p, err := s.approveLocked(ctx, passID, code)
	metrics.ApproveOutcomes.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		return models.Pass{}, err
	}

	log.Info("pass approved")
	metrics.PassTransitions.WithLabelValues(models.EventPassCompleted).Inc()
	s.notifier.Emit(p.UserID, EventPassUpdate, p)

	email, _ := s.ownerContact(ctx, p.UserID)
	if email == unknownEmail {
		email = ""
	}
	s.publish(ctx, models.EventPassCompleted, p, email)
	return p, nil
}

func (s *Service) approveLocked(ctx context.Context, passID, code string) (models.Pass, error) {
	const op = "pass.Approve"

	if passID == "" || code == "" {
		return models.Pass{}, ErrInvalidOrExpiredCode
	}

	unlock := s.passLocks.Lock(passID)
	defer unlock()

	ok, err := s.codes.Match(ctx, passID, code)
	if err != nil {
		return models.Pass{}, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		s.discard(ctx, passID)
		return models.Pass{}, ErrInvalidOrExpiredCode
	}

	p, err := s.repo.GetPass(ctx, passID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.discard(ctx, passID)
		return models.Pass{}, ErrNotFound
	case err != nil:
		return models.Pass{}, fmt.Errorf("%s: %w", op, err)
	case !p.IsPending():
		s.discard(ctx, passID)
		return models.Pass{}, wrongState(string(p.Status))
	case p.Lapsed(s.now()):
		s.discard(ctx, passID)
		return models.Pass{}, ErrExpired
	}

	completedAt := s.now().UTC()
	p.Status = models.StatusCompleted
	p.CompletedAt = &completedAt
	if err = s.repo.UpdatePass(ctx, p); err != nil {
		return models.Pass{}, fmt.Errorf("%s: %w", op, err)
	}

	if err = s.codes.Delete(ctx, passID, code); err != nil {
		s.log.Warn("failed to consume approval code", slog.String("pass_id", passID), sl.Err(err))
	}
	return p, nil
}

func (s *Service) discard(ctx context.Context, passID string) {
	if err := s.codes.Discard(ctx, passID); err != nil {
		s.log.Warn("failed to discard approval code", slog.String("pass_id", passID), sl.Err(err))
	}
}
