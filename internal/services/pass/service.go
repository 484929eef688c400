// Package pass реализует жизненный цикл пропусков и протокол их проверки:
// выпуск, истечение, сканирование с выдачей кода подтверждения и
// подтверждение администратором.
package pass

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/campus-pass/internal/approval"
	"github.com/magabrotheeeer/campus-pass/internal/lib/keylock"
	"github.com/magabrotheeeer/campus-pass/internal/lib/qrcode"
	"github.com/magabrotheeeer/campus-pass/internal/lib/sl"
	"github.com/magabrotheeeer/campus-pass/internal/models"
	"github.com/magabrotheeeer/campus-pass/internal/storage"
)

// EventPassUpdate — имя события, которое получает сессия владельца пропуска.
const EventPassUpdate = "passUpdate"

// Repository определяет методы для работы с пропусками в хранилище.
type Repository interface {
	CreatePass(ctx context.Context, p models.Pass) error
	GetPass(ctx context.Context, id string) (models.Pass, error)
	UpdatePass(ctx context.Context, p models.Pass) error
	DeletePass(ctx context.Context, id string) error
	ListPasses(ctx context.Context, filter storage.PassFilter) ([]models.Pass, error)
}

// UserProvider возвращает учётную запись владельца пропуска.
type UserProvider interface {
	GetUser(ctx context.Context, id string) (models.User, error)
}

// TokenCodec подписывает и проверяет токены пропусков.
type TokenCodec interface {
	Issue(passID string, expiresAt time.Time) (string, error)
	Parse(token string) (string, error)
}

// Renderer превращает токен в изображение QR-кода.
type Renderer interface {
	Render(content string) (string, error)
}

// Notifier доставляет событие в группу сессий пользователя.
type Notifier interface {
	Emit(userID, event string, data any)
}

// Publisher публикует доменные события пропусков.
type Publisher interface {
	Publish(ctx context.Context, event models.PassEvent) error
}

type noopNotifier struct{}

func (noopNotifier) Emit(string, string, any) {}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, models.PassEvent) error { return nil }

// Service реализует бизнес-логику пропусков.
type Service struct {
	repo      Repository
	users     UserProvider
	codes     approval.Store
	tokens    TokenCodec
	renderer  Renderer
	notifier  Notifier
	publisher Publisher
	log       *slog.Logger

	now     func() time.Time
	newID   func() (string, error)
	codeTTL time.Duration

	userLocks *keylock.Locker
	passLocks *keylock.Locker
}

// Option настраивает Service.
type Option func(*Service)

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithNotifier задаёт канал realtime-уведомлений.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithPublisher задаёт публикатор доменных событий.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithRenderer задаёт рендерер QR-кодов.
func WithRenderer(r Renderer) Option {
	return func(s *Service) { s.renderer = r }
}

// WithCodeTTL задаёт время жизни кода подтверждения.
func WithCodeTTL(ttl time.Duration) Option {
	return func(s *Service) { s.codeTTL = ttl }
}

// WithIDGenerator подменяет генератор идентификаторов пропусков.
func WithIDGenerator(gen func() (string, error)) Option {
	return func(s *Service) { s.newID = gen }
}

// New создает новый экземпляр Service.
func New(repo Repository, users UserProvider, codes approval.Store, tokens TokenCodec, log *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		users:     users,
		codes:     codes,
		tokens:    tokens,
		renderer:  qrcode.New(qrcode.DefaultSize),
		notifier:  noopNotifier{},
		publisher: noopPublisher{},
		log:       log,
		now:       time.Now,
		newID:     newPassID,
		codeTTL:   models.ApprovalCodeTTL,
		userLocks: keylock.New(),
		passLocks: keylock.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newPassID выдаёт упорядоченный по времени идентификатор.
func newPassID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return "PASS-" + id.String(), nil
}

// publish отправляет событие в брокер; ошибка только логируется.
func (s *Service) publish(ctx context.Context, eventType string, p models.Pass, email string) {
	event := models.NewPassEvent(eventType, p, s.now().UTC())
	event.UserEmail = email
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn("failed to publish pass event",
			slog.String("event", eventType),
			slog.String("pass_id", p.ID),
			sl.Err(err))
	}
}
