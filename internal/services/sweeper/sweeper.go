// Package sweeper периодически переводит просроченные ожидающие пропуска
// в expired, даже если их никто не читает.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/campus-pass/internal/lib/sl"
)

// DefaultInterval — период обхода по умолчанию.
const DefaultInterval = time.Minute

// Expirer истекает все просроченные ожидающие пропуска.
type Expirer interface {
	ExpireDue(ctx context.Context) (int, error)
}

// SweeperService запускает Expirer по таймеру.
type SweeperService struct {
	expirer  Expirer
	interval time.Duration
	log      *slog.Logger
}

// NewSweeperService создает новый экземпляр SweeperService.
func NewSweeperService(expirer Expirer, interval time.Duration, log *slog.Logger) *SweeperService {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &SweeperService{
		expirer:  expirer,
		interval: interval,
		log:      log,
	}
}

// Run выполняет обход сразу и затем каждые interval до отмены ctx.
func (s *SweeperService) Run(ctx context.Context) {
	s.log.Info("expiry sweeper started", slog.Duration("interval", s.interval))
	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("expiry sweeper stopped")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *SweeperService) runOnce(ctx context.Context) {
	n, err := s.expirer.ExpireDue(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.log.Error("failed to expire passes", sl.Err(err))
	}
	if n > 0 {
		s.log.Info("expired lapsed passes", slog.Int("count", n))
	}
}
