// Package campuspass собирает HTTP-сервис пропусков: хранилище, коды
// подтверждения, realtime-канал, брокер событий и фоновое истечение.
package campuspass

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/campus-pass/internal/approval"
	"github.com/magabrotheeeer/campus-pass/internal/cache"
	"github.com/magabrotheeeer/campus-pass/internal/config"
	"github.com/magabrotheeeer/campus-pass/internal/http/handlers/health"
	"github.com/magabrotheeeer/campus-pass/internal/lib/jwt"
	"github.com/magabrotheeeer/campus-pass/internal/lib/passtoken"
	"github.com/magabrotheeeer/campus-pass/internal/lib/qrcode"
	"github.com/magabrotheeeer/campus-pass/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/campus-pass/internal/lib/sl"
	"github.com/magabrotheeeer/campus-pass/internal/migrations"
	"github.com/magabrotheeeer/campus-pass/internal/realtime"
	authservice "github.com/magabrotheeeer/campus-pass/internal/services/auth"
	passservice "github.com/magabrotheeeer/campus-pass/internal/services/pass"
	"github.com/magabrotheeeer/campus-pass/internal/services/sweeper"
	"github.com/magabrotheeeer/campus-pass/internal/storage/jsonfile"
	"github.com/magabrotheeeer/campus-pass/internal/storage/memory"
	"github.com/magabrotheeeer/campus-pass/internal/storage/postgresql"
)

const shutdownTimeout = 15 * time.Second

// Store объединяет хранилище пропусков и пользователей.
type Store interface {
	passservice.Repository
	passservice.UserProvider
	authservice.UserRepository
}

type App struct {
	server  *http.Server
	logger  *slog.Logger
	sweeper *sweeper.SweeperService
	closers []io.Closer
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.campuspass.New"

	a := &App{logger: logger}
	pingers := map[string]health.Pinger{}

	store, err := a.openStore(ctx, cfg, pingers)
	if err != nil {
		a.closeAll()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	codes, err := a.openApprovalStore(ctx, cfg, pingers)
	if err != nil {
		a.closeAll()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hub := realtime.NewHub(logger)
	opts := []passservice.Option{
		passservice.WithNotifier(hub),
		passservice.WithRenderer(qrcode.New(cfg.QRSize)),
	}

	if cfg.RabbitMQEnabled {
		publisher, err := a.openPublisher(ctx, cfg)
		if err != nil {
			a.closeAll()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		opts = append(opts, passservice.WithPublisher(publisher))
	}

	tokens := passtoken.New(cfg.PassSecret(), passtoken.WithLeeway(cfg.TokenLeeway))
	passService := passservice.New(store, store, codes, tokens, logger, opts...)

	authService := authservice.NewAuthService(
		store,
		jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL),
		authservice.AdminOverride{Email: cfg.AdminEmail, Password: cfg.AdminPassword},
		logger,
	)

	router := chi.NewRouter()
	RegisterRoutes(router, Deps{
		Logger:  logger,
		Passes:  passService,
		Auth:    authService,
		Hub:     hub,
		Limiter: newLimiter(cfg),
		Pingers: pingers,
	})

	a.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	a.sweeper = sweeper.NewSweeperService(passService, cfg.SweepInterval, logger)

	return a, nil
}

func (a *App) openStore(ctx context.Context, cfg *config.Config, pingers map[string]health.Pinger) (Store, error) {
	switch cfg.StorageDriver {
	case config.StorageMemory:
		return memory.New(), nil
	case config.StoragePostgres:
		db, err := postgresql.New(ctx, cfg.StorageConnectionString)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db)
		if err := migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
			return nil, err
		}
		pingers["postgres"] = db
		return db, nil
	default:
		return jsonfile.New(cfg.DataDir)
	}
}

func (a *App) openApprovalStore(ctx context.Context, cfg *config.Config, pingers map[string]health.Pinger) (approval.Store, error) {
	if cfg.ApprovalStore != config.ApprovalRedis {
		return approval.NewMemoryStore(), nil
	}
	redisCache, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, redisCache)
	pingers["redis"] = redisCache
	return approval.NewRedisStore(redisCache), nil
}

func (a *App) openPublisher(ctx context.Context, cfg *config.Config) (*rabbitmq.EventPublisher, error) {
	conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetPassQueues())
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	a.closers = append(a.closers, amqpCloser{ch: ch, conn: conn})
	return rabbitmq.NewEventPublisher(ch, rabbitmq.ExchangePasses), nil
}

type amqpCloser struct {
	ch   *amqp.Channel
	conn *amqp.Connection
}

func (c amqpCloser) Close() error {
	return errors.Join(c.ch.Close(), c.conn.Close())
}

func (a *App) closeAll() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Error("failed to close resource", sl.Err(err))
		}
	}
	a.closers = nil
}

func (a *App) Run(ctx context.Context) error {
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go a.sweeper.Run(sweepCtx)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.closeAll()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.closeAll()
		return err
	}
}
