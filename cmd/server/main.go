package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iliyamo/library-management/internal/config"
	"github.com/iliyamo/library-management/internal/database"
	"github.com/iliyamo/library-management/internal/handler"
	"github.com/iliyamo/library-management/internal/logging"
	"github.com/iliyamo/library-management/internal/middleware"
	"github.com/iliyamo/library-management/internal/queue"
	"github.com/iliyamo/library-management/internal/repository"
	"github.com/iliyamo/library-management/internal/router"
	"github.com/iliyamo/library-management/internal/service"
	"github.com/iliyamo/library-management/internal/telemetry"
	"github.com/iliyamo/library-management/internal/utils"
)

func main() {
	cfg := config.Load()
	var out io.Writer = os.Stdout
	if cfg.Log.File != "" {
		file := logging.RotatingFile(cfg.Log.File, cfg.Log.MaxSizeMB, cfg.Log.MaxBackups)
		defer func() { _ = file.Close() }()
		out = io.MultiWriter(os.Stdout, file)
	}
	log := logging.New(out, cfg.Log.Format, cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *logging.SlogLogger) error {
	shutdownTracing, err := telemetry.Setup(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn(ctx, "redis unavailable: refresh sessions disabled, rate limiting is per process")
	} else {
		defer func() { _ = rdb.Close() }()
	}

	tokens, err := utils.LoadTokenManager(cfg.Auth.PrivateKeyPath, cfg.Auth.PublicKeyPath, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)
	if err != nil {
		return err
	}

	var events service.EventPublisher
	if cfg.AMQP.PublishEnabled {
		events = service.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Queue)
	}
	if cfg.AMQP.ConsumerEnabled {
		go func() {
			if err := queue.StartBorrowConsumer(ctx, cfg.AMQP.URL, cfg.AMQP.Queue, cfg.AMQP.AuditLogPath, log); err != nil && !errors.Is(err, context.Canceled) {
				log.Error(ctx, "borrow consumer stopped", "error", err)
			}
		}()
	}

	users := repository.NewUserRepo(db)
	fetcher := repository.NewFetcher(db)
	authSvc := service.NewAuthService(users, repository.NewTokenRepo(rdb, cfg.Auth.RefreshKeyPrefix), tokens, cfg.BcryptCost, log)
	borrowSvc := service.NewBorrowService(service.NewSQLBorrowStore(db), events, log)

	authH := handler.NewAuthHandler(authSvc, cfg.Auth, log)
	e := router.New(log)
	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, authH, middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log))
	router.RegisterCatalog(e, authSvc,
		handler.NewAuthorHandler(repository.NewAuthorRepo(db), fetcher, cfg.Pagination, log),
		handler.NewBookHandler(repository.NewBookRepo(db), fetcher, cfg.Pagination, log),
	)
	router.RegisterBorrows(e, authSvc, handler.NewBorrowHandler(borrowSvc, fetcher, cfg.Pagination, log))
	router.RegisterUsers(e, authSvc, handler.NewUserHandler(authSvc, authH, fetcher, cfg.Pagination, log))

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info(context.Background(), "shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(sctx)
}
