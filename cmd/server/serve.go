package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/taskdesk/api/handler"
	appAuth "github.com/fastygo/taskdesk/internal/auth"
	"github.com/fastygo/taskdesk/internal/config"
	"github.com/fastygo/taskdesk/internal/infrastructure/drive"
	"github.com/fastygo/taskdesk/internal/infrastructure/mailer"
	"github.com/fastygo/taskdesk/internal/infrastructure/monitor"
	"github.com/fastygo/taskdesk/internal/infrastructure/outbox"
	pgInfra "github.com/fastygo/taskdesk/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/taskdesk/internal/infrastructure/redis"
	"github.com/fastygo/taskdesk/internal/middleware"
	"github.com/fastygo/taskdesk/internal/router"
	"github.com/fastygo/taskdesk/internal/services"
	"github.com/fastygo/taskdesk/internal/services/lifecycle"
	"github.com/fastygo/taskdesk/pkg/httpcontext"
	"github.com/fastygo/taskdesk/repository"
	"github.com/fastygo/taskdesk/repository/memory"
	pgRepo "github.com/fastygo/taskdesk/repository/postgres"
	redisRepo "github.com/fastygo/taskdesk/repository/redis"
	"github.com/fastygo/taskdesk/usecase"
	authUC "github.com/fastygo/taskdesk/usecase/auth"
	profileUC "github.com/fastygo/taskdesk/usecase/profile"
	taskUC "github.com/fastygo/taskdesk/usecase/task"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}
}

func runServe(cmd *cobra.Command) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	manager := lifecycle.New(cmd.Context(), cfg.Context.ShutdownTimeout, log)
	appCtx := manager.Context()

	mon := monitor.New(10*time.Second, log.Named("monitor"))

	var (
		tasks repository.TaskRepository
		users repository.UserRepository
		keys  repository.IdempotencyStore
	)

	switch cfg.Storage.Driver {
	case config.StorageDriverPostgres:
		if err := pgInfra.RunMigrations(cfg, log); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		pool, err := pgInfra.NewPool(appCtx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		manager.Register("postgres", func(ctx context.Context) error {
			pgInfra.Close(pool, log)
			return nil
		})
		mon.Watch("postgresql", monitor.PostgresProbe(pool))
		tasks = pgRepo.NewTaskRepository(pool)
		users = pgRepo.NewUserRepository(pool)
	default:
		log.Warn("using in-memory storage; data is lost on restart")
		tasks = memory.NewTaskRepository()
		users = memory.NewUserRepository()
	}

	redisClient, err := redisInfra.NewClient(appCtx, cfg.Redis, log)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if redisClient != nil {
		manager.Register("redis", func(ctx context.Context) error {
			redisInfra.Close(redisClient, log)
			return nil
		})
		mon.Watch("redis", monitor.RedisProbe(redisClient))
		keys = redisRepo.NewIdempotencyRepository(redisClient, cfg.Idempotency.TTL)
	} else {
		keys = memory.NewIdempotencyStore()
	}

	var attachments usecase.AttachmentStore
	if cfg.Drive.Credentials != "" {
		store, err := drive.New(appCtx, cfg.Drive, log.Named("drive"))
		if err != nil {
			return fmt.Errorf("drive: %w", err)
		}
		attachments = store
	} else {
		log.Warn("GOOGLE_CREDENTIALS not set; tasks with documents will be rejected")
	}

	var notifier usecase.Notifier
	if cfg.Mail.Host != "" {
		m, err := mailer.New(cfg.Mail, log.Named("mailer"))
		if err != nil {
			return fmt.Errorf("mailer: %w", err)
		}
		notifier = m
	} else {
		log.Warn("SMTP_HOST not set; assignment notices are disabled")
	}

	outboxStore, err := outbox.Open(cfg.Outbox.Path, "outbox")
	if err != nil {
		return fmt.Errorf("outbox: %w", err)
	}
	manager.Register("outbox", func(ctx context.Context) error {
		return outboxStore.Close()
	})
	mon.WatchOutbox(outboxStore.Size)

	processor := services.NewOutboxProcessor(outboxStore, attachments, notifier, log.Named("outbox"), services.ProcessorConfig{
		Interval:   cfg.Outbox.SyncInterval,
		BatchSize:  cfg.Outbox.BatchSize,
		MaxRetries: cfg.Outbox.MaxRetry,
		Retention:  time.Duration(cfg.Outbox.RetentionHours) * time.Hour,
	})
	processor.Start()
	manager.Register("outbox_processor", func(ctx context.Context) error {
		processor.Stop(ctx)
		return nil
	})

	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	tokens := appAuth.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL)

	authUseCase := authUC.New(users, tokens, log)
	profileUseCase := profileUC.New(users, log)
	taskUseCase := taskUC.New(taskUC.Dependencies{
		Tasks:       tasks,
		Users:       users,
		Attachments: attachments,
		Notifier:    notifier,
		Outbox:      services.NewOutboxBridge(processor),
		Keys:        keys,
		KeyTTL:      cfg.Idempotency.TTL,
	}, log)

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)
	handlers := router.Handlers{
		User:   apiHandler.NewUserHandler(authUseCase, profileUseCase, ctxAdapter, log),
		Task:   apiHandler.NewTaskHandler(taskUseCase, ctxAdapter, log),
		Health: apiHandler.NewHealthHandler(mon, ctxAdapter, log),
	}

	r := router.New(handlers, router.Options{
		Auth:          middleware.JWTAuth(tokens, profileUseCase, cfg.Context.RequestTimeout, log),
		RateLimit:     middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst).Middleware,
		EnableMetrics: cfg.HTTP.EnableMetrics,
		EnablePprof:   cfg.HTTP.EnablePprof,
	})

	server := &fasthttp.Server{
		Handler:            router.Handler(r, log.Named("http")),
		ReadTimeout:        cfg.HTTP.ReadTimeout,
		WriteTimeout:       cfg.HTTP.WriteTimeout,
		IdleTimeout:        cfg.HTTP.IdleTimeout,
		Concurrency:        cfg.HTTP.MaxConn,
		MaxRequestBodySize: cfg.HTTP.MaxRequestBodySize,
		Name:               cfg.AppName,
	}

	manager.Go("http_server", func(ctx context.Context) error {
		log.Info("server started",
			zap.String("address", cfg.Address()),
			zap.String("storage", cfg.Storage.Driver))
		return server.ListenAndServe(cfg.Address())
	})
	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	if err := manager.Wait(); err != nil {
		log.Error("graceful shutdown error", zap.Error(err))
		return err
	}
	return nil
}
