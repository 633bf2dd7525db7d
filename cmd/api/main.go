package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	goredis "github.com/redis/go-redis/v9"

	"github.com/campusflow/gateway/internal/api"
	"github.com/campusflow/gateway/internal/api/handler"
	"github.com/campusflow/gateway/internal/core/ports"
	"github.com/campusflow/gateway/internal/core/service"
	"github.com/campusflow/gateway/internal/infrastructure/config"
	"github.com/campusflow/gateway/internal/infrastructure/db/memory"
	"github.com/campusflow/gateway/internal/infrastructure/db/mongo"
	"github.com/campusflow/gateway/internal/infrastructure/db/postgres"
	redisdb "github.com/campusflow/gateway/internal/infrastructure/db/redis"
	"github.com/campusflow/gateway/internal/infrastructure/queue"
	"github.com/campusflow/gateway/internal/infrastructure/security"
	"github.com/campusflow/gateway/pkg/logger"
)

const serviceName = "campus-gateway"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: serviceName,
	})

	health := map[string]handler.Pinger{}

	store, closeStore, err := openStore(ctx, cfg, health)
	if err != nil {
		return err
	}
	defer closeStore()

	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return err
	}
	defer rdb.Close()
	health["redis"] = handler.PingFunc(func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})

	hasher := security.NewBcryptHasher(cfg.Auth.BcryptCost)
	tokens, err := security.NewJWTService([]byte(cfg.Auth.JWTSecret), security.WithIssuer(cfg.Auth.JWTIssuer))
	if err != nil {
		return err
	}

	publisher := queue.NewPublisher(
		queue.NewStreamChannel(rdb, cfg.Publish.StreamMaxLen),
		queue.PublisherConfig{
			Retry: queue.RetryConfig{
				MaxAttempts:  cfg.Publish.MaxAttempts,
				InitialDelay: cfg.Publish.InitialBackoff,
				MaxDelay:     cfg.Publish.MaxBackoff,
			},
			Timeout:     cfg.Publish.Timeout,
			MaxInFlight: cfg.Publish.MaxInFlight,
		},
		logger.Component("publisher"),
	)

	authService, err := service.NewAuthService(service.AuthDeps{
		Store:  store,
		Hasher: hasher,
		Tokens: tokens,
		Events: publisher,
		Log:    logger.Component("auth"),
	}, service.AuthConfig{
		TokenTTL:        cfg.Auth.JWTTTL,
		RegisteredTopic: cfg.Publish.RegisteredTopic,
	})
	if err != nil {
		return err
	}

	if _, err := authService.SeedAdmin(ctx, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword); err != nil {
		return err
	}

	adminService := service.NewAdminService(store, hasher, logger.Component("admin"))
	submissionService := service.NewSubmissionService(
		publisher,
		redisdb.NewSubmissionDedup(rdb),
		service.SubmissionConfig{
			Topic:       cfg.Publish.SubmissionTopic,
			DedupWindow: cfg.Submit.DedupWindow,
		},
		logger.Component("submission"),
	)

	var workers sync.WaitGroup
	if cfg.Consumer.Enabled {
		startConsumer(ctx, cfg, rdb, store, &workers)
	}

	e := api.NewRouter(api.Deps{
		Auth:        authService,
		Admin:       adminService,
		Submissions: submissionService,
		Tokens:      tokens,
		Health:      health,
		Log:         logger.Component("http"),
		TokenTTL:    authService.TokenTTL(),
		CORSOrigins: cfg.CORSOrigins,
		BodyLimit:   cfg.BodyLimit,
	})

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("store", cfg.StoreDriver).Msg("listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	workers.Wait()
	return nil
}

// openStore selects the credential store for STORE_DRIVER and registers its
// readiness check.
func openStore(ctx context.Context, cfg *config.Config, health map[string]handler.Pinger) (ports.CredentialStore, func(), error) {
	log := logger.Component("store")

	switch cfg.StoreDriver {
	case config.StoreDriverMongo:
		client, db, err := mongo.Connect(ctx, mongo.Config{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
		})
		if err != nil {
			return nil, nil, err
		}
		store := mongo.NewCredentialStore(db)
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.WithoutCancel(ctx))
			return nil, nil, fmt.Errorf("mongo indexes: %w", err)
		}
		health["mongo"] = handler.PingFunc(func(ctx context.Context) error {
			return client.Ping(ctx, nil)
		})
		return store, func() { _ = client.Disconnect(context.WithoutCancel(ctx)) }, nil

	case config.StoreDriverMemory:
		log.Warn().Msg("using in-memory credential store; accounts are lost on restart")
		return memory.NewCredentialStore(), func() {}, nil

	default:
		pool, err := postgres.Connect(ctx, postgres.Config{
			DSN:             cfg.Postgres.DSN,
			MaxConns:        cfg.Postgres.MaxConns,
			MinConns:        cfg.Postgres.MinConns,
			MaxConnIdleTime: cfg.Postgres.MaxConnIdleTime,
			MaxConnLifetime: cfg.Postgres.MaxConnLifetime,
		})
		if err != nil {
			return nil, nil, err
		}
		if cfg.Postgres.RunMigrations {
			if err := postgres.RunMigrations(ctx, pool, log); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		health["postgres"] = pool
		return postgres.NewCredentialStore(pool), pool.Close, nil
	}
}

// startConsumer runs the users.registered consumer and its dispatcher until
// ctx is cancelled.
func startConsumer(ctx context.Context, cfg *config.Config, rdb *goredis.Client, store ports.CredentialStore, wg *sync.WaitGroup) {
	log := logger.Component("consumer")

	dispatcher := queue.NewDispatcher(
		cfg.Consumer.Workers,
		service.NewRegistrationService(store, logger.Component("registration")),
		log,
	)
	dispatcher.Start(ctx)

	consumer := queue.NewConsumer(rdb, queue.ConsumerConfig{
		Stream:        cfg.Publish.RegisteredTopic,
		Group:         cfg.Consumer.Group,
		Consumer:      cfg.Consumer.Name,
		Block:         cfg.Consumer.Block,
		ClaimMinIdle:  cfg.Consumer.ClaimMinIdle,
		ClaimInterval: cfg.Consumer.ClaimInterval,
	}, dispatcher, log)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := consumer.Run(ctx); err != nil {
			log.Error().Err(err).Msg("consumer stopped")
		}
		dispatcher.Wait()
	}()
}
