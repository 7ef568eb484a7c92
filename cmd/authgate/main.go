package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fernlabs/authgate/internal/bootstrap"
	"github.com/fernlabs/authgate/internal/config"
	httptransport "github.com/fernlabs/authgate/internal/http"
	"github.com/fernlabs/authgate/internal/http/handler"
	"github.com/fernlabs/authgate/internal/http/middleware"
	"github.com/fernlabs/authgate/internal/jwt"
	"github.com/fernlabs/authgate/internal/limiter"
	"github.com/fernlabs/authgate/internal/migrate"
	"github.com/fernlabs/authgate/internal/repository"
	"github.com/fernlabs/authgate/internal/server"
	"github.com/fernlabs/authgate/internal/service"
	"github.com/fernlabs/authgate/internal/telemetry"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newSnowflake,
			newPGXPool,
			newAccountRepository,
			newRefreshTokenRepository,
			newCodec,
			service.NewAccountService,
			newRefreshTokenService,
			newLoginLimiter,
			handler.NewAuthHandler,
			newAuthMiddleware,
			newRateLimiter,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, runMigrations, bootstrap.EnsureAdmin, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newSnowflake() (*snowflake.Node, error) {
	node, err := snowflake.NewNode(1)
	return node, err
}

func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newAccountRepository(pool *pgxpool.Pool) repository.AccountRepository {
	return repository.NewPostgresAccountRepo(pool)
}

func newRefreshTokenRepository(pool *pgxpool.Pool) repository.RefreshTokenRepository {
	return repository.NewPostgresRefreshTokenRepo(pool)
}

func newCodec(cfg config.Config) (*jwt.Codec, error) {
	return jwt.NewCodec(cfg.JWTSecret, cfg.AccessTokenTTL)
}

func newRefreshTokenService(tokens repository.RefreshTokenRepository, accounts repository.AccountRepository, codec *jwt.Codec, node *snowflake.Node, cfg config.Config, logger *zap.Logger) *service.RefreshTokenService {
	return service.NewRefreshTokenService(tokens, accounts, codec, node, service.RefreshTokenConfig{
		TTL:           cfg.RefreshTokenTTL,
		TokenBytes:    cfg.RefreshTokenBytes,
		Rotate:        cfg.RefreshRotate,
		RevokeOnLogin: cfg.RevokeOnLogin,
	}, logger)
}

// newLoginLimiter prefers Redis when configured so lockouts survive restarts
// and are shared across replicas; otherwise it falls back to process memory.
func newLoginLimiter(lc fx.Lifecycle, cfg config.Config) (limiter.Limiter, error) {
	if cfg.RedisAddr == "" {
		return limiter.NewMemory(cfg.LoginMaxFailures, cfg.LoginLockout), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return limiter.NewRedis(client, cfg.LoginMaxFailures, cfg.LoginLockout), nil
}

func newAuthMiddleware(codec *jwt.Codec, accounts *service.AccountService, logger *zap.Logger) *middleware.Auth {
	return &middleware.Auth{Codec: codec, Accounts: accounts, Logger: logger}
}

func newRateLimiter(cfg config.Config) *middleware.RateLimiter {
	return middleware.NewRateLimiter(cfg.RateLimitRPM)
}

func runMigrations(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := migrate.Up(ctx, cfg.DatabaseURL); err != nil {
				return fmt.Errorf("apply migrations: %w", err)
			}
			logger.Info("migrations applied")
			return nil
		},
	})
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
