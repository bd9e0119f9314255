package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iotnet/mqtt-auth/pkg/api"
	"github.com/iotnet/mqtt-auth/pkg/config"
	"github.com/iotnet/mqtt-auth/pkg/credentials"
	"github.com/iotnet/mqtt-auth/pkg/decision"
	"github.com/iotnet/mqtt-auth/pkg/observability"
	"github.com/iotnet/mqtt-auth/pkg/password"
	"github.com/iotnet/mqtt-auth/pkg/token"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, os.Stdout)
	logger.WithField("store", cfg.Store.Type).Info("starting mqtt auth backend")

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("server exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics(nil)

	store, err := buildStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer store.Close()

	cache, err := buildCache(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}

	hasher, err := buildHasher(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize hasher: %w", err)
	}

	credsService := credentials.NewService(store, cache, hasher, logger, metrics)
	issuer := token.NewIssuer(cfg.Auth.SecretKey, cfg.Auth.TokenLeeway)
	authService := decision.NewAuthService(credsService, issuer, logger, metrics)
	aclService := decision.NewACLService(credsService, logger, metrics)

	server := api.NewServer(credsService, authService, aclService, store, cfg.Auth.APIKey, cfg.Auth.RateLimit, logger, metrics)
	defer server.Close()

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:      server.HealthHandler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("api server listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("health server failed: %w", err)
		}
		return nil
	})

	// The connection-pool gauges are only meaningful for the pooled backend.
	if pg, ok := store.(*credentials.PostgresStore); ok {
		group.Go(func() error {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-groupCtx.Done():
					return nil
				case <-ticker.C:
					metrics.ObserveDBStats(pg.Stats())
				}
			}
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutdown signal received, draining connections")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("api server shutdown was not clean")
		}
		if err := healthServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("health server shutdown was not clean")
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		return err
	}

	logger.Info("server stopped")
	return nil
}

// buildStore selects and connects the authoritative credential store.
func buildStore(ctx context.Context, cfg *config.Config, logger *observability.Logger) (credentials.Store, error) {
	switch cfg.Store.Type {
	case config.StorePostgres:
		store, err := credentials.NewPostgresStore(cfg.Store.Postgres)
		if err != nil {
			return nil, err
		}
		schemaCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := store.EnsureSchema(schemaCtx); err != nil {
			store.Close()
			return nil, err
		}
		logger.Info("connected to postgres")
		return store, nil

	case config.StoreBadger:
		store, err := credentials.NewBadgerStore(cfg.Store.BadgerPath)
		if err != nil {
			return nil, err
		}
		logger.WithField("path", cfg.Store.BadgerPath).Info("opened badger store")
		return store, nil

	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Store.Type)
	}
}

// buildCache returns the credential cache, or nil when caching is disabled; the
// service substitutes a no-op cache for nil.
func buildCache(ctx context.Context, cfg *config.Config, logger *observability.Logger) (credentials.Cache, error) {
	if !cfg.Cache.Enabled {
		logger.Info("credential cache disabled")
		return nil, nil
	}

	cache, err := credentials.NewRedisCache(cfg.Cache.Redis, cfg.Cache.TTL)
	if err != nil {
		return nil, err
	}
	logger.WithField("ttl", cfg.Cache.TTL.String()).Info("connected to redis cache")
	return cache, nil
}

func buildHasher(cfg *config.Config) (password.Hasher, error) {
	switch cfg.Auth.Hasher {
	case config.HasherArgon2:
		return password.NewArgon2Hasher(), nil
	case config.HasherAESGCM:
		return password.NewAESGCMHasher(cfg.Auth.EncryptionKey)
	default:
		return nil, fmt.Errorf("unknown hasher %q", cfg.Auth.Hasher)
	}
}
