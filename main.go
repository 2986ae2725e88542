package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tasklist/backend/internal/config"
	"tasklist/backend/internal/logger"
	"tasklist/backend/internal/monitoring"
	"tasklist/backend/internal/ratelimit"
	"tasklist/backend/internal/repositories"
	"tasklist/backend/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tasklist",
		Short: "Per-user task list API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newMigrateCommand())

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the task API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the task tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, appLogger, err := bootstrap()
			if err != nil {
				return err
			}
			defer appLogger.Close()

			pool, err := openDatabase(cfg, appLogger)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := pool.Migrate(); err != nil {
				return err
			}
			appLogger.Info("Database migrated")
			return nil
		},
	}
}

func bootstrap() (*config.Config, *logger.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, appLogger, nil
}

func runServer() error {
	cfg, appLogger, err := bootstrap()
	if err != nil {
		return err
	}
	defer appLogger.Close()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	pool, err := openDatabase(cfg, appLogger)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pool.Migrate(); err != nil {
		return err
	}

	health := monitoring.NewHealthChecker(5*time.Second, appLogger)
	health.Register("database", pool.HealthCheck)

	var (
		redisClient *redis.Client
		audit       repositories.AuditStore
	)
	if cfg.Redis.Enabled {
		redisClient = openRedis(cfg, appLogger)
		defer redisClient.Close()
		health.Register("redis", ratelimit.PingCheck(redisClient))

		auditWorker := worker.NewWorker(worker.Config{
			Client:      redisClient,
			Sink:        repositories.NewAuditStore(pool.DB),
			Concurrency: 2,
			Log:         appLogger,
		})
		auditWorker.Start()
		defer auditWorker.Stop()
		audit = worker.NewAuditQueue(redisClient, worker.DefaultAuditQueue)
	}
	var limiterClient redis.UniversalClient
	if redisClient != nil {
		limiterClient = redisClient
	}
	limiterCtx, stopLimiters := context.WithCancel(context.Background())
	defer stopLimiters()
	limiter := newLimiter(limiterCtx, cfg, appLogger, limiterClient, cfg.RateLimit.RequestsPerMin, "tasklist:ratelimit:")
	ipLimiter := newLimiter(limiterCtx, cfg, appLogger, limiterClient, cfg.RateLimit.IPRequestsPerMin, "tasklist:ratelimit:pre:")

	router := newRouter(routerDeps{
		cfg:       cfg,
		log:       appLogger,
		db:        pool.DB,
		limiter:   limiter,
		ipLimiter: ipLimiter,
		health:    health,
		audit:     audit,
	})

	srv := &http.Server{
		Addr:         cfg.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		appLogger.Infow("Server starting", "addr", srv.Addr, "environment", cfg.Server.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	appLogger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	appLogger.Info("Server stopped")
	return nil
}
