package main

import (
	"context"
	"fmt"
	"time"

	"tasklist/backend/internal/config"
	"tasklist/backend/internal/database"
	"tasklist/backend/internal/handlers"
	"tasklist/backend/internal/logger"
	"tasklist/backend/internal/middleware"
	"tasklist/backend/internal/monitoring"
	"tasklist/backend/internal/ratelimit"
	"tasklist/backend/internal/repositories"
	"tasklist/backend/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type routerDeps struct {
	cfg     *config.Config
	log     *logger.Logger
	db      *gorm.DB
	limiter ratelimit.Limiter
	// ipLimiter runs before authentication, keyed by client IP.
	ipLimiter ratelimit.Limiter
	health  *monitoring.HealthChecker
	// audit receives denied access decisions. Defaults to the database.
	audit repositories.AuditStore
}

func newRouter(deps routerDeps) *gin.Engine {
	cfg, log := deps.cfg, deps.log

	router := gin.New()
	router.Use(middleware.RecoveryWithLog(log))
	router.Use(middleware.RequestLogger(log))
	router.Use(monitoring.MetricsMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	health := deps.health
	if health == nil {
		health = monitoring.NewHealthChecker(5*time.Second, log)
	}
	router.GET("/health", health.HealthHandler())
	router.GET("/live", monitoring.LivenessHandler())
	router.GET("/metrics", monitoring.MetricsHandler())

	taskStore := repositories.NewTaskStore(deps.db)
	var audit repositories.AuditStore = repositories.NewAuditStore(deps.db)
	if deps.audit != nil {
		audit = deps.audit
	}
	guard := services.NewGuard(audit, log, cfg.Tasks.MaskForeign)
	taskService := services.NewTaskService(taskStore, guard, log)
	taskHandler := handlers.NewTaskHandler(taskService, log)

	tasks := router.Group("/api/tasks")
	if deps.ipLimiter != nil {
		tasks.Use(ratelimit.MiddlewareWithKey(deps.ipLimiter, log, ratelimit.ClientIPKey))
	}
	tasks.Use(middleware.AuthMiddleware(middleware.AuthConfig{
		Secret: cfg.Auth.JWTSecret,
		Issuer: cfg.Auth.Issuer,
	}, log))
	tasks.Use(middleware.RequestInfo())
	if deps.limiter != nil {
		tasks.Use(ratelimit.Middleware(deps.limiter, log))
	}
	taskHandler.RegisterRoutes(tasks)

	return router
}

func openDatabase(cfg *config.Config, log *logger.Logger) (*database.DatabasePool, error) {
	poolConfig := database.DefaultPoolConfig()
	poolConfig.Driver = cfg.Database.Driver
	poolConfig.DSN = cfg.GetDatabaseDSN()
	poolConfig.MaxOpenConns = cfg.Database.MaxOpenConns
	poolConfig.MaxIdleConns = cfg.Database.MaxIdleConns
	poolConfig.ConnMaxLifetime = cfg.Database.ConnMaxLifetime
	poolConfig.ConnMaxIdleTime = cfg.Database.ConnMaxIdleTime
	poolConfig.Writer = log.WithComponent("gorm")
	poolConfig.LogLevel = gormlogger.Warn
	if !cfg.IsProduction() && cfg.Log.Level == "debug" {
		poolConfig.LogLevel = gormlogger.Info
	}

	pool, err := database.NewDatabasePool(poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return pool, nil
}

func openRedis(cfg *config.Config, log *logger.Logger) *redis.Client {
	client := ratelimit.NewRedisClient(&ratelimit.RedisConfig{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Redis.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warnw("Redis unavailable at startup", "addr", cfg.GetRedisAddr(), "error", err)
	}
	return client
}

// newLimiter builds a limiter allowing rpm requests per window and key.
// Without Redis every instance limits on its own.
func newLimiter(ctx context.Context, cfg *config.Config, log *logger.Logger, client redis.UniversalClient, rpm int, prefix string) ratelimit.Limiter {
	if !cfg.RateLimit.Enabled || rpm <= 0 {
		return nil
	}

	local := ratelimit.NewLocalLimiter(rpm, cfg.RateLimit.Window, cfg.RateLimit.BurstSize)
	local.StartCleanup(ctx, cfg.RateLimit.CleanupInterval)
	if client == nil {
		return local
	}

	primary := ratelimit.NewRedisLimiter(client, prefix, rpm, cfg.RateLimit.Window)
	return ratelimit.NewFallbackLimiter(primary, local, nil, log)
}
