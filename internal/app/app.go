package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/swiftlink/swiftlink/codegen"
	"github.com/swiftlink/swiftlink/internal/auth"
	"github.com/swiftlink/swiftlink/internal/click"
	"github.com/swiftlink/swiftlink/internal/config"
	"github.com/swiftlink/swiftlink/internal/link"
	"github.com/swiftlink/swiftlink/internal/migrations"
	"github.com/swiftlink/swiftlink/internal/redirect"
	"github.com/swiftlink/swiftlink/internal/server"
)

// App holds the application dependencies and configuration.
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	DBPool     *pgxpool.Pool
	Server     *server.Server
	Service    link.Service
	Dispatcher *click.Dispatcher

	redisAcc *click.RedisAccumulator // nil when running on the memory accumulator
}

// New initializes and returns a new App instance with all dependencies wired up.
func New(ctx context.Context) (*App, error) {
	if err := loadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := setupLogger(cfg.App.LogLevel)

	logger.Info("starting application", "env", cfg.App.Environment)

	dbPool, err := connectDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := runMigrations(cfg, logger); err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	accumulator, redisAcc, err := setupAccumulator(ctx, cfg, logger)
	if err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("failed to set up click accumulator: %w", err)
	}

	dispatcher := click.NewDispatcher(accumulator, logger, &click.DispatcherConfig{
		Workers:   cfg.Clicks.Workers,
		QueueSize: cfg.Clicks.QueueSize,
		OpTimeout: cfg.Clicks.OpTimeout,
	})

	generator, err := setupCodeGenerator(cfg)
	if err != nil {
		dbPool.Close()
		return nil, err
	}

	store := link.NewPGStore(dbPool, &link.PGStoreConfig{
		OpTimeout: cfg.Database.OpTimeout,
	})
	cache := redirect.NewCache(cfg.Cache.TTL, cfg.Cache.MaxEntries)

	svc := link.NewService(store, accumulator, &link.ServiceConfig{
		CodeGenerator: generator,
		Cache:         cache,
		Logger:        logger,
		CodeLength:    cfg.Codes.Length,
		CodeRetries:   cfg.Codes.MaxRetries,
	})

	resolver := redirect.NewResolver(redirect.ResolverConfig{
		Store:  store,
		Cache:  cache,
		Clicks: dispatcher,
		Logger: logger,
	})

	linkHandler := link.NewHandler(link.HandlerConfig{
		Service: svc,
		Logger:  logger,
		BaseURL: cfg.Server.BaseURL,
	})
	redirectHandler := redirect.NewHandler(resolver, logger)

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("failed to set up token verifier: %w", err)
	}

	checks := map[string]server.HealthChecker{
		"database": pgChecker{dbPool},
	}
	if redisAcc != nil {
		checks["redis"] = redisAcc
	}

	srv := server.New(cfg, logger, linkHandler, redirectHandler, verifier, checks)

	logger.Info("application initialized",
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
	)

	return &App{
		Config:     cfg,
		Logger:     logger,
		DBPool:     dbPool,
		Server:     srv,
		Service:    svc,
		Dispatcher: dispatcher,
		redisAcc:   redisAcc,
	}, nil
}

// Start starts the application server.
func (a *App) Start(ctx context.Context) error {
	a.Logger.Info("server starting",
		"port", a.Config.Server.Port,
		"base_url", a.Config.Server.BaseURL,
	)

	if err := a.Server.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application. The dispatcher closes
// first so queued clicks drain into the accumulator before it goes away.
func (a *App) Shutdown() error {
	a.Logger.Info("shutting down application")

	if a.Dispatcher != nil {
		a.Dispatcher.Close()
		a.Logger.Info("click dispatcher drained")
	}

	if a.redisAcc != nil {
		if err := a.redisAcc.Close(); err != nil {
			a.Logger.Warn("failed to close redis client", "error", err.Error())
		}
	}

	if a.DBPool != nil {
		a.DBPool.Close()
		a.Logger.Info("database connection closed")
	}

	return nil
}

// pgChecker adapts the pgx pool to the health check interface.
type pgChecker struct {
	pool *pgxpool.Pool
}

func (c pgChecker) HealthCheck(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

// loadEnv loads .env file only in non-production environments.
func loadEnv() error {
	env := os.Getenv("APP_ENV")
	if env == "development" || env == "test" {
		if err := godotenv.Load("../.env"); err != nil {
			log.Println("no .env file found.")
		}
	}
	return nil
}

// setupLogger creates a structured logger based on the log level.
func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}

// connectDatabase establishes a connection to the PostgreSQL database.
func connectDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = cfg.Database.MaxConns
	poolConfig.MinConns = cfg.Database.MinConns

	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established")

	return pool, nil
}

// runMigrations applies pending schema migrations.
func runMigrations(cfg *config.Config, logger *slog.Logger) error {
	migrator, err := migrations.New(cfg.Database.URL(), logger)
	if err != nil {
		return err
	}
	defer migrator.Close()

	return migrator.Up()
}

// setupAccumulator picks the click counter backend. With REDIS_ADDR unset the
// service runs on the in-process accumulator; counts then live and die with
// the process, which is fine for development and single-node setups.
func setupAccumulator(ctx context.Context, cfg *config.Config, logger *slog.Logger) (click.Accumulator, *click.RedisAccumulator, error) {
	if cfg.Redis.Addr == "" {
		logger.Warn("REDIS_ADDR not set, using in-memory click counters")
		return click.NewMemoryAccumulator(), nil, nil
	}

	acc, err := click.NewRedisAccumulator(ctx, click.RedisConfig{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		KeyPrefix:    cfg.Redis.KeyPrefix,
	})
	if err != nil {
		return nil, nil, err
	}

	logger.Info("connected to redis", "addr", cfg.Redis.Addr)
	return acc, acc, nil
}

// setupCodeGenerator builds the generator from the configured alphabet.
func setupCodeGenerator(cfg *config.Config) (codegen.Generator, error) {
	if cfg.Codes.Alphabet == "" {
		return codegen.NewBase62(), nil
	}

	generator, err := codegen.NewAlphabet(cfg.Codes.Alphabet)
	if err != nil {
		return nil, fmt.Errorf("invalid code alphabet: %w", err)
	}
	return generator, nil
}
