package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/config"
	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/core"
	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/correction"
	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/database"
	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/llm"
	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/logging"
	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/schema"
	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/scriptcache"
	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/sink"
	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/validation"
	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"llm_provider", cfg.LLM.Provider,
		"cache_backend", cfg.CacheBackend(),
		"ingest_max_concurrent", cfg.Ingest.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	tpl, err := loadTemplate(cfg.Template.Path)
	if err != nil {
		slog.Error("failed to load template", "path", cfg.Template.Path, "error", err)
		os.Exit(1)
	}
	slog.Info("template loaded", "columns", len(tpl.Columns()), "required", len(tpl.Required()))

	ctx := context.Background()

	var pool *pgxpool.Pool
	if cfg.Database.URL != "" {
		pool, err = database.Open(ctx, cfg.Database)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if cfg.Database.Migrate {
			if err := database.Migrate(pool); err != nil {
				slog.Error("failed to migrate database", "error", err)
				os.Exit(1)
			}
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory cache, audit and sink")
	}

	store, closeStore, err := openScriptCache(ctx, cfg, pool)
	if err != nil {
		slog.Error("failed to open script cache", "backend", cfg.CacheBackend(), "error", err)
		os.Exit(1)
	}
	defer closeStore()

	planner, err := newPlanner(cfg.LLM, tpl)
	if err != nil {
		slog.Error("failed to create planner", "provider", cfg.LLM.Provider, "error", err)
		os.Exit(1)
	}

	deps := core.Dependencies{
		Validator: validation.NewValidator(tpl),
		Generator: correction.NewCachingGenerator(store, planner),
	}
	var auditReader core.AuditReader
	if pool != nil {
		deps.Sink = sink.NewPostgresSink(pool)
		deps.Audit = core.NewPostgresAuditLog(pool)
		db := database.SQLX(pool)
		defer db.Close()
		auditReader = core.NewSQLAuditReader(db)
	} else {
		mem := core.NewMemoryAuditLog()
		deps.Sink = sink.NewMemorySink()
		deps.Audit = mem
		auditReader = mem
	}

	service := core.NewService(cfg.Ingest, deps)
	server := web.NewServer(cfg, service, tpl, auditReader)

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go service.RunJanitor(jobCtx, cfg.Ingest.JanitorInterval, cfg.Ingest.QueueRetention)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := service.Limiter().Status(); status.Active > 0 {
			slog.Info("waiting for files in progress", "active", status.Active)
			if err := service.Limiter().WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("files did not finish in time", "error", err)
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil {
		slog.Info("server stopped", "error", err)
	}
}

func loadTemplate(path string) (*schema.Template, error) {
	if path == "" {
		return schema.Default(), nil
	}
	return schema.Load(path)
}

// openScriptCache returns the configured store and a func releasing it.
func openScriptCache(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) (scriptcache.Store, func(), error) {
	noop := func() {}
	switch backend := cfg.CacheBackend(); backend {
	case "postgres":
		if pool == nil {
			return nil, noop, fmt.Errorf("postgres cache needs DATABASE_URL")
		}
		return scriptcache.NewPostgresStore(pool), noop, nil
	case "redis":
		client, err := scriptcache.NewRedisClient(ctx, cfg.Cache.RedisURL)
		if err != nil {
			return nil, noop, err
		}
		return scriptcache.NewRedisStore(client, cfg.Cache.RedisPrefix), func() { closeRedis(client) }, nil
	case "memory":
		return scriptcache.NewMemoryStore(), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown cache backend %q", backend)
	}
}

func closeRedis(client *redis.Client) {
	if err := client.Close(); err != nil {
		slog.Warn("failed to close redis client", "error", err)
	}
}

// newPlanner picks the script planner. "rules" needs no model and fixes
// only what the deterministic rules can.
func newPlanner(cfg config.LLMConfig, tpl *schema.Template) (correction.Planner, error) {
	if cfg.Provider == "rules" {
		return correction.NewRulePlanner(tpl), nil
	}
	client, err := llm.New(cfg.Provider, llm.Config{
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		APIKey:  cfg.APIKey,
	})
	if err != nil {
		return nil, err
	}

	retry := llm.DefaultRetryConfig()
	retry.MaxRetries = cfg.MaxRetries
	retry.CallTimeout = cfg.Timeout

	planner := correction.NewLLMPlanner(llm.WithRetry(client, retry), tpl)
	planner.Temperature = cfg.Temperature
	planner.MaxTokens = cfg.MaxTokens
	return planner, nil
}
