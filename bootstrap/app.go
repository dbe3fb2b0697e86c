// Package bootstrap wires configuration, storage and services into a running
// application.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"argus/assess"
	"argus/config"
	"argus/embed"
	"argus/service"
	"argus/storage"
)

// App holds every initialized component of the Argus application.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger

	SQLite     *storage.SQLite
	ClickHouse *storage.ClickHouse
	Redis      *redis.Client

	Rules       *storage.SQLiteRuleStorage
	Checkpoints *storage.SQLiteCheckpointStorage
	Embedder    *embed.Client
	Cache       *embed.VectorCache

	Assessment *service.AssessmentService
	Match      *service.MatchService
	Reindex    *service.ReindexService
	Import     *service.ImportService
}

// NewApp loads configuration and initializes storage, the embedding client
// and all services. Components initialize in dependency order; a failure
// tears down whatever already started.
func NewApp(ctx context.Context) (*App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, sugar, err := InitLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	app := &App{
		Config: cfg,
		Logger: logger,
		Sugar:  sugar,
	}

	if err := ensureDataDirectory(cfg.SQLite.Path); err != nil {
		return nil, err
	}

	app.SQLite, err = storage.NewSQLite(cfg.SQLite.Path, sugar)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite: %w", err)
	}

	app.ClickHouse, err = storage.NewClickHouse(cfg, sugar)
	if err != nil {
		app.Shutdown()
		return nil, fmt.Errorf("failed to initialize ClickHouse: %w", err)
	}

	app.Rules = storage.NewSQLiteRuleStorage(app.SQLite, sugar)
	app.Checkpoints = storage.NewSQLiteCheckpointStorage(app.SQLite, sugar)

	app.Embedder = embed.NewClient(&embed.ClientConfig{
		BaseURL:           cfg.Embedding.BaseURL,
		APIKey:            cfg.Embedding.APIKey,
		Timeout:           cfg.Embedding.Timeout,
		MaxRetries:        cfg.Embedding.MaxRetries,
		RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
		Logger:            sugar,
	})

	if cfg.Redis.Enabled {
		app.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := app.Redis.Ping(ctx).Err(); err != nil {
			sugar.Warnw("Redis unavailable, embedding cache disabled", "error", err)
			_ = app.Redis.Close()
			app.Redis = nil
		} else {
			app.Cache = embed.NewVectorCache(app.Redis, cfg.Redis.TTL, sugar)
		}
	}

	if err := app.initServices(); err != nil {
		app.Shutdown()
		return nil, err
	}

	sugar.Infow("Argus initialized",
		"sqlite", cfg.SQLite.Path,
		"clickhouse", cfg.ClickHouse.Addr,
		"embedding", cfg.Embedding.BaseURL,
		"cache", app.Cache != nil)
	return app, nil
}

func (a *App) initServices() error {
	var err error

	a.Assessment, err = service.NewAssessmentService(a.Rules, a.ClickHouse, a.Embedder, a.Cache, service.AssessmentConfig{
		TopK:           a.Config.Assess.TopK,
		MaxMatches:     a.Config.Assess.MaxMatches,
		NoveltyWeights: assess.DefaultNoveltyWeights(),
		SectionWeights: assess.DefaultSectionWeights(),
	}, a.Sugar)
	if err != nil {
		return fmt.Errorf("failed to initialize assessment service: %w", err)
	}

	a.Match, err = service.NewMatchService(a.Rules, a.ClickHouse, a.Embedder, service.MatchConfig{
		Limit:          a.Config.Match.Limit,
		SectionWeights: assess.DefaultSectionWeights(),
	}, a.Sugar)
	if err != nil {
		return fmt.Errorf("failed to initialize match service: %w", err)
	}

	a.Reindex, err = service.NewReindexService(a.Rules, a.Checkpoints, a.ClickHouse, a.Embedder, service.ReindexConfig{
		BatchSize: a.Config.Reindex.BatchSize,
	}, a.Sugar)
	if err != nil {
		return fmt.Errorf("failed to initialize reindex service: %w", err)
	}

	a.Import, err = service.NewImportService(a.Rules, a.ClickHouse, a.Embedder, a.Sugar)
	if err != nil {
		return fmt.Errorf("failed to initialize import service: %w", err)
	}
	return nil
}

// Shutdown closes every component in reverse initialization order.
func (a *App) Shutdown() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Sugar.Warnw("Failed to close Redis client", "error", err)
		}
	}
	if a.ClickHouse != nil {
		if err := a.ClickHouse.Close(); err != nil {
			a.Sugar.Warnw("Failed to close ClickHouse connection", "error", err)
		}
	}
	if a.SQLite != nil {
		if err := a.SQLite.Close(); err != nil {
			a.Sugar.Warnw("Failed to close SQLite", "error", err)
		}
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
}

// ensureDataDirectory creates the parent directory of the SQLite database and
// verifies it is writable before any store opens.
func ensureDataDirectory(sqlitePath string) error {
	if sqlitePath == ":memory:" {
		return nil
	}
	dir := filepath.Dir(sqlitePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory %s: %w", dir, err)
	}

	testFile := filepath.Join(dir, ".argus_write_test")
	if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
		return fmt.Errorf("data directory %s is not writable: %w", dir, err)
	}
	os.Remove(testFile)
	return nil
}
