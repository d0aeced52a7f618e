package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aashrilshazar/WorldSalesMap/db"
	"github.com/aashrilshazar/WorldSalesMap/internal/config"
	"github.com/aashrilshazar/WorldSalesMap/internal/newsjob"
	"github.com/aashrilshazar/WorldSalesMap/internal/repository"
)

// App holds the connections and services shared by the api and fetcher
// binaries.
type App struct {
	KV     *repository.RedisKV
	Store  *repository.NewsRepository
	Engine *newsjob.Engine
}

func Setup(ctx context.Context, cfg *config.Config) (*App, error) {
	err := db.ConnectRedis(ctx, cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("error connecting to Redis: %w", err)
	}

	firms, err := firmSource(ctx, cfg)
	if err != nil {
		db.CloseRedis()
		return nil, err
	}

	kv := repository.NewRedisKV(db.Redis)
	store := repository.NewNewsRepository(kv, cfg.News.SnapshotTTL, cfg.News.JobTTL)

	return &App{
		KV:     kv,
		Store:  store,
		Engine: newsjob.NewFromConfig(cfg, store, firms),
	}, nil
}

func (a *App) Close() {
	db.Close()
	db.CloseRedis()
}

// firmSource prefers the CRM database and falls back to the configured list.
func firmSource(ctx context.Context, cfg *config.Config) (repository.FirmSource, error) {
	if cfg.Database.URL == "" {
		slog.Info("using configured firm list", "firms", len(cfg.News.Firms))
		return repository.StaticFirms(cfg.News.Firms), nil
	}

	if err := db.Connect(ctx, cfg.Database.URL); err != nil {
		return nil, fmt.Errorf("error connecting to DB: %w", err)
	}
	return repository.NewFirmRepository(db.DB), nil
}
