package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"city_router/pkg/api"
	"city_router/pkg/catalog"
	"city_router/pkg/catalog/neo4j"
	"city_router/pkg/catalog/postgres"
	"city_router/pkg/config"
	"city_router/pkg/logging"
	"city_router/pkg/routing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Logging, os.Stderr)
	slog.SetDefault(logger)

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	start := time.Now()

	store, closeStore, err := openStore(ctx, cfg.Catalog, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	if cfg.Catalog.Seed != "" {
		n, err := catalog.Seed(ctx, store, cfg.Catalog.Seed)
		if err != nil {
			return err
		}
		logger.Info("catalog seeded", "path", cfg.Catalog.Seed, "cities", n)
	}

	count, err := store.CountCities(ctx)
	if err != nil {
		return fmt.Errorf("count cities: %w", err)
	}
	logger.Info("catalog ready",
		"backend", cfg.Catalog.Backend,
		"cities", count,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)

	engine := routing.NewEngine(store, logger)
	handlers := api.NewHandlers(engine, store, logger)
	srv := api.NewServer(cfg.HTTP, handlers, logger)

	return api.ListenAndServe(ctx, srv, cfg.HTTP.ShutdownTimeout, logger)
}

// openStore connects the configured catalog backend and prepares its schema.
func openStore(ctx context.Context, cfg config.CatalogConfig, logger *slog.Logger) (catalog.Store, func(), error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		pool, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		store := postgres.New(pool)
		if err := store.CreateSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("create schema: %w", err)
		}
		logger.Info("connected to postgres")
		return store, pool.Close, nil

	case config.BackendNeo4j:
		client, err := neo4j.NewClient(ctx, neo4j.Options{
			URI:            cfg.Graph.URI,
			Database:       cfg.Graph.Database,
			Username:       cfg.Graph.Username,
			Password:       cfg.Graph.Password,
			MaxConnections: cfg.Graph.MaxConnections,
		})
		if err != nil {
			return nil, nil, err
		}
		closeClient := func() {
			if err := client.Close(context.Background()); err != nil {
				logger.Warn("close graph client", "error", err)
			}
		}
		store := neo4j.New(client)
		if err := store.CreateConstraints(ctx); err != nil {
			closeClient()
			return nil, nil, err
		}
		logger.Info("connected to neo4j", "uri", cfg.Graph.URI)
		return store, closeClient, nil

	default:
		return catalog.NewMemory(), func() {}, nil
	}
}
