// Command seed loads a catalog document into the storefront PostgreSQL
// database. Without -file the catalog compiled into the service is used.
//
// Run: go run ./services/storefront/cmd/seed -file catalog.json
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/utafrali/lagosbazaar/pkg/database"
	"github.com/utafrali/lagosbazaar/pkg/logger"
	"github.com/utafrali/lagosbazaar/services/storefront/internal/catalog"
	pgcatalog "github.com/utafrali/lagosbazaar/services/storefront/internal/catalog/postgres"
	"github.com/utafrali/lagosbazaar/services/storefront/internal/config"
)

func main() {
	file := flag.String("file", "", "catalog JSON document; defaults to the embedded catalog")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.New("storefront-seed", cfg.LogLevel)

	doc, err := readDocument(*file)
	if err != nil {
		log.Error("failed to read catalog", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pgCfg := database.DefaultPostgresConfig()
	pgCfg.Host = cfg.PostgresHost
	pgCfg.Port = cfg.PostgresPort
	pgCfg.User = cfg.PostgresUser
	pgCfg.Password = cfg.PostgresPass
	pgCfg.DBName = cfg.PostgresDB
	pgCfg.SSLMode = cfg.PostgresSSL

	pool, err := database.NewPostgresPool(ctx, &pgCfg, log)
	if err != nil {
		log.Error("failed to connect to postgres", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	if err := pgcatalog.Migrate(ctx, pool, log); err != nil {
		log.Error("failed to migrate catalog", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := pgcatalog.Seed(ctx, pool, doc); err != nil {
		log.Error("failed to seed catalog", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("catalog seeded",
		slog.Int("categories", len(doc.Categories)-1),
		slog.Int("products", len(doc.Products)),
	)
}

func readDocument(path string) (catalog.Document, error) {
	if path == "" {
		return catalog.EmbeddedDocument()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return catalog.Document{}, err
	}
	return catalog.ParseDocument(data)
}
