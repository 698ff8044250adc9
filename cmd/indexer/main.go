package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"midway/internal/adapters/assistant"
	"midway/internal/adapters/elastic"
	"midway/internal/adapters/observability"
	"midway/internal/app"
	"midway/internal/domain"
	"midway/internal/prefs"
	"midway/internal/shared"
	mysqlrepo "midway/internal/storage/mysql"
)

// indexer backfills venue analyses in MySQL and mirrors the venue cache into
// Elasticsearch when ELASTIC_URL is set.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	log.Info().
		Int("workers", cfg.IndexWorkers).
		Int("page", cfg.IndexPageSize).
		Str("elastic", cfg.ElasticURL).
		Msg("indexer starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")
	repo := mysqlrepo.New(db)

	var analyzer domain.VenueAnalyzer = prefs.HeuristicAnalyzer{}
	if cfg.AssistantBase != "" {
		ai, err := assistant.New(cfg.AssistantBase, cfg.AssistantKey, 5)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize assistant client")
		}
		analyzer = ai
	}

	var index domain.VenueIndex
	if cfg.ElasticURL != "" {
		es, err := elastic.New(cfg.ElasticURL, cfg.ElasticIndex)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize Elasticsearch client")
		}
		defer es.Stop()
		if err := es.EnsureIndex(ctx); err != nil {
			log.Fatal().Err(err).Msg("ensure index failed")
		}
		index = es
	}

	start := time.Now()
	st, err := app.NewIndexService(repo, analyzer, index, cfg.IndexWorkers, cfg.IndexPageSize).Run(ctx)
	ev := log.Info()
	if err != nil {
		ev = log.Error().Err(err)
	}
	ev.
		Int("scanned", st.Scanned).
		Int("analyzed", st.Analyzed).
		Int("failed", st.Failed).
		Int("indexed", st.Indexed).
		Dur("took", time.Since(start)).
		Msg("indexing finished")
	if err != nil {
		stop()
		os.Exit(1)
	}
}
