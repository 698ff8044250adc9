package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"midway/internal/adapters/assistant"
	"midway/internal/adapters/elastic"
	"midway/internal/adapters/googlemaps"
	server "midway/internal/adapters/http_server"
	"midway/internal/adapters/observability"
	redisad "midway/internal/adapters/redis"
	"midway/internal/app"
	"midway/internal/domain"
	"midway/internal/prefs"
	"midway/internal/shared"
	"midway/internal/storage/memory"
	mysqlrepo "midway/internal/storage/mysql"
)

type store interface {
	domain.PlanRepository
	domain.VenueCache
}

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	observability.Serve(cfg.MetricsAddr)

	// storage
	var st store
	switch cfg.Store {
	case "memory":
		log.Warn().Msg("using in-memory store, plans are lost on restart")
		st = memory.New()
	default:
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("sql.Open failed")
		}
		if err := db.Ping(); err != nil {
			log.Fatal().Err(err).Msg("db.Ping failed")
		}
		log.Info().Msg("database connection ok")
		st = mysqlrepo.New(db)
	}

	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err := cache.Ping(context.Background()); err != nil {
		log.Warn().Err(err).Msg("redis unreachable, reads will fall through to storage")
	}

	// providers
	google, err := googlemaps.New(cfg.GoogleBase, cfg.GoogleKey, cfg.GoogleRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize Google Maps client")
	}
	google = google.WithPhoneRegion(cfg.PhoneRegion)

	var searcher domain.PlaceSearcher = google
	if cfg.PlacesProvider == "elastic" {
		es, err := elastic.New(cfg.ElasticURL, cfg.ElasticIndex)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize Elasticsearch client")
		}
		defer es.Stop()
		searcher = es
		log.Info().Str("index", cfg.ElasticIndex).Msg("searching venues in Elasticsearch")
	}

	var (
		parser   domain.PreferenceParser = prefs.KeywordParser{}
		analyzer domain.VenueAnalyzer    = prefs.HeuristicAnalyzer{}
		scorer   domain.PreferenceScorer = prefs.HeuristicScorer{}
	)
	if cfg.AssistantBase != "" {
		ai, err := assistant.New(cfg.AssistantBase, cfg.AssistantKey, 5)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize assistant client")
		}
		parser, analyzer, scorer = ai, ai, ai
		log.Info().Str("base", cfg.AssistantBase).Msg("using assistant for preferences")
	}

	// services
	geocoder := app.NewCachedGeocoder(google, cache, cfg.GeocodeTTL)
	plans := app.NewPlanService(st, st, geocoder, parser, cache, cfg.CacheTTL)
	venues := app.NewVenueService(plans, searcher, st, analyzer, scorer, app.SearchDefaults{
		Type:          firstOr(cfg.FallbackTypes, "restaurant"),
		RadiusMeters:  cfg.DefaultRadius,
		MinRating:     cfg.DefaultMinRating,
		FallbackTypes: cfg.FallbackTypes,
		Workers:       cfg.EnrichWorkers,
		ScoreTimeout:  cfg.ScoreTimeout,
	})

	// http
	srv := server.New(cfg.ScoreTimeout + 10*time.Second)
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Plans: plans, Venues: venues})

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 5 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
	_ = cache.Close()
	log.Info().Msg("API stopped")
}

func firstOr(ss []string, def string) string {
	if len(ss) > 0 {
		return ss[0]
	}
	return def
}
