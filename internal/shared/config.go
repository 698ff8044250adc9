package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	Store       string // mysql|memory
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string

	GoogleBase     string
	GoogleKey      string
	GoogleRPS      int
	PlacesProvider string // google|elastic
	ElasticURL     string
	ElasticIndex   string
	AssistantBase  string
	AssistantKey   string
	PhoneRegion    string

	DefaultRadius    int
	DefaultMinRating float64
	FallbackTypes    []string
	EnrichWorkers    int
	ScoreTimeout     time.Duration
	CacheTTL         time.Duration
	GeocodeTTL       time.Duration

	IndexWorkers  int
	IndexPageSize int
}

func Load() Config {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	atof := func(k string, def float64) float64 {
		if v := os.Getenv(k); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f
			}
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),
		Store:       env("STORE", "mysql"),
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/midway?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:   env("REDIS_ADDR", "localhost:6379"),
		RedisDB:     atoi("REDIS_DB", 0),
		RedisPass:   env("REDIS_PASSWORD", ""),

		GoogleBase:     env("GOOGLE_MAPS_BASE_URL", "https://maps.googleapis.com/maps/api"),
		GoogleKey:      env("GOOGLE_MAPS_API_KEY", ""),
		GoogleRPS:      atoi("GOOGLE_MAPS_RPS", 10),
		PlacesProvider: env("PLACES_PROVIDER", "google"),
		ElasticURL:     env("ELASTIC_URL", ""),
		ElasticIndex:   env("ELASTIC_INDEX", "venues"),
		AssistantBase:  env("ASSISTANT_BASE_URL", ""),
		AssistantKey:   env("ASSISTANT_API_KEY", ""),
		PhoneRegion:    env("PHONE_REGION", "US"),

		DefaultRadius:    atoi("DEFAULT_RADIUS_METERS", 5000),
		DefaultMinRating: atof("DEFAULT_MIN_RATING", 4.0),
		FallbackTypes:    splitList(env("FALLBACK_TYPES", "restaurant,cafe,bar")),
		EnrichWorkers:    atoi("ENRICH_WORKERS", 8),
		ScoreTimeout:     time.Duration(atoi("SCORE_TIMEOUT_MS", 8000)) * time.Millisecond,
		CacheTTL:         time.Duration(atoi("CACHE_TTL_SECONDS", 900)) * time.Second,
		GeocodeTTL:       time.Duration(atoi("GEOCODE_TTL_SECONDS", 7*24*3600)) * time.Second,

		IndexWorkers:  atoi("INDEX_WORKERS", 4),
		IndexPageSize: atoi("INDEX_PAGE_SIZE", 200),
	}
	if c.GoogleKey == "" {
		log.Warn().Msg("GOOGLE_MAPS_API_KEY is empty")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if t := strings.ToLower(strings.TrimSpace(p)); t != "" {
			out = append(out, t)
		}
	}
	return out
}
