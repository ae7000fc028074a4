// pkg/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	HTTPAddr string // seed-service

	// Commerce platform (OrderCloud) settings
	APIURL          string
	AuthURL         string
	ClientID        string // middleware client used for staging restore
	ClientSecret    string
	WebhookHashKey  string
	PlatformRateRPS float64 // 0 disables the outbound limiter

	// Environment settings
	MiddlewareBaseURL string
	LocalCheckoutURL  string // dev tunnel for the LOCAL checkout integration event
	PortalURL         string

	// Batch runner
	BatchConcurrency int
	BatchSize        int
	BatchPause       time.Duration

	// Blob storage (S3 compatible)
	BlobEndpoint           string
	BlobRegion             string
	BlobAccessKey          string
	BlobSecretKey          string
	BlobUsePathStyle       bool
	TranslationsContainer  string
	ExchangeRatesContainer string

	// Exchange rates
	ExchangeRatesURL   string
	ExchangeRatesBases []string

	// Redis & Postgres
	RedisURL    string
	DatabaseURL string
	RunLockTTL  time.Duration
}

func Load() Config {
	_ = godotenv.Load()
	apiURL := env("ORDERCLOUD_API_URL", "")
	cfg := Config{
		Env:                    env("HEADSTART_ENV", "dev"),
		HTTPAddr:               env("HTTP_ADDR", ":8080"),
		APIURL:                 apiURL,
		AuthURL:                env("ORDERCLOUD_AUTH_URL", apiURL),
		ClientID:               env("ORDERCLOUD_CLIENT_ID", ""),
		ClientSecret:           env("ORDERCLOUD_CLIENT_SECRET", ""),
		WebhookHashKey:         env("ORDERCLOUD_WEBHOOK_HASH_KEY", ""),
		PlatformRateRPS:        envFloat("PLATFORM_RATE_LIMIT", 0),
		MiddlewareBaseURL:      strings.TrimRight(env("MIDDLEWARE_BASE_URL", ""), "/"),
		LocalCheckoutURL:       env("LOCAL_CHECKOUT_URL", "https://marketplaceteam.ngrok.io"),
		PortalURL:              env("PORTAL_URL", "https://portal.ordercloud.io/api/v1"),
		BatchConcurrency:       envInt("BATCH_CONCURRENCY", 20),
		BatchSize:              envInt("BATCH_SIZE", 500),
		BatchPause:             envDur("BATCH_PAUSE_MS", 0) * time.Millisecond,
		BlobEndpoint:           env("BLOB_ENDPOINT", ""),
		BlobRegion:             env("BLOB_REGION", "us-east-1"),
		BlobAccessKey:          env("BLOB_ACCESS_KEY", ""),
		BlobSecretKey:          env("BLOB_SECRET_KEY", ""),
		BlobUsePathStyle:       envBool("BLOB_USE_PATH_STYLE", true),
		TranslationsContainer:  env("BLOB_CONTAINER_TRANSLATIONS", "ngx-translate"),
		ExchangeRatesContainer: env("BLOB_CONTAINER_EXCHANGE_RATES", "currency"),
		ExchangeRatesURL:       env("EXCHANGE_RATES_URL", "https://api.exchangerate.host/latest"),
		ExchangeRatesBases:     envList("EXCHANGE_RATES_BASES", []string{"USD", "EUR", "GBP", "CAD", "AUD"}),
		RedisURL:               env("REDIS_URL", ""),
		DatabaseURL:            env("DATABASE_URL", ""),
		RunLockTTL:             envDur("RUN_LOCK_TTL_SEC", 1800) * time.Second,
	}
	if cfg.DatabaseURL == "" {
		log.Println("[WARN] DATABASE_URL not set; using in-memory run ledger")
	}
	if cfg.BlobEndpoint == "" {
		log.Println("[WARN] BLOB_ENDPOINT not set; blob writes stay in memory")
	}
	return cfg
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
func envBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		b, _ := strconv.ParseBool(v)
		return b
	}
	return def
}
func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
func envFloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		i, _ := strconv.Atoi(v)
		return time.Duration(i)
	}
	return time.Duration(def)
}
func envList(k string, def []string) []string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
