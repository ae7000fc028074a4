// Package app wires configuration into a ready orchestrator for the seed binaries.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"headstart/internal/batch"
	"headstart/internal/catalog"
	"headstart/internal/exchangerates"
	"headstart/internal/ledger"
	"headstart/internal/orchestrator"
	"headstart/pkg/blob"
	"headstart/pkg/config"
	"headstart/pkg/db"
	"headstart/pkg/platform"
	"headstart/pkg/portal"
)

// App holds the long-lived collaborators behind one orchestrator.
type App struct {
	Seeder *orchestrator.Seeder
	Runs   ledger.Store

	pool *pgxpool.Pool
	rdb  *redis.Client
}

// New connects to whatever backing services cfg names and falls back to in-memory stores for
// the rest. Connection failures on configured services are fatal.
func New(ctx context.Context, cfg config.Config, log *zap.SugaredLogger) (*App, error) {
	a := &App{
		pool: db.MustConnect(cfg, log),
		rdb:  db.MustRedis(cfg, log),
	}

	var (
		tokens platform.TokenCache
		locks  ledger.Locker
	)
	if a.pool != nil {
		if err := ledger.EnsureSchema(ctx, a.pool); err != nil {
			a.Close()
			return nil, fmt.Errorf("ledger schema: %w", err)
		}
		a.Runs = ledger.NewPostgresStore(a.pool, log)
	} else {
		a.Runs = ledger.NewMemoryStore()
	}
	if a.rdb != nil {
		tokens = platform.NewRedisTokenCache(a.rdb)
		locks = ledger.NewRedisLocker(a.rdb)
	} else {
		tokens = platform.NewMemoryTokenCache()
		locks = ledger.NewMemoryLocker()
	}

	var oc platform.Client
	if cfg.APIURL != "" {
		hc, err := platform.NewHTTPClient(platform.HTTPConfig{
			APIURL:       cfg.APIURL,
			AuthURL:      cfg.AuthURL,
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RateLimit:    cfg.PlatformRateRPS,
		}, tokens, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		oc = hc
	} else {
		// Every flow fails its configuration check before touching the platform.
		log.Warnw("ORDERCLOUD_API_URL not set; provisioning requests will be rejected")
		oc = platform.NewMemory()
	}

	translations, rateStore, err := blobStores(ctx, cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	cat, err := catalog.Default()
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Seeder = orchestrator.New(orchestrator.Config{
		APIURL:            cfg.APIURL,
		ClientID:          cfg.ClientID,
		WebhookHashKey:    cfg.WebhookHashKey,
		MiddlewareBaseURL: cfg.MiddlewareBaseURL,
		LocalCheckoutURL:  cfg.LocalCheckoutURL,
		LockTTL:           cfg.RunLockTTL,
	}, orchestrator.Deps{
		Platform:     oc,
		Portal:       portal.New(cfg.PortalURL),
		Rates:        exchangerates.New(cfg.ExchangeRatesURL, cfg.ExchangeRatesBases, rateStore, log),
		Translations: translations,
		Catalog:      cat,
		Batch:        batch.New(cfg.BatchConcurrency, cfg.BatchSize, cfg.BatchPause),
		Runs:         a.Runs,
		Locks:        locks,
		Log:          log,
	})
	return a, nil
}

func blobStores(ctx context.Context, cfg config.Config, log *zap.SugaredLogger) (translations, rates blob.Store, err error) {
	if cfg.BlobEndpoint == "" {
		return blob.NewMemoryStore(), blob.NewMemoryStore(), nil
	}
	s3cfg := blob.S3Config{
		Endpoint:     cfg.BlobEndpoint,
		Region:       cfg.BlobRegion,
		AccessKey:    cfg.BlobAccessKey,
		SecretKey:    cfg.BlobSecretKey,
		UsePathStyle: cfg.BlobUsePathStyle,
	}
	t, err := blob.NewS3Store(ctx, s3cfg, cfg.TranslationsContainer, log)
	if err != nil {
		return nil, nil, fmt.Errorf("translations store: %w", err)
	}
	r, err := blob.NewS3Store(ctx, s3cfg, cfg.ExchangeRatesContainer, log)
	if err != nil {
		return nil, nil, fmt.Errorf("exchange rates store: %w", err)
	}
	for _, s := range []*blob.S3Store{t, r} {
		if err := s.EnsureContainer(ctx); err != nil {
			return nil, nil, err
		}
	}
	return t, r, nil
}

// Close releases database and cache connections.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
}
