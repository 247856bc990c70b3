package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/merchline/matchbox/config"
	"github.com/merchline/matchbox/internal/broker/kafka"
	"github.com/merchline/matchbox/internal/cache/rediscache"
	"github.com/merchline/matchbox/internal/integrations/orders"
	"github.com/merchline/matchbox/internal/integrations/orders/fake"
	"github.com/merchline/matchbox/internal/integrations/printfulhttp"
	"github.com/merchline/matchbox/internal/integrations/shopifyhttp"
	"github.com/merchline/matchbox/internal/services/syncer"
	"github.com/merchline/matchbox/internal/storage/pgorders"
)

type syncRepository interface {
	syncer.FulfillmentRepository
	syncer.StorefrontRepository
}

type syncFactories struct {
	newStorage           func(cfg *config.Config) (repo syncRepository, closeFn func(), err error)
	newProducer          func(cfg *config.Config) syncer.Producer
	newRateLimiter       func(cfg *config.Config) syncer.RateLimiter
	newFulfillmentClient func(cfg *config.Config) orders.FulfillmentClient
	newStorefrontClient  func(cfg *config.Config) orders.StorefrontClient
}

func defaultSyncFactories() syncFactories {
	return syncFactories{
		newStorage: func(cfg *config.Config) (syncRepository, func(), error) {
			sslMode := cfg.Database.SSLMode
			if sslMode == "" {
				sslMode = "disable"
			}
			connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
				cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
			st, err := pgorders.New(connString)
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newProducer: func(cfg *config.Config) syncer.Producer {
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			return kafka.NewProducer(brokers)
		},
		newRateLimiter: func(cfg *config.Config) syncer.RateLimiter {
			redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			return rediscache.NewRateLimiter(redisAddr)
		},
		// A missing credential means the provider is not wired in this
		// environment; the syncer reports a soft "not configured" result.
		// base_url "fake" selects the deterministic in-process provider for
		// demos and local runs.
		newFulfillmentClient: func(cfg *config.Config) orders.FulfillmentClient {
			if cfg.Printful.BaseURL == "fake" {
				return fake.New(0)
			}
			if cfg.Printful.APIKey == "" {
				return nil
			}
			return printfulhttp.New(cfg.Printful.BaseURL, cfg.Printful.APIKey)
		},
		newStorefrontClient: func(cfg *config.Config) orders.StorefrontClient {
			if cfg.Shopify.BaseURL == "fake" {
				return fake.New(0).Storefront()
			}
			if cfg.Shopify.AccessToken == "" {
				return nil
			}
			baseURL := cfg.Shopify.BaseURL
			if baseURL == "" && cfg.Shopify.ShopDomain != "" {
				baseURL = fmt.Sprintf("https://%s", cfg.Shopify.ShopDomain)
			}
			return shopifyhttp.New(baseURL, cfg.Shopify.AccessToken)
		},
	}
}

func RunMatchSync(ctx context.Context, cfg *config.Config, f syncFactories) error {
	topic := cfg.Kafka.SyncCompletedTopicName
	if topic == "" {
		topic = "reconcile.sync_completed"
	}

	settings := syncer.Settings{
		PageSize:            cfg.MatchBox.SyncPageSize,
		MaxPagesIncremental: cfg.MatchBox.SyncMaxPagesIncremental,
		MaxPagesFull:        cfg.MatchBox.SyncMaxPagesFull,
		Lookback:            time.Duration(cfg.MatchBox.SyncLookbackDays) * 24 * time.Hour,
		RateLimitPerMinute:  int64(cfg.MatchBox.SyncRateLimitPerMinute),
	}

	repo, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	producer := f.newProducer(cfg)
	rl := f.newRateLimiter(cfg)

	fulfillment := syncer.NewFulfillmentSyncer(f.newFulfillmentClient(cfg), repo, producer, rl, topic).
		WithSettings(settings)
	storefront := syncer.NewStorefrontSyncer(f.newStorefrontClient(cfg), repo, producer, rl, topic).
		WithSettings(settings)

	// Background incremental runs are opt-in; with interval 0 syncs only run
	// when triggered over HTTP.
	if interval := time.Duration(cfg.MatchBox.SyncIntervalSeconds) * time.Second; interval > 0 {
		go runInterval(ctx, interval, fulfillment, storefront)
	}

	httpAddr := cfg.MatchBox.SyncHTTPAddr
	if httpAddr == "" {
		httpAddr = ":8082"
	}

	return runSyncHTTPServer(ctx, syncHTTPOpts{
		httpAddr:    httpAddr,
		swaggerPath: os.Getenv("swaggerPath"),
		fulfillment: fulfillment,
		storefront:  storefront,
		cfg:         cfg,
	})
}

func runInterval(ctx context.Context, interval time.Duration, fulfillment *syncer.FulfillmentSyncer, storefront *syncer.StorefrontSyncer) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if res, err := fulfillment.Run(ctx, syncer.Options{}); err != nil {
				slog.Error("scheduled fulfillment sync failed", "error", err.Error())
			} else if res.Configured {
				slog.Info("scheduled fulfillment sync", "orders", res.OrdersSynced, "pages", res.Pages)
			}
			if res, err := storefront.Run(ctx, syncer.Options{}); err != nil {
				slog.Error("scheduled storefront sync failed", "error", err.Error())
			} else if res.Configured {
				slog.Info("scheduled storefront sync", "orders", res.OrdersSynced, "pages", res.Pages)
			}
		}
	}
}
