package syncer

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/merchline/matchbox/internal/broker/messages"
	"github.com/merchline/matchbox/internal/integrations/orders"
	"github.com/merchline/matchbox/internal/models"
)

type StorefrontRepository interface {
	UpsertStorefrontOrder(ctx context.Context, o models.StorefrontOrder) error
	StorefrontLastSync(ctx context.Context) (*time.Time, error)
}

// StorefrontSyncer pulls commerce-platform orders and upserts them into the
// order store. The platform filters by update time server-side, so the
// watermark is pushed down rather than filtered per page.
type StorefrontSyncer struct {
	client   orders.StorefrontClient
	repo     StorefrontRepository
	producer Producer
	rl       RateLimiter
	topic    string

	settings Settings
	stats    *runStats
}

func NewStorefrontSyncer(client orders.StorefrontClient, repo StorefrontRepository, producer Producer, rl RateLimiter, topic string) *StorefrontSyncer {
	return &StorefrontSyncer{
		client:   client,
		repo:     repo,
		producer: producer,
		rl:       rl,
		topic:    topic,
		settings: DefaultSettings(),
		stats:    newRunStats(),
	}
}

func (s *StorefrontSyncer) WithSettings(settings Settings) *StorefrontSyncer {
	s.settings = settings.withDefaults()
	return s
}

func (s *StorefrontSyncer) Stats() Stats { return s.stats.snapshot() }

func (s *StorefrontSyncer) Run(ctx context.Context, opts Options) (Result, error) {
	res, err := s.run(ctx, opts)
	s.stats.recordRun(res, err)
	return res, err
}

func (s *StorefrontSyncer) run(ctx context.Context, opts Options) (Result, error) {
	res := Result{Configured: true, FullSync: opts.FullSync}

	if s.client == nil {
		res.Configured = false
		res.Message = "storefront platform not configured, skipping sync"
		return res, nil
	}

	var updatedSince time.Time
	if !opts.FullSync {
		ts, err := s.repo.StorefrontLastSync(ctx)
		if err != nil {
			return res, errors.Wrap(err, "load storefront watermark")
		}
		if ts == nil {
			updatedSince = time.Now().UTC().Add(-s.settings.Lookback)
		} else {
			updatedSince = ts.UTC()
		}
	}

	maxPages := s.settings.MaxPagesIncremental
	if opts.FullSync {
		maxPages = s.settings.MaxPagesFull
	}
	if opts.MaxPages > 0 {
		maxPages = opts.MaxPages
	}

	limit := s.settings.PageSize
	var sinceID int64

	for page := 0; page < maxPages; page++ {
		if err := waitForRateLimit(ctx, s.rl, messages.SourceStorefront, s.settings.RateLimitPerMinute); err != nil {
			return res, err
		}

		batch, err := s.client.ListOrders(ctx, sinceID, limit, updatedSince)
		if err != nil {
			return res, errors.Wrap(err, "fetch storefront orders page")
		}
		res.Pages++

		for _, o := range batch {
			if err := s.repo.UpsertStorefrontOrder(ctx, o); err != nil {
				res.OrdersFailed++
				slog.Error("upsert storefront order", "order_id", o.ID, "error", err.Error())
				continue
			}
			res.OrdersSynced++
		}

		if len(batch) < limit {
			break
		}
		sinceID = batch[len(batch)-1].ID
	}

	res.Message = "storefront sync completed"
	if res.OrdersSynced > 0 {
		publishCompleted(ctx, s.producer, s.topic, messages.SyncCompleted{
			Source:       messages.SourceStorefront,
			FullSync:     opts.FullSync,
			OrdersSynced: res.OrdersSynced,
			CompletedAt:  time.Now().UTC(),
		}, messages.SourceStorefront)
	}
	return res, nil
}
