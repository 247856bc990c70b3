package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/merchline/matchbox/internal/models"
)

type storefrontCall struct {
	sinceID      int64
	updatedSince time.Time
}

type fakeStorefrontClient struct {
	orders []models.StorefrontOrder
	calls  []storefrontCall
	err    error
}

func (c *fakeStorefrontClient) ListOrders(ctx context.Context, sinceID int64, limit int, updatedSince time.Time) ([]models.StorefrontOrder, error) {
	c.calls = append(c.calls, storefrontCall{sinceID: sinceID, updatedSince: updatedSince})
	if c.err != nil {
		return nil, c.err
	}
	var out []models.StorefrontOrder
	for _, o := range c.orders {
		if o.ID <= sinceID {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, o)
	}
	return out, nil
}

type fakeStorefrontRepo struct {
	upserts   []models.StorefrontOrder
	upsertErr map[int64]error
	lastSync  *time.Time
	syncErr   error
}

func (r *fakeStorefrontRepo) UpsertStorefrontOrder(ctx context.Context, o models.StorefrontOrder) error {
	if err, ok := r.upsertErr[o.ID]; ok {
		return err
	}
	r.upserts = append(r.upserts, o)
	return nil
}

func (r *fakeStorefrontRepo) StorefrontLastSync(ctx context.Context) (*time.Time, error) {
	return r.lastSync, r.syncErr
}

func sorder(id int64) models.StorefrontOrder {
	return models.StorefrontOrder{
		ID:          id,
		OrderNumber: "#1001",
		TotalAmount: decimal.New(1999, -2),
		Currency:    "USD",
		OrderedAt:   time.Now().UTC(),
	}
}

func TestStorefrontSyncer_notConfigured(t *testing.T) {
	s := NewStorefrontSyncer(nil, &fakeStorefrontRepo{}, nil, nil, "t")

	res, err := s.Run(context.Background(), Options{})
	require.NoError(t, err)
	require.False(t, res.Configured)
	require.Contains(t, res.Message, "not configured")
}

func TestStorefrontSyncer_watermarkPushedDown(t *testing.T) {
	watermark := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	client := &fakeStorefrontClient{orders: []models.StorefrontOrder{sorder(1)}}
	repo := &fakeStorefrontRepo{lastSync: &watermark}
	s := NewStorefrontSyncer(client, repo, nil, nil, "t")

	_, err := s.Run(context.Background(), Options{})
	require.NoError(t, err)
	require.Len(t, client.calls, 1)
	require.Equal(t, watermark, client.calls[0].updatedSince)
}

func TestStorefrontSyncer_emptyStoreUsesLookback(t *testing.T) {
	client := &fakeStorefrontClient{}
	repo := &fakeStorefrontRepo{}
	s := NewStorefrontSyncer(client, repo, nil, nil, "t").
		WithSettings(Settings{Lookback: 48 * time.Hour})

	before := time.Now().UTC().Add(-48 * time.Hour)
	_, err := s.Run(context.Background(), Options{})
	require.NoError(t, err)
	require.Len(t, client.calls, 1)
	got := client.calls[0].updatedSince
	require.WithinDuration(t, before, got, 5*time.Second)
}

func TestStorefrontSyncer_fullSyncIgnoresWatermark(t *testing.T) {
	watermark := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	client := &fakeStorefrontClient{orders: []models.StorefrontOrder{sorder(1)}}
	repo := &fakeStorefrontRepo{lastSync: &watermark}
	s := NewStorefrontSyncer(client, repo, nil, nil, "t")

	res, err := s.Run(context.Background(), Options{FullSync: true})
	require.NoError(t, err)
	require.True(t, res.FullSync)
	require.True(t, client.calls[0].updatedSince.IsZero())
}

func TestStorefrontSyncer_cursorAdvances(t *testing.T) {
	var all []models.StorefrontOrder
	for i := int64(1); i <= 5; i++ {
		all = append(all, sorder(i))
	}
	client := &fakeStorefrontClient{orders: all}
	repo := &fakeStorefrontRepo{}
	s := NewStorefrontSyncer(client, repo, nil, nil, "t").
		WithSettings(Settings{PageSize: 2})

	res, err := s.Run(context.Background(), Options{})
	require.NoError(t, err)
	require.Equal(t, 5, res.OrdersSynced)
	require.Equal(t, 3, res.Pages)
	require.Equal(t, int64(0), client.calls[0].sinceID)
	require.Equal(t, int64(2), client.calls[1].sinceID)
	require.Equal(t, int64(4), client.calls[2].sinceID)
}

func TestStorefrontSyncer_perRecordFailureContinues(t *testing.T) {
	client := &fakeStorefrontClient{orders: []models.StorefrontOrder{sorder(1), sorder(2), sorder(3)}}
	repo := &fakeStorefrontRepo{upsertErr: map[int64]error{2: errors.New("constraint")}}
	s := NewStorefrontSyncer(client, repo, nil, nil, "t")

	res, err := s.Run(context.Background(), Options{})
	require.NoError(t, err)
	require.Equal(t, 2, res.OrdersSynced)
	require.Equal(t, 1, res.OrdersFailed)
}

func TestStorefrontSyncer_fetchErrorAborts(t *testing.T) {
	client := &fakeStorefrontClient{err: errors.New("429 too many requests")}
	s := NewStorefrontSyncer(client, &fakeStorefrontRepo{}, nil, nil, "t")

	_, err := s.Run(context.Background(), Options{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "429")

	st := s.Stats()
	require.Equal(t, int64(1), st.TotalRuns)
	require.Contains(t, st.LastError, "429")
}

func TestStorefrontSyncer_watermarkLoadErrorAborts(t *testing.T) {
	client := &fakeStorefrontClient{}
	repo := &fakeStorefrontRepo{syncErr: errors.New("db down")}
	s := NewStorefrontSyncer(client, repo, nil, nil, "t")

	_, err := s.Run(context.Background(), Options{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "storefront watermark")
	require.Empty(t, client.calls)
}

func TestSettings_withDefaults(t *testing.T) {
	s := Settings{}.withDefaults()
	require.Equal(t, DefaultSettings(), s)

	s = Settings{PageSize: 25}.withDefaults()
	require.Equal(t, 25, s.PageSize)
	require.Equal(t, DefaultSettings().MaxPagesFull, s.MaxPagesFull)
}
