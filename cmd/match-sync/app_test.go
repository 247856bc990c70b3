package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/merchline/matchbox/config"
	"github.com/merchline/matchbox/internal/integrations/orders"
	"github.com/merchline/matchbox/internal/integrations/orders/fake"
	"github.com/merchline/matchbox/internal/integrations/printfulhttp"
	"github.com/merchline/matchbox/internal/integrations/shopifyhttp"
	"github.com/merchline/matchbox/internal/models"
	"github.com/merchline/matchbox/internal/services/syncer"
)

type noopRepo struct{}

func (noopRepo) UpsertFulfillmentOrder(ctx context.Context, o models.FulfillmentOrder) error {
	return nil
}

func (noopRepo) FulfillmentLastSync(ctx context.Context) (*time.Time, error) { return nil, nil }

func (noopRepo) UpsertStorefrontOrder(ctx context.Context, o models.StorefrontOrder) error {
	return nil
}

func (noopRepo) StorefrontLastSync(ctx context.Context) (*time.Time, error) { return nil, nil }

type noopProducer struct{}

func (noopProducer) Publish(ctx context.Context, topic string, key, value []byte) error { return nil }

func writeSwaggerFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "swagger.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"openapi":"3.0.0"}`), 0o644))
	return path
}

func TestDefaultSyncFactories_SelectClients(t *testing.T) {
	f := defaultSyncFactories()

	// No credentials: provider not wired.
	require.Nil(t, f.newFulfillmentClient(&config.Config{}))
	require.Nil(t, f.newStorefrontClient(&config.Config{}))

	c1 := f.newFulfillmentClient(&config.Config{
		Printful: config.PrintfulConfig{BaseURL: "fake"},
	})
	_, ok := c1.(*fake.Provider)
	require.True(t, ok)

	c2 := f.newFulfillmentClient(&config.Config{
		Printful: config.PrintfulConfig{APIKey: "k"},
	})
	_, ok = c2.(*printfulhttp.Client)
	require.True(t, ok)

	c3 := f.newStorefrontClient(&config.Config{
		Shopify: config.ShopifyConfig{BaseURL: "fake"},
	})
	require.NotNil(t, c3)

	c4 := f.newStorefrontClient(&config.Config{
		Shopify: config.ShopifyConfig{AccessToken: "tok", ShopDomain: "demo.myshopify.com"},
	})
	_, ok = c4.(*shopifyhttp.Client)
	require.True(t, ok)
}

func TestDefaultSyncFactories_ProducerAndRateLimiter_NonNil(t *testing.T) {
	f := defaultSyncFactories()
	cfg := &config.Config{
		Kafka: config.KafkaConfig{Host: "localhost", Port: 9092},
		Redis: config.RedisConfig{Host: "localhost", Port: 6379},
	}
	require.NotNil(t, f.newProducer(cfg))
	require.NotNil(t, f.newRateLimiter(cfg))
}

func TestRunMatchSync_ContextCanceled(t *testing.T) {
	t.Setenv("swaggerPath", writeSwaggerFile(t))

	calledClose := false
	f := syncFactories{
		newStorage: func(cfg *config.Config) (syncRepository, func(), error) {
			return noopRepo{}, func() { calledClose = true }, nil
		},
		newProducer:          func(cfg *config.Config) syncer.Producer { return noopProducer{} },
		newRateLimiter:       func(cfg *config.Config) syncer.RateLimiter { return nil },
		newFulfillmentClient: func(cfg *config.Config) orders.FulfillmentClient { return nil },
		newStorefrontClient:  func(cfg *config.Config) orders.StorefrontClient { return nil },
	}

	cfg := &config.Config{
		MatchBox: config.MatchBoxConfig{SyncHTTPAddr: "127.0.0.1:0"},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RunMatchSync(ctx, cfg, f)
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, calledClose)
}

func TestSyncHTTPServer_triggerEndpoints(t *testing.T) {
	swagger := writeSwaggerFile(t)

	fulfillment := syncer.NewFulfillmentSyncer(fake.New(5), noopRepo{}, noopProducer{}, nil, "t")
	storefront := syncer.NewStorefrontSyncer(nil, noopRepo{}, noopProducer{}, nil, "t")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	go func() {
		_ = runSyncHTTPServer(ctx, syncHTTPOpts{
			httpAddr:    "127.0.0.1:0",
			swaggerPath: swagger,
			onListen:    func(addr string) { addrCh <- addr },
			fulfillment: fulfillment,
			storefront:  storefront,
		})
	}()

	var addr string
	select {
	case addr = <-addrCh:
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Post("http://"+addr+"/v1/sync/fulfillment", "application/json",
		bytes.NewReader([]byte(`{"fullSync": true}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out syncResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.True(t, out.Success)
	require.True(t, out.FullSync)
	require.Equal(t, 5, out.OrdersSynced)

	// The storefront side has no credentials; the trigger still succeeds with
	// a soft result.
	resp2, err := http.Post("http://"+addr+"/v1/sync/storefront", "application/json", nil)
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)

	var out2 syncResponse
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&out2))
	require.True(t, out2.Success)
	require.Contains(t, out2.Message, "not configured")

	resp3, err := http.Get("http://" + addr + "/stats")
	require.NoError(t, err)
	defer resp3.Body.Close()
	require.Equal(t, http.StatusOK, resp3.StatusCode)
}
