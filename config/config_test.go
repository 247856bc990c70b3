package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
database:
  host: "localhost"
  port: 5432
  username: "u"
  password: "p"
  name: "db"
kafka:
  host: "localhost"
  port: 9092
  sync_completed_topic_name: "reconcile.sync_completed"
  mapping_changed_topic_name: "reconcile.mapping_changed"
redis:
  host: "localhost"
  port: 6379
printful:
  base_url: "https://api.printful.com"
  api_key: "pf-key"
shopify:
  base_url: "https://example.myshopify.com"
  access_token: "shpat-token"
  shop_domain: "example.myshopify.com"
matchbox:
  http_addr: ":8080"
  sync_http_addr: ":8082"
  kafka_consumer_group: "match-api"
  stats_ttl_seconds: 300
  sync_page_size: 100
  sync_max_pages_incremental: 10
  sync_max_pages_full: 100
  match_automap_threshold: 0.85
`), 0o600))

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "u", cfg.Database.Username)
	require.Equal(t, "reconcile.sync_completed", cfg.Kafka.SyncCompletedTopicName)
	require.Equal(t, 6379, cfg.Redis.Port)
	require.Equal(t, "pf-key", cfg.Printful.APIKey)
	require.Equal(t, "shpat-token", cfg.Shopify.AccessToken)
	require.Equal(t, ":8080", cfg.MatchBox.HTTPAddr)
	require.Equal(t, 100, cfg.MatchBox.SyncPageSize)
	require.Equal(t, 0.85, cfg.MatchBox.MatchAutoMapThreshold)
}

func TestLoadConfig_FileMissing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadConfig_BadYAML(t *testing.T) {
	p := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`database: [`), 0o600))
	_, err := LoadConfig(p)
	require.Error(t, err)
}
