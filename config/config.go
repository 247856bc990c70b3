package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Printful PrintfulConfig `yaml:"printful"`
	Shopify  ShopifyConfig  `yaml:"shopify"`
	MatchBox MatchBoxConfig `yaml:"matchbox"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                    string `yaml:"host"`
	Port                    int    `yaml:"port"`
	SyncCompletedTopicName  string `yaml:"sync_completed_topic_name"`
	MappingChangedTopicName string `yaml:"mapping_changed_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// PrintfulConfig holds the fulfillment provider credentials. An empty APIKey
// means "not configured": sync runs return a soft result instead of failing.
type PrintfulConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

type ShopifyConfig struct {
	BaseURL     string `yaml:"base_url"`
	AccessToken string `yaml:"access_token"`
	ShopDomain  string `yaml:"shop_domain"`
}

type MatchBoxConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	SyncHTTPAddr       string `yaml:"sync_http_addr"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`
	StatsTTLSeconds    int    `yaml:"stats_ttl_seconds"`

	SyncPageSize            int `yaml:"sync_page_size"`
	SyncMaxPagesIncremental int `yaml:"sync_max_pages_incremental"`
	SyncMaxPagesFull        int `yaml:"sync_max_pages_full"`
	SyncLookbackDays        int `yaml:"sync_lookback_days"`
	SyncIntervalSeconds     int `yaml:"sync_interval_seconds"`

	SyncRateLimitPerMinute int `yaml:"sync_rate_limit_per_minute"`

	// Matching heuristics (optional). Zero values fall back to the scorer
	// defaults: 0.01/5.00 amount tolerances, 3-day date proximity, 0.7 name
	// similarity, 0.30 suggestion threshold, 0.80 auto-map threshold.
	MatchSuggestionThreshold float64 `yaml:"match_suggestion_threshold"`
	MatchAutoMapThreshold    float64 `yaml:"match_automap_threshold"`
	MatchCandidateWindowDays int     `yaml:"match_candidate_window_days"`
	MatchMaxSuggestions      int     `yaml:"match_max_suggestions"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
