package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/merchline/matchbox/config"
	"github.com/merchline/matchbox/internal/broker/kafka"
	"github.com/merchline/matchbox/internal/cache/rediscache"
	"github.com/merchline/matchbox/internal/services/matching"
	"github.com/merchline/matchbox/internal/services/reconcile"
	"github.com/merchline/matchbox/internal/storage/pgorders"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("failed to parse config: %v", err))
	}

	httpAddr := cfg.MatchBox.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.MatchBox.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "match-api"
	}
	syncTopic := cfg.Kafka.SyncCompletedTopicName
	if syncTopic == "" {
		syncTopic = "reconcile.sync_completed"
	}
	mappingTopic := cfg.Kafka.MappingChangedTopicName
	if mappingTopic == "" {
		mappingTopic = "reconcile.mapping_changed"
	}
	statsTTL := time.Duration(cfg.MatchBox.StatsTTLSeconds) * time.Second
	if statsTTL <= 0 {
		statsTTL = 5 * time.Minute
	}

	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
	st, err := pgorders.New(connString)
	if err != nil {
		panic(err)
	}
	defer st.Close()

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	rc := rediscache.New(redisAddr)

	scorer := matching.NewScorer(matching.Config{
		SuggestionThreshold: cfg.MatchBox.MatchSuggestionThreshold,
		AutoMapThreshold:    cfg.MatchBox.MatchAutoMapThreshold,
		CandidateWindow:     time.Duration(cfg.MatchBox.MatchCandidateWindowDays) * 24 * time.Hour,
		MaxSuggestions:      cfg.MatchBox.MatchMaxSuggestions,
	})

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	producer := kafka.NewProducer(brokers)

	svc := reconcile.New(st, scorer, rc, statsTTL).WithProducer(producer, mappingTopic)

	consumer := kafka.NewConsumer(brokers, []string{syncTopic, mappingTopic}, consumerGroup)
	defer func() { _ = consumer.Close() }()

	swaggerPath := os.Getenv("swaggerPath")
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := runMatchAPI(ctx, matchAPIOpts{
		httpAddr:      httpAddr,
		swaggerPath:   swaggerPath,
		consumerGroup: consumerGroup,
	}, svc, consumer); err != nil && err != context.Canceled {
		panic(err)
	}
}
