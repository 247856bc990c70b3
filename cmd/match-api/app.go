package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"

	reconcileapi "github.com/merchline/matchbox/internal/api/reconcile_api"
	"github.com/merchline/matchbox/internal/broker/messages"
	"github.com/merchline/matchbox/internal/services/reconcile"
)

type matchAPIOpts struct {
	httpAddr    string
	swaggerPath string

	consumerGroup string

	onListen func(httpAddr string)
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(topic string, key, value []byte) error) error
}

func runMatchAPI(ctx context.Context, opts matchAPIOpts, svc *reconcile.Service, consumer kafkaConsumer) error {
	if opts.swaggerPath == "" {
		return fmt.Errorf("swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
	}

	api := reconcileapi.New(svc)

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, opts.swaggerPath)
	})
	swaggerURL := "/swagger.json"
	if fi, err := os.Stat(opts.swaggerPath); err == nil {
		swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
	}
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))

	api.Routes(r)

	// Stats are cached in redis; any sync completion or mapping change made by
	// another instance invalidates the snapshot here.
	go func() {
		slog.Info("kafka consumer started", "group", opts.consumerGroup)
		err := consumer.Consume(ctx, func(topic string, _key, value []byte) error {
			var probe struct {
				Source string `json:"source"`
				Action string `json:"action"`
			}
			// Invalidation is advisory; a poison message must not stop the
			// consumer, so bad payloads are logged and skipped.
			if err := json.Unmarshal(value, &probe); err != nil {
				slog.Warn("skipping unparseable broker message", "topic", topic, "error", err.Error())
				return nil
			}
			if probe.Source != "" && probe.Source != messages.SourceFulfillment && probe.Source != messages.SourceStorefront {
				slog.Warn("unknown sync source in message", "topic", topic, "source", probe.Source)
			}
			svc.InvalidateStats(ctx)
			return nil
		})
		if err != nil && ctx.Err() == nil {
			slog.Error("kafka consumer stopped", "error", err.Error())
		}
	}()

	srv := &http.Server{Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	slog.Info("HTTP server listening", "addr", lis.Addr().String())
	if err := srv.Serve(lis); err != nil && err != http.ErrServerClosed {
		return err
	}
	return ctx.Err()
}
