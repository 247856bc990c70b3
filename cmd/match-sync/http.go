package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/merchline/matchbox/config"
	"github.com/merchline/matchbox/internal/services/syncer"
)

type syncHTTPOpts struct {
	httpAddr    string
	swaggerPath string
	onListen    func(httpAddr string)

	fulfillment *syncer.FulfillmentSyncer
	storefront  *syncer.StorefrontSyncer
	cfg         *config.Config
}

type syncRequest struct {
	FullSync       bool `json:"fullSync"`
	ForceAllOrders bool `json:"forceAllOrders"`
	MaxPages       int  `json:"maxPages"`
}

type syncResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message,omitempty"`
	FullSync     bool   `json:"fullSync"`
	Pages        int    `json:"pages"`
	OrdersSynced int    `json:"ordersSynced"`
	ItemsSynced  int    `json:"itemsSynced,omitempty"`
	OrdersFailed int    `json:"ordersFailed"`
	Error        string `json:"error,omitempty"`
}

func runSyncHTTPServer(ctx context.Context, opts syncHTTPOpts) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8082"
	}
	if opts.swaggerPath == "" {
		return fmt.Errorf("sync swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("sync swagger file not found: %s", opts.swaggerPath)
	}

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

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		out := map[string]any{}
		if opts.fulfillment != nil {
			out["fulfillment"] = opts.fulfillment.Stats()
		}
		if opts.storefront != nil {
			out["storefront"] = opts.storefront.Stats()
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	r.Get("/config", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.cfg == nil {
			_, _ = w.Write([]byte(`{"error":"config not wired"}`))
			return
		}
		// Avoid dumping secrets; show only operational sync settings.
		out := map[string]any{
			"pageSize":            opts.cfg.MatchBox.SyncPageSize,
			"maxPagesIncremental": opts.cfg.MatchBox.SyncMaxPagesIncremental,
			"maxPagesFull":        opts.cfg.MatchBox.SyncMaxPagesFull,
			"lookbackDays":        opts.cfg.MatchBox.SyncLookbackDays,
			"intervalSeconds":     opts.cfg.MatchBox.SyncIntervalSeconds,
			"rateLimitPerMinute":  opts.cfg.MatchBox.SyncRateLimitPerMinute,
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	r.Post("/v1/sync/fulfillment", func(w http.ResponseWriter, r *http.Request) {
		handleSyncTrigger(w, r, func(ctx context.Context, o syncer.Options) (syncer.Result, error) {
			return opts.fulfillment.Run(ctx, o)
		})
	})
	r.Post("/v1/sync/storefront", func(w http.ResponseWriter, r *http.Request) {
		handleSyncTrigger(w, r, func(ctx context.Context, o syncer.Options) (syncer.Result, error) {
			return opts.storefront.Run(ctx, o)
		})
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

	srv := &http.Server{Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	if err := srv.Serve(lis); err != nil && err != http.ErrServerClosed {
		return err
	}
	return ctx.Err()
}

func handleSyncTrigger(w http.ResponseWriter, r *http.Request, run func(context.Context, syncer.Options) (syncer.Result, error)) {
	var req syncRequest
	if r.Body != nil {
		// Empty body means an incremental run with defaults.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	res, err := run(r.Context(), syncer.Options{
		FullSync:       req.FullSync,
		ForceAllOrders: req.ForceAllOrders,
		MaxPages:       req.MaxPages,
	})

	out := syncResponse{
		Success:      err == nil,
		Message:      res.Message,
		FullSync:     res.FullSync,
		Pages:        res.Pages,
		OrdersSynced: res.OrdersSynced,
		ItemsSynced:  res.ItemsSynced,
		OrdersFailed: res.OrdersFailed,
	}
	status := http.StatusOK
	if err != nil {
		out.Error = err.Error()
		status = http.StatusBadGateway
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(out)
}
