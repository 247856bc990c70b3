package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Settings shared by both sync adapters.
type Settings struct {
	PageSize            int           // default: 100
	MaxPagesIncremental int           // default: 10
	MaxPagesFull        int           // default: 100
	Lookback            time.Duration // default: 30 days, used when the store is empty
	RateLimitPerMinute  int64         // default: 120
}

func DefaultSettings() Settings {
	return Settings{
		PageSize:            100,
		MaxPagesIncremental: 10,
		MaxPagesFull:        100,
		Lookback:            30 * 24 * time.Hour,
		RateLimitPerMinute:  120,
	}
}

func (s Settings) withDefaults() Settings {
	def := DefaultSettings()
	if s.PageSize <= 0 {
		s.PageSize = def.PageSize
	}
	if s.MaxPagesIncremental <= 0 {
		s.MaxPagesIncremental = def.MaxPagesIncremental
	}
	if s.MaxPagesFull <= 0 {
		s.MaxPagesFull = def.MaxPagesFull
	}
	if s.Lookback <= 0 {
		s.Lookback = def.Lookback
	}
	if s.RateLimitPerMinute <= 0 {
		s.RateLimitPerMinute = def.RateLimitPerMinute
	}
	return s
}

// Options for one sync invocation.
type Options struct {
	// FullSync ignores the watermark and walks every provider page.
	FullSync bool
	// ForceAllOrders keeps records an incremental run would discard as
	// already seen.
	ForceAllOrders bool
	// MaxPages overrides the page ceiling for this run.
	MaxPages int
}

// Result of one sync run. Configured=false is the soft outcome for an
// environment without provider credentials.
type Result struct {
	Configured    bool   `json:"configured"`
	Message       string `json:"message,omitempty"`
	FullSync      bool   `json:"fullSync"`
	Pages         int    `json:"pages"`
	OrdersSynced  int    `json:"ordersSynced"`
	ItemsSynced   int    `json:"itemsSynced,omitempty"`
	OrdersSkipped int    `json:"ordersSkipped"`
	OrdersFailed  int    `json:"ordersFailed"`
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

// runStats are process-lifetime counters exposed on the worker's /stats
// endpoint.
type runStats struct {
	startedAtUnixNano int64
	lastRunUnixNano   atomic.Int64
	totalRuns         atomic.Int64
	totalOrders       atomic.Int64
	totalFailures     atomic.Int64
	lastErrorMu       sync.Mutex
	lastError         string
}

type Stats struct {
	StartedAt     time.Time  `json:"startedAt"`
	LastRunAt     *time.Time `json:"lastRunAt,omitempty"`
	TotalRuns     int64      `json:"totalRuns"`
	TotalOrders   int64      `json:"totalOrders"`
	TotalFailures int64      `json:"totalFailures"`
	LastError     string     `json:"lastError,omitempty"`
}

func newRunStats() *runStats {
	return &runStats{startedAtUnixNano: time.Now().UTC().UnixNano()}
}

func (r *runStats) snapshot() Stats {
	st := Stats{
		StartedAt:     time.Unix(0, r.startedAtUnixNano).UTC(),
		TotalRuns:     r.totalRuns.Load(),
		TotalOrders:   r.totalOrders.Load(),
		TotalFailures: r.totalFailures.Load(),
	}
	if n := r.lastRunUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastRunAt = &t
	}
	r.lastErrorMu.Lock()
	st.LastError = r.lastError
	r.lastErrorMu.Unlock()
	return st
}

func (r *runStats) recordRun(res Result, err error) {
	r.lastRunUnixNano.Store(time.Now().UTC().UnixNano())
	r.totalRuns.Add(1)
	r.totalOrders.Add(int64(res.OrdersSynced))
	r.totalFailures.Add(int64(res.OrdersFailed))
	if err != nil {
		r.lastErrorMu.Lock()
		r.lastError = err.Error()
		r.lastErrorMu.Unlock()
	}
}

// waitForRateLimit checks the per-minute budget before a page fetch. On
// exceed it waits briefly instead of failing: the provider API is the scarce
// resource, not this run.
func waitForRateLimit(ctx context.Context, rl RateLimiter, source string, limit int64) error {
	if rl == nil || limit <= 0 {
		return nil
	}
	now := time.Now().UTC()
	minuteKey := fmt.Sprintf("rl:sync:%s:%s", source, now.Format("200601021504"))
	allowed, n, err := rl.Allow(ctx, minuteKey, limit, 70*time.Second)
	if err != nil {
		return err
	}
	if !allowed {
		slog.Warn("sync rate limit exceeded", "source", source, "count", n)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return nil
}

// publishCompleted sends the sync-completed event with a small retry: the
// broker may not be reachable right away and the event is advisory.
func publishCompleted(ctx context.Context, producer Producer, topic string, msg any, key string) {
	if producer == nil || topic == "" {
		return
	}
	b, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal sync event", "error", err.Error())
		return
	}
	for i := 0; i < 5; i++ {
		if err := producer.Publish(ctx, topic, []byte(key), b); err == nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(150*(i+1)) * time.Millisecond):
		}
	}
	slog.Error("publish sync event failed", "topic", topic)
}
