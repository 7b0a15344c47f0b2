package presence

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prudhvinik1/slotsync/internal/scheduler"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Disconnector performs the cleanup shared by client disconnects and evictions.
type Disconnector interface {
	Disconnect(ctx context.Context, connID string) error
}

type Stats struct {
	LastRun      time.Time `json:"last_run"`
	TotalCleaned int64     `json:"total_cleaned"`
	ErrorCount   int64     `json:"error_count"`
}

// Reaper periodically evicts connections that stopped sending liveness signals.
type Reaper struct {
	registry  *Registry
	cleanup   Disconnector
	clock     clock.Clock
	interval  time.Duration
	threshold time.Duration
	logger    zerolog.Logger
	evictions metric.Int64Counter

	mu    sync.Mutex
	stats Stats
}

func NewReaper(registry *Registry, cleanup Disconnector, clk clock.Clock, interval, threshold time.Duration, logger zerolog.Logger) *Reaper {
	evictions, _ := otel.Meter("slotsync/presence").Int64Counter("presence_reaper_evictions_total",
		metric.WithDescription("Connections evicted or failed during reaper sweeps"))

	return &Reaper{
		registry:  registry,
		cleanup:   cleanup,
		clock:     clk,
		interval:  interval,
		threshold: threshold,
		logger:    logger.With().Str("component", "Reaper").Logger(),
		evictions: evictions,
	}
}

// Run sweeps every interval until ctx is done.
func (r *Reaper) Run(ctx context.Context) error {
	r.logger.Info().Dur("interval", r.interval).Dur("threshold", r.threshold).Msg("Reaper started")
	defer r.logger.Info().Msg("Reaper stopped")

	return scheduler.Every(ctx, r.clock, r.interval, func(ctx context.Context) {
		r.Sweep(ctx)
	})
}

// Sweep evicts every connection idle for longer than the threshold and returns how many were
// cleaned. Each candidate ends up either cleaned or failed, decided by the disconnect cleanup;
// a failed socket close is only logged. A failure on one connection does not stop the sweep.
func (r *Reaper) Sweep(ctx context.Context) int {
	candidates := r.registry.Stale(r.threshold)

	var cleaned, failed int64
	for _, conn := range candidates {
		sink, ok := r.registry.staleSink(conn.ID, r.threshold)
		if !ok {
			continue
		}

		if err := sink.Close(); err != nil {
			r.logger.Warn().Err(err).Str("connection_id", conn.ID).Msg("Failed to close stale connection")
		}

		if err := r.cleanup.Disconnect(ctx, conn.ID); err != nil {
			failed++
			r.logger.Error().Err(err).
				Str("connection_id", conn.ID).
				Str("user_id", conn.UserID.String()).
				Msg("Failed to clean up stale connection")
			continue
		}
		cleaned++
	}

	r.mu.Lock()
	r.stats.LastRun = r.clock.Now()
	r.stats.TotalCleaned += cleaned
	r.stats.ErrorCount += failed
	r.mu.Unlock()

	r.evictions.Add(ctx, cleaned, metric.WithAttributes(attribute.String("outcome", "cleaned")))
	r.evictions.Add(ctx, failed, metric.WithAttributes(attribute.String("outcome", "error")))

	if len(candidates) > 0 {
		r.logger.Info().Int64("cleaned", cleaned).Int64("errors", failed).Msg("Reaper sweep finished")
	}
	return int(cleaned)
}

func (r *Reaper) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}
