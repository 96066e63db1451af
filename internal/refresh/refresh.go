// Package refresh runs the periodic ingest-swap-reassess cycle: fetch a
// bundle through the source chain, build an immutable store, atomically swap
// it in, reassess the tracked places, and publish impact-change alerts.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/hurricane-risk-service/internal/forecast"
	"github.com/couchcryptid/hurricane-risk-service/internal/observability"
	"github.com/couchcryptid/hurricane-risk-service/internal/places"
)

// sourceNames enumerates the gauge labels so the active-source gauge can be
// zeroed before marking the winner.
var sourceNames = []string{"live", "mirror", "demo"}

// Fetcher produces the next forecast bundle. Implemented by ingest.Chain.
type Fetcher interface {
	Fetch(ctx context.Context) (*forecast.Bundle, string, error)
}

// AlertNotifier receives impact-change alerts. Implemented by the Kafka
// publisher; nil disables alerting.
type AlertNotifier interface {
	PublishAlerts(ctx context.Context, alerts []places.Alert) error
}

// Refresher orchestrates the refresh loop.
type Refresher struct {
	fetcher  Fetcher
	holder   *forecast.Holder
	service  *places.Service
	notifier AlertNotifier
	logger   *slog.Logger
	metrics  *observability.Metrics
	clock    clockwork.Clock
	interval time.Duration
	ready    atomic.Bool

	lastStormID string
}

// New creates a Refresher. notifier may be nil.
func New(fetcher Fetcher, holder *forecast.Holder, service *places.Service, notifier AlertNotifier, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock, interval time.Duration) *Refresher {
	return &Refresher{
		fetcher:  fetcher,
		holder:   holder,
		service:  service,
		notifier: notifier,
		logger:   logger,
		metrics:  metrics,
		clock:    clock,
		interval: interval,
	}
}

// CheckReadiness returns nil once at least one refresh cycle has completed,
// or an error describing why the service is not yet ready.
func (r *Refresher) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("no forecast snapshot ingested yet")
	}
	return nil
}

// Run executes the refresh loop until the context is cancelled. The first
// cycle runs immediately so the service becomes ready without waiting a full
// interval.
func (r *Refresher) Run(ctx context.Context) error {
	r.logger.Info("refresh loop started", "interval", r.interval)
	r.metrics.RefreshRunning.Set(1)
	defer r.metrics.RefreshRunning.Set(0)

	// Exponential backoff after a failed cycle: start at 2s, double each
	// retry, cap at the refresh interval.
	backoff := 2 * time.Second

	for {
		if ctx.Err() != nil {
			r.logger.Info("refresh loop stopping", "reason", ctx.Err())
			return nil
		}

		wait := r.interval
		if err := r.refreshOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Error("refresh cycle failed", "error", err)
			r.metrics.RefreshFailures.Inc()
			wait = backoff
			backoff = nextBackoff(backoff, r.interval)
		} else {
			backoff = 2 * time.Second
		}

		if !sleepWithContext(ctx, r.clock, wait) {
			r.logger.Info("refresh loop stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// refreshOnce runs one complete cycle.
func (r *Refresher) refreshOnce(ctx context.Context) error {
	start := r.clock.Now()

	bundle, source, err := r.fetcher.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch bundle: %w", err)
	}

	store, err := forecast.NewStore(bundle)
	if err != nil {
		return fmt.Errorf("build store: %w", err)
	}

	if r.lastStormID != "" && r.lastStormID != store.StormID() {
		r.logger.Info("tracked storm changed, resetting impact baselines",
			"previous", r.lastStormID, "current", store.StormID())
		r.service.ResetBaseline()
	}
	r.lastStormID = store.StormID()

	snap := r.holder.Swap(store, source, r.clock.Now())

	r.metrics.RefreshesTotal.Inc()
	r.metrics.TimelineSteps.Set(float64(len(store.Timeline())))
	r.metrics.StoreAge.Set(float64(snap.IngestedAt.Unix()))
	for _, name := range sourceNames {
		val := 0.0
		if name == source {
			val = 1.0
		}
		r.metrics.ActiveSource.WithLabelValues(name).Set(val)
	}

	impacts, alerts, err := r.service.Impacts(ctx, snap)
	if err != nil {
		// A stale snapshot here means another swap raced this one; the next
		// cycle reassesses against it.
		return fmt.Errorf("reassess tracked places: %w", err)
	}

	r.logger.Info("refresh complete",
		"storm_id", store.StormID(),
		"source", source,
		"timeline_steps", len(store.Timeline()),
		"places", len(impacts),
		"alerts", len(alerts),
		"duration", r.clock.Since(start),
	)
	r.metrics.RefreshDuration.Observe(r.clock.Since(start).Seconds())
	r.ready.Store(true)

	if r.notifier != nil && len(alerts) > 0 {
		if err := r.notifier.PublishAlerts(ctx, alerts); err != nil {
			// Alerting is best effort; the refreshed store stands.
			r.logger.Error("publish alerts failed", "error", err, "count", len(alerts))
		}
	}
	return nil
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
