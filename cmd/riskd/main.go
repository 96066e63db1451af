package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	httpadapter "github.com/couchcryptid/hurricane-risk-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/hurricane-risk-service/internal/adapter/kafka"
	"github.com/couchcryptid/hurricane-risk-service/internal/config"
	"github.com/couchcryptid/hurricane-risk-service/internal/forecast"
	"github.com/couchcryptid/hurricane-risk-service/internal/ingest"
	"github.com/couchcryptid/hurricane-risk-service/internal/observability"
	"github.com/couchcryptid/hurricane-risk-service/internal/places"
	"github.com/couchcryptid/hurricane-risk-service/internal/query"
	"github.com/couchcryptid/hurricane-risk-service/internal/refresh"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	// Source chain: live map service, then mirror, then the embedded demo
	// bundle. OFFLINE=true drops the network sources entirely.
	var (
		sources []ingest.Source
		engine  *query.Engine
	)
	if cfg.Offline {
		logger.Info("offline mode, using embedded demo bundle")
		engine = query.NewEngine(nil, nil, logger, metrics)
	} else {
		index := ingest.NewIndexClient(cfg.NHCIndexURL, cfg.FetchTimeout, logger)
		maps := ingest.NewMapClient(cfg.NowCoastURL, cfg.FetchTimeout, logger)
		sources = append(sources,
			ingest.NewLiveSource(index, maps, cfg.StormID, logger),
			ingest.NewManualSource(cfg.ManualURLs, cfg.StormID, cfg.FetchTimeout, logger),
		)
		engine = query.NewEngine(maps, maps, logger, metrics)
	}
	sources = append(sources, ingest.NewDemoSource())
	chain := ingest.NewChain(logger, metrics, sources...)

	holder := &forecast.Holder{}
	service := places.NewService(engine, holder, cfg.Weights, nil, nil, cfg.BatchConcurrency, logger)

	// Alert publishing is feature-flagged via KAFKA_ENABLED.
	var notifier refresh.AlertNotifier
	var publisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		publisher = kafkaadapter.NewPublisher(cfg, logger, metrics)
		notifier = publisher
		logger.Info("kafka alerting enabled", "topic", cfg.KafkaAlertTopic)
	} else {
		logger.Info("kafka alerting disabled")
	}

	refresher := refresh.New(chain, holder, service, notifier, logger, metrics, clock, cfg.RefreshInterval)

	srv := httpadapter.NewServer(cfg.HTTPAddr, holder, engine, service, cfg.Weights, refresher, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start refresh loop.
	go func() {
		if err := refresher.Run(ctx); err != nil {
			logger.Error("refresh loop error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
