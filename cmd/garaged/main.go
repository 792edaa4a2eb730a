package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/garage-occupancy-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/garage-occupancy-service/internal/adapter/kafka"
	"github.com/couchcryptid/garage-occupancy-service/internal/adapter/upstream"
	"github.com/couchcryptid/garage-occupancy-service/internal/config"
	"github.com/couchcryptid/garage-occupancy-service/internal/domain"
	"github.com/couchcryptid/garage-occupancy-service/internal/ingest"
	"github.com/couchcryptid/garage-occupancy-service/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	catalog, err := domain.DefaultCatalog()
	if err != nil {
		logger.Error("failed to load garage catalog", "error", err)
		os.Exit(1)
	}

	client, err := upstream.NewClient(cfg.UpstreamURL, nil, metrics, logger)
	if err != nil {
		logger.Error("failed to create upstream client", "error", err)
		os.Exit(1)
	}
	svc := ingest.NewService(client, domain.NewExtractor(catalog), nil, logger, metrics)

	// Without a poller every request fetches on demand, so the service is
	// ready as soon as it listens.
	ready := httpadapter.AlwaysReady
	var poller *ingest.Poller
	var publisher *kafkaadapter.Publisher
	if cfg.RefreshInterval > 0 {
		var pub ingest.Publisher
		if cfg.PublishEnabled() {
			publisher = kafkaadapter.NewPublisher(cfg, logger)
			pub = publisher
			logger.Info("snapshot publishing enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
		}
		poller = ingest.NewPoller(svc, pub, cfg.RefreshInterval, nil, logger, metrics)
		ready = poller.CheckReadiness
	} else if len(cfg.KafkaBrokers) > 0 {
		logger.Warn("KAFKA_BROKERS set without REFRESH_INTERVAL, snapshot publishing disabled")
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, ready, cfg.CacheMaxAge, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start background poller.
	pollerDone := make(chan struct{})
	if poller != nil {
		go func() {
			defer close(pollerDone)
			if err := poller.Run(ctx); err != nil {
				logger.Error("poller error", "error", err)
			}
		}()
	}

	logger.Info("garage occupancy service started",
		"upstream", client.URL(),
		"garages", catalog.Len(),
		"refresh_interval", cfg.RefreshInterval,
	)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	// The poller may be mid-publish; the writer must outlive it.
	if poller != nil {
		select {
		case <-pollerDone:
		case <-shutdownCtx.Done():
			logger.Warn("poller did not stop before shutdown timeout")
		}
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
