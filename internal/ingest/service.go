package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/couchcryptid/garage-occupancy-service/internal/domain"
	"github.com/couchcryptid/garage-occupancy-service/internal/observability"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Fetcher retrieves the raw status page markup.
type Fetcher interface {
	Fetch(ctx context.Context) (string, error)
}

// Extractor turns status page markup into a snapshot.
type Extractor interface {
	Extract(r io.Reader) (domain.Snapshot, error)
}

// Service runs ingestion cycles: one fetch followed by one parse.
// It keeps no state between cycles, so concurrent calls to Ingest are independent.
type Service struct {
	fetcher   Fetcher
	extractor Extractor
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewService creates a Service. A nil clock uses real time.
func NewService(f Fetcher, e Extractor, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		fetcher:   f,
		extractor: e,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
	}
}

// Ingest runs one cycle and returns the snapshot. On failure the error wraps
// domain.ErrTransport or domain.ErrParse and no snapshot is returned.
func (s *Service) Ingest(ctx context.Context) (domain.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "ingest.cycle")
	defer span.End()

	start := s.clock.Now()
	snapshot, outcome, err := s.cycle(ctx)
	elapsed := s.clock.Since(start)

	s.metrics.IngestCycles.WithLabelValues(outcome).Inc()
	s.metrics.IngestDuration.Observe(elapsed.Seconds())
	span.SetAttributes(attribute.String("ingest.outcome", outcome))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		s.logger.ErrorContext(ctx, "ingestion cycle failed",
			"outcome", outcome,
			"duration", elapsed,
			"error", err,
		)
		return nil, err
	}

	unknown := snapshot.Unknown()
	s.metrics.GaragesReported.Set(float64(len(snapshot)))
	s.metrics.GaragesUnknown.Set(float64(unknown))
	span.SetAttributes(
		attribute.Int("ingest.garages", len(snapshot)),
		attribute.Int("ingest.garages_unknown", unknown),
	)

	if len(snapshot) == 0 {
		s.logger.WarnContext(ctx, "status page contained no catalog garages, markup may have changed",
			"duration", elapsed,
		)
		return snapshot, nil
	}
	s.logger.InfoContext(ctx, "ingestion cycle complete",
		"garages", len(snapshot),
		"unknown", unknown,
		"duration", elapsed,
	)
	return snapshot, nil
}

// cycle walks Fetching -> Parsing and reports the terminal outcome.
func (s *Service) cycle(ctx context.Context) (domain.Snapshot, string, error) {
	body, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return nil, observability.OutcomeFetchError, fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}

	snapshot, err := s.extractor.Extract(strings.NewReader(body))
	if err != nil {
		if !errors.Is(err, domain.ErrParse) {
			err = fmt.Errorf("%w: %w", domain.ErrParse, err)
		}
		return nil, observability.OutcomeParseError, err
	}
	return snapshot, observability.OutcomeSuccess, nil
}
