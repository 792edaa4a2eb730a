package ingest_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/garage-occupancy-service/internal/domain"
	"github.com/couchcryptid/garage-occupancy-service/internal/ingest"
	"github.com/couchcryptid/garage-occupancy-service/internal/observability"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const statusPage = `<!DOCTYPE html>
<html><body>
<div class="garage">
  <h2 class="garage__name">South Garage</h2>
  <p class="garage__text"><span class="garage__fullness">82 %</span></p>
</div>
<div class="garage">
  <h2 class="garage__name">North Garage</h2>
  <p class="garage__text">Full</p>
</div>
<div class="garage">
  <h2 class="garage__name">West Garage</h2>
</div>
</body></html>`

// --- mocks ---

type mockFetcher struct {
	body  string
	err   error
	clock *clockwork.FakeClock
	delay time.Duration
}

func (m *mockFetcher) Fetch(_ context.Context) (string, error) {
	if m.clock != nil {
		m.clock.Advance(m.delay)
	}
	if m.err != nil {
		return "", m.err
	}
	return m.body, nil
}

type brokenExtractor struct{}

func (brokenExtractor) Extract(io.Reader) (domain.Snapshot, error) {
	return nil, errors.New("tokenizer exploded")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func defaultExtractor(t *testing.T) *domain.Extractor {
	t.Helper()
	catalog, err := domain.DefaultCatalog()
	require.NoError(t, err)
	return domain.NewExtractor(catalog)
}

func newService(t *testing.T, f ingest.Fetcher, metrics *observability.Metrics) *ingest.Service {
	t.Helper()
	return ingest.NewService(f, defaultExtractor(t), nil, discardLogger(), metrics)
}

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	ingest.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))
	t.Cleanup(func() { ingest.SetTracerProvider(otel.GetTracerProvider()) })
	return sr
}

func intPtr(n int) *int { return &n }

// --- tests ---

func TestService_Ingest_Success(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	svc := newService(t, &mockFetcher{body: statusPage}, metrics)

	got, err := svc.Ingest(context.Background())
	require.NoError(t, err)

	want := domain.Snapshot{
		"South Garage": {Total: 1505, Open: intPtr(271)},
		"North Garage": {Total: 1445, Open: intPtr(0)},
		"West Garage":  {Total: 1144, Open: nil},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.IngestCycles.WithLabelValues(observability.OutcomeSuccess)), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.IngestCycles.WithLabelValues(observability.OutcomeFetchError)), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(metrics.GaragesReported), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.GaragesUnknown), 0)
}

func TestService_Ingest_FetchError(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	svc := newService(t, &mockFetcher{err: errors.New("connection refused")}, metrics)

	got, err := svc.Ingest(context.Background())
	require.Error(t, err)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.NotErrorIs(t, err, domain.ErrParse)
	assert.Contains(t, err.Error(), "connection refused")

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.IngestCycles.WithLabelValues(observability.OutcomeFetchError)), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.IngestCycles.WithLabelValues(observability.OutcomeSuccess)), 0)
}

func TestService_Ingest_ContextErrorIsTransport(t *testing.T) {
	svc := newService(t, &mockFetcher{err: context.DeadlineExceeded}, observability.NewMetricsForTesting())

	_, err := svc.Ingest(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestService_Ingest_ParseError(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	svc := ingest.NewService(&mockFetcher{body: statusPage}, brokenExtractor{}, nil, discardLogger(), metrics)

	got, err := svc.Ingest(context.Background())
	require.Error(t, err)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, domain.ErrParse)
	assert.NotErrorIs(t, err, domain.ErrTransport)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.IngestCycles.WithLabelValues(observability.OutcomeParseError)), 0)
}

func TestService_Ingest_ExtractorParseErrorNotDoubleWrapped(t *testing.T) {
	svc := ingest.NewService(&mockFetcher{body: statusPage}, domain.NewExtractor(nil), nil, discardLogger(), observability.NewMetricsForTesting())

	_, err := svc.Ingest(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrParse)
	assert.Equal(t, 1, strings.Count(err.Error(), domain.ErrParse.Error()))
}

func TestService_Ingest_NoCatalogGaragesIsEmptySuccess(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	svc := newService(t, &mockFetcher{body: "<html><body><p>Maintenance</p></body></html>"}, metrics)

	got, err := svc.Ingest(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.IngestCycles.WithLabelValues(observability.OutcomeSuccess)), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.GaragesReported), 0)
}

func TestService_Ingest_GaugesKeepLastSuccess(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	fetcher := &mockFetcher{body: statusPage}
	svc := newService(t, fetcher, metrics)

	_, err := svc.Ingest(context.Background())
	require.NoError(t, err)

	fetcher.err = errors.New("timeout")
	_, err = svc.Ingest(context.Background())
	require.Error(t, err)

	assert.InDelta(t, 3, testutil.ToFloat64(metrics.GaragesReported), 0)
}

func TestService_Ingest_DurationUsesClock(t *testing.T) {
	fakeClock := clockwork.NewFakeClockAt(time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC))
	metrics := observability.NewMetricsForTesting()
	fetcher := &mockFetcher{body: statusPage, clock: fakeClock, delay: 1500 * time.Millisecond}
	svc := ingest.NewService(fetcher, defaultExtractor(t), fakeClock, discardLogger(), metrics)

	_, err := svc.Ingest(context.Background())
	require.NoError(t, err)

	expected := `
# HELP garage_occupancy_ingest_duration_seconds Duration of a complete fetch and parse cycle.
# TYPE garage_occupancy_ingest_duration_seconds histogram
garage_occupancy_ingest_duration_seconds_bucket{le="0.05"} 0
garage_occupancy_ingest_duration_seconds_bucket{le="0.1"} 0
garage_occupancy_ingest_duration_seconds_bucket{le="0.25"} 0
garage_occupancy_ingest_duration_seconds_bucket{le="0.5"} 0
garage_occupancy_ingest_duration_seconds_bucket{le="1"} 0
garage_occupancy_ingest_duration_seconds_bucket{le="2.5"} 1
garage_occupancy_ingest_duration_seconds_bucket{le="5"} 1
garage_occupancy_ingest_duration_seconds_bucket{le="10"} 1
garage_occupancy_ingest_duration_seconds_bucket{le="30"} 1
garage_occupancy_ingest_duration_seconds_bucket{le="+Inf"} 1
garage_occupancy_ingest_duration_seconds_sum 1.5
garage_occupancy_ingest_duration_seconds_count 1
`
	require.NoError(t, testutil.CollectAndCompare(metrics.IngestDuration, strings.NewReader(expected)))
}

func TestService_Ingest_Concurrent(t *testing.T) {
	svc := newService(t, &mockFetcher{body: statusPage}, observability.NewMetricsForTesting())

	const callers = 8
	results := make([]domain.Snapshot, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := svc.Ingest(context.Background())
			assert.NoError(t, err)
			results[i] = snap
		}()
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		if diff := cmp.Diff(results[0], results[i]); diff != "" {
			t.Errorf("caller %d diverged (-first +got):\n%s", i, diff)
		}
	}
}

func TestService_Ingest_SpanOnSuccess(t *testing.T) {
	sr := recordSpans(t)
	svc := newService(t, &mockFetcher{body: statusPage}, observability.NewMetricsForTesting())

	_, err := svc.Ingest(context.Background())
	require.NoError(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "ingest.cycle", spans[0].Name())
	assert.NotEqual(t, codes.Error, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.String("ingest.outcome", observability.OutcomeSuccess))
	assert.Contains(t, spans[0].Attributes(), attribute.Int("ingest.garages", 3))
	assert.Contains(t, spans[0].Attributes(), attribute.Int("ingest.garages_unknown", 1))
}

func TestService_Ingest_SpanOnFailure(t *testing.T) {
	sr := recordSpans(t)
	svc := newService(t, &mockFetcher{err: errors.New("no route to host")}, observability.NewMetricsForTesting())

	_, err := svc.Ingest(context.Background())
	require.Error(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, observability.OutcomeFetchError, spans[0].Status().Description)
	assert.Contains(t, spans[0].Attributes(), attribute.String("ingest.outcome", observability.OutcomeFetchError))
	require.NotEmpty(t, spans[0].Events())
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
}
