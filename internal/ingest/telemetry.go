package ingest

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/couchcryptid/garage-occupancy-service/internal/ingest"

var tracer = otel.Tracer(tracerName)

// SetTracerProvider replaces the provider used for ingestion spans.
// Call before the first cycle; it is not synchronized.
func SetTracerProvider(provider trace.TracerProvider) {
	tracer = provider.Tracer(tracerName)
}
