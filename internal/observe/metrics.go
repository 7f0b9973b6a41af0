// Package observe provides application-wide observability primitives for
// Accentor: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Accentor metrics.
const meterName = "github.com/accentor-app/accentor"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// CoachingDuration tracks the LLM coaching round trip, parse included.
	CoachingDuration metric.Float64Histogram

	// --- Counters ---

	// AttemptsSubmitted counts attempt submissions. Use with attributes:
	//   attribute.String("language", ...), attribute.String("status", ...)
	AttemptsSubmitted metric.Int64Counter

	// CoachingRequests counts coaching invocations. Use with attributes:
	//   attribute.String("status", ...) — ok, cached, parse_error, provider_error, timeout
	CoachingRequests metric.Int64Counter

	// CoachingParseFailures counts unusable coach responses.
	CoachingParseFailures metric.Int64Counter

	// CrossValidationFlags counts issue annotations. Use with attribute:
	//   attribute.String("flag", ...) — confidence_warning or cross_validated
	CrossValidationFlags metric.Int64Counter

	// ProviderErrors counts collaborator errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// seconds-scale collaborator calls (STT and LLM coaching).
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.STTDuration, err = m.Float64Histogram("accentor.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CoachingDuration, err = m.Float64Histogram("accentor.coaching.duration",
		metric.WithDescription("Latency of the LLM coaching round trip, parsing included."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.AttemptsSubmitted, err = m.Int64Counter("accentor.attempts.submitted",
		metric.WithDescription("Total attempt submissions by language and status."),
	); err != nil {
		return nil, err
	}
	if met.CoachingRequests, err = m.Int64Counter("accentor.coaching.requests",
		metric.WithDescription("Total coaching requests by status."),
	); err != nil {
		return nil, err
	}
	if met.CoachingParseFailures, err = m.Int64Counter("accentor.coaching.parse_failures",
		metric.WithDescription("Total coach responses that failed defensive parsing."),
	); err != nil {
		return nil, err
	}
	if met.CrossValidationFlags, err = m.Int64Counter("accentor.crossvalidation.flags",
		metric.WithDescription("Total sound issues annotated during cross-validation, by flag."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("accentor.provider.errors",
		metric.WithDescription("Total collaborator errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("accentor.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordAttempt records one attempt submission with its outcome status
// (scored, no_speech, no_audio, stt_error).
func (m *Metrics) RecordAttempt(ctx context.Context, language, status string) {
	m.AttemptsSubmitted.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("language", language),
			attribute.String("status", status),
		),
	)
}

// RecordCoachingRequest records one coaching request with its outcome status.
func (m *Metrics) RecordCoachingRequest(ctx context.Context, status string) {
	m.CoachingRequests.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordCrossValidationFlag records one issue annotation by flag name.
func (m *Metrics) RecordCrossValidationFlag(ctx context.Context, flag string) {
	m.CrossValidationFlags.Add(ctx, 1,
		metric.WithAttributes(attribute.String("flag", flag)),
	)
}

// RecordProviderError records a collaborator error by provider name and kind
// (stt, g2p, coach, embeddings).
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
