// Package observe provides application-wide observability primitives:
// OpenTelemetry metrics, distributed tracing, structured logging, and HTTP
// middleware that ties them together.
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

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/zzatang/tongue-twisters-challenge"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// AnalyzeDuration tracks end-to-end practice analysis latency, from
	// request decode to response.
	AnalyzeDuration metric.Float64Histogram

	// ProviderRequests counts STT provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts STT provider errors by provider name.
	ProviderErrors metric.Int64Counter

	// SessionsScored counts successfully scored practice sessions. Use with
	// attribute: attribute.String("difficulty", ...).
	SessionsScored metric.Int64Counter

	// NoSpeechResults counts sessions where the clip carried no speech.
	NoSpeechResults metric.Int64Counter

	// BadgesAwarded counts badge grants by criteria type.
	BadgesAwarded metric.Int64Counter

	// ClarityScore records the distribution of clarity scores.
	ClarityScore metric.Int64Histogram

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes: attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// transcription round trips.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20,
}

// clarityBuckets splits the 0–100 score range into ten bands.
var clarityBuckets = []float64{
	10, 20, 30, 40, 50, 60, 70, 80, 90, 100,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.STTDuration, err = m.Float64Histogram("twister.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AnalyzeDuration, err = m.Float64Histogram("twister.analyze.duration",
		metric.WithDescription("End-to-end practice analysis latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.ProviderRequests, err = m.Int64Counter("twister.provider.requests",
		metric.WithDescription("Total STT provider requests by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("twister.provider.errors",
		metric.WithDescription("Total STT provider errors by provider."),
	); err != nil {
		return nil, err
	}
	if met.SessionsScored, err = m.Int64Counter("twister.sessions.scored",
		metric.WithDescription("Total scored practice sessions by phrase difficulty."),
	); err != nil {
		return nil, err
	}
	if met.NoSpeechResults, err = m.Int64Counter("twister.sessions.no_speech",
		metric.WithDescription("Total practice sessions with no recognisable speech."),
	); err != nil {
		return nil, err
	}
	if met.BadgesAwarded, err = m.Int64Counter("twister.badges.awarded",
		metric.WithDescription("Total badges awarded by criteria type."),
	); err != nil {
		return nil, err
	}

	if met.ClarityScore, err = m.Int64Histogram("twister.clarity.score",
		metric.WithDescription("Distribution of clarity scores."),
		metric.WithExplicitBucketBoundaries(clarityBuckets...),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("twister.http.request.duration",
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

// RecordProviderRequest records an STT provider request with its outcome.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records an STT provider error.
func (m *Metrics) RecordProviderError(ctx context.Context, provider string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("provider", provider)),
	)
}

// RecordSessionScored records a scored session and its clarity score.
func (m *Metrics) RecordSessionScored(ctx context.Context, difficulty string, clarity int) {
	m.SessionsScored.Add(ctx, 1,
		metric.WithAttributes(attribute.String("difficulty", difficulty)),
	)
	m.ClarityScore.Record(ctx, int64(clarity))
}

// RecordBadgeAwarded records a badge grant.
func (m *Metrics) RecordBadgeAwarded(ctx context.Context, criteriaType string) {
	m.BadgesAwarded.Add(ctx, 1,
		metric.WithAttributes(attribute.String("criteria", criteriaType)),
	)
}
