// Package observe provides application-wide observability primitives for
// glossa: OpenTelemetry metrics, tracing, trace-aware logging and the HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and scraped via
// the Prometheus exporter installed by [InitProvider]. [DefaultMetrics] is a
// lazily created package-level instance; tests should build their own with
// [NewMetrics] and a manual reader.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope of all glossa metrics.
const meterName = "github.com/MrWong99/glossa"

// Metrics holds the metric instruments of the application. All fields are
// safe for concurrent use.
type Metrics struct {
	// MatchScore records the combined score of every scored final
	// transcript. Attributes: flow ("options" or "phrase"), outcome.
	MatchScore metric.Float64Histogram

	// MatchAttempts counts scored final transcripts. Attributes: flow,
	// outcome ("accepted" or "rejected").
	MatchAttempts metric.Int64Counter

	// DialoguesStarted counts started conversations. Attribute: character.
	DialoguesStarted metric.Int64Counter

	// DialoguesEnded counts ended conversations. Attributes: character,
	// reason.
	DialoguesEnded metric.Int64Counter

	// StartsRejected counts refused start requests. Attribute: reason.
	StartsRejected metric.Int64Counter

	// RecognitionErrors counts recogniser failures. Attribute: kind.
	RecognitionErrors metric.Int64Counter

	// RecognitionRestarts counts automatic recogniser restarts.
	RecognitionRestarts metric.Int64Counter

	// ActiveSessions tracks conversations currently in progress.
	ActiveSessions metric.Int64UpDownCounter

	// ActiveConnections tracks connected browser clients.
	ActiveConnections metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request time. Attributes: method, path.
	HTTPRequestDuration metric.Float64Histogram
}

// scoreBuckets covers [0, 1] with finer resolution around the default
// acceptance threshold.
var scoreBuckets = []float64{
	0.1, 0.2, 0.3, 0.4, 0.5, 0.55, 0.6, 0.65, 0.7, 0.8, 0.9, 1,
}

// NewMetrics creates all instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.MatchScore, err = m.Float64Histogram("glossa.match.score",
		metric.WithDescription("Combined similarity score of scored transcripts."),
		metric.WithExplicitBucketBoundaries(scoreBuckets...),
	); err != nil {
		return nil, err
	}
	if met.MatchAttempts, err = m.Int64Counter("glossa.match.attempts",
		metric.WithDescription("Scored final transcripts by flow and outcome."),
	); err != nil {
		return nil, err
	}
	if met.DialoguesStarted, err = m.Int64Counter("glossa.dialogue.started",
		metric.WithDescription("Started conversations by character."),
	); err != nil {
		return nil, err
	}
	if met.DialoguesEnded, err = m.Int64Counter("glossa.dialogue.ended",
		metric.WithDescription("Ended conversations by character and reason."),
	); err != nil {
		return nil, err
	}
	if met.StartsRejected, err = m.Int64Counter("glossa.dialogue.start_rejected",
		metric.WithDescription("Refused conversation starts by reason."),
	); err != nil {
		return nil, err
	}
	if met.RecognitionErrors, err = m.Int64Counter("glossa.recognition.errors",
		metric.WithDescription("Speech recognition failures by kind."),
	); err != nil {
		return nil, err
	}
	if met.RecognitionRestarts, err = m.Int64Counter("glossa.recognition.restarts",
		metric.WithDescription("Automatic speech recognition restarts."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("glossa.active_sessions",
		metric.WithDescription("Conversations currently in progress."),
	); err != nil {
		return nil, err
	}
	if met.ActiveConnections, err = m.Int64UpDownCounter("glossa.active_connections",
		metric.WithDescription("Connected browser clients."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("glossa.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics], created on first call
// from [otel.GetMeterProvider]. Panics if instrument creation fails.
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

// Attr is shorthand for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

func outcome(accepted bool) string {
	if accepted {
		return "accepted"
	}
	return "rejected"
}

// RecordMatch records one scored transcript.
func (m *Metrics) RecordMatch(ctx context.Context, flow string, score float64, accepted bool) {
	attrs := metric.WithAttributes(Attr("flow", flow), Attr("outcome", outcome(accepted)))
	m.MatchScore.Record(ctx, score, attrs)
	m.MatchAttempts.Add(ctx, 1, attrs)
}

// RecordDialogueStart counts a started conversation and bumps the active
// session gauge.
func (m *Metrics) RecordDialogueStart(ctx context.Context, character string) {
	m.DialoguesStarted.Add(ctx, 1, metric.WithAttributes(Attr("character", character)))
	m.ActiveSessions.Add(ctx, 1)
}

// RecordDialogueEnd counts an ended conversation and lowers the active
// session gauge.
func (m *Metrics) RecordDialogueEnd(ctx context.Context, character, reason string) {
	m.DialoguesEnded.Add(ctx, 1, metric.WithAttributes(
		Attr("character", character),
		Attr("reason", reason),
	))
	m.ActiveSessions.Add(ctx, -1)
}

// RecordStartRejected counts a refused start request.
func (m *Metrics) RecordStartRejected(ctx context.Context, reason string) {
	m.StartsRejected.Add(ctx, 1, metric.WithAttributes(Attr("reason", reason)))
}

// RecordRecognitionError counts a recogniser failure of the given kind.
func (m *Metrics) RecordRecognitionError(ctx context.Context, kind string) {
	m.RecognitionErrors.Add(ctx, 1, metric.WithAttributes(Attr("kind", kind)))
}

// RecordRecognitionRestart counts an automatic recogniser restart.
func (m *Metrics) RecordRecognitionRestart(ctx context.Context) {
	m.RecognitionRestarts.Add(ctx, 1)
}
