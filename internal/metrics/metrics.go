// Package metrics records regression outcomes as Prometheus metrics and writes
// them in the node-exporter textfile format.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"regeval/internal/regression"
)

const namespace = "regeval"

// Recorder holds the metrics of one process. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	reg *prometheus.Registry

	// AnswerCalls counts answer-service calls by outcome (success, error).
	AnswerCalls *prometheus.CounterVec
	// AnswerCallDuration measures answer-service round trips.
	AnswerCallDuration prometheus.Histogram
	// Records counts persisted records by pass (true, false).
	Records *prometheus.CounterVec
	// ScoreMean is the mean score of the last persisted execution.
	ScoreMean prometheus.Gauge
	// PassRatio is the pass ratio of the last persisted execution.
	PassRatio prometheus.Gauge
	// ItemErrors counts per-item errors of persisted executions.
	ItemErrors prometheus.Counter
}

// New registers every metric on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		AnswerCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answer_calls_total",
			Help:      "Answer service calls by outcome",
		}, []string{"outcome"}),
		AnswerCallDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "answer_call_duration_seconds",
			Help:      "Answer service call duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}),
		Records: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Persisted result records by pass flag",
		}, []string{"pass"}),
		ScoreMean: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "score_mean",
			Help:      "Mean similarity score of the last execution",
		}),
		PassRatio: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pass_ratio",
			Help:      "Pass ratio of the last execution",
		}),
		ItemErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "item_errors_total",
			Help:      "Per-item errors reported alongside persisted executions",
		}),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// ObserveCall implements answer.Observer.
func (r *Recorder) ObserveCall(d time.Duration, err error) {
	if r == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	r.AnswerCalls.WithLabelValues(outcome).Inc()
	r.AnswerCallDuration.Observe(d.Seconds())
}

// Save implements regression.Sink.
func (r *Recorder) Save(_ context.Context, res *regression.Result) error {
	if r == nil {
		return nil
	}
	var sum float64
	for _, rec := range res.Records {
		sum += rec.Score
		if rec.Pass {
			r.Records.WithLabelValues("true").Inc()
		} else {
			r.Records.WithLabelValues("false").Inc()
		}
	}
	if n := len(res.Records); n > 0 {
		r.ScoreMean.Set(sum / float64(n))
		r.PassRatio.Set(float64(res.Passed()) / float64(n))
	}
	r.ItemErrors.Add(float64(len(res.Errors)))
	return nil
}

// WriteTextfile writes every metric to path in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

var _ regression.Sink = (*Recorder)(nil)
