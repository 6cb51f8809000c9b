// Package metrics exposes suite run counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/starford/fitrunner/internal/runner"
)

const Namespace = "fitrunner"

// Metrics holds the collectors of one registry. It implements
// runner.Listener.
type Metrics struct {
	registry *prometheus.Registry

	runsTotal       *prometheus.CounterVec
	runsInFlight    prometheus.Gauge
	documentsTotal  *prometheus.CounterVec
	assertionsTotal *prometheus.CounterVec
	documentSeconds *prometheus.HistogramVec
	runSeconds      prometheus.Histogram
	lastExitCode    *prometheus.GaugeVec
}

// New registers the collectors on a fresh registry. portsInUse, when not
// nil, backs the fixture port gauge.
func New(portsInUse func() int) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		runsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "runs_total",
			Help:      "Count of suite runs by result",
		}, []string{"result"}),
		runsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "runs_in_flight",
			Help:      "Number of suite runs currently executing",
		}),
		documentsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "documents_total",
			Help:      "Count of executed documents by test system and outcome",
		}, []string{"kind", "outcome"}),
		assertionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "assertions_total",
			Help:      "Count of assertions by outcome",
		}, []string{"outcome"}),
		documentSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "document_duration_seconds",
			Help:      "Duration of one document execution",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		runSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a whole suite run",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		lastExitCode: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_exit_code",
			Help:      "Exit code of the most recent run of each suite root",
		}, []string{"root"}),
	}
	if portsInUse != nil {
		f.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "fixture_ports_in_use",
			Help:      "Fixture ports currently reserved",
		}, func() float64 { return float64(portsInUse()) })
	}
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func outcome(wrong, exceptions, right int) string {
	switch {
	case exceptions > 0:
		return "error"
	case wrong > 0:
		return "fail"
	case right > 0:
		return "pass"
	}
	return "ignore"
}

// OnEvent updates the collectors from run events.
func (m *Metrics) OnEvent(ev runner.Event) {
	switch ev.Type {
	case runner.SuiteStarted:
		m.runsInFlight.Inc()

	case runner.DocumentCompleted:
		doc := ev.Document
		if doc == nil {
			return
		}
		kind := doc.Kind
		if kind == "" {
			kind = "none"
		}
		s := doc.Summary
		m.documentsTotal.WithLabelValues(kind, outcome(s.Wrong, s.Exceptions, s.Right)).Inc()
		m.assertionsTotal.WithLabelValues("right").Add(float64(s.Right))
		m.assertionsTotal.WithLabelValues("wrong").Add(float64(s.Wrong))
		m.assertionsTotal.WithLabelValues("ignores").Add(float64(s.Ignores))
		m.assertionsTotal.WithLabelValues("exceptions").Add(float64(s.Exceptions))
		m.documentSeconds.WithLabelValues(kind).Observe(doc.Duration.Seconds())

	case runner.SuiteCompleted:
		m.runsInFlight.Dec()
		res := ev.Result
		if res == nil {
			return
		}
		result := "pass"
		switch {
		case res.Stopped:
			result = "stopped"
		case res.Summary.Failed():
			result = "fail"
		}
		m.runsTotal.WithLabelValues(result).Inc()
		m.runSeconds.Observe(res.FinishedAt.Sub(res.StartedAt).Seconds())
		m.lastExitCode.WithLabelValues(res.Root.String()).Set(float64(res.ExitCode()))

	case runner.SuiteFailed:
		m.runsInFlight.Dec()
		m.runsTotal.WithLabelValues("aborted").Inc()
	}
}

var _ runner.Listener = (*Metrics)(nil)
