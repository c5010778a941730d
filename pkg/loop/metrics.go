package loop

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "testloop"

// Metrics exposes the outcome of iterations as prometheus collectors.
type Metrics struct {
	iterations   *prometheus.CounterVec
	duration     prometheus.Histogram
	diskUsed     prometheus.Gauge
	exitCode     prometheus.Gauge
	failingTests prometheus.Counter
	unavailable  *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		iterations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "iterations_total",
			Help:      "Completed iterations by result.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "iteration_duration_seconds",
			Help:      "Wall-clock duration of the test command.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		}),
		diskUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "disk_used_kilobytes",
			Help:      "Used 1K blocks on the probed path after the last iteration.",
		}),
		exitCode: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "last_exit_code",
			Help:      "Exit code of the last test command.",
		}),
		failingTests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "failing_tests_total",
			Help:      "Failing JUnit test cases across iterations.",
		}),
		unavailable: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "virt_probe_unavailable_total",
			Help:      "Virtualization sub-probes that produced nothing, by prober and sub-probe.",
		}, []string{"prober", "subprobe"}),
	}

	reg.MustRegister(m.iterations, m.duration, m.diskUsed, m.exitCode, m.failingTests, m.unavailable)

	return m
}

func (m *Metrics) observe(r *Record) {
	if m == nil {
		return
	}

	m.iterations.WithLabelValues(result(r.Success)).Inc()
	m.duration.Observe(r.Duration)
	m.diskUsed.Set(float64(r.TmpDiskUsedKB))
	m.exitCode.Set(float64(r.ReturnCode))
	if r.JUnit != nil {
		m.failingTests.Add(float64(r.JUnit.Failed()))
	}
}

func (m *Metrics) observeUnavailable(prober string, subprobes []string) {
	if m == nil {
		return
	}

	for _, s := range subprobes {
		m.unavailable.WithLabelValues(prober, s).Inc()
	}
}

func result(success bool) string {
	if success {
		return "pass"
	}
	return "fail"
}

