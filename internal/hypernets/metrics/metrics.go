package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hypernets_sequence"

// Run bundles the metrics of one sequence run. They are written to a
// node-exporter textfile when the run ends.
type Run struct {
	registry *prometheus.Registry

	Requests     *prometheus.CounterVec
	LinesSkipped *prometheus.CounterVec
	Errors       prometheus.Counter
	BytesWritten prometheus.Counter

	Duration   prometheus.Gauge
	ExitCode   prometheus.Gauge
	LastRunEnd prometheus.Gauge
}

func NewRun() *Run {
	reg := prometheus.NewRegistry()

	r := &Run{
		registry: reg,
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Executed requests, labeled by action and outcome.",
		}, []string{"action", "outcome"}),
		LinesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_skipped_total",
			Help:      "Sequence lines not executed, labeled by reason.",
		}, []string{"reason"}),
		Errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Failed pointing and capture operations.",
		}),
		BytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "written_bytes_total",
			Help:      "Bytes of spectra and pictures written.",
		}),
		Duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "duration_seconds",
			Help:      "Wall time of the last run.",
		}),
		ExitCode: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "exit_code",
			Help:      "Exit code of the last run, 0 when completed.",
		}),
		LastRunEnd: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_end_timestamp_seconds",
			Help:      "Unix time the last run ended.",
		}),
	}

	reg.MustRegister(r.Requests, r.LinesSkipped, r.Errors, r.BytesWritten, r.Duration, r.ExitCode, r.LastRunEnd)
	return r
}

func (r *Run) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Finish records the final state of the run
func (r *Run) Finish(started, ended time.Time, exitCode int) {
	r.Duration.Set(ended.Sub(started).Seconds())
	r.ExitCode.Set(float64(exitCode))
	r.LastRunEnd.Set(float64(ended.Unix()))
}

// WriteTextfile atomically replaces path with the current values
func (r *Run) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
