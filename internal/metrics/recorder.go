package metrics

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"intelaccel/internal/fsutil"
)

// Recorder keeps per-stage timings and outcomes for one run. Values are
// exported in node_exporter textfile format and as a history record.
type Recorder struct {
	registry      *prometheus.Registry
	stageDuration *prometheus.GaugeVec
	stageTotal    *prometheus.CounterVec
	lastRun       prometheus.Gauge
	runSuccess    prometheus.Gauge

	mu      sync.Mutex
	samples []StageSample
}

// NewRecorder creates a recorder with its own registry
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		stageDuration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "intelaccel_stage_duration_seconds",
				Help: "Time taken by each installer stage in the last run",
			},
			[]string{"stage"},
		),
		stageTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intelaccel_stage_total",
				Help: "Installer stage executions by result",
			},
			[]string{"stage", "result"}, // success or failure
		),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "intelaccel_last_run_timestamp_seconds",
			Help: "Unix time the last installer run finished",
		}),
		runSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "intelaccel_last_run_success",
			Help: "1 if the last installer run completed, 0 if it failed",
		}),
	}
	r.registry.MustRegister(r.stageDuration, r.stageTotal, r.lastRun, r.runSuccess)
	return r
}

// ObserveStage records the duration and outcome of a stage
func (r *Recorder) ObserveStage(stage string, d time.Duration, err error) {
	r.ObserveStageWithWarnings(stage, d, 0, err)
}

// ObserveStageWithWarnings records a stage that also produced advisory warnings
func (r *Recorder) ObserveStageWithWarnings(stage string, d time.Duration, warnings int, err error) {
	result := ResultSuccess
	sample := StageSample{
		Stage:    stage,
		Seconds:  d.Seconds(),
		Warnings: warnings,
	}
	if err != nil {
		result = ResultFailure
		sample.Error = err.Error()
	}
	sample.Result = result

	r.stageDuration.WithLabelValues(stage).Set(d.Seconds())
	r.stageTotal.WithLabelValues(stage, result).Inc()

	r.mu.Lock()
	r.samples = append(r.samples, sample)
	r.mu.Unlock()
}

// Finish marks the end of the run
func (r *Recorder) Finish(at time.Time, success bool) {
	r.lastRun.Set(float64(at.Unix()))
	if success {
		r.runSuccess.Set(1)
	} else {
		r.runSuccess.Set(0)
	}
}

// Samples returns the stages observed so far, in order
func (r *Recorder) Samples() []StageSample {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]StageSample(nil), r.samples...)
}

// WriteTextfile writes all metrics to path in the node_exporter textfile
// format. The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := fsutil.EnsureDirectory(filepath.Dir(path)); err != nil {
		return err
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
