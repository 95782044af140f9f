package metrics

import (
	"time"

	"github.com/limaJavier/labscheduling/pkg/sat"
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder keeps the size and outcome of every model the timetabler builds and solves
type Recorder struct {
	registry    *prometheus.Registry
	variables   prometheus.Gauge
	constraints prometheus.Gauge
	objective   prometheus.Gauge
	solves      *prometheus.CounterVec
	buildTime   prometheus.Histogram
	solveTime   prometheus.Histogram
}

func NewRecorder() (*Recorder, error) {
	return NewRecorderWithRegistry(prometheus.NewRegistry())
}

func NewRecorderWithRegistry(registry *prometheus.Registry) (*Recorder, error) {
	recorder := &Recorder{
		registry: registry,
		variables: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "labscheduling_model_variables",
			Help: "Number of variables of the last built model",
		}),
		constraints: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "labscheduling_model_constraints",
			Help: "Number of constraints of the last built model",
		}),
		objective: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "labscheduling_solution_objective",
			Help: "Objective value of the last solved model",
		}),
		solves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "labscheduling_solves_total",
			Help: "Total number of solves by status",
		}, []string{"status"}),
		buildTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "labscheduling_build_seconds",
			Help:    "Time spent building models",
			Buckets: prometheus.DefBuckets,
		}),
		solveTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "labscheduling_solve_seconds",
			Help:    "Time spent solving models",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}

	for _, collector := range []prometheus.Collector{
		recorder.variables,
		recorder.constraints,
		recorder.objective,
		recorder.solves,
		recorder.buildTime,
		recorder.solveTime,
	} {
		if err := registry.Register(collector); err != nil {
			return nil, err
		}
	}
	return recorder, nil
}

func (recorder *Recorder) ObserveBuild(variables, constraints int, elapsed time.Duration) {
	recorder.variables.Set(float64(variables))
	recorder.constraints.Set(float64(constraints))
	recorder.buildTime.Observe(elapsed.Seconds())
}

func (recorder *Recorder) ObserveSolve(status sat.Status, objective int64, elapsed time.Duration) {
	recorder.solves.WithLabelValues(status.String()).Inc()
	recorder.solveTime.Observe(elapsed.Seconds())
	if status.Solved() {
		recorder.objective.Set(float64(objective))
	}
}

// WriteToTextfile dumps every metric in the text exposition format, ready for a node exporter textfile collector
func (recorder *Recorder) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, recorder.registry)
}
