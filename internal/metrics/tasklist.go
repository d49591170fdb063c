// Package metrics provides Prometheus metrics for tasklist invocations and
// the process monitor.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/smazurov/gotasklist/internal/tasklist"
)

// Invocation results used as the "result" label.
const (
	ResultOK          = "ok"
	ResultConfig      = "config_error"
	ResultUnsupported = "unsupported_platform"
	ResultLaunch      = "launch_error"
	ResultParse       = "parse_error"
	ResultCanceled    = "canceled"
	ResultError       = "error"
)

var (
	invocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gotasklist",
		Subsystem: "tasklist",
		Name:      "invocations_total",
		Help:      "tasklist.exe invocations by consumption mode, schema and result",
	}, []string{"mode", "schema", "result"})

	invocationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gotasklist",
		Subsystem: "tasklist",
		Name:      "invocation_duration_seconds",
		Help:      "Time from validation to the last task read",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"mode", "schema"})

	lastTaskCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "gotasklist",
		Subsystem: "tasklist",
		Name:      "last_task_count",
		Help:      "Number of tasks returned by the last successful invocation",
	}, []string{"schema"})
)

// Observer records tasklist invocations. It implements tasklist.Observer.
type Observer struct{}

// NewObserver returns an observer backed by the default registry.
func NewObserver() *Observer {
	return &Observer{}
}

// ObserveInvocation implements tasklist.Observer.
func (o *Observer) ObserveInvocation(mode tasklist.Mode, schema tasklist.Schema, tasks int, elapsed time.Duration, err error) {
	result := Result(err)
	invocationsTotal.WithLabelValues(string(mode), schema.String(), result).Inc()

	// Config errors never reach the process.
	if result == ResultConfig || result == ResultUnsupported {
		return
	}
	invocationDuration.WithLabelValues(string(mode), schema.String()).Observe(elapsed.Seconds())
	if err == nil {
		lastTaskCount.WithLabelValues(schema.String()).Set(float64(tasks))
	}
}

// Result classifies an invocation error into a label value.
func Result(err error) string {
	var (
		launchErr *tasklist.LaunchError
		parseErr  *tasklist.ParseError
	)
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, tasklist.ErrInvalidConfig):
		return ResultConfig
	case errors.Is(err, tasklist.ErrUnsupportedPlatform):
		return ResultUnsupported
	case errors.As(err, &launchErr):
		return ResultLaunch
	case errors.As(err, &parseErr):
		return ResultParse
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ResultCanceled
	}
	return ResultError
}
