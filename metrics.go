package xadesverify

import (
	"github.com/evalimine/xades-verify/internal/adapters/driven/metrics"
)

// Metrics recorder implementations re-exported for callers wiring a
// Verifier. PrometheusMetricsRecorder registers validation, OCSP exchange,
// and TM augmentation counters on a Prometheus registry;
// NoopMetricsRecorder discards everything.
type (
	PrometheusMetricsRecorder = metrics.PrometheusMetricsRecorder
	NoopMetricsRecorder       = metrics.NoopMetricsRecorder
)

var (
	NewPrometheusMetricsRecorder             = metrics.NewPrometheusMetricsRecorder
	NewPrometheusMetricsRecorderWithRegistry = metrics.NewPrometheusMetricsRecorderWithRegistry
	NewNoopMetricsRecorder                   = metrics.NewNoopMetricsRecorder
)
