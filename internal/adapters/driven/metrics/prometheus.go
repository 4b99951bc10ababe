package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/evalimine/xades-verify/internal/core/ports"
)

// PrometheusMetricsRecorder records validation metrics using Prometheus.
type PrometheusMetricsRecorder struct {
	validationsTotal   *prometheus.CounterVec
	ocspExchangesTotal *prometheus.CounterVec
	tmAugmentedTotal   *prometheus.CounterVec
}

// NewPrometheusMetricsRecorder creates a new Prometheus metrics recorder
// using the default Prometheus registry.
func NewPrometheusMetricsRecorder() *PrometheusMetricsRecorder {
	return NewPrometheusMetricsRecorderWithRegistry(prometheus.DefaultRegisterer)
}

// NewPrometheusMetricsRecorderWithRegistry creates a new Prometheus metrics
// recorder with a custom registry. Use this for testing.
func NewPrometheusMetricsRecorderWithRegistry(reg prometheus.Registerer) *PrometheusMetricsRecorder {
	validationsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "xades_validations_total",
		Help: "Total offline validation batch attempts",
	}, []string{"profile", "batch", "result"})

	ocspExchangesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "xades_ocsp_exchanges_total",
		Help: "Total OCSP request/response exchanges",
	}, []string{"result"})

	tmAugmentedTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "xades_tm_augmentations_total",
		Help: "Total TM online acquisition and offline re-verification outcomes",
	}, []string{"result"})

	reg.MustRegister(validationsTotal, ocspExchangesTotal, tmAugmentedTotal)

	return &PrometheusMetricsRecorder{
		validationsTotal:   validationsTotal,
		ocspExchangesTotal: ocspExchangesTotal,
		tmAugmentedTotal:   tmAugmentedTotal,
	}
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// RecordValidation records the outcome of one offline-validation batch.
func (p *PrometheusMetricsRecorder) RecordValidation(profile string, batch string, success bool) {
	p.validationsTotal.WithLabelValues(profile, batch, resultLabel(success)).Inc()
}

// RecordOCSPExchange records the outcome of one OCSP request/response round trip.
func (p *PrometheusMetricsRecorder) RecordOCSPExchange(success bool) {
	p.ocspExchangesTotal.WithLabelValues(resultLabel(success)).Inc()
}

// RecordTMAugmentation records the outcome of a TM online acquisition or
// offline re-verification.
func (p *PrometheusMetricsRecorder) RecordTMAugmentation(success bool) {
	p.tmAugmentedTotal.WithLabelValues(resultLabel(success)).Inc()
}

// Ensure PrometheusMetricsRecorder implements ports.MetricsRecorder.
var _ ports.MetricsRecorder = (*PrometheusMetricsRecorder)(nil)
