//go:build unit

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	m := &dto.Metric{}
	metric, err := c.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues: %v", err)
	}
	if err := metric.(prometheus.Metric).Write(m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestPrometheusMetricsRecorder_RecordValidation(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusMetricsRecorderWithRegistry(reg)

	rec.RecordValidation("xades-1.3.2", "structural_crypto", true)
	rec.RecordValidation("xades-1.3.2", "structural_crypto", false)

	if got := counterValue(t, rec.validationsTotal, "xades-1.3.2", "structural_crypto", "success"); got != 1 {
		t.Errorf("success count = %v, want 1", got)
	}
	if got := counterValue(t, rec.validationsTotal, "xades-1.3.2", "structural_crypto", "failure"); got != 1 {
		t.Errorf("failure count = %v, want 1", got)
	}
}

func TestPrometheusMetricsRecorder_RecordOCSPExchange(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusMetricsRecorderWithRegistry(reg)

	rec.RecordOCSPExchange(true)

	if got := counterValue(t, rec.ocspExchangesTotal, "success"); got != 1 {
		t.Errorf("success count = %v, want 1", got)
	}
}

func TestNoopMetricsRecorder(t *testing.T) {
	rec := NewNoopMetricsRecorder()
	// Must not panic.
	rec.RecordValidation("xades-1.1.1", "qualifying_properties", false)
	rec.RecordOCSPExchange(false)
	rec.RecordTMAugmentation(true)
}
