package metrics

import "github.com/evalimine/xades-verify/internal/core/ports"

// NoopMetricsRecorder is a no-op implementation for when metrics are
// disabled. All methods are safe to call and do nothing.
type NoopMetricsRecorder struct{}

// NewNoopMetricsRecorder creates a new no-op metrics recorder.
func NewNoopMetricsRecorder() *NoopMetricsRecorder {
	return &NoopMetricsRecorder{}
}

// RecordValidation is a no-op.
func (n *NoopMetricsRecorder) RecordValidation(profile string, batch string, success bool) {}

// RecordOCSPExchange is a no-op.
func (n *NoopMetricsRecorder) RecordOCSPExchange(success bool) {}

// RecordTMAugmentation is a no-op.
func (n *NoopMetricsRecorder) RecordTMAugmentation(success bool) {}

var _ ports.MetricsRecorder = (*NoopMetricsRecorder)(nil)
