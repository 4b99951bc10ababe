// Package tm implements the Time-Mark subsystem: offline re-verification of
// an OCSP response already embedded in a signature, and online acquisition
// of a fresh one when a signature carries none, emitted as an
// UnsignedSignatureProperties augmentation.
package tm

import (
	"strings"

	"go.uber.org/zap"

	"github.com/evalimine/xades-verify/internal/core/domain"
	"github.com/evalimine/xades-verify/internal/core/ports"
)

// TM orchestrates both the offline re-verification and online acquisition
// paths over a signature's Time-Mark material.
type TM struct {
	confStore  ports.OCSPConfStore
	transport  ports.OCSPTransport
	trustStore ports.TrustStore
	metrics    ports.MetricsRecorder
	logger     *zap.Logger
}

// New constructs a TM orchestrator. A nil metrics recorder or logger
// defaults to a no-op implementation.
func New(confStore ports.OCSPConfStore, transport ports.OCSPTransport, trustStore ports.TrustStore, metrics ports.MetricsRecorder, logger *zap.Logger) *TM {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TM{confStore: confStore, transport: transport, trustStore: trustStore, metrics: metrics, logger: logger}
}

// issuerCommonName extracts the CN= attribute from an X.509 issuer name
// string of the form produced by pkix.Name.String(), e.g.
// "CN=Test Issuer,O=Voter". Returns "" if no CN attribute is present.
func issuerCommonName(issuerString string) string {
	const marker = "CN="
	idx := strings.Index(issuerString, marker)
	if idx < 0 {
		return ""
	}
	rest := issuerString[idx+len(marker):]
	if comma := strings.IndexByte(rest, ','); comma >= 0 {
		return rest[:comma]
	}
	return rest
}

func (tm *TM) recordAugmentation(success bool) {
	if tm.metrics != nil {
		tm.metrics.RecordTMAugmentation(success)
	}
}

// wrapNotConfigured builds the ConfigFailure returned when no OCSP responder
// configuration is registered for an issuer CN.
func wrapNotConfigured(cn string) error {
	return domain.ConfigFailure("no OCSP configuration for issuer CN: " + cn)
}

// requireConfStore reports a ConfigFailure instead of panicking when a
// Verifier was constructed without an OCSPConfStore, since TM operations are
// optional collaborators (see NewVerifier).
func (tm *TM) requireConfStore() error {
	if tm.confStore == nil {
		return domain.ConfigFailure("no OCSP configuration store configured")
	}
	return nil
}

// requireTrustStore reports a TrustFailure instead of panicking when a
// Verifier was constructed without a TrustStore.
func (tm *TM) requireTrustStore() error {
	if tm.trustStore == nil {
		return domain.TrustFailure("no trust store configured")
	}
	return nil
}
