// Package ports declares the narrow interfaces the validation core borrows
// from its caller. Every external collaborator is modeled this way so tests
// can substitute in-memory doubles without touching the core.
package ports

import (
	"context"
	"crypto/x509"
	"time"
)

// ContainerInfo is the unpacked-container collaborator. The core never reads
// container bytes itself; it asks the container to check a claimed digest
// and reports the final verdict through checkDocumentsResult.
type ContainerInfo interface {
	// DocumentCount returns the number of enclosed documents the container
	// expects to be referenced from the signature.
	DocumentCount() int

	// CheckDocumentsBegin initiates a verification session, resetting any
	// per-document claim bookkeeping the container keeps.
	CheckDocumentsBegin()

	// CheckDocument records a claim that the document named by uri has the
	// given digest under digestAlgorithmURI, and returns whether that claim
	// matches the container's own computation.
	CheckDocument(uri string, digestAlgorithmURI string, expectedDigest []byte) bool

	// CheckDocumentsResult reports whether every document has been claimed
	// exactly once and every claim matched.
	CheckDocumentsResult() bool
}

// TrustStore is the certificate trust-store collaborator, borrowed read-only.
type TrustStore interface {
	// GetCert looks up a certificate by its DER-encoded issuer name, as used
	// to resolve an OCSP responder's issuer certificate.
	GetCert(derIssuerName []byte) (*x509.Certificate, bool)

	// VerifyChain runs the store's chain-verification operation against cert
	// and reports whether it chains to a trusted anchor.
	VerifyChain(cert *x509.Certificate) bool
}

// OCSPConf is the per-issuer OCSP responder configuration, keyed by the
// signer-issuer common name.
type OCSPConf struct {
	URL     string
	Certs   []*x509.Certificate
	Skew    time.Duration
	MaxAge  time.Duration
}

// OCSPConfStore resolves OCSPConf entries by issuer CN.
type OCSPConfStore interface {
	HasOCSPConf(cn string) bool
	GetOCSPConf(cn string) (OCSPConf, bool)
}

// OCSPTransport performs the single synchronous OCSP HTTP exchange. It is a
// narrow seam so tests can substitute a stub responder.
type OCSPTransport interface {
	Exchange(ctx context.Context, url string, requestDER []byte) (responseDER []byte, err error)
}

// MetricsRecorder is the port interface for recording validation metrics.
// Implementations are adapters: a Prometheus-backed recorder for production,
// a no-op recorder for tests or when metrics are disabled.
type MetricsRecorder interface {
	// RecordValidation records the outcome of one offline-validation batch.
	RecordValidation(profile string, batch string, success bool)

	// RecordOCSPExchange records the outcome of one OCSP request/response
	// round trip.
	RecordOCSPExchange(success bool)

	// RecordTMAugmentation records the outcome of a TM operation: an online
	// acquisition or an offline re-verification. An online acquisition that
	// reaches its self-validation records twice, once for that offline
	// re-verification and once for the acquisition itself.
	RecordTMAugmentation(success bool)
}
