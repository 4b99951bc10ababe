// Package xadesverify validates XAdES-BES and Time-Mark (TM) signed ballot
// and result containers used in electronic voting, re-exporting the stable
// surface of the internal validation core so callers never need to import
// the internal packages directly.
package xadesverify

import (
	"context"

	"go.uber.org/zap"

	"github.com/evalimine/xades-verify/internal/adapters/driven/xades"
	"github.com/evalimine/xades-verify/internal/core/domain"
	"github.com/evalimine/xades-verify/internal/core/ports"
	"github.com/evalimine/xades-verify/internal/tm"
	"github.com/evalimine/xades-verify/internal/validator"
)

// Domain types re-exported for callers that need to inspect or categorize
// validation failures.
type (
	ErrorCode         = domain.ErrorCode
	ValidationError   = domain.ValidationError
	ValidationOutcome = domain.ValidationOutcome
	Profile           = domain.Profile
	BatchName         = domain.BatchName
)

// Error code constants, re-exported.
const (
	ErrCodeParseFailure         = domain.ErrCodeParseFailure
	ErrCodeStructuralMismatch   = domain.ErrCodeStructuralMismatch
	ErrCodeAlgorithmUnsupported = domain.ErrCodeAlgorithmUnsupported
	ErrCodeDigestMismatch       = domain.ErrCodeDigestMismatch
	ErrCodeSignatureInvalid     = domain.ErrCodeSignatureInvalid
	ErrCodeTrustFailure         = domain.ErrCodeTrustFailure
	ErrCodeRevocationFailure    = domain.ErrCodeRevocationFailure
	ErrCodeTransportFailure     = domain.ErrCodeTransportFailure
	ErrCodeConfigFailure        = domain.ErrCodeConfigFailure
)

// XAdES profile constants, re-exported.
const (
	ProfileV111 = domain.ProfileV111
	ProfileV132 = domain.ProfileV132
)

// Validation batch name constants, re-exported.
const (
	BatchQualifyingProperties = domain.BatchQualifyingProperties
	BatchStructuralCrypto     = domain.BatchStructuralCrypto
	BatchSigningCertificate   = domain.BatchSigningCertificate
)

// Port interfaces callers implement to supply container, trust, and OCSP
// collaborators to a Verifier.
type (
	ContainerInfo   = ports.ContainerInfo
	TrustStore      = ports.TrustStore
	OCSPConf        = ports.OCSPConf
	OCSPConfStore   = ports.OCSPConfStore
	OCSPTransport   = ports.OCSPTransport
	MetricsRecorder = ports.MetricsRecorder
)

// Document is a parsed <Signature> element, ready for validation.
type Document struct {
	inner *xades.Document
}

// Parse parses raw <Signature> XML bytes into a Document.
func Parse(raw []byte) (*Document, error) {
	d, err := xades.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &Document{inner: d}, nil
}

// Verifier wires the offline signature validator and the Time-Mark
// subsystem together behind a single entry point.
type Verifier struct {
	offline *validator.Offline
	tm      *tm.TM
}

// NewVerifier constructs a Verifier. confStore, transport, and trustStore
// may be nil if only offline signature validation is needed.
// ValidateTMOffline without confStore returns an ErrCodeConfigFailure error.
// AcquireTMOnline checks trustStore first (ErrCodeTrustFailure when nil),
// then confStore and transport (ErrCodeConfigFailure when nil).
func NewVerifier(metrics MetricsRecorder, logger *zap.Logger, confStore OCSPConfStore, transport OCSPTransport, trustStore TrustStore) *Verifier {
	return &Verifier{
		offline: validator.New(metrics, logger),
		tm:      tm.New(confStore, transport, trustStore, metrics, logger),
	}
}

// ValidateOffline runs the three independent offline validation batches
// (QualifyingProperties structure, signature/digest cryptography, signing
// certificate trust chain) and returns their combined outcome.
func (v *Verifier) ValidateOffline(doc *Document, container ContainerInfo, trustStore TrustStore) (ValidationOutcome, error) {
	return v.offline.ValidateOffline(doc.inner, container, trustStore)
}

// ValidateTMOffline re-verifies an OCSP response already embedded in doc.
func (v *Verifier) ValidateTMOffline(doc *Document) error {
	return v.tm.ValidateOffline(doc.inner)
}

// AcquireTMOnline requests a fresh OCSP response for doc's signing
// certificate and returns an augmented Document plus its serialized bytes.
// The augmentation is self-validated via ValidateTMOffline before return.
func (v *Verifier) AcquireTMOnline(ctx context.Context, doc *Document) (*Document, []byte, error) {
	augmented, raw, err := v.tm.AcquireOnline(ctx, doc.inner)
	if err != nil {
		return nil, nil, err
	}
	return &Document{inner: augmented}, raw, nil
}
