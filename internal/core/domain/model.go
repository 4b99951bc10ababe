package domain

import (
	"crypto/x509"
	"time"
)

// Profile tags the XAdES schema variant a SignatureDocument was parsed as.
type Profile string

const (
	ProfileV111 Profile = "xades-1.1.1"
	ProfileV132 Profile = "xades-1.3.2"
)

// Reference is one <ds:Reference> entry inside SignedInfo.
type Reference struct {
	URI               string
	Type              string
	DigestMethod      string
	DigestValue       []byte
}

// IsSignedPropertiesRef reports whether this reference is the mandated
// reference to the SignedProperties element, identified by its Type URI
// prefix/suffix per the XAdES convention.
func (r Reference) IsSignedPropertiesRef() bool {
	const prefix = "http://uri.etsi.org/01903"
	const suffix = "#SignedProperties"
	if len(r.Type) < len(prefix)+len(suffix) {
		return false
	}
	return r.Type[:len(prefix)] == prefix && r.Type[len(r.Type)-len(suffix):] == suffix
}

// CertDigestBinding is the XAdES SigningCertificate/Cert entry that binds a
// signing certificate's identity and digest into SignedProperties.
type CertDigestBinding struct {
	DigestMethod string
	DigestValue  []byte
	IssuerString string
	SerialNumber string
}

// OCSPExchange records one OCSP request/response round trip performed during
// validation, kept for diagnostics and for TM augmentation.
type OCSPExchange struct {
	RequestDER    []byte
	ResponseDER   []byte
	ProducedAt    time.Time
	Nonce         []byte
	ResponderCert *x509.Certificate
}

// OCSPRef is the CompleteRevocationRefs/OCSPRefs/OCSPRef digest binding over
// an OCSP response already embedded in a TM signature.
type OCSPRef struct {
	DigestMethod string
	DigestValue  []byte
}

// BatchName identifies one of the three independent offline validation
// batches, used for metrics and logging labels.
type BatchName string

const (
	BatchQualifyingProperties BatchName = "qualifying_properties"
	BatchStructuralCrypto     BatchName = "structural_crypto"
	BatchSigningCertificate   BatchName = "signing_certificate"
)

// ValidationOutcome is a reporting aggregate built by the validator and
// handed to the logging/metrics side channel; it is never consulted for
// control flow, only for observability.
type ValidationOutcome struct {
	Profile  Profile
	Duration time.Duration
	TMMode   string
	Errors   map[BatchName]error
}

// Success reports whether every recorded batch passed.
func (o ValidationOutcome) Success() bool {
	for _, err := range o.Errors {
		if err != nil {
			return false
		}
	}
	return true
}
