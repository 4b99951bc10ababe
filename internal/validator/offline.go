// Package validator implements the offline signature validator: the
// structural and cryptographic checks of the validation core that require
// no network access, run as three independent batches whose failures
// accumulate into one composite error.
package validator

import (
	stdcrypto "crypto"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/evalimine/xades-verify/internal/adapters/driven/crypto"
	"github.com/evalimine/xades-verify/internal/adapters/driven/xades"
	"github.com/evalimine/xades-verify/internal/core/domain"
	"github.com/evalimine/xades-verify/internal/core/ports"
)

// Offline orchestrates the batch A/B/C checks of the offline signature
// validator against a parsed xades.Document.
type Offline struct {
	metrics ports.MetricsRecorder
	logger  *zap.Logger
}

// New constructs an Offline validator. A nil metrics recorder or logger
// defaults to a no-op implementation, matching the ambient-stack convention
// of never requiring observability collaborators to be wired for the core
// to function.
func New(metrics ports.MetricsRecorder, logger *zap.Logger) *Offline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Offline{metrics: metrics, logger: logger}
}

// ValidateOffline runs batches A, B, and C against doc and container, and
// accumulates their independent failures into a single composite error. A
// nil return means every batch passed.
func (v *Offline) ValidateOffline(doc *xades.Document, container ports.ContainerInfo, trustStore ports.TrustStore) (domain.ValidationOutcome, error) {
	start := time.Now()
	outcome := domain.ValidationOutcome{
		Profile: profileTag(doc),
		Errors:  map[domain.BatchName]error{},
	}

	errA := v.checkQualifyingProperties(doc)
	v.record(outcome.Profile, domain.BatchQualifyingProperties, errA)
	outcome.Errors[domain.BatchQualifyingProperties] = errA

	errB := v.checkBatchB(doc, container)
	v.record(outcome.Profile, domain.BatchStructuralCrypto, errB)
	outcome.Errors[domain.BatchStructuralCrypto] = errB

	errC := v.checkSigningCertificate(doc, trustStore)
	v.record(outcome.Profile, domain.BatchSigningCertificate, errC)
	outcome.Errors[domain.BatchSigningCertificate] = errC

	outcome.Duration = time.Since(start)
	return outcome, domain.JoinBatch(errA, errB, errC)
}

func (v *Offline) record(profile domain.Profile, batch domain.BatchName, err error) {
	if v.metrics != nil {
		v.metrics.RecordValidation(string(profile), string(batch), err == nil)
	}
	if err != nil {
		v.logger.Warn("validation batch failed", zap.String("batch", string(batch)), zap.Error(err))
	} else {
		v.logger.Debug("validation batch passed", zap.String("batch", string(batch)))
	}
}

func profileTag(doc *xades.Document) domain.Profile {
	if doc.Profile.XAdESNamespace() == "http://uri.etsi.org/01903/v1.1.1#" {
		return domain.ProfileV111
	}
	return domain.ProfileV132
}

// checkQualifyingProperties is batch A.
func (v *Offline) checkQualifyingProperties(doc *xades.Document) error {
	return doc.Profile.CheckQualifyingProperties(doc.ID)
}

// checkBatchB runs checkSignatureMethod, checkReferences, checkKeyInfo, and
// checkSignatureValue in order, short-circuiting at the first failure.
func (v *Offline) checkBatchB(doc *xades.Document, container ports.ContainerInfo) error {
	sigMethodURI, err := doc.SignatureMethodURI()
	if err != nil {
		return err
	}
	sigHash, err := crypto.SignatureHashForURI(sigMethodURI)
	if err != nil {
		return err
	}

	if err := v.checkReferences(doc, container); err != nil {
		return err
	}

	cert, err := v.checkKeyInfo(doc)
	if err != nil {
		return err
	}

	return v.checkSignatureValue(doc, sigHash, cert)
}

func (v *Offline) checkReferences(doc *xades.Document, container ports.ContainerInfo) error {
	refs, err := doc.References()
	if err != nil {
		return err
	}
	if len(refs) != container.DocumentCount()+1 {
		return domain.StructuralMismatch("reference count does not equal documentCount + 1")
	}

	var spRef *domain.Reference
	canonURI, err := doc.CanonicalizationMethodURI()
	if err != nil {
		return err
	}

	container.CheckDocumentsBegin()

	for i := range refs {
		r := refs[i]
		if r.IsSignedPropertiesRef() {
			if spRef != nil {
				return domain.StructuralMismatch("multiple references typed as SignedProperties")
			}
			spRef = &refs[i]
			continue
		}
		if r.URI == "" {
			return domain.StructuralMismatch("document reference missing URI")
		}
		if _, err := crypto.DigestHashForURI(r.DigestMethod); err != nil {
			return err
		}
		uri := strings.TrimPrefix(r.URI, "/")
		if !container.CheckDocument(uri, r.DigestMethod, r.DigestValue) {
			return domain.DigestMismatch("document " + uri)
		}
	}

	if spRef == nil {
		return domain.StructuralMismatch("no reference typed as SignedProperties")
	}
	if spRef.URI == "" {
		return domain.StructuralMismatch("SignedProperties reference missing URI")
	}
	if _, err := crypto.DigestHashForURI(spRef.DigestMethod); err != nil {
		return err
	}

	spDigest, err := doc.CanonicalizeSignedProperties(canonURI)
	if err != nil {
		return err
	}
	computed, err := crypto.Digest(spRef.DigestMethod, spDigest)
	if err != nil {
		return err
	}
	if string(computed) != string(spRef.DigestValue) {
		return domain.DigestMismatch("SignedProperties")
	}

	if !container.CheckDocumentsResult() {
		return domain.DigestMismatch("one or more enclosed documents")
	}
	return nil
}

func (v *Offline) checkKeyInfo(doc *xades.Document) (*crypto.Cert, error) {
	certDER, err := doc.X509CertificateDER()
	if err != nil {
		return nil, err
	}
	cert, err := crypto.ParseCert(certDER)
	if err != nil {
		return nil, err
	}

	binding, err := doc.SigningCertificateBinding()
	if err != nil {
		return nil, err
	}
	if !cert.MatchesIssuerSerial(binding.IssuerString, binding.SerialNumber) {
		return nil, domain.StructuralMismatch("SigningCertificate issuer/serial does not match KeyInfo certificate")
	}

	if _, err := crypto.DigestHashForURI(binding.DigestMethod); err != nil {
		return nil, err
	}
	computed, err := crypto.Digest(binding.DigestMethod, cert.DER())
	if err != nil {
		return nil, err
	}
	if string(computed) != string(binding.DigestValue) {
		return nil, domain.DigestMismatch("signing certificate")
	}

	return cert, nil
}

func (v *Offline) checkSignatureValue(doc *xades.Document, sigHash stdcrypto.Hash, cert *crypto.Cert) error {
	canonURI, err := doc.CanonicalizationMethodURI()
	if err != nil {
		return err
	}
	signedInfoBytes, err := doc.CanonicalizeSignedInfo(canonURI)
	if err != nil {
		return err
	}
	hasher, err := crypto.NewHasher(sigHash)
	if err != nil {
		return err
	}
	hasher.Write(signedInfoBytes)
	digest := hasher.Sum(nil)

	sigValue, err := doc.SignatureValue()
	if err != nil {
		return err
	}

	return cert.VerifyRSASignature(sigHash, digest, sigValue)
}

func (v *Offline) checkSigningCertificate(doc *xades.Document, trustStore ports.TrustStore) error {
	if trustStore == nil {
		return domain.TrustFailure("no trust store configured")
	}
	certDER, err := doc.X509CertificateDER()
	if err != nil {
		return err
	}
	cert, err := crypto.ParseCert(certDER)
	if err != nil {
		return err
	}
	if !trustStore.VerifyChain(cert.Raw()) {
		return domain.TrustFailure("signing certificate does not chain to a trust anchor")
	}
	return nil
}
