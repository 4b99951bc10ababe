package xades

import (
	"time"

	"github.com/beevik/etree"

	"github.com/evalimine/xades-verify/internal/adapters/driven/xmlcanon"
	"github.com/evalimine/xades-verify/internal/core/domain"
)

// ProfileHandler is the common, validator-facing contract both XAdES
// profile versions implement. The profile object is a tagged variant:
// exactly one of *v111Profile or *v132Profile is selected once at parse
// time, based on which of QualifyingProperties1 (1.1.1) or
// QualifyingProperties (1.3.2) was present.
type ProfileHandler interface {
	// XAdESNamespace returns this profile's XAdES XML namespace URI.
	XAdESNamespace() string

	// SignedProperties returns the xades:SignedProperties element.
	SignedProperties() (*etree.Element, error)

	// CheckQualifyingProperties runs the profile-specific structural rules
	// of batch A: Target must equal "#"+signatureID, SignedProperties and
	// SignedSignatureProperties must be present, the SignaturePolicyIdentifier
	// rule for this profile, and UnsignedDataObjectProperties must be absent.
	CheckQualifyingProperties(signatureID string) error

	// UnsignedSignatureProperties returns the
	// UnsignedProperties/UnsignedSignatureProperties element, or nil if the
	// signature carries no unsigned properties at all (a bare BES signature).
	UnsignedSignatureProperties() *etree.Element

	// EnsureUnsignedSignatureProperties returns the
	// UnsignedSignatureProperties element, creating UnsignedProperties and
	// UnsignedSignatureProperties if absent, for the TM online acquisition
	// path to attach augmentation data to.
	EnsureUnsignedSignatureProperties() *etree.Element

	// GetOCSPResponseValue returns the decoded bytes of the first (or only)
	// RevocationValues/OCSPValues/EncapsulatedOCSPValue, or an error if none
	// is embedded.
	GetOCSPResponseValue() ([]byte, error)

	// GetRevocationOCSPRef returns the digest binding recorded in
	// CompleteRevocationRefs/OCSPRefs/OCSPRef[0]/DigestAlgAndValue.
	GetRevocationOCSPRef() (domain.OCSPRef, error)

	// OCSPDigestAlgorithm returns the digest-method URI stated by the
	// OCSPRef, used as the nonce algorithm during offline TM re-verification.
	OCSPDigestAlgorithm() (string, error)

	// GetProducedAt returns the ProducedAt timestamp recorded alongside the
	// OCSPRef.
	GetProducedAt() (time.Time, error)
}

// signedPropertiesOf resolves xades:SignedProperties beneath qp, the shared
// implementation both profile structs delegate to since the path does not
// vary between versions.
func signedPropertiesOf(qp *etree.Element, xadesNS string) (*etree.Element, error) {
	return xmlcanon.FindOneByLocalName(qp, xadesNS, "SignedProperties")
}

// checkCommonQualifyingProperties runs the structural rules shared by both
// profiles: Target matching, required presence of SignedProperties and
// SignedSignatureProperties, and rejection of UnsignedDataObjectProperties.
// The caller applies its own SignaturePolicyIdentifier rule in addition.
func checkCommonQualifyingProperties(qp *etree.Element, signatureID, xadesNS string) error {
	want := "#" + signatureID
	if got := qp.SelectAttrValue("Target", ""); got != want {
		return domain.StructuralMismatch("QualifyingProperties Target " + got + " != " + want)
	}

	sp, err := signedPropertiesOf(qp, xadesNS)
	if err != nil {
		return err
	}
	if _, err := xmlcanon.FindOneByLocalName(sp, xadesNS, "SignedSignatureProperties"); err != nil {
		return err
	}

	if up := firstChildByLocalName(qp, "UnsignedProperties"); up != nil {
		if firstChildByLocalName(up, "UnsignedDataObjectProperties") != nil {
			return domain.StructuralMismatch("UnsignedDataObjectProperties must not be present")
		}
	}
	return nil
}

func firstChildByLocalName(parent *etree.Element, name string) *etree.Element {
	els := directChildrenByLocalName(parent, name)
	if len(els) == 0 {
		return nil
	}
	return els[0]
}

func ensureChild(parent *etree.Element, name string) *etree.Element {
	if existing := firstChildByLocalName(parent, name); existing != nil {
		return existing
	}
	return parent.CreateElement(name)
}

func ensureUnsignedSignaturePropertiesOf(qp *etree.Element) *etree.Element {
	up := ensureChild(qp, "UnsignedProperties")
	return ensureChild(up, "UnsignedSignatureProperties")
}
