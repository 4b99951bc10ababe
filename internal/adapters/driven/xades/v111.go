package xades

import (
	"time"

	"github.com/beevik/etree"

	"github.com/evalimine/xades-verify/internal/adapters/driven/xmlcanon"
	"github.com/evalimine/xades-verify/internal/core/domain"
)

// v111Profile implements ProfileHandler for XAdES 1.1.1 signatures, where
// CompleteRevocationRefs and RevocationValues are modeled as optional
// singletons. SignaturePolicyIdentifier is not checked in this profile:
// neither its presence nor its absence fails validation.
type v111Profile struct {
	qp *etree.Element
}

func newV111Profile(qp *etree.Element) *v111Profile {
	return &v111Profile{qp: qp}
}

func (p *v111Profile) XAdESNamespace() string { return nsXAdES111 }

func (p *v111Profile) SignedProperties() (*etree.Element, error) {
	return signedPropertiesOf(p.qp, nsXAdES111)
}

func (p *v111Profile) CheckQualifyingProperties(signatureID string) error {
	if err := checkCommonQualifyingProperties(p.qp, signatureID, nsXAdES111); err != nil {
		return err
	}
	// SignaturePolicyIdentifier is not inspected; its absence is not a
	// validation failure in this profile.
	return nil
}

func (p *v111Profile) unsignedProperties() *etree.Element {
	return firstChildByLocalName(p.qp, "UnsignedProperties")
}

func (p *v111Profile) UnsignedSignatureProperties() *etree.Element {
	up := p.unsignedProperties()
	if up == nil {
		return nil
	}
	return firstChildByLocalName(up, "UnsignedSignatureProperties")
}

func (p *v111Profile) EnsureUnsignedSignatureProperties() *etree.Element {
	return ensureUnsignedSignaturePropertiesOf(p.qp)
}

func (p *v111Profile) revocationValues() (*etree.Element, error) {
	usp := p.UnsignedSignatureProperties()
	if usp == nil {
		return nil, domain.StructuralMismatch("no UnsignedSignatureProperties present")
	}
	// Optional singleton in 1.1.1.
	return xmlcanon.FindOneByLocalName(usp, nsXAdES111, "RevocationValues")
}

func (p *v111Profile) completeRevocationRefs() (*etree.Element, error) {
	usp := p.UnsignedSignatureProperties()
	if usp == nil {
		return nil, domain.StructuralMismatch("no UnsignedSignatureProperties present")
	}
	return xmlcanon.FindOneByLocalName(usp, nsXAdES111, "CompleteRevocationRefs")
}

func (p *v111Profile) GetOCSPResponseValue() ([]byte, error) {
	rv, err := p.revocationValues()
	if err != nil {
		return nil, err
	}
	return extractEncapsulatedOCSPValue(rv, nsXAdES111)
}

func (p *v111Profile) GetRevocationOCSPRef() (domain.OCSPRef, error) {
	crr, err := p.completeRevocationRefs()
	if err != nil {
		return domain.OCSPRef{}, err
	}
	return extractFirstOCSPRef(crr, nsXAdES111)
}

func (p *v111Profile) OCSPDigestAlgorithm() (string, error) {
	ref, err := p.GetRevocationOCSPRef()
	if err != nil {
		return "", err
	}
	return ref.DigestMethod, nil
}

func (p *v111Profile) GetProducedAt() (time.Time, error) {
	crr, err := p.completeRevocationRefs()
	if err != nil {
		return time.Time{}, err
	}
	return extractFirstOCSPRefProducedAt(crr, nsXAdES111)
}
