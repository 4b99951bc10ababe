package xades

import (
	"time"

	"github.com/beevik/etree"

	"github.com/evalimine/xades-verify/internal/adapters/driven/xmlcanon"
	"github.com/evalimine/xades-verify/internal/core/domain"
)

// v132Profile implements ProfileHandler for XAdES 1.3.2 signatures, where
// CompleteRevocationRefs and RevocationValues are modeled as sequences (the
// first element is used) and SignaturePolicyIdentifier must be absent.
type v132Profile struct {
	qp *etree.Element
}

func newV132Profile(qp *etree.Element) *v132Profile {
	return &v132Profile{qp: qp}
}

func (p *v132Profile) XAdESNamespace() string { return nsXAdES132 }

func (p *v132Profile) SignedProperties() (*etree.Element, error) {
	return signedPropertiesOf(p.qp, nsXAdES132)
}

func (p *v132Profile) CheckQualifyingProperties(signatureID string) error {
	if err := checkCommonQualifyingProperties(p.qp, signatureID, nsXAdES132); err != nil {
		return err
	}
	sp, err := p.SignedProperties()
	if err != nil {
		return err
	}
	ssp, err := signedSignaturePropertiesOf(sp)
	if err != nil {
		return err
	}
	if firstChildByLocalName(ssp, "SignaturePolicyIdentifier") != nil {
		return domain.StructuralMismatch("SignaturePolicyIdentifier must not be present in XAdES 1.3.2")
	}
	return nil
}

func (p *v132Profile) unsignedProperties() *etree.Element {
	return firstChildByLocalName(p.qp, "UnsignedProperties")
}

func (p *v132Profile) UnsignedSignatureProperties() *etree.Element {
	up := p.unsignedProperties()
	if up == nil {
		return nil
	}
	return firstChildByLocalName(up, "UnsignedSignatureProperties")
}

func (p *v132Profile) EnsureUnsignedSignatureProperties() *etree.Element {
	return ensureUnsignedSignaturePropertiesOf(p.qp)
}

// revocationValuesSeq returns the first RevocationValues element of what the
// 1.3.2 schema models as a sequence.
func (p *v132Profile) revocationValuesSeq() (*etree.Element, error) {
	usp := p.UnsignedSignatureProperties()
	if usp == nil {
		return nil, domain.StructuralMismatch("no UnsignedSignatureProperties present")
	}
	els := directChildrenByLocalName(usp, "RevocationValues")
	if len(els) == 0 {
		return nil, domain.StructuralMismatch("no RevocationValues present")
	}
	return els[0], nil
}

func (p *v132Profile) completeRevocationRefsSeq() (*etree.Element, error) {
	usp := p.UnsignedSignatureProperties()
	if usp == nil {
		return nil, domain.StructuralMismatch("no UnsignedSignatureProperties present")
	}
	els := directChildrenByLocalName(usp, "CompleteRevocationRefs")
	if len(els) == 0 {
		return nil, domain.StructuralMismatch("no CompleteRevocationRefs present")
	}
	return els[0], nil
}

func (p *v132Profile) GetOCSPResponseValue() ([]byte, error) {
	rv, err := p.revocationValuesSeq()
	if err != nil {
		return nil, err
	}
	return extractEncapsulatedOCSPValue(rv, nsXAdES132)
}

func (p *v132Profile) GetRevocationOCSPRef() (domain.OCSPRef, error) {
	crr, err := p.completeRevocationRefsSeq()
	if err != nil {
		return domain.OCSPRef{}, err
	}
	return extractFirstOCSPRef(crr, nsXAdES132)
}

func (p *v132Profile) OCSPDigestAlgorithm() (string, error) {
	ref, err := p.GetRevocationOCSPRef()
	if err != nil {
		return "", err
	}
	return ref.DigestMethod, nil
}

func (p *v132Profile) GetProducedAt() (time.Time, error) {
	crr, err := p.completeRevocationRefsSeq()
	if err != nil {
		return time.Time{}, err
	}
	return extractFirstOCSPRefProducedAt(crr, nsXAdES132)
}

func signedSignaturePropertiesOf(sp *etree.Element) (*etree.Element, error) {
	return xmlcanon.FindOneByLocalName(sp, nsXAdES132, "SignedSignatureProperties")
}
