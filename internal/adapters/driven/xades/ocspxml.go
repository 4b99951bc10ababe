package xades

import (
	"time"

	"github.com/beevik/etree"

	"github.com/evalimine/xades-verify/internal/adapters/driven/xmlcanon"
	"github.com/evalimine/xades-verify/internal/core/domain"
)

// extractEncapsulatedOCSPValue navigates
// RevocationValues/OCSPValues/EncapsulatedOCSPValue and returns the decoded
// response bytes of the first (or only) value present.
func extractEncapsulatedOCSPValue(revocationValues *etree.Element, xadesNS string) ([]byte, error) {
	ocspValues, err := xmlcanon.FindOneByLocalName(revocationValues, xadesNS, "OCSPValues")
	if err != nil {
		return nil, err
	}
	values := directChildrenByLocalName(ocspValues, "EncapsulatedOCSPValue")
	if len(values) == 0 {
		return nil, domain.StructuralMismatch("no EncapsulatedOCSPValue present")
	}
	return decodeBase64Text(values[0])
}

// extractFirstOCSPRef navigates CompleteRevocationRefs/OCSPRefs/OCSPRef and
// returns the DigestAlgAndValue binding of the first OCSPRef.
func extractFirstOCSPRef(completeRevocationRefs *etree.Element, xadesNS string) (domain.OCSPRef, error) {
	ref, err := firstOCSPRef(completeRevocationRefs, xadesNS)
	if err != nil {
		return domain.OCSPRef{}, err
	}
	digestAlgAndValue, err := xmlcanon.FindOneByLocalName(ref, xadesNS, "DigestAlgAndValue")
	if err != nil {
		return domain.OCSPRef{}, err
	}
	digestMethodEl, err := xmlcanon.FindOneByLocalName(digestAlgAndValue, nsDS, "DigestMethod")
	if err != nil {
		return domain.OCSPRef{}, err
	}
	digestValueEl, err := xmlcanon.FindOneByLocalName(digestAlgAndValue, nsDS, "DigestValue")
	if err != nil {
		return domain.OCSPRef{}, err
	}
	digestValue, err := decodeBase64Text(digestValueEl)
	if err != nil {
		return domain.OCSPRef{}, domain.ParseFailure("decode OCSPRef DigestValue", err)
	}
	return domain.OCSPRef{
		DigestMethod: digestMethodEl.SelectAttrValue("Algorithm", ""),
		DigestValue:  digestValue,
	}, nil
}

// extractFirstOCSPRefProducedAt returns the ProducedAt timestamp recorded on
// the first OCSPRef.
func extractFirstOCSPRefProducedAt(completeRevocationRefs *etree.Element, xadesNS string) (time.Time, error) {
	ref, err := firstOCSPRef(completeRevocationRefs, xadesNS)
	if err != nil {
		return time.Time{}, err
	}
	producedAtEl, err := xmlcanon.FindOneByLocalName(ref, xadesNS, "ProducedAt")
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, producedAtEl.Text())
	if err != nil {
		return time.Time{}, domain.ParseFailure("parse OCSPRef ProducedAt", err)
	}
	return t, nil
}

func firstOCSPRef(completeRevocationRefs *etree.Element, xadesNS string) (*etree.Element, error) {
	ocspRefs, err := xmlcanon.FindOneByLocalName(completeRevocationRefs, xadesNS, "OCSPRefs")
	if err != nil {
		return nil, err
	}
	refs := directChildrenByLocalName(ocspRefs, "OCSPRef")
	if len(refs) == 0 {
		return nil, domain.StructuralMismatch("no OCSPRef present")
	}
	return refs[0], nil
}
