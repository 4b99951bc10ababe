// Package xades provides the schema-bound typed view over a <Signature>
// XML element: SignedInfo, KeyInfo, SignatureValue, and the XAdES
// QualifyingProperties subtree, dispatched across the two supported profile
// versions (1.1.1 and 1.3.2) behind one common interface.
package xades

import (
	"encoding/base64"
	"strings"

	"github.com/beevik/etree"

	"github.com/evalimine/xades-verify/internal/adapters/driven/xmlcanon"
	"github.com/evalimine/xades-verify/internal/core/domain"
)

const (
	nsDS    = "http://www.w3.org/2000/09/xmldsig#"
	nsXAdES111 = "http://uri.etsi.org/01903/v1.1.1#"
	nsXAdES132 = "http://uri.etsi.org/01903/v1.3.2#"
)

// Document is the schema-bound typed view over one <Signature> element. It
// keeps the raw bytes alongside the parsed DOM because digest recomputation
// must re-parse rather than walk the already-built tree (see package
// xmlcanon), while structural checks want the typed view this package
// provides.
type Document struct {
	Raw     []byte
	dom     *xmlcanon.Doc
	Root    *etree.Element // the <Signature> element
	Profile ProfileHandler
	ID      string
}

// Parse builds a schema-bound Document from raw <Signature> XML bytes,
// selecting the XAdES profile by which of QualifyingProperties (1.3.2) or
// QualifyingProperties1 (1.1.1) is present. A second presence, or multiple
// occurrences of either, is fatal.
func Parse(raw []byte) (*Document, error) {
	dom, err := xmlcanon.Parse(raw)
	if err != nil {
		return nil, err
	}
	root := dom.Root()
	if localName(root) != "Signature" {
		return nil, domain.StructuralMismatch("root element is not ds:Signature")
	}

	obj, err := xmlcanon.FindOneByLocalName(root, nsDS, "Object")
	if err != nil {
		return nil, err
	}

	qp132 := directChildrenByLocalName(obj, "QualifyingProperties")
	qp111 := directChildrenByLocalName(obj, "QualifyingProperties1")

	var profile ProfileHandler
	switch {
	case len(qp132) == 1 && len(qp111) == 0:
		profile = newV132Profile(qp132[0])
	case len(qp111) == 1 && len(qp132) == 0:
		profile = newV111Profile(qp111[0])
	case len(qp132)+len(qp111) == 0:
		return nil, domain.StructuralMismatch("no QualifyingProperties element present")
	default:
		return nil, domain.StructuralMismatch("both or multiple QualifyingProperties variants present")
	}

	return &Document{
		Raw:     raw,
		dom:     dom,
		Root:    root,
		Profile: profile,
		ID:      root.SelectAttrValue("Id", ""),
	}, nil
}

// SignedInfo returns the ds:SignedInfo element, failing if zero or more than
// one is present.
func (d *Document) SignedInfo() (*etree.Element, error) {
	return xmlcanon.FindOneByLocalName(d.Root, nsDS, "SignedInfo")
}

// SignatureValue returns the decoded bytes of ds:SignatureValue.
func (d *Document) SignatureValue() ([]byte, error) {
	el, err := xmlcanon.FindOneByLocalName(d.Root, nsDS, "SignatureValue")
	if err != nil {
		return nil, err
	}
	return decodeBase64Text(el)
}

// References returns every ds:Reference in SignedInfo, in document order.
func (d *Document) References() ([]domain.Reference, error) {
	signedInfo, err := d.SignedInfo()
	if err != nil {
		return nil, err
	}
	var refs []domain.Reference
	for _, el := range directChildrenByLocalName(signedInfo, "Reference") {
		digestMethodEl, err := xmlcanon.FindOneByLocalName(el, nsDS, "DigestMethod")
		if err != nil {
			return nil, err
		}
		digestValueEl, err := xmlcanon.FindOneByLocalName(el, nsDS, "DigestValue")
		if err != nil {
			return nil, err
		}
		digestValue, err := decodeBase64Text(digestValueEl)
		if err != nil {
			return nil, domain.ParseFailure("decode DigestValue", err)
		}
		refs = append(refs, domain.Reference{
			URI:          el.SelectAttrValue("URI", ""),
			Type:         el.SelectAttrValue("Type", ""),
			DigestMethod: digestMethodEl.SelectAttrValue("Algorithm", ""),
			DigestValue:  digestValue,
		})
	}
	return refs, nil
}

// SignatureMethodURI returns the ds:SignatureMethod algorithm URI.
func (d *Document) SignatureMethodURI() (string, error) {
	signedInfo, err := d.SignedInfo()
	if err != nil {
		return "", err
	}
	el, err := xmlcanon.FindOneByLocalName(signedInfo, nsDS, "SignatureMethod")
	if err != nil {
		return "", err
	}
	return el.SelectAttrValue("Algorithm", ""), nil
}

// CanonicalizationMethodURI returns the ds:CanonicalizationMethod algorithm URI.
func (d *Document) CanonicalizationMethodURI() (string, error) {
	signedInfo, err := d.SignedInfo()
	if err != nil {
		return "", err
	}
	el, err := xmlcanon.FindOneByLocalName(signedInfo, nsDS, "CanonicalizationMethod")
	if err != nil {
		return "", err
	}
	return el.SelectAttrValue("Algorithm", ""), nil
}

// X509CertificateDER returns the decoded DER bytes of the single
// KeyInfo/X509Data/X509Certificate element.
func (d *Document) X509CertificateDER() ([]byte, error) {
	keyInfo, err := xmlcanon.FindOneByLocalName(d.Root, nsDS, "KeyInfo")
	if err != nil {
		return nil, err
	}
	x509Data, err := xmlcanon.FindOneByLocalName(keyInfo, nsDS, "X509Data")
	if err != nil {
		return nil, err
	}
	certEl, err := xmlcanon.FindOneByLocalName(x509Data, nsDS, "X509Certificate")
	if err != nil {
		return nil, err
	}
	return decodeBase64Text(certEl)
}

// SigningCertificateBinding reads
// SignedProperties/SignedSignatureProperties/SigningCertificate/Cert,
// requiring exactly one Cert entry, and returns the issuer/serial/digest
// binding it asserts about the signing certificate. This path does not vary
// between the two XAdES profiles.
func (d *Document) SigningCertificateBinding() (domain.CertDigestBinding, error) {
	xadesNS := d.Profile.XAdESNamespace()
	sp, err := d.Profile.SignedProperties()
	if err != nil {
		return domain.CertDigestBinding{}, err
	}
	ssp, err := xmlcanon.FindOneByLocalName(sp, xadesNS, "SignedSignatureProperties")
	if err != nil {
		return domain.CertDigestBinding{}, err
	}
	signingCert, err := xmlcanon.FindOneByLocalName(ssp, xadesNS, "SigningCertificate")
	if err != nil {
		return domain.CertDigestBinding{}, err
	}
	certs := directChildrenByLocalName(signingCert, "Cert")
	if len(certs) != 1 {
		return domain.CertDigestBinding{}, domain.StructuralMismatch("SigningCertificate must contain exactly one Cert")
	}
	cert := certs[0]

	certDigest, err := xmlcanon.FindOneByLocalName(cert, xadesNS, "CertDigest")
	if err != nil {
		return domain.CertDigestBinding{}, err
	}
	digestMethodEl, err := xmlcanon.FindOneByLocalName(certDigest, nsDS, "DigestMethod")
	if err != nil {
		return domain.CertDigestBinding{}, err
	}
	digestValueEl, err := xmlcanon.FindOneByLocalName(certDigest, nsDS, "DigestValue")
	if err != nil {
		return domain.CertDigestBinding{}, err
	}
	digestValue, err := decodeBase64Text(digestValueEl)
	if err != nil {
		return domain.CertDigestBinding{}, domain.ParseFailure("decode CertDigest value", err)
	}

	issuerSerial, err := xmlcanon.FindOneByLocalName(cert, xadesNS, "IssuerSerial")
	if err != nil {
		return domain.CertDigestBinding{}, err
	}
	issuerNameEl, err := xmlcanon.FindOneByLocalName(issuerSerial, nsDS, "X509IssuerName")
	if err != nil {
		return domain.CertDigestBinding{}, err
	}
	serialEl, err := xmlcanon.FindOneByLocalName(issuerSerial, nsDS, "X509SerialNumber")
	if err != nil {
		return domain.CertDigestBinding{}, err
	}

	return domain.CertDigestBinding{
		DigestMethod: digestMethodEl.SelectAttrValue("Algorithm", ""),
		DigestValue:  digestValue,
		IssuerString: issuerNameEl.Text(),
		SerialNumber: serialEl.Text(),
	}, nil
}

// CanonicalizeSignedInfo recomputes the canonical bytes of SignedInfo under
// canonMethodURI, re-parsing the raw document rather than walking d.Root.
func (d *Document) CanonicalizeSignedInfo(canonMethodURI string) ([]byte, error) {
	return d.canonicalizeFresh(nsDS, "SignedInfo", canonMethodURI)
}

// CanonicalizeSignedProperties recomputes the canonical bytes of
// SignedProperties under canonMethodURI, re-parsing the raw document.
func (d *Document) CanonicalizeSignedProperties(canonMethodURI string) ([]byte, error) {
	return d.canonicalizeFresh(d.Profile.XAdESNamespace(), "SignedProperties", canonMethodURI)
}

func (d *Document) canonicalizeFresh(namespaceURI, tag, canonMethodURI string) ([]byte, error) {
	fresh, err := xmlcanon.Parse(d.Raw)
	if err != nil {
		return nil, err
	}
	el, err := xmlcanon.FindOneByLocalName(fresh.Root(), namespaceURI, tag)
	if err != nil {
		return nil, err
	}
	return xmlcanon.Canonicalize(el, canonMethodURI)
}

func localName(el *etree.Element) string {
	if el == nil {
		return ""
	}
	return el.Tag
}

func directChildrenByLocalName(parent *etree.Element, name string) []*etree.Element {
	var out []*etree.Element
	for _, c := range parent.ChildElements() {
		if c.Tag == name {
			out = append(out, c)
		}
	}
	return out
}

func decodeBase64Text(el *etree.Element) ([]byte, error) {
	text := strings.TrimSpace(el.Text())
	text = strings.Join(strings.Fields(text), "")
	return base64.StdEncoding.DecodeString(text)
}
