package tm

import (
	"context"
	"crypto/x509"
	"encoding/base64"
	"time"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/evalimine/xades-verify/internal/adapters/driven/crypto"
	"github.com/evalimine/xades-verify/internal/adapters/driven/ocspclient"
	"github.com/evalimine/xades-verify/internal/adapters/driven/xades"
	"github.com/evalimine/xades-verify/internal/adapters/driven/xmlcanon"
	"github.com/evalimine/xades-verify/internal/core/domain"
)

// AcquireOnline requests a fresh OCSP response for doc's signing
// certificate, embeds it into a new UnsignedSignatureProperties
// augmentation (RevocationValues, CompleteRevocationRefs, CertificateValues,
// CompleteCertificateRefs), and serializes the result. Before returning, it
// re-parses and self-validates the augmented signature offline, so a caller
// never receives an augmentation that would itself fail re-verification.
func (tm *TM) AcquireOnline(ctx context.Context, doc *xades.Document) (*xades.Document, []byte, error) {
	certDER, err := doc.X509CertificateDER()
	if err != nil {
		tm.recordAugmentation(false)
		return nil, nil, err
	}
	cert, err := crypto.ParseCert(certDER)
	if err != nil {
		tm.recordAugmentation(false)
		return nil, nil, err
	}

	if err := tm.requireTrustStore(); err != nil {
		tm.recordAugmentation(false)
		return nil, nil, err
	}
	issuerCert, ok := tm.trustStore.GetCert(cert.IssuerRawDER())
	if !ok {
		tm.recordAugmentation(false)
		return nil, nil, domain.TrustFailure("signing certificate issuer not found in trust store")
	}

	if err := tm.requireConfStore(); err != nil {
		tm.recordAugmentation(false)
		return nil, nil, err
	}
	cn := issuerCommonName(cert.IssuerString())
	conf, ok := tm.confStore.GetOCSPConf(cn)
	if !ok {
		tm.recordAugmentation(false)
		return nil, nil, wrapNotConfigured(cn)
	}

	binding, err := doc.SigningCertificateBinding()
	if err != nil {
		tm.recordAugmentation(false)
		return nil, nil, err
	}
	digestURI := binding.DigestMethod

	sigValue, err := doc.SignatureValue()
	if err != nil {
		tm.recordAugmentation(false)
		return nil, nil, err
	}

	if tm.transport == nil {
		tm.recordAugmentation(false)
		return nil, nil, domain.ConfigFailure("no OCSP transport configured")
	}
	exchange, err := ocspclient.RequestAndVerify(ctx, tm.transport, cert.Raw(), issuerCert, conf, digestURI, sigValue)
	if tm.metrics != nil {
		tm.metrics.RecordOCSPExchange(err == nil)
	}
	if err != nil {
		tm.recordAugmentation(false)
		return nil, nil, err
	}

	responderIssuerCert, ok := tm.trustStore.GetCert(exchange.ResponderCert.RawIssuer)
	if !ok {
		tm.recordAugmentation(false)
		return nil, nil, domain.TrustFailure("OCSP responder certificate issuer not found in trust store")
	}

	responseDigest, err := crypto.Digest(digestURI, exchange.ResponseDER)
	if err != nil {
		tm.recordAugmentation(false)
		return nil, nil, err
	}
	responderIssuerDigest, err := crypto.Digest(digestURI, responderIssuerCert.Raw)
	if err != nil {
		tm.recordAugmentation(false)
		return nil, nil, err
	}

	usp := doc.Profile.EnsureUnsignedSignatureProperties()
	appendRevocationValues(usp, exchange.ResponseDER)
	appendCompleteRevocationRefs(usp, digestURI, responseDigest, exchange.ProducedAt, exchange.ResponderCert)
	appendCertificateValues(usp, exchange.ResponderCert.Raw, issuerCert.Raw)
	appendCompleteCertificateRefs(usp, digestURI, responderIssuerDigest, responderIssuerCert)

	rawAugmented, err := xmlcanon.WriteElement(doc.Root)
	if err != nil {
		tm.recordAugmentation(false)
		return nil, nil, err
	}

	augmented, err := xades.Parse(rawAugmented)
	if err != nil {
		tm.recordAugmentation(false)
		return nil, nil, domain.ParseFailure("re-parse TM-augmented signature", err)
	}
	if err := tm.ValidateOffline(augmented); err != nil {
		tm.recordAugmentation(false)
		return nil, nil, err
	}

	tm.logger.Debug("TM online acquisition succeeded", zap.String("issuer_cn", cn))
	tm.recordAugmentation(true)
	return augmented, rawAugmented, nil
}

// Every element created here uses an explicit xades:/ds: prefix, matching
// the rest of the tree's namespace convention: no signature this codebase
// parses ever declares a bare default xmlns, so an unprefixed CreateElement
// would resolve to namespace "" and become invisible to the
// FindOneByLocalName(..., nsXAdES132/nsDS, ...) lookups that must find it
// back during offline re-verification.
func appendRevocationValues(usp *etree.Element, responseDER []byte) {
	rv := usp.CreateElement("xades:RevocationValues")
	ov := rv.CreateElement("xades:OCSPValues")
	ev := ov.CreateElement("xades:EncapsulatedOCSPValue")
	ev.SetText(base64.StdEncoding.EncodeToString(responseDER))
}

func appendCompleteRevocationRefs(usp *etree.Element, digestURI string, digest []byte, producedAt time.Time, responderCert *x509.Certificate) {
	crr := usp.CreateElement("xades:CompleteRevocationRefs")
	refs := crr.CreateElement("xades:OCSPRefs")
	ref := refs.CreateElement("xades:OCSPRef")
	dav := ref.CreateElement("xades:DigestAlgAndValue")
	dm := dav.CreateElement("ds:DigestMethod")
	dm.CreateAttr("Algorithm", digestURI)
	dv := dav.CreateElement("ds:DigestValue")
	dv.SetText(base64.StdEncoding.EncodeToString(digest))
	is := ref.CreateElement("xades:IssuerSerial")
	in := is.CreateElement("ds:X509IssuerName")
	in.SetText(responderCert.Issuer.String())
	sn := is.CreateElement("ds:X509SerialNumber")
	sn.SetText(responderCert.SerialNumber.String())
	pa := ref.CreateElement("xades:ProducedAt")
	pa.SetText(producedAt.UTC().Format(time.RFC3339))
}

func appendCertificateValues(usp *etree.Element, responderDER, issuerDER []byte) {
	cv := usp.CreateElement("xades:CertificateValues")
	for _, der := range [][]byte{responderDER, issuerDER} {
		ec := cv.CreateElement("xades:EncapsulatedX509Certificate")
		ec.SetText(base64.StdEncoding.EncodeToString(der))
	}
}

func appendCompleteCertificateRefs(usp *etree.Element, digestURI string, digest []byte, issuerCert *x509.Certificate) {
	ccr := usp.CreateElement("xades:CompleteCertificateRefs")
	certRefs := ccr.CreateElement("xades:CertRefs")
	certEl := certRefs.CreateElement("xades:Cert")
	cd := certEl.CreateElement("xades:CertDigest")
	dm := cd.CreateElement("ds:DigestMethod")
	dm.CreateAttr("Algorithm", digestURI)
	dv := cd.CreateElement("ds:DigestValue")
	dv.SetText(base64.StdEncoding.EncodeToString(digest))
	is := certEl.CreateElement("xades:IssuerSerial")
	in := is.CreateElement("ds:X509IssuerName")
	in.SetText(issuerCert.Issuer.String())
	sn := is.CreateElement("ds:X509SerialNumber")
	sn.SetText(issuerCert.SerialNumber.String())
}
