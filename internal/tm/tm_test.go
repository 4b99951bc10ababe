//go:build unit

package tm

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/base64"
	"fmt"
	"math/big"
	"testing"
	"time"

	"golang.org/x/crypto/ocsp"

	"github.com/evalimine/xades-verify/internal/adapters/driven/crypto"
	"github.com/evalimine/xades-verify/internal/adapters/driven/metrics"
	"github.com/evalimine/xades-verify/internal/adapters/driven/xades"
	"github.com/evalimine/xades-verify/internal/core/ports"
)

var oidNonce = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 1, 2}

const dummySignatureValue = "AAAA"

type fakeTrustStore struct {
	certs []*x509.Certificate
}

func (s *fakeTrustStore) GetCert(derSubjectName []byte) (*x509.Certificate, bool) {
	for _, c := range s.certs {
		if string(derSubjectName) == string(c.RawSubject) {
			return c, true
		}
	}
	return nil, false
}

func (s *fakeTrustStore) VerifyChain(cert *x509.Certificate) bool { return true }

type fakeConfStore struct {
	cn   string
	conf ports.OCSPConf
}

func (s *fakeConfStore) HasOCSPConf(cn string) bool { return cn == s.cn }
func (s *fakeConfStore) GetOCSPConf(cn string) (ports.OCSPConf, bool) {
	if cn != s.cn {
		return ports.OCSPConf{}, false
	}
	return s.conf, true
}

// fakeTransport signs OCSP responses as a delegated responder: issuerCert is
// the issuer of the certificate under check (used for the response's
// issuer-hash fields), while responder/responderKey is the OCSP responder's
// own certificate and key, distinct from issuerCert in the common case where
// the responder's certificate was issued by a different CA.
type fakeTransport struct {
	issuerCert   *x509.Certificate
	responder    *x509.Certificate
	responderKey *rsa.PrivateKey
	serial       *big.Int
	nonce        []byte
	producedAt   time.Time
}

func (f *fakeTransport) Exchange(ctx context.Context, url string, requestDER []byte) ([]byte, error) {
	nonceValue, err := asn1.Marshal(f.nonce)
	if err != nil {
		return nil, err
	}
	template := ocsp.Response{
		Status:       ocsp.Good,
		SerialNumber: f.serial,
		ThisUpdate:   f.producedAt,
		ProducedAt:   f.producedAt,
		Certificate:  f.responder,
		ExtraExtensions: []pkix.Extension{
			{Id: oidNonce, Value: nonceValue},
		},
	}
	issuer := f.issuerCert
	if issuer == nil {
		issuer = f.responder
	}
	return ocsp.CreateResponse(issuer, f.responder, template, f.responderKey)
}

func generateCA(t *testing.T, cn string) (*x509.Certificate, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:                pkix.Name{CommonName: cn},
		NotBefore:              time.Now().Add(-time.Hour),
		NotAfter:               time.Now().Add(time.Hour),
		IsCA:                   true,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("ParseCertificate: %v", err)
	}
	return cert, key
}

func generateLeaf(t *testing.T, issuer *x509.Certificate, issuerKey *rsa.PrivateKey, serial int64) (*x509.Certificate, []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(serial),
		Subject:      pkix.Name{CommonName: "Test Signer"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, issuer, &key.PublicKey, issuerKey)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("ParseCertificate: %v", err)
	}
	return cert, der
}

// generateResponderCert issues a non-CA certificate (for an OCSP responder)
// under issuer, returning the cert alongside its private key so the fake
// transport can sign OCSP responses with it.
func generateResponderCert(t *testing.T, issuer *x509.Certificate, issuerKey *rsa.PrivateKey, cn string, serial int64) (*x509.Certificate, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(serial),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, issuer, &key.PublicKey, issuerKey)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("ParseCertificate: %v", err)
	}
	return cert, key
}

// freshSignatureXML builds a minimal, structurally valid v1.3.2 BES
// signature (no TM augmentation yet) around leafDER. Reference digests and
// the signature value are placeholders: AcquireOnline and TM's own
// self-validation never recompute them, only the offline signature
// validator in package validator does.
func freshSignatureXML(leafDER []byte) string {
	certB64 := base64.StdEncoding.EncodeToString(leafDER)
	return fmt.Sprintf(`<ds:Signature xmlns:ds="http://www.w3.org/2000/09/xmldsig#" Id="S1">
  <ds:SignedInfo>
    <ds:CanonicalizationMethod Algorithm="http://www.w3.org/TR/2001/REC-xml-c14n-20010315"/>
    <ds:SignatureMethod Algorithm="http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"/>
    <ds:Reference URI="doc1.txt">
      <ds:DigestMethod Algorithm="http://www.w3.org/2001/04/xmlenc#sha256"/>
      <ds:DigestValue>AAAA</ds:DigestValue>
    </ds:Reference>
    <ds:Reference Type="http://uri.etsi.org/01903#SignedProperties" URI="#SP1">
      <ds:DigestMethod Algorithm="http://www.w3.org/2001/04/xmlenc#sha256"/>
      <ds:DigestValue>BBBB</ds:DigestValue>
    </ds:Reference>
  </ds:SignedInfo>
  <ds:SignatureValue>%s</ds:SignatureValue>
  <ds:KeyInfo>
    <ds:X509Data>
      <ds:X509Certificate>%s</ds:X509Certificate>
    </ds:X509Data>
  </ds:KeyInfo>
  <ds:Object>
    <xades:QualifyingProperties xmlns:xades="http://uri.etsi.org/01903/v1.3.2#" Target="#S1">
      <xades:SignedProperties Id="SP1">
        <xades:SignedSignatureProperties>
          <xades:SigningCertificate>
            <xades:Cert>
              <xades:CertDigest>
                <ds:DigestMethod Algorithm="http://www.w3.org/2001/04/xmlenc#sha256"/>
                <ds:DigestValue>CCCC</ds:DigestValue>
              </xades:CertDigest>
              <xades:IssuerSerial>
                <ds:X509IssuerName>placeholder</ds:X509IssuerName>
                <ds:X509SerialNumber>0</ds:X509SerialNumber>
              </xades:IssuerSerial>
            </xades:Cert>
          </xades:SigningCertificate>
        </xades:SignedSignatureProperties>
      </xades:SignedProperties>
    </xades:QualifyingProperties>
  </ds:Object>
</ds:Signature>`, dummySignatureValue, certB64)
}

// freshSignatureXMLV111 mirrors freshSignatureXML but for the XAdES 1.1.1
// profile (QualifyingProperties1), exercising v111Profile's
// singleton-based RevocationValues/CompleteRevocationRefs lookup instead of
// v1.3.2's sequence-based one.
func freshSignatureXMLV111(leafDER []byte) string {
	certB64 := base64.StdEncoding.EncodeToString(leafDER)
	return fmt.Sprintf(`<ds:Signature xmlns:ds="http://www.w3.org/2000/09/xmldsig#" Id="S1">
  <ds:SignedInfo>
    <ds:CanonicalizationMethod Algorithm="http://www.w3.org/TR/2001/REC-xml-c14n-20010315"/>
    <ds:SignatureMethod Algorithm="http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"/>
    <ds:Reference URI="doc1.txt">
      <ds:DigestMethod Algorithm="http://www.w3.org/2001/04/xmlenc#sha256"/>
      <ds:DigestValue>AAAA</ds:DigestValue>
    </ds:Reference>
    <ds:Reference Type="http://uri.etsi.org/01903#SignedProperties" URI="#SP1">
      <ds:DigestMethod Algorithm="http://www.w3.org/2001/04/xmlenc#sha256"/>
      <ds:DigestValue>BBBB</ds:DigestValue>
    </ds:Reference>
  </ds:SignedInfo>
  <ds:SignatureValue>%s</ds:SignatureValue>
  <ds:KeyInfo>
    <ds:X509Data>
      <ds:X509Certificate>%s</ds:X509Certificate>
    </ds:X509Data>
  </ds:KeyInfo>
  <ds:Object>
    <xades:QualifyingProperties1 xmlns:xades="http://uri.etsi.org/01903/v1.1.1#" Target="#S1">
      <xades:SignedProperties Id="SP1">
        <xades:SignedSignatureProperties>
          <xades:SigningCertificate>
            <xades:Cert>
              <xades:CertDigest>
                <ds:DigestMethod Algorithm="http://www.w3.org/2001/04/xmlenc#sha256"/>
                <ds:DigestValue>CCCC</ds:DigestValue>
              </xades:CertDigest>
              <xades:IssuerSerial>
                <ds:X509IssuerName>placeholder</ds:X509IssuerName>
                <ds:X509SerialNumber>0</ds:X509SerialNumber>
              </xades:IssuerSerial>
            </xades:Cert>
          </xades:SigningCertificate>
        </xades:SignedSignatureProperties>
      </xades:SignedProperties>
    </xades:QualifyingProperties1>
  </ds:Object>
</ds:Signature>`, dummySignatureValue, certB64)
}

func TestAcquireOnline_V111Success(t *testing.T) {
	issuer, issuerKey := generateCA(t, "Test Issuer")
	leaf, leafDER := generateLeaf(t, issuer, issuerKey, 7)

	responderIssuer, responderIssuerKey := generateCA(t, "Test OCSP Responder Issuer")
	responderCert, responderKey := generateResponderCert(t, responderIssuer, responderIssuerKey, "Test OCSP Responder", 42)

	doc, err := xades.Parse([]byte(freshSignatureXMLV111(leafDER)))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Profile.XAdESNamespace() != "http://uri.etsi.org/01903/v1.1.1#" {
		t.Fatalf("expected v1.1.1 profile to be selected, got namespace %s", doc.Profile.XAdESNamespace())
	}

	sigValue, err := doc.SignatureValue()
	if err != nil {
		t.Fatalf("SignatureValue: %v", err)
	}
	expectedNonce, err := crypto.Digest(crypto.URISHA256, sigValue)
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}

	transport := &fakeTransport{
		issuerCert:   issuer,
		responder:    responderCert,
		responderKey: responderKey,
		serial:       leaf.SerialNumber,
		nonce:        expectedNonce,
		producedAt:   time.Now().UTC().Truncate(time.Second),
	}
	confStore := &fakeConfStore{
		cn: "Test Issuer",
		conf: ports.OCSPConf{
			URL:    "http://example.test/ocsp",
			Certs:  []*x509.Certificate{responderCert},
			Skew:   time.Minute,
			MaxAge: time.Hour,
		},
	}
	trustStore := &fakeTrustStore{certs: []*x509.Certificate{issuer, responderIssuer}}

	orchestrator := New(confStore, transport, trustStore, metrics.NewNoopMetricsRecorder(), nil)
	augmented, raw, err := orchestrator.AcquireOnline(context.Background(), doc)
	if err != nil {
		t.Fatalf("AcquireOnline: %v", err)
	}
	if len(raw) == 0 {
		t.Fatal("expected non-empty serialized augmented signature")
	}
	if _, err := augmented.Profile.GetOCSPResponseValue(); err != nil {
		t.Errorf("expected augmented document to carry an OCSP response value: %v", err)
	}
}

func TestAcquireOnline_Success(t *testing.T) {
	issuer, issuerKey := generateCA(t, "Test Issuer")
	leaf, leafDER := generateLeaf(t, issuer, issuerKey, 7)

	// The OCSP responder's certificate and its issuer are deliberately
	// distinct from the signing certificate's own issuer, so the three
	// roles AcquireOnline must keep apart never collapse into one cert.
	responderIssuer, responderIssuerKey := generateCA(t, "Test OCSP Responder Issuer")
	responderCert, responderKey := generateResponderCert(t, responderIssuer, responderIssuerKey, "Test OCSP Responder", 42)

	doc, err := xades.Parse([]byte(freshSignatureXML(leafDER)))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	sigValue, err := doc.SignatureValue()
	if err != nil {
		t.Fatalf("SignatureValue: %v", err)
	}
	expectedNonce, err := crypto.Digest(crypto.URISHA256, sigValue)
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}

	transport := &fakeTransport{
		issuerCert:   issuer,
		responder:    responderCert,
		responderKey: responderKey,
		serial:       leaf.SerialNumber,
		nonce:        expectedNonce,
		producedAt:   time.Now().UTC().Truncate(time.Second),
	}
	confStore := &fakeConfStore{
		cn: "Test Issuer",
		conf: ports.OCSPConf{
			URL:    "http://example.test/ocsp",
			Certs:  []*x509.Certificate{responderCert},
			Skew:   time.Minute,
			MaxAge: time.Hour,
		},
	}
	trustStore := &fakeTrustStore{certs: []*x509.Certificate{issuer, responderIssuer}}

	orchestrator := New(confStore, transport, trustStore, metrics.NewNoopMetricsRecorder(), nil)
	augmented, raw, err := orchestrator.AcquireOnline(context.Background(), doc)
	if err != nil {
		t.Fatalf("AcquireOnline: %v", err)
	}
	if len(raw) == 0 {
		t.Fatal("expected non-empty serialized augmented signature")
	}
	if _, err := augmented.Profile.GetOCSPResponseValue(); err != nil {
		t.Errorf("expected augmented document to carry an OCSP response value: %v", err)
	}

	rawStr := string(raw)
	responderCertB64 := base64.StdEncoding.EncodeToString(responderCert.Raw)
	issuerCertB64 := base64.StdEncoding.EncodeToString(issuer.Raw)
	if !containsSubstring(rawStr, responderCertB64) {
		t.Error("expected CertificateValues to embed the OCSP responder's own certificate DER")
	}
	if !containsSubstring(rawStr, issuerCertB64) {
		t.Error("expected CertificateValues to embed the signing certificate's issuer DER")
	}
	if !containsSubstring(rawStr, responderIssuer.Subject.String()) && !containsSubstring(rawStr, responderIssuer.Issuer.String()) {
		t.Error("expected CompleteCertificateRefs to reference the OCSP responder's own issuer, not the signing certificate's issuer")
	}
	if !containsSubstring(rawStr, responderCert.Issuer.String()) {
		t.Error("expected the OCSPRef to carry the OCSP responder certificate's own issuer string")
	}
	if !containsSubstring(rawStr, responderCert.SerialNumber.String()) {
		t.Error("expected the OCSPRef to carry the OCSP responder certificate's own serial number")
	}
}

func containsSubstring(s, sub string) bool {
	return indexOf(s, sub) >= 0
}

func TestAcquireOnline_NoOCSPConfigured(t *testing.T) {
	issuer, issuerKey := generateCA(t, "Test Issuer")
	_, leafDER := generateLeaf(t, issuer, issuerKey, 7)

	doc, err := xades.Parse([]byte(freshSignatureXML(leafDER)))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	confStore := &fakeConfStore{cn: "Someone Else"}
	trustStore := &fakeTrustStore{certs: []*x509.Certificate{issuer}}
	transport := &fakeTransport{}

	orchestrator := New(confStore, transport, trustStore, metrics.NewNoopMetricsRecorder(), nil)
	_, _, err = orchestrator.AcquireOnline(context.Background(), doc)
	if err == nil {
		t.Fatal("expected error when no OCSP configuration is registered for the issuer")
	}
}

func TestValidateOffline_NonceMismatch(t *testing.T) {
	issuer, issuerKey := generateCA(t, "Test Issuer")
	leaf, leafDER := generateLeaf(t, issuer, issuerKey, 7)

	producedAt := time.Now().UTC().Truncate(time.Second)
	wrongNonce := sha256.Sum256([]byte("not the real nonce"))
	nonceValue, err := asn1.Marshal(wrongNonce[:])
	if err != nil {
		t.Fatalf("asn1.Marshal: %v", err)
	}
	respTemplate := ocsp.Response{
		Status:       ocsp.Good,
		SerialNumber: leaf.SerialNumber,
		ThisUpdate:   producedAt,
		ProducedAt:   producedAt,
		Certificate:  issuer,
		ExtraExtensions: []pkix.Extension{
			{Id: oidNonce, Value: nonceValue},
		},
	}
	responseDER, err := ocsp.CreateResponse(issuer, issuer, respTemplate, issuerKey)
	if err != nil {
		t.Fatalf("CreateResponse: %v", err)
	}
	responseDigest := sha256.Sum256(responseDER)

	withTM := insertBefore(freshSignatureXML(leafDER), "</xades:QualifyingProperties>", fmt.Sprintf(`
      <xades:UnsignedProperties>
        <xades:UnsignedSignatureProperties>
          <xades:RevocationValues>
            <xades:OCSPValues>
              <xades:EncapsulatedOCSPValue>%s</xades:EncapsulatedOCSPValue>
            </xades:OCSPValues>
          </xades:RevocationValues>
          <xades:CompleteRevocationRefs>
            <xades:OCSPRefs>
              <xades:OCSPRef>
                <xades:DigestAlgAndValue>
                  <ds:DigestMethod Algorithm="http://www.w3.org/2001/04/xmlenc#sha256"/>
                  <ds:DigestValue>%s</ds:DigestValue>
                </xades:DigestAlgAndValue>
                <xades:ProducedAt>%s</xades:ProducedAt>
              </xades:OCSPRef>
            </xades:OCSPRefs>
          </xades:CompleteRevocationRefs>
        </xades:UnsignedSignatureProperties>
      </xades:UnsignedProperties>`,
		base64.StdEncoding.EncodeToString(responseDER),
		base64.StdEncoding.EncodeToString(responseDigest[:]),
		producedAt.Format(time.RFC3339)))

	doc, err := xades.Parse([]byte(withTM))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	confStore := &fakeConfStore{
		cn: "Test Issuer",
		conf: ports.OCSPConf{
			URL:    "http://example.test/ocsp",
			Certs:  []*x509.Certificate{issuer},
			Skew:   time.Minute,
			MaxAge: time.Hour,
		},
	}
	trustStore := &fakeTrustStore{certs: []*x509.Certificate{issuer}}
	orchestrator := New(confStore, &fakeTransport{}, trustStore, metrics.NewNoopMetricsRecorder(), nil)

	if err := orchestrator.ValidateOffline(doc); err == nil {
		t.Fatal("expected error when embedded OCSP nonce does not match Digest(SignatureValue)")
	}
}

func TestValidateOffline_V111_Success(t *testing.T) {
	issuer, issuerKey := generateCA(t, "Test Issuer")
	leaf, leafDER := generateLeaf(t, issuer, issuerKey, 7)

	doc, err := xades.Parse([]byte(freshSignatureXMLV111(leafDER)))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	sigValue, err := doc.SignatureValue()
	if err != nil {
		t.Fatalf("SignatureValue: %v", err)
	}
	expectedNonce, err := crypto.Digest(crypto.URISHA256, sigValue)
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	nonceValue, err := asn1.Marshal(expectedNonce)
	if err != nil {
		t.Fatalf("asn1.Marshal: %v", err)
	}

	producedAt := time.Now().UTC().Truncate(time.Second)
	respTemplate := ocsp.Response{
		Status:       ocsp.Good,
		SerialNumber: leaf.SerialNumber,
		ThisUpdate:   producedAt,
		ProducedAt:   producedAt,
		Certificate:  issuer,
		ExtraExtensions: []pkix.Extension{
			{Id: oidNonce, Value: nonceValue},
		},
	}
	responseDER, err := ocsp.CreateResponse(issuer, issuer, respTemplate, issuerKey)
	if err != nil {
		t.Fatalf("CreateResponse: %v", err)
	}
	responseDigest := sha256.Sum256(responseDER)

	// CreateResponse stamps its own producedAt and ignores the template's, so
	// the OCSPRef records the value actually encoded in the response.
	parsedResp, err := ocsp.ParseResponse(responseDER, nil)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}

	withTM := insertBefore(freshSignatureXMLV111(leafDER), "</xades:QualifyingProperties1>", fmt.Sprintf(`
      <xades:UnsignedProperties>
        <xades:UnsignedSignatureProperties>
          <xades:RevocationValues>
            <xades:OCSPValues>
              <xades:EncapsulatedOCSPValue>%s</xades:EncapsulatedOCSPValue>
            </xades:OCSPValues>
          </xades:RevocationValues>
          <xades:CompleteRevocationRefs>
            <xades:OCSPRefs>
              <xades:OCSPRef>
                <xades:DigestAlgAndValue>
                  <ds:DigestMethod Algorithm="http://www.w3.org/2001/04/xmlenc#sha256"/>
                  <ds:DigestValue>%s</ds:DigestValue>
                </xades:DigestAlgAndValue>
                <xades:ProducedAt>%s</xades:ProducedAt>
              </xades:OCSPRef>
            </xades:OCSPRefs>
          </xades:CompleteRevocationRefs>
        </xades:UnsignedSignatureProperties>
      </xades:UnsignedProperties>`,
		base64.StdEncoding.EncodeToString(responseDER),
		base64.StdEncoding.EncodeToString(responseDigest[:]),
		parsedResp.ProducedAt.Format(time.RFC3339)))

	augmented, err := xades.Parse([]byte(withTM))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	confStore := &fakeConfStore{
		cn: "Test Issuer",
		conf: ports.OCSPConf{
			URL:    "http://example.test/ocsp",
			Certs:  []*x509.Certificate{issuer},
			Skew:   time.Minute,
			MaxAge: time.Hour,
		},
	}
	trustStore := &fakeTrustStore{certs: []*x509.Certificate{issuer}}
	orchestrator := New(confStore, &fakeTransport{}, trustStore, metrics.NewNoopMetricsRecorder(), nil)

	if err := orchestrator.ValidateOffline(augmented); err != nil {
		t.Fatalf("ValidateOffline: %v", err)
	}
}

func insertBefore(s, marker, insertion string) string {
	idx := indexOf(s, marker)
	if idx < 0 {
		return s
	}
	return s[:idx] + insertion + "\n    " + s[idx:]
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
