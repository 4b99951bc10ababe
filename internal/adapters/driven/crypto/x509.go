package crypto

import (
	"crypto"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"

	"github.com/evalimine/xades-verify/internal/core/domain"
)

// Cert is a thin facade over a parsed X.509 certificate exposing exactly the
// operations the validator needs: subject/issuer in both string and raw DER
// form, serial number, DER re-encoding, chain verification, and RSA
// signature verification. Raw hands out the underlying x509.Certificate for
// collaborators that need the stdlib type (the trust store and OCSP client).
type Cert struct {
	cert *x509.Certificate
}

// ParseCert parses a DER-encoded certificate into a Cert facade.
func ParseCert(der []byte) (*Cert, error) {
	c, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, domain.ParseFailure("parse X.509 certificate", err)
	}
	return &Cert{cert: c}, nil
}

// DER returns the original DER encoding of the certificate.
func (c *Cert) DER() []byte {
	return c.cert.Raw
}

// SubjectString returns the RFC 2253-ish string form of the subject name, as
// produced by pkix.Name.String().
func (c *Cert) SubjectString() string {
	return c.cert.Subject.String()
}

// IssuerString returns the string form of the issuer name.
func (c *Cert) IssuerString() string {
	return c.cert.Issuer.String()
}

// IssuerRawDER returns the raw DER encoding of the issuer RDNSequence, used
// to key trust-store lookups.
func (c *Cert) IssuerRawDER() []byte {
	return c.cert.RawIssuer
}

// SerialString returns the decimal string form of the certificate serial
// number, as XAdES embeds it in X509SerialNumber.
func (c *Cert) SerialString() string {
	return c.cert.SerialNumber.String()
}

// PublicKey returns the certificate's RSA public key, or an error if the
// certificate does not carry an RSA key (the only family this core verifies
// against).
func (c *Cert) PublicKey() (*rsa.PublicKey, error) {
	pub, ok := c.cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, domain.StructuralMismatch("signing certificate does not carry an RSA public key")
	}
	return pub, nil
}

// Raw exposes the underlying x509.Certificate for collaborators (like the
// trust store and OCSP client) that must operate on the stdlib type.
func (c *Cert) Raw() *x509.Certificate {
	return c.cert
}

// VerifyRSASignature verifies sig over digest (already hashed under h) using
// this certificate's public key.
func (c *Cert) VerifyRSASignature(h crypto.Hash, digest, sig []byte) error {
	pub, err := c.PublicKey()
	if err != nil {
		return err
	}
	if err := rsa.VerifyPKCS1v15(pub, h, digest, sig); err != nil {
		return domain.SignatureInvalid(err)
	}
	return nil
}

// MatchesIssuerSerial reports whether this certificate's issuer string and
// serial number equal issuerString and serialString, as required when
// cross-checking SignedProperties/SigningCertificate/Cert/IssuerSerial
// against the certificate embedded in KeyInfo.
func (c *Cert) MatchesIssuerSerial(issuerString, serialString string) bool {
	return c.IssuerString() == issuerString && c.SerialString() == serialString
}

// EncodeIssuerRDN re-encodes a pkix.Name into the DER RDNSequence bytes used
// as a trust-store lookup key, for collaborators that only have a parsed
// name (as opposed to a certificate) on hand. RawIssuer/IssuerRawDER on an
// already-parsed certificate is the preferred path; this exists for the rare
// case only a pkix.Name is available.
func EncodeIssuerRDN(name pkix.Name) ([]byte, error) {
	raw, err := asn1.Marshal(name.ToRDNSequence())
	if err != nil {
		return nil, fmt.Errorf("encode issuer RDN: %w", err)
	}
	return raw, nil
}
