package ocspclient

import (
	"bytes"
	"crypto/x509"
	"encoding/asn1"
	"time"

	"golang.org/x/crypto/ocsp"

	"github.com/evalimine/xades-verify/internal/core/domain"
)

// VerifiedResponse is the result of parsing and validating one OCSP
// response against a configured responder cert set.
type VerifiedResponse struct {
	Raw           []byte
	ProducedAt    time.Time
	Nonce         []byte
	ResponderCert *x509.Certificate
}

// ParseAndVerify parses responseDER, verifying its signature against one of
// responderCerts, that the SingleResponse's certID identifies target (by
// serial number, since a serial is unique within the CA that issued
// target), that producedAt falls in [now-skew-maxAge, now+skew], that the
// status is good, and that its embedded nonce extension equals
// expectedNonce.
func ParseAndVerify(responseDER []byte, responderCerts []*x509.Certificate, target *x509.Certificate, skew, maxAge time.Duration, expectedNonce []byte, now time.Time) (*VerifiedResponse, error) {
	resp, err := ocsp.ParseResponse(responseDER, nil)
	if err != nil {
		return nil, domain.ParseFailure("parse OCSP response", err)
	}
	var responderCert *x509.Certificate
	var lastErr error
	for _, candidate := range responderCerts {
		err := resp.CheckSignatureFrom(candidate)
		if err == nil {
			responderCert = candidate
			break
		}
		lastErr = err
	}
	if responderCert == nil {
		return nil, domain.TrustFailure("OCSP response not signed by a configured responder cert: " + errString(lastErr))
	}

	if resp.SerialNumber == nil || resp.SerialNumber.Cmp(target.SerialNumber) != 0 {
		return nil, domain.RevocationFailure("OCSP SingleResponse certID does not identify the signing certificate")
	}

	if resp.Status != ocsp.Good {
		return nil, domain.RevocationFailure("OCSP status is not good")
	}

	lowerBound := now.Add(-skew - maxAge)
	upperBound := now.Add(skew)
	if resp.ProducedAt.Before(lowerBound) || resp.ProducedAt.After(upperBound) {
		return nil, domain.RevocationFailure("OCSP producedAt outside allowed window")
	}

	nonce := extractNonce(resp)
	if expectedNonce != nil {
		if nonce == nil || !bytes.Equal(nonce, expectedNonce) {
			return nil, domain.RevocationFailure("OCSP nonce mismatch")
		}
	}

	return &VerifiedResponse{
		Raw:           responseDER,
		ProducedAt:    resp.ProducedAt,
		Nonce:         nonce,
		ResponderCert: responderCert,
	}, nil
}

func extractNonce(resp *ocsp.Response) []byte {
	for _, ext := range resp.Extensions {
		if ext.Id.Equal(oidNonce) {
			var nonce []byte
			if _, err := asn1.Unmarshal(ext.Value, &nonce); err != nil {
				return nil
			}
			return nonce
		}
	}
	return nil
}

func errString(err error) string {
	if err == nil {
		return "no responder certs configured"
	}
	return err.Error()
}
