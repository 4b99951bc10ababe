// Package ocspclient builds OCSP requests, performs the single synchronous
// HTTP DER exchange, and verifies OCSP responses: responder signature,
// producedAt freshness, single-response status, and nonce binding. Response
// parsing is delegated to golang.org/x/crypto/ocsp; nonce-bearing request
// construction is hand-built against RFC 6960 since that library's
// CreateRequest does not expose a way to set a caller-chosen nonce value,
// which this spec requires (nonce must equal a digest of the signature
// value, not a library-generated random nonce).
package ocspclient

import (
	"crypto/sha1"
	"crypto/x509"
	"encoding/asn1"
	"math/big"

	"github.com/evalimine/xades-verify/internal/core/domain"
)

var oidNonce = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 1, 2}

var oidSHA1 = asn1.ObjectIdentifier{1, 3, 14, 3, 2, 26}

type algorithmIdentifier struct {
	Algorithm asn1.ObjectIdentifier
	Parameters asn1.RawValue `asn1:"optional"`
}

type certID struct {
	HashAlgorithm  algorithmIdentifier
	IssuerNameHash []byte
	IssuerKeyHash  []byte
	SerialNumber   *big.Int
}

type extension struct {
	ID       asn1.ObjectIdentifier
	Critical bool `asn1:"optional"`
	Value    []byte
}

type singleRequest struct {
	ReqCert certID
}

type tbsRequest struct {
	Version           int             `asn1:"explicit,tag:0,default:0,optional"`
	RequestList       []singleRequest
	RequestExtensions []extension `asn1:"explicit,tag:2,optional"`
}

type ocspRequest struct {
	TBSRequest tbsRequest
}

// BuildRequest constructs a DER-encoded OCSP request for cert, issued by
// issuer, carrying nonce as the request-level Nonce extension (OID
// 1.3.6.1.5.5.7.48.1.2). The CertID hash algorithm is SHA-1, per common OCSP
// responder practice, independent of the signature document's own digest
// algorithm choice used to derive the nonce value itself.
func BuildRequest(cert, issuer *x509.Certificate, nonce []byte) ([]byte, error) {
	issuerNameHash := sha1.Sum(issuer.RawSubject)
	issuerKeyHash := sha1.Sum(issuer.RawSubjectPublicKeyInfo)

	nonceValue, err := asn1.Marshal(nonce)
	if err != nil {
		return nil, domain.ParseFailure("encode OCSP nonce extension", err)
	}

	req := ocspRequest{
		TBSRequest: tbsRequest{
			RequestList: []singleRequest{{
				ReqCert: certID{
					HashAlgorithm:  algorithmIdentifier{Algorithm: oidSHA1},
					IssuerNameHash: issuerNameHash[:],
					IssuerKeyHash:  issuerKeyHash[:],
					SerialNumber:   cert.SerialNumber,
				},
			}},
			RequestExtensions: []extension{{
				ID:    oidNonce,
				Value: nonceValue,
			}},
		},
	}

	der, err := asn1.Marshal(req)
	if err != nil {
		return nil, domain.ParseFailure("encode OCSP request", err)
	}
	return der, nil
}
