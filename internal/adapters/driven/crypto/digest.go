// Package crypto provides the digest, RSA signature, and X.509 facade
// primitives the validation core builds on. Algorithms are addressed by the
// XML-DSig/XAdES URI strings that appear in signature documents, not by Go's
// crypto.Hash constants directly, mirroring the URI-keyed algorithm
// registries used elsewhere in this family of verifiers.
package crypto

import (
	"crypto"
	"crypto/sha1"
	"crypto/sha256"
	"hash"

	"github.com/evalimine/xades-verify/internal/core/domain"
)

// Digest method and signature method URIs recognized by this implementation.
const (
	URISHA1   = "http://www.w3.org/2000/09/xmldsig#sha1"
	URISHA224 = "http://www.w3.org/2001/04/xmldsig-more#sha224"
	URISHA256 = "http://www.w3.org/2001/04/xmlenc#sha256"

	URIRSASHA1   = "http://www.w3.org/2000/09/xmldsig#rsa-sha1"
	URIRSASHA224 = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha224"
	URIRSASHA256 = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
)

var digestByURI = map[string]crypto.Hash{
	URISHA1:   crypto.SHA1,
	URISHA224: crypto.SHA224,
	URISHA256: crypto.SHA256,
}

var signatureByURI = map[string]crypto.Hash{
	URIRSASHA1:   crypto.SHA1,
	URIRSASHA224: crypto.SHA224,
	URIRSASHA256: crypto.SHA256,
}

// DigestHashForURI resolves a digest-method URI to the hash it identifies,
// returning AlgorithmUnsupported if the URI is not one of the three
// recognized digest algorithms.
func DigestHashForURI(uri string) (crypto.Hash, error) {
	h, ok := digestByURI[uri]
	if !ok {
		return 0, domain.AlgorithmUnsupported(uri)
	}
	return h, nil
}

// SignatureHashForURI resolves a signature-method URI to the hash it
// identifies, returning AlgorithmUnsupported if the URI is not one of
// RSA-SHA1, RSA-SHA224, or RSA-SHA256.
func SignatureHashForURI(uri string) (crypto.Hash, error) {
	h, ok := signatureByURI[uri]
	if !ok {
		return 0, domain.AlgorithmUnsupported(uri)
	}
	return h, nil
}

// NewHasher returns a fresh hash.Hash instance for h. Only the three
// algorithms this package recognizes are supported.
func NewHasher(h crypto.Hash) (hash.Hash, error) {
	switch h {
	case crypto.SHA1:
		return sha1.New(), nil
	case crypto.SHA224:
		return sha256.New224(), nil
	case crypto.SHA256:
		return sha256.New(), nil
	default:
		return nil, domain.AlgorithmUnsupported(h.String())
	}
}

// Digest computes the digest of data under the algorithm named by uri.
func Digest(uri string, data []byte) ([]byte, error) {
	h, err := DigestHashForURI(uri)
	if err != nil {
		return nil, err
	}
	hasher, err := NewHasher(h)
	if err != nil {
		return nil, err
	}
	hasher.Write(data)
	return hasher.Sum(nil), nil
}
