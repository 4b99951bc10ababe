// Package truststore implements ports.TrustStore over a directory of
// PEM-encoded CA certificates.
package truststore

import (
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"

	"github.com/evalimine/xades-verify/internal/core/ports"
)

// FileStore is a ports.TrustStore backed by a directory of trust anchors.
type FileStore struct {
	pool     *x509.CertPool
	byIssuer map[string]*x509.Certificate
}

// Load reads every PEM file in dir as a trust anchor, indexing each by its
// subject name so it can later be resolved as someone else's issuer.
func Load(dir string) (*FileStore, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	byIssuer := make(map[string]*x509.Certificate)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		block, _ := pem.Decode(raw)
		if block == nil {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, err
		}
		pool.AddCert(cert)
		byIssuer[string(cert.RawSubject)] = cert
	}
	return &FileStore{pool: pool, byIssuer: byIssuer}, nil
}

// GetCert resolves a certificate by its DER-encoded subject name.
func (s *FileStore) GetCert(derSubjectName []byte) (*x509.Certificate, bool) {
	cert, ok := s.byIssuer[string(derSubjectName)]
	return cert, ok
}

// VerifyChain verifies cert chains to one of this store's trust anchors.
func (s *FileStore) VerifyChain(cert *x509.Certificate) bool {
	opts := x509.VerifyOptions{Roots: s.pool, KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageAny}}
	_, err := cert.Verify(opts)
	return err == nil
}

var _ ports.TrustStore = (*FileStore)(nil)
