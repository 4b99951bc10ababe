// Package config loads OCSP responder configuration from a YAML file,
// implementing ports.OCSPConfStore.
package config

import (
	"crypto/x509"
	"encoding/pem"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/evalimine/xades-verify/internal/core/domain"
	"github.com/evalimine/xades-verify/internal/core/ports"
)

// issuerEntry is the YAML shape of one issuer's OCSP responder configuration.
type issuerEntry struct {
	URL               string   `yaml:"url"`
	SkewSeconds       int64    `yaml:"skewSeconds"`
	MaxAgeSeconds     int64    `yaml:"maxAgeSeconds"`
	ResponderCertFile []string `yaml:"responderCertFile"`
}

// document is the top-level YAML shape: a map of issuer common name to
// responder configuration.
type document struct {
	Issuers map[string]issuerEntry `yaml:"issuers"`
}

// Store is a ports.OCSPConfStore loaded from a YAML file, keyed by issuer CN.
type Store struct {
	byCN map[string]ports.OCSPConf
}

// Load reads and parses the YAML file at path. Each issuer's
// responderCertFile entries are PEM file paths used as given (not resolved
// relative to the YAML file's own directory), so callers typically pass
// absolute paths or paths relative to the process's working directory.
func Load(path string) (*Store, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.ConfigFailure("read OCSP config file: " + err.Error())
	}

	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, domain.ConfigFailure("parse OCSP config YAML: " + err.Error())
	}

	byCN := make(map[string]ports.OCSPConf, len(doc.Issuers))
	for cn, entry := range doc.Issuers {
		conf, err := entry.resolve()
		if err != nil {
			return nil, domain.ConfigFailure("OCSP config for issuer " + cn + ": " + err.Error())
		}
		byCN[cn] = conf
	}
	return &Store{byCN: byCN}, nil
}

func (e issuerEntry) resolve() (ports.OCSPConf, error) {
	if e.SkewSeconds < 0 {
		return ports.OCSPConf{}, domain.ConfigFailure("skewSeconds must not be negative")
	}
	if e.MaxAgeSeconds < 0 {
		return ports.OCSPConf{}, domain.ConfigFailure("maxAgeSeconds must not be negative")
	}

	certs := make([]*x509.Certificate, 0, len(e.ResponderCertFile))
	for _, certPath := range e.ResponderCertFile {
		cert, err := loadPEMCert(certPath)
		if err != nil {
			return ports.OCSPConf{}, err
		}
		certs = append(certs, cert)
	}

	return ports.OCSPConf{
		URL:    e.URL,
		Certs:  certs,
		Skew:   time.Duration(e.SkewSeconds) * time.Second,
		MaxAge: time.Duration(e.MaxAgeSeconds) * time.Second,
	}, nil
}

func loadPEMCert(path string) (*x509.Certificate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.ConfigFailure("read responder cert " + path + ": " + err.Error())
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, domain.ConfigFailure("no PEM block found in " + path)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, domain.ConfigFailure("parse responder cert " + path + ": " + err.Error())
	}
	return cert, nil
}

// HasOCSPConf reports whether an OCSP responder is configured for cn.
func (s *Store) HasOCSPConf(cn string) bool {
	_, ok := s.byCN[cn]
	return ok
}

// GetOCSPConf resolves cn's OCSP responder configuration.
func (s *Store) GetOCSPConf(cn string) (ports.OCSPConf, bool) {
	conf, ok := s.byCN[cn]
	return conf, ok
}

var _ ports.OCSPConfStore = (*Store)(nil)
