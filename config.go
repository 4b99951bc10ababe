package xadesverify

import (
	"github.com/evalimine/xades-verify/internal/adapters/driven/config"
	"github.com/evalimine/xades-verify/internal/adapters/driven/container"
	"github.com/evalimine/xades-verify/internal/adapters/driven/truststore"
)

// OCSPConfigStore is a YAML-backed OCSPConfStore, re-exported.
type OCSPConfigStore = config.Store

// LoadOCSPConfig loads an OCSPConfigStore from a YAML file.
var LoadOCSPConfig = config.Load

// FileContainer is a ContainerInfo backed by a directory of loose document
// files, re-exported.
type FileContainer = container.FileDirectory

// NewFileContainer opens a directory of enclosed documents as a
// FileContainer.
var NewFileContainer = container.NewFileDirectory

// FileTrustStore is a TrustStore backed by a directory of PEM-encoded CA
// certificates, re-exported.
type FileTrustStore = truststore.FileStore

// LoadFileTrustStore loads a directory of PEM-encoded trust anchors.
var LoadFileTrustStore = truststore.Load
