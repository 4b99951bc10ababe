// Package container implements ports.ContainerInfo over a plain directory of
// loose files, one per enclosed document, named by the relative URI the
// signature references them by.
package container

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/evalimine/xades-verify/internal/adapters/driven/crypto"
	"github.com/evalimine/xades-verify/internal/core/ports"
)

// FileDirectory is a ports.ContainerInfo backed by a directory on disk.
type FileDirectory struct {
	baseDir  string
	files    []string
	checked  map[string]bool
	mismatch bool
}

// NewFileDirectory lists baseDir's regular files (non-recursively) as the
// set of documents this container claims to enclose.
func NewFileDirectory(baseDir string) (*FileDirectory, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		files = append(files, e.Name())
	}
	return &FileDirectory{baseDir: baseDir, files: files}, nil
}

// DocumentCount returns the number of enclosed documents.
func (d *FileDirectory) DocumentCount() int { return len(d.files) }

// CheckDocumentsBegin resets per-document claim bookkeeping.
func (d *FileDirectory) CheckDocumentsBegin() {
	d.checked = make(map[string]bool, len(d.files))
	d.mismatch = false
}

// CheckDocument reads the file named uri relative to baseDir and compares
// its digest under digestAlgorithmURI to expectedDigest.
func (d *FileDirectory) CheckDocument(uri, digestAlgorithmURI string, expectedDigest []byte) bool {
	listed := false
	for _, f := range d.files {
		if f == uri {
			listed = true
			break
		}
	}
	if !listed || d.checked[uri] {
		d.mismatch = true
		return false
	}
	content, err := os.ReadFile(filepath.Join(d.baseDir, uri))
	if err != nil {
		d.mismatch = true
		return false
	}
	computed, err := crypto.Digest(digestAlgorithmURI, content)
	if err != nil {
		d.mismatch = true
		return false
	}
	if !bytes.Equal(computed, expectedDigest) {
		d.mismatch = true
		return false
	}
	d.checked[uri] = true
	return true
}

// CheckDocumentsResult reports whether every listed file was claimed exactly
// once and every claim matched.
func (d *FileDirectory) CheckDocumentsResult() bool {
	return !d.mismatch && len(d.checked) == len(d.files)
}

var _ ports.ContainerInfo = (*FileDirectory)(nil)
