// Package xmlcanon implements the whitespace-preserving XML DOM and the four
// canonicalization algorithms the validator recomputes digests over. Every
// digest recomputation re-parses the raw signature bytes into a fresh DOM
// rather than walking an already-built tree, since canonicalization depends
// on the exact DOM a conformant parser yields and whitespace lost during an
// earlier parse can never be recovered.
package xmlcanon

import (
	"github.com/beevik/etree"

	"github.com/evalimine/xades-verify/internal/core/domain"
)

// Doc wraps a parsed etree.Document. It is never constructed from
// encoding/xml, which normalizes whitespace on decode and would make every
// digest recomputed against its output mismatch the original signer's.
type Doc struct {
	doc *etree.Document
}

// Parse re-parses raw XML bytes into a fresh, whitespace-preserving DOM.
func Parse(raw []byte) (*Doc, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, domain.ParseFailure("parse signature XML", err)
	}
	if doc.Root() == nil {
		return nil, domain.ParseFailure("empty XML document", nil)
	}
	return &Doc{doc: doc}, nil
}

// Root returns the document's root element.
func (d *Doc) Root() *etree.Element {
	return d.doc.Root()
}

// FindByLocalName performs a namespace-qualified lookup for every descendant
// element whose resolved namespace URI equals namespaceURI and whose local
// name (ignoring prefix) equals name. The validator uses this to select
// digest targets like SignedProperties and SignedInfo; the caller is
// responsible for rejecting zero or multiple matches, since that cardinality
// check is itself part of the spec's structural validation, not a DOM-layer
// concern.
//
// Matching on local name alone would let an element smuggled in under a
// foreign or absent namespace (or a like-named element from the wrong XAdES
// schema version) stand in for the genuine one; requiring the resolved
// namespace to match as well closes that off.
func FindByLocalName(root *etree.Element, namespaceURI, name string) []*etree.Element {
	var out []*etree.Element
	var walk func(e *etree.Element)
	walk = func(e *etree.Element) {
		if e.Tag == name && e.NamespaceURI() == namespaceURI {
			out = append(out, e)
		}
		for _, child := range e.ChildElements() {
			walk(child)
		}
	}
	walk(root)
	return out
}

// FindOneByLocalName looks up exactly one descendant element by namespace
// and local name, returning a StructuralMismatch error if zero or more than
// one is found.
func FindOneByLocalName(root *etree.Element, namespaceURI, name string) (*etree.Element, error) {
	matches := FindByLocalName(root, namespaceURI, name)
	switch len(matches) {
	case 0:
		return nil, domain.StructuralMismatch("missing required element: " + name)
	case 1:
		return matches[0], nil
	default:
		return nil, domain.StructuralMismatch("multiple occurrences of element: " + name)
	}
}

// WriteElement serializes a single element (not the whole document) back to
// bytes under C14N 1.0 without comments, prefixed by the XML declaration,
// used by the TM online path to persist the augmented signature.
func WriteElement(el *etree.Element) ([]byte, error) {
	canon, err := Canonicalize(el, URIC14N10)
	if err != nil {
		return nil, domain.ParseFailure("serialize augmented signature", err)
	}
	out := []byte(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	return append(out, canon...), nil
}
