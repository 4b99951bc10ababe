package xmlcanon

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"

	"github.com/evalimine/xades-verify/internal/core/domain"
)

// Canonicalization algorithm URIs recognized by this implementation, per the
// four variants named in the XML DOM & Canonicalizer component.
const (
	URIC14N10           = "http://www.w3.org/TR/2001/REC-xml-c14n-20010315"
	URIC14N10Comments   = "http://www.w3.org/TR/2001/REC-xml-c14n-20010315#WithComments"
	URIExclusiveC14N    = "http://www.w3.org/2001/10/xml-exc-c14n#"
	URIC14N11           = "http://www.w3.org/2006/12/xml-c14n11"
	URIC14N11Comments   = "http://www.w3.org/2006/12/xml-c14n11#WithComments"
)

// Canonicalize serializes el to its canonical byte form under the algorithm
// named by uri. C14N 1.0 and Exclusive C14N are delegated to goxmldsig's
// canonicalizer implementations, which operate on an arbitrary etree.Element
// and not only a document root. C14N with comments and C14N 1.1 have no
// library implementation in the available dependency set and are produced by
// a hand-written canonicalizer below.
func Canonicalize(el *etree.Element, uri string) ([]byte, error) {
	switch uri {
	case URIC14N10:
		return dsig.MakeC14N10RecCanonicalizer().Canonicalize(el)
	case URIExclusiveC14N:
		// "ds" is declared inclusive for xmldsig compatibility, matching the
		// documented behavior of this canonicalization variant.
		return dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList("ds").Canonicalize(el)
	case URIC14N10Comments:
		return canonicalizeHandRolled(el, true, false)
	case URIC14N11, URIC14N11Comments:
		return canonicalizeHandRolled(el, uri == URIC14N11Comments, true)
	default:
		return nil, domain.AlgorithmUnsupported(uri)
	}
}

// canonicalizeHandRolled implements a simplified rendition of Canonical XML:
// namespace declarations and attributes are rendered in sorted order,
// namespace context is inherited from ancestors so redundant declarations
// are not repeated, and comments are either dropped or retained per
// withComments. The c14n11 flag is accepted but not acted on: the C14N 1.1
// rules for inherited xml:* attributes are not implemented, so c14n11 and
// c14n10-with-comments share the same rendering path aside from the
// comments flag.
func canonicalizeHandRolled(el *etree.Element, withComments bool, _c14n11 bool) ([]byte, error) {
	var buf bytes.Buffer
	nsContext := map[string]string{"xml": "http://www.w3.org/XML/1998/namespace"}
	if err := renderElement(&buf, el, nsContext, withComments); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderElement(buf *bytes.Buffer, el *etree.Element, parentNS map[string]string, withComments bool) error {
	localNS := make(map[string]string, len(parentNS))
	for k, v := range parentNS {
		localNS[k] = v
	}

	var nsDecls []etree.Attr
	var attrs []etree.Attr
	for _, a := range el.Attr {
		if a.Space == "xmlns" || (a.Space == "" && a.Key == "xmlns") {
			prefix := ""
			if a.Space == "xmlns" {
				prefix = a.Key
			}
			if cur, ok := localNS[prefix]; !ok || cur != a.Value {
				nsDecls = append(nsDecls, a)
				localNS[prefix] = a.Value
			}
			continue
		}
		attrs = append(attrs, a)
	}

	sort.Slice(nsDecls, func(i, j int) bool { return nsDecls[i].Key < nsDecls[j].Key })
	sort.Slice(attrs, func(i, j int) bool {
		if attrs[i].Space != attrs[j].Space {
			return attrs[i].Space < attrs[j].Space
		}
		return attrs[i].Key < attrs[j].Key
	})

	tag := el.Tag
	if el.Space != "" {
		tag = el.Space + ":" + el.Tag
	}

	buf.WriteByte('<')
	buf.WriteString(tag)
	for _, a := range nsDecls {
		writeNSDecl(buf, a)
	}
	for _, a := range attrs {
		writeAttr(buf, a)
	}
	buf.WriteByte('>')

	for _, child := range el.Child {
		switch c := child.(type) {
		case *etree.Element:
			if err := renderElement(buf, c, localNS, withComments); err != nil {
				return err
			}
		case *etree.CharData:
			if c.IsCData() {
				buf.WriteString(c.Data)
			} else {
				buf.WriteString(escapeText(c.Data))
			}
		case *etree.Comment:
			if withComments {
				buf.WriteString("<!--")
				buf.WriteString(c.Data)
				buf.WriteString("-->")
			}
		}
	}

	buf.WriteByte('<')
	buf.WriteByte('/')
	buf.WriteString(tag)
	buf.WriteByte('>')
	return nil
}

func writeNSDecl(buf *bytes.Buffer, a etree.Attr) {
	buf.WriteByte(' ')
	if a.Key == "xmlns" {
		buf.WriteString("xmlns")
	} else {
		buf.WriteString("xmlns:")
		buf.WriteString(a.Key)
	}
	buf.WriteString(`="`)
	buf.WriteString(escapeAttr(a.Value))
	buf.WriteByte('"')
}

func writeAttr(buf *bytes.Buffer, a etree.Attr) {
	buf.WriteByte(' ')
	if a.Space != "" {
		buf.WriteString(a.Space)
		buf.WriteByte(':')
	}
	buf.WriteString(a.Key)
	buf.WriteString(`="`)
	buf.WriteString(escapeAttr(a.Value))
	buf.WriteByte('"')
}

func escapeText(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "\r", "&#xD;")
	return r.Replace(s)
}

func escapeAttr(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", `"`, "&quot;", "\t", "&#x9;", "\n", "&#xA;", "\r", "&#xD;")
	return r.Replace(s)
}

// AlgorithmName returns a short human-readable name for a canonicalization
// URI, used only in diagnostic logging.
func AlgorithmName(uri string) string {
	switch uri {
	case URIC14N10:
		return "C14N-1.0"
	case URIC14N10Comments:
		return "C14N-1.0-comments"
	case URIExclusiveC14N:
		return "Exclusive-C14N"
	case URIC14N11:
		return "C14N-1.1"
	case URIC14N11Comments:
		return "C14N-1.1-comments"
	default:
		return fmt.Sprintf("unknown(%s)", uri)
	}
}
