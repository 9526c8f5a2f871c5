// Package xmp reads and writes XMP packets, in particular the
// motion photo records that describe a video clip embedded in a
// JPEG file.
//
// Two record schemes are in use. The legacy GCamera MicroVideo
// scheme stores the clip length as MicroVideoOffset, counted from
// the end of the file. The motion photo v1 scheme stores a
// Container:Directory with one entry per concatenated file part.
// Writers emit both for maximum reader compatibility.
package xmp

import (
	"bytes"
	"encoding/xml"
	"strconv"

	"github.com/pkg/errors"

	"github.com/AssassinJY/live-motion-photos-convert/xmldoc"
)

// Namespaces used in motion photo packets.
const (
	metans      = "adobe:ns:meta/"
	rdfns       = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	gcamerans   = "http://ns.google.com/photos/1.0/camera/"
	containerns = "http://ns.google.com/photos/1.0/container/"
	itemns      = "http://ns.google.com/photos/1.0/container/item/"
)

// nsPrefix is the conventional prefix declared
// when a namespace is first written.
var nsPrefix = map[string]string{
	gcamerans:   "GCamera",
	containerns: "Container",
	itemns:      "Item",
}

const (
	xmpPrefix = `<?xpacket begin="?" id="W5M0MpCehiHzreSzNTczkc9d"?>`
	xmpSuffix = `<?xpacket end="w"?>`

	toolkit = "github.com/AssassinJY/live-motion-photos-convert/xmp"
)

// Meta is a decoded XMP packet.
type Meta struct {
	// rdf:RDF element holding the rdf:Description nodes
	rdf *xmldoc.Node
}

// New returns an empty packet.
func New() *Meta {
	return &Meta{rdf: &xmldoc.Node{
		XMLName: name(rdfns, "RDF"),
		Attr: []xml.Attr{{
			Name:  xml.Name{Space: "xmlns", Local: "rdf"},
			Value: rdfns,
		}},
	}}
}

// Decode parses the XMP packet in p. The x:xmpmeta wrapper and the
// xpacket processing instructions are optional.
func Decode(p []byte) (*Meta, error) {
	root := new(xmldoc.Node)
	if err := xml.Unmarshal(p, root); err != nil {
		return nil, errors.Wrap(err, "xmp: unmarshal failed")
	}

	rdf := root
	if root.XMLName == name(metans, "xmpmeta") {
		rdf = root.Find(name(rdfns, "RDF"))
	}
	if rdf == nil || rdf.XMLName != name(rdfns, "RDF") {
		return nil, errors.New("xmp: rdf:RDF element missing")
	}

	return &Meta{rdf: rdf}, nil
}

// Encode serializes m as a complete XMP packet
// with the xpacket wrapper.
func (m *Meta) Encode() ([]byte, error) {
	doc := &xmldoc.Node{
		XMLName: name(metans, "xmpmeta"),
		Attr: []xml.Attr{
			{Name: xml.Name{Space: "xmlns", Local: "x"}, Value: metans},
			{Name: name(metans, "xmptk"), Value: toolkit},
		},
		Child: []*xmldoc.Node{clone(m.rdf)},
	}
	doc.Translate()

	buf := new(bytes.Buffer)
	buf.WriteString(xmpPrefix + "\n")

	e := xml.NewEncoder(buf)
	e.Indent("", " ")
	if err := e.Encode(doc); err != nil {
		return nil, errors.Wrap(err, "xmp: marshal failed")
	}

	buf.WriteString("\n" + xmpSuffix + "\n")
	return buf.Bytes(), nil
}

// String returns the string value of the field name, checking both
// the element and the attribute form of rdf:Description content.
func (m *Meta) String(name xml.Name) (string, bool) {
	for _, d := range m.descriptions() {
		if c := d.Find(name); c != nil {
			return c.Value, true
		}
		if v, ok := d.AttrValue(name); ok {
			return v, true
		}
	}
	return "", false
}

// Int returns the integer value of the field name.
func (m *Meta) Int(name xml.Name) (int64, bool) {
	s, ok := m.String(name)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	return v, err == nil
}

// SetString sets the field name to value in element form,
// dropping an attribute form duplicate.
func (m *Meta) SetString(name xml.Name, value string) {
	d := m.descr(name.Space)
	for _, dd := range m.descriptions() {
		dd.RemoveAttr(name)
	}
	if c := d.Find(name); c != nil {
		c.Value = value
		c.Child = nil
		return
	}
	d.Child = append(d.Child, xmldoc.Text(name, value))
}

// SetInt sets the field name to the decimal value of v.
func (m *Meta) SetInt(name xml.Name, v int64) {
	m.SetString(name, strconv.FormatInt(v, 10))
}

// Delete removes the field name in both element and attribute form.
func (m *Meta) Delete(name xml.Name) {
	for _, d := range m.descriptions() {
		d.RemoveChild(name)
		d.RemoveAttr(name)
	}
}

func (m *Meta) descriptions() []*xmldoc.Node {
	return m.rdf.FindAll(name(rdfns, "Description"))
}

// descr returns an rdf:Description declaring the namespace space,
// creating one as needed.
func (m *Meta) descr(space string) *xmldoc.Node {
	for _, d := range m.descriptions() {
		for _, a := range d.Attr {
			if a.Name.Space == "xmlns" && a.Value == space {
				return d
			}
		}
	}

	pfx, ok := nsPrefix[space]
	if !ok {
		pfx = "ns1"
	}
	d := &xmldoc.Node{
		XMLName: name(rdfns, "Description"),
		Attr: []xml.Attr{
			{Name: name(rdfns, "about"), Value: ""},
			{Name: xml.Name{Space: "xmlns", Local: pfx}, Value: space},
		},
	}
	m.rdf.Child = append(m.rdf.Child, d)
	return d
}

func name(space, local string) xml.Name {
	return xml.Name{Space: space, Local: local}
}

func clone(n *xmldoc.Node) *xmldoc.Node {
	c := &xmldoc.Node{
		XMLName: n.XMLName,
		Attr:    append([]xml.Attr(nil), n.Attr...),
		Value:   n.Value,
	}
	for _, ch := range n.Child {
		c.Child = append(c.Child, clone(ch))
	}
	return c
}
