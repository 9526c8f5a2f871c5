// Package xmldoc implements a generic XML node tree for documents
// whose schema is not known in advance, such as XMP packets.
//
// Unmarshalling resolves element and attribute namespaces to their
// URIs. Translate converts resolved names back to the prefixed form
// declared in the document, so that a tree can be re-encoded without
// xmlns attributes repeated on every element.
package xmldoc

import (
	"encoding/xml"
	"strings"
)

type Node struct {
	XMLName xml.Name   // node name and namespace
	Attr    []xml.Attr // captures all unbound attributes and XMP qualifiers
	Value   string
	Child   []*Node // child nodes
}

// Elem returns a new element node with the given name.
func Elem(name xml.Name) *Node {
	return &Node{XMLName: name}
}

// Text returns a new element node with the given name and character data.
func Text(name xml.Name, value string) *Node {
	return &Node{XMLName: name, Value: value}
}

// Find returns the first child of n with the given name, or nil.
func (n *Node) Find(name xml.Name) *Node {
	for _, c := range n.Child {
		if c.XMLName == name {
			return c
		}
	}
	return nil
}

// FindAll returns the children of n with the given name.
func (n *Node) FindAll(name xml.Name) []*Node {
	var v []*Node
	for _, c := range n.Child {
		if c.XMLName == name {
			v = append(v, c)
		}
	}
	return v
}

// AttrValue returns the value of the named attribute of n.
func (n *Node) AttrValue(name xml.Name) (string, bool) {
	for _, a := range n.Attr {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// SetAttr sets the named attribute of n, replacing an existing value.
func (n *Node) SetAttr(name xml.Name, value string) {
	for i, a := range n.Attr {
		if a.Name == name {
			n.Attr[i].Value = value
			return
		}
	}
	n.Attr = append(n.Attr, xml.Attr{Name: name, Value: value})
}

// RemoveAttr removes the named attribute of n.
func (n *Node) RemoveAttr(name xml.Name) {
	for i, a := range n.Attr {
		if a.Name == name {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// RemoveChild removes the children of n with the given name.
func (n *Node) RemoveChild(name xml.Name) {
	w := n.Child[:0]
	for _, c := range n.Child {
		if c.XMLName != name {
			w = append(w, c)
		}
	}
	n.Child = w
}

func (n *Node) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	if n.XMLName.Local == "" {
		return nil
	}

	start.Name = n.XMLName
	start.Attr = n.Attr
	return e.EncodeElement(struct {
		Data  string `xml:",chardata"`
		Child []*Node
	}{
		Data:  n.Value,
		Child: n.Child,
	}, start)
}

func (n *Node) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {

	n.XMLName = start.Name
	n.Attr = start.Attr

Loop:
	for {
		t, err := d.Token()
		if err != nil {
			return err
		}
		switch t := t.(type) {
		case xml.CharData:
			n.Value = strings.TrimSpace(string(t))
		case xml.StartElement:
			x := new(Node)
			x.UnmarshalXML(d, t)
			n.Child = append(n.Child, x)
		case xml.EndElement:
			break Loop
		}
	}

	return nil
}

// Translate rewrites namespace-URI names in the tree of n to the
// prefixed form declared by the xmlns attributes in scope.
func (n *Node) Translate() {
	ctx := new(context)
	n.translate(ctx)
}

func (n *Node) translate(ctx *context) {
	top := len(ctx.ns)

	for _, a := range n.Attr {
		if a.Name.Space == "xmlns" {
			ctx.addURIPrefix(a.Value, a.Name.Local)
		}
	}

	n.XMLName = ctx.translate(n.XMLName)
	for i := range n.Attr {
		a := &n.Attr[i]
		a.Name = ctx.translate(a.Name)
	}
	for _, child := range n.Child {
		child.translate(ctx)
	}

	ctx.pop(top)
}

type context struct {
	ns []namespace

	uriPrefix map[string]string
}

type namespace struct {
	prefix string
	uri    string
}

func (ctx *context) translate(n xml.Name) xml.Name {
	if n.Space == "" {
		return n
	}

	if n.Space == "xmlns" {
		return xml.Name{
			Local: n.Space + ":" + n.Local,
		}
	}

	if ctx.uriPrefix == nil {
		ctx.uriPrefix = make(map[string]string)
		for _, ns := range ctx.ns {
			ctx.uriPrefix[ns.uri] = ns.prefix
		}
	}

	if p, ok := ctx.uriPrefix[n.Space]; ok {
		return xml.Name{
			Local: p + ":" + n.Local,
		}
	}

	return n
}

func (ctx *context) addURIPrefix(uri, prefix string) {
	ctx.ns = append(ctx.ns, namespace{
		prefix: prefix,
		uri:    uri,
	})
	if ctx.uriPrefix != nil {
		ctx.uriPrefix[uri] = prefix
	}
}

func (ctx *context) pop(n int) {
	if n == len(ctx.ns) {
		return
	}
	ctx.ns = ctx.ns[:n]
	ctx.uriPrefix = nil
}
