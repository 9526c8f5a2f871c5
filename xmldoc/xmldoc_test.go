package xmldoc_test

import (
	"bytes"
	"encoding/xml"
	"testing"

	"github.com/AssassinJY/live-motion-photos-convert/xmldoc"
)

func TestEncodeDecode(t *testing.T) {
	decoder := xml.NewDecoder(bytes.NewReader([]byte(sample)))
	var root xmldoc.Node
	if err := decoder.Decode(&root); err != nil {
		t.Fatal("can't decode:", err)
	}

	rdf := root.Find(xml.Name{Space: rdfns, Local: "RDF"})
	if rdf == nil {
		t.Fatal("rdf:RDF missing")
	}

	var offset *xmldoc.Node
	for _, d := range rdf.FindAll(xml.Name{Space: rdfns, Local: "Description"}) {
		if n := d.Find(xml.Name{Space: gcamerans, Local: "MicroVideoOffset"}); n != nil {
			offset = n
		}
	}
	if offset == nil {
		t.Fatal("GCamera:MicroVideoOffset missing")
	}
	if offset.Value != "4183906" {
		t.Errorf("MicroVideoOffset = %q, want 4183906", offset.Value)
	}

	root.Translate()

	if root.XMLName.Local != "x:xmpmeta" {
		t.Errorf("translated root = %q, want x:xmpmeta", root.XMLName.Local)
	}

	buf := new(bytes.Buffer)
	enc := xml.NewEncoder(buf)
	enc.Indent("", "  ")
	if err := enc.Encode(&root); err != nil {
		t.Fatal("can't encode", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("GCamera:MicroVideoOffset")) {
		t.Error("encoded document lost GCamera:MicroVideoOffset")
	}
}

func TestAttrForm(t *testing.T) {
	decoder := xml.NewDecoder(bytes.NewReader([]byte(attrSample)))
	var root xmldoc.Node
	if err := decoder.Decode(&root); err != nil {
		t.Fatal("can't decode:", err)
	}

	rdf := root.Find(xml.Name{Space: rdfns, Local: "RDF"})
	if rdf == nil {
		t.Fatal("rdf:RDF missing")
	}
	d := rdf.Find(xml.Name{Space: rdfns, Local: "Description"})
	if d == nil {
		t.Fatal("rdf:Description missing")
	}

	v, ok := d.AttrValue(xml.Name{Space: gcamerans, Local: "MicroVideoOffset"})
	if !ok || v != "2592317" {
		t.Errorf("attribute MicroVideoOffset = %q, %v; want 2592317", v, ok)
	}
}

const (
	rdfns     = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	gcamerans = "http://ns.google.com/photos/1.0/camera/"
)

const sample = `<?xpacket begin='` + "\uFEFF" + `' id='W5M0MpCehiHzreSzNTczkc9d'?>
<x:xmpmeta xmlns:x='adobe:ns:meta/' x:xmptk='Image::ExifTool 10.17'>
<rdf:RDF xmlns:rdf='http://www.w3.org/1999/02/22-rdf-syntax-ns#'>

 <rdf:Description rdf:about=''
  xmlns:GCamera='http://ns.google.com/photos/1.0/camera/'>
  <GCamera:MicroVideo>1</GCamera:MicroVideo>
  <GCamera:MicroVideoVersion>1</GCamera:MicroVideoVersion>
  <GCamera:MicroVideoOffset>4183906</GCamera:MicroVideoOffset>
  <GCamera:MicroVideoPresentationTimestampUs>500000</GCamera:MicroVideoPresentationTimestampUs>
 </rdf:Description>

 <rdf:Description rdf:about=''
  xmlns:tiff='http://ns.adobe.com/tiff/1.0/'>
  <tiff:Make>LGE</tiff:Make>
  <tiff:Model>Nexus 5</tiff:Model>
 </rdf:Description>
</rdf:RDF>
</x:xmpmeta>
<?xpacket end='w'?>`

const attrSample = `<x:xmpmeta xmlns:x='adobe:ns:meta/'>
<rdf:RDF xmlns:rdf='http://www.w3.org/1999/02/22-rdf-syntax-ns#'>
 <rdf:Description rdf:about=''
  xmlns:GCamera='http://ns.google.com/photos/1.0/camera/'
  GCamera:MicroVideo='1'
  GCamera:MicroVideoOffset='2592317'/>
</rdf:RDF>
</x:xmpmeta>`
