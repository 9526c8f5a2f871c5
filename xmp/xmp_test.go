package xmp

import (
	"bytes"
	"testing"
)

func TestMotionPhotoRoundTrip(t *testing.T) {
	m := New()
	m.SetMotionPhoto("image/jpeg", "video/mp4", 4183906, 500000)

	p, err := m.Encode()
	if err != nil {
		t.Fatal("encode:", err)
	}

	for _, want := range []string{
		"GCamera:MicroVideoOffset",
		"GCamera:MotionPhoto",
		"Container:Directory",
		"Item:Semantic=\"MotionPhoto\"",
	} {
		if !bytes.Contains(p, []byte(want)) {
			t.Errorf("encoded packet missing %s", want)
		}
	}

	mm, err := Decode(p)
	if err != nil {
		t.Fatal("decode:", err)
	}

	if !mm.IsMotionPhoto() {
		t.Error("IsMotionPhoto = false after round trip")
	}
	if n, ok := mm.VideoLength(); !ok || n != 4183906 {
		t.Errorf("VideoLength = %d, %v; want 4183906", n, ok)
	}
	if ts, ok := mm.PresentationTimestampUs(); !ok || ts != 500000 {
		t.Errorf("PresentationTimestampUs = %d, %v; want 500000", ts, ok)
	}

	dir := mm.Directory()
	if len(dir) != 2 {
		t.Fatalf("Directory has %d items, want 2", len(dir))
	}
	if dir[0].Semantic != SemanticPrimary || dir[0].Mime != "image/jpeg" {
		t.Errorf("primary item = %+v", dir[0])
	}
	if dir[1].Semantic != SemanticMotionPhoto || dir[1].Length != 4183906 {
		t.Errorf("motion photo item = %+v", dir[1])
	}
}

func TestDecodeAttributeForm(t *testing.T) {
	const packet = `<x:xmpmeta xmlns:x="adobe:ns:meta/">
 <rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
  <rdf:Description rdf:about=""
    xmlns:GCamera="http://ns.google.com/photos/1.0/camera/"
    GCamera:MicroVideo="1"
    GCamera:MicroVideoVersion="1"
    GCamera:MicroVideoOffset="2592317"
    GCamera:MicroVideoPresentationTimestampUs="-1"/>
 </rdf:RDF>
</x:xmpmeta>`

	m, err := Decode([]byte(packet))
	if err != nil {
		t.Fatal("decode:", err)
	}

	if !m.IsMotionPhoto() {
		t.Error("IsMotionPhoto = false")
	}
	if n, ok := m.VideoLength(); !ok || n != 2592317 {
		t.Errorf("VideoLength = %d, %v; want 2592317", n, ok)
	}
	if _, ok := m.PresentationTimestampUs(); ok {
		t.Error("PresentationTimestampUs reported for value -1")
	}
}

func TestDecodeElementDirectory(t *testing.T) {
	const packet = `<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
 <rdf:Description rdf:about=""
   xmlns:Container="http://ns.google.com/photos/1.0/container/"
   xmlns:Item="http://ns.google.com/photos/1.0/container/item/">
  <Container:Directory>
   <rdf:Seq>
    <rdf:li rdf:parseType="Resource">
     <Container:Item Item:Mime="image/jpeg" Item:Semantic="Primary" Item:Length="0" Item:Padding="0"/>
    </rdf:li>
    <rdf:li rdf:parseType="Resource">
     <Container:Item Item:Mime="video/mp4" Item:Semantic="MotionPhoto" Item:Length="1048576" Item:Padding="0"/>
    </rdf:li>
   </rdf:Seq>
  </Container:Directory>
 </rdf:Description>
</rdf:RDF>`

	m, err := Decode([]byte(packet))
	if err != nil {
		t.Fatal("decode:", err)
	}

	if n, ok := m.VideoLength(); !ok || n != 1048576 {
		t.Errorf("VideoLength = %d, %v; want 1048576", n, ok)
	}

	dir := m.Directory()
	if len(dir) != 2 {
		t.Fatalf("Directory has %d items, want 2", len(dir))
	}
	if dir[0].Semantic != SemanticPrimary || dir[1].Semantic != SemanticMotionPhoto {
		t.Errorf("directory semantics %q, %q; want %q, %q",
			dir[0].Semantic, dir[1].Semantic, SemanticPrimary, SemanticMotionPhoto)
	}
}

func TestClearMotionPhoto(t *testing.T) {
	m := New()
	m.SetMotionPhoto("image/jpeg", "video/mp4", 1000, 0)
	m.ClearMotionPhoto()

	if m.IsMotionPhoto() {
		t.Error("IsMotionPhoto = true after clear")
	}
	if _, ok := m.VideoLength(); ok {
		t.Error("VideoLength present after clear")
	}
	if len(m.Directory()) != 0 {
		t.Error("Directory present after clear")
	}
}

func TestMetadataAttrs(t *testing.T) {
	m := New()

	if err := m.SetMetadataAttr("MicroVideoOffset", 1234); err != nil {
		t.Fatal(err)
	}
	if v := m.GetMetadataAttr("MicroVideoOffset"); v != 1234 {
		t.Errorf("MicroVideoOffset = %v, want 1234", v)
	}

	if err := m.SetMetadataAttr("MicroVideoOffset", "x"); err == nil {
		t.Error("string value accepted for integer attr")
	}

	if err := m.DeleteMetadataAttr("MicroVideoOffset"); err != nil {
		t.Fatal(err)
	}
	if v := m.GetMetadataAttr("MicroVideoOffset"); v != nil {
		t.Errorf("MicroVideoOffset = %v after delete", v)
	}
}
