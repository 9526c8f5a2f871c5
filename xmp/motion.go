package xmp

import (
	"encoding/xml"
	"strconv"

	"github.com/AssassinJY/live-motion-photos-convert/xmldoc"
)

// Motion photo fields in the GCamera namespace.
var (
	microVideo          = name(gcamerans, "MicroVideo")
	microVideoVersion   = name(gcamerans, "MicroVideoVersion")
	microVideoOffset    = name(gcamerans, "MicroVideoOffset")
	microVideoTimestamp = name(gcamerans, "MicroVideoPresentationTimestampUs")

	motionPhoto          = name(gcamerans, "MotionPhoto")
	motionPhotoVersion   = name(gcamerans, "MotionPhotoVersion")
	motionPhotoTimestamp = name(gcamerans, "MotionPhotoPresentationTimestampUs")
)

// DirectoryItem is one entry of the motion photo v1
// Container:Directory record. Length is the byte length of the
// part within the concatenated file; it is zero for the primary
// image, whose extent is implied.
type DirectoryItem struct {
	Mime     string
	Semantic string
	Length   int64
	Padding  int64
}

// Directory item semantics.
const (
	SemanticPrimary     = "Primary"
	SemanticMotionPhoto = "MotionPhoto"
)

// Directory returns the Container:Directory entries, if any.
func (m *Meta) Directory() []DirectoryItem {
	dir := m.findDirectory()
	if dir == nil {
		return nil
	}

	seq := dir.Find(name(rdfns, "Seq"))
	if seq == nil {
		return nil
	}

	var items []DirectoryItem
	for _, li := range seq.FindAll(name(rdfns, "li")) {
		item := li.Find(name(containerns, "Item"))
		if item == nil {
			continue
		}
		items = append(items, DirectoryItem{
			Mime:     itemField(item, "Mime"),
			Semantic: itemField(item, "Semantic"),
			Length:   itemInt(item, "Length"),
			Padding:  itemInt(item, "Padding"),
		})
	}
	return items
}

// findDirectory returns the Container:Directory element, or nil.
func (m *Meta) findDirectory() *xmldoc.Node {
	for _, d := range m.descriptions() {
		if dir := d.Find(name(containerns, "Directory")); dir != nil {
			return dir
		}
	}
	return nil
}

// SetDirectory replaces the Container:Directory record.
func (m *Meta) SetDirectory(items []DirectoryItem) {
	d := m.descr(containerns)
	d.SetAttr(xml.Name{Space: "xmlns", Local: nsPrefix[itemns]}, itemns)

	seq := xmldoc.Elem(name(rdfns, "Seq"))
	for _, it := range items {
		item := xmldoc.Elem(name(containerns, "Item"))
		item.SetAttr(name(itemns, "Mime"), it.Mime)
		item.SetAttr(name(itemns, "Semantic"), it.Semantic)
		if it.Semantic != SemanticPrimary {
			item.SetAttr(name(itemns, "Length"), strconv.FormatInt(it.Length, 10))
		}
		item.SetAttr(name(itemns, "Padding"), strconv.FormatInt(it.Padding, 10))

		li := xmldoc.Elem(name(rdfns, "li"))
		li.SetAttr(name(rdfns, "parseType"), "Resource")
		li.Child = append(li.Child, item)
		seq.Child = append(seq.Child, li)
	}

	dirName := name(containerns, "Directory")
	m.Delete(dirName)
	dir := xmldoc.Elem(dirName)
	dir.Child = append(dir.Child, seq)
	d.Child = append(d.Child, dir)
}

// VideoLength returns the byte length of the clip appended to the
// still image, preferring the Container:Directory MotionPhoto entry
// and falling back to the legacy MicroVideoOffset field.
func (m *Meta) VideoLength() (int64, bool) {
	for _, it := range m.Directory() {
		if it.Semantic == SemanticMotionPhoto && it.Length > 0 {
			return it.Length, true
		}
	}
	if v, ok := m.Int(microVideoOffset); ok && v > 0 {
		return v, true
	}
	return 0, false
}

// PresentationTimestampUs returns the cover frame timestamp in
// microseconds, from either scheme. A negative or missing value
// means the writer left the choice to the reader.
func (m *Meta) PresentationTimestampUs() (int64, bool) {
	if v, ok := m.Int(motionPhotoTimestamp); ok && v >= 0 {
		return v, true
	}
	if v, ok := m.Int(microVideoTimestamp); ok && v >= 0 {
		return v, true
	}
	return 0, false
}

// IsMotionPhoto reports whether the packet declares
// an embedded motion segment in either scheme.
func (m *Meta) IsMotionPhoto() bool {
	if v, ok := m.Int(motionPhoto); ok && v == 1 {
		return true
	}
	if v, ok := m.Int(microVideo); ok && v == 1 {
		return true
	}
	return false
}

// SetMotionPhoto declares an embedded clip of videoLength bytes with
// the cover frame at timestampUs, writing both the legacy MicroVideo
// fields and the motion photo v1 directory.
func (m *Meta) SetMotionPhoto(stillMime, videoMime string, videoLength, timestampUs int64) {
	m.SetInt(microVideo, 1)
	m.SetInt(microVideoVersion, 1)
	m.SetInt(microVideoOffset, videoLength)
	m.SetInt(microVideoTimestamp, timestampUs)

	m.SetInt(motionPhoto, 1)
	m.SetInt(motionPhotoVersion, 1)
	m.SetInt(motionPhotoTimestamp, timestampUs)

	m.SetDirectory([]DirectoryItem{
		{Mime: stillMime, Semantic: SemanticPrimary},
		{Mime: videoMime, Semantic: SemanticMotionPhoto, Length: videoLength},
	})
}

// ClearMotionPhoto removes the motion photo records of both schemes,
// for stills extracted from a motion photo file.
func (m *Meta) ClearMotionPhoto() {
	m.Delete(microVideo)
	m.Delete(microVideoVersion)
	m.Delete(microVideoOffset)
	m.Delete(microVideoTimestamp)
	m.Delete(motionPhoto)
	m.Delete(motionPhotoVersion)
	m.Delete(motionPhotoTimestamp)
	m.Delete(name(containerns, "Directory"))
}

func itemField(item *xmldoc.Node, local string) string {
	if v, ok := item.AttrValue(name(itemns, local)); ok {
		return v
	}
	if c := item.Find(name(itemns, local)); c != nil {
		return c.Value
	}
	return ""
}

func itemInt(item *xmldoc.Node, local string) int64 {
	v, err := strconv.ParseInt(itemField(item, local), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
