// Package metaio defines the metadata attribute surface shared by the
// container codecs (jpeg, heic, mp4) and the format registries used to
// dispatch on file content.
//
// Attribute names are declared here so that codec packages and the root
// conversion package can agree on them without importing each other.
package metaio

import "github.com/pkg/errors"

// Metadata attribute names understood by one or more metadata formats.
//
// Boolean-like attributes use "1" for true. Offsets and lengths are
// decimal byte counts, timestamps are decimal microseconds.
const (
	// ContentIdentifier is the UUID string pairing a Live Photo's
	// still image with its video clip. Private Apple field: stored in
	// the MakerNote in HEIC files and in the QuickTime Keys metadata
	// ("com.apple.quicktime.content.identifier") in MOV files.
	ContentIdentifier = "ContentIdentifier"

	// LivePhotoAuto is the QuickTime "com.apple.quicktime.live-photo.auto"
	// marker ("1" when set).
	LivePhotoAuto = "LivePhotoAuto"

	// Legacy Google camera micro video scheme (XMP GCamera namespace,
	// plus Exif tag 0x8897 for MicroVideo itself).
	MicroVideo                        = "MicroVideo"
	MicroVideoVersion                 = "MicroVideoVersion"
	MicroVideoOffset                  = "MicroVideoOffset"
	MicroVideoPresentationTimestampUs = "MicroVideoPresentationTimestampUs"

	// Motion photo v1 scheme (XMP GCamera namespace).
	MotionPhoto                        = "MotionPhoto"
	MotionPhotoVersion                 = "MotionPhotoVersion"
	MotionPhotoPresentationTimestampUs = "MotionPhotoPresentationTimestampUs"

	// OEM recognition tags (Exif 0x9a01 and 0x889f).
	EmbeddedVideo    = "EmbeddedVideo"
	XiaomiMicroVideo = "XiaomiMicroVideo"
)

// ErrAttrUnwritable is returned when the target container has no
// mutable slot for the requested attribute, such as a MakerNote field
// in a file without an Exif block. Callers needing the write must
// create the missing structure first; the rewrite itself never
// silently drops the request.
var ErrAttrUnwritable = errors.New("metadata: attribute not writable in this container")

// Metadata represents a set of metadata attributes in one format.
type Metadata interface {
	MetadataName() string

	UnmarshalMetadata([]byte) error
	MarshalMetadata() ([]byte, error)

	GetMetadataAttr(attr string) interface{}
	SetMetadataAttr(attr string, value interface{}) error
	DeleteMetadataAttr(attr string) error
}

// RegisterMetadataFormat registers a metadata format for NewMetadata.
// It is typically called from an init function in the codec package.
func RegisterMetadataFormat(name string, newm func() Metadata) {
	if metadataFormats == nil {
		metadataFormats = make(map[string]newMetadataFunc)
	}

	if _, ok := metadataFormats[name]; ok {
		panic(errors.Errorf("duplicate metadata format %q", name))
	}
	metadataFormats[name] = newm
}

// NewMetadata returns a new empty Metadata of the named format,
// or nil if name was never registered.
func NewMetadata(name string) Metadata {
	if f, ok := metadataFormats[name]; ok {
		return f()
	}
	return nil
}

type newMetadataFunc func() Metadata

var metadataFormats map[string]newMetadataFunc
