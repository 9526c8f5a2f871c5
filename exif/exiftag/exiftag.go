// Package exiftag declares Exif tag identifiers.
//
// A tag identifier packs the directory class in its high bits
// and the 16-bit TIFF tag in its low bits, so that a single
// uint32 names both the IFD a tag belongs to and the tag itself.
package exiftag

import "fmt"

// Directory classes.
const (
	Tiff    = 0x10000 // IFD0/IFD1
	Exif    = 0x20000 // Exif private sub-IFD
	GPS     = 0x30000 // GPS sub-IFD
	Interop = 0x40000 // interoperability sub-IFD

	DirMask = 0xFFFF0000
	TagMask = 0x0000FFFF
)

// Tags in Tiff (IFD0/IFD1).
const (
	ImageWidth       = Tiff | 0x0100
	ImageLength      = Tiff | 0x0101
	Compression      = Tiff | 0x0103
	ImageDescription = Tiff | 0x010E
	Make             = Tiff | 0x010F
	Model            = Tiff | 0x0110
	Orientation      = Tiff | 0x0112
	XResolution      = Tiff | 0x011A
	YResolution      = Tiff | 0x011B
	ResolutionUnit   = Tiff | 0x0128
	Software         = Tiff | 0x0131
	DateTime         = Tiff | 0x0132
	Artist           = Tiff | 0x013B
	Copyright        = Tiff | 0x8298
)

// Tags in Exif.
const (
	ExposureTime            = Exif | 0x829A
	FNumber                 = Exif | 0x829D
	MicroVideo              = Exif | 0x8897
	XiaomiMicroVideo        = Exif | 0x889F
	ISOSpeedRatings         = Exif | 0x8827
	ExifVersion             = Exif | 0x9000
	DateTimeOriginal        = Exif | 0x9003
	DateTimeDigitized       = Exif | 0x9004
	ComponentsConfiguration = Exif | 0x9101
	MakerNote               = Exif | 0x927C
	UserComment             = Exif | 0x9286
	SubSecTime              = Exif | 0x9290
	SubSecTimeOriginal      = Exif | 0x9291
	SubSecTimeDigitized     = Exif | 0x9292
	EmbeddedVideo           = Exif | 0x9A01
	FlashpixVersion         = Exif | 0xA000
	ColorSpace              = Exif | 0xA001
	PixelXDimension         = Exif | 0xA002
	PixelYDimension         = Exif | 0xA003
	YCbCrPositioning        = Exif | 0x0213
)

// Tags in GPS.
const (
	GPSVersionID     = GPS | 0x0000
	GPSLatitudeRef   = GPS | 0x0001
	GPSLatitude      = GPS | 0x0002
	GPSLongitudeRef  = GPS | 0x0003
	GPSLongitude     = GPS | 0x0004
	GPSAltitudeRef   = GPS | 0x0005
	GPSAltitude      = GPS | 0x0006
	GPSTimeStamp     = GPS | 0x0007
	GPSProcessMethod = GPS | 0x001B
	GPSDateStamp     = GPS | 0x001D
)

// Id is a tag identifier with its directory class,
// formattable as a human readable name.
type Id uint32

func (id Id) String() string {
	if s, ok := tagNames[uint32(id)]; ok {
		return s
	}

	var dir string
	switch uint32(id) & DirMask {
	case Tiff:
		dir = "Tiff"
	case Exif:
		dir = "Exif"
	case GPS:
		dir = "GPS"
	case Interop:
		dir = "Interop"
	default:
		dir = "?"
	}
	return fmt.Sprintf("%s(%#04x)", dir, uint32(id)&TagMask)
}

var tagNames = map[uint32]string{
	ImageWidth:       "ImageWidth",
	ImageLength:      "ImageLength",
	Compression:      "Compression",
	ImageDescription: "ImageDescription",
	Make:             "Make",
	Model:            "Model",
	Orientation:      "Orientation",
	XResolution:      "XResolution",
	YResolution:      "YResolution",
	ResolutionUnit:   "ResolutionUnit",
	Software:         "Software",
	DateTime:         "DateTime",
	Artist:           "Artist",
	Copyright:        "Copyright",

	ExposureTime:            "ExposureTime",
	FNumber:                 "FNumber",
	MicroVideo:              "MicroVideo",
	XiaomiMicroVideo:        "XiaomiMicroVideo",
	ISOSpeedRatings:         "ISOSpeedRatings",
	ExifVersion:             "ExifVersion",
	DateTimeOriginal:        "DateTimeOriginal",
	DateTimeDigitized:       "DateTimeDigitized",
	ComponentsConfiguration: "ComponentsConfiguration",
	MakerNote:               "MakerNote",
	UserComment:             "UserComment",
	SubSecTime:              "SubSecTime",
	SubSecTimeOriginal:      "SubSecTimeOriginal",
	SubSecTimeDigitized:     "SubSecTimeDigitized",
	EmbeddedVideo:           "EmbeddedVideo",
	FlashpixVersion:         "FlashpixVersion",
	ColorSpace:              "ColorSpace",
	PixelXDimension:         "PixelXDimension",
	PixelYDimension:         "PixelYDimension",
	YCbCrPositioning:        "YCbCrPositioning",

	GPSVersionID:     "GPSVersionID",
	GPSLatitudeRef:   "GPSLatitudeRef",
	GPSLatitude:      "GPSLatitude",
	GPSLongitudeRef:  "GPSLongitudeRef",
	GPSLongitude:     "GPSLongitude",
	GPSAltitudeRef:   "GPSAltitudeRef",
	GPSAltitude:      "GPSAltitude",
	GPSTimeStamp:     "GPSTimeStamp",
	GPSProcessMethod: "GPSProcessMethod",
	GPSDateStamp:     "GPSDateStamp",
}
