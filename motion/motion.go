// Package motion locates and splices the video clip embedded in
// motion photo JPEG files. A motion photo is a JPEG with an MP4
// appended after the image data; the clip's span is declared in the
// image's XMP packet, or failing that found by signature scan.
package motion

import (
	"bytes"
	"io"

	"github.com/pkg/errors"

	"github.com/AssassinJY/live-motion-photos-convert/xmp"
)

// ErrSpanNotFound is returned by Locate when data carries no
// discoverable embedded video: no usable XMP declaration and no
// video signature after the image.
var ErrSpanNotFound = errors.New("motion: embedded video span not found")

// Locate returns the byte span of the embedded video within data.
//
// The XMP declaration is tried first: the MotionPhoto directory item
// length or the MicroVideoOffset, both counted from the end of the
// file. A declared span must start with a plausible MP4 box header,
// otherwise Locate falls back to scanning for an ftyp signature
// after the end of the image. It never guesses beyond these two.
func Locate(data []byte) (offset, length int64, err error) {
	if pkt := jpegXMP(data); pkt != nil {
		if m, err := xmp.Decode(pkt); err == nil {
			if vl, ok := m.VideoLength(); ok && vl > 0 && vl < int64(len(data)) {
				off := int64(len(data)) - vl
				if isVideoStart(data[off:]) {
					return off, vl, nil
				}
			}
		}
	}

	eoi := jpegEnd(data)
	if eoi < 0 {
		return 0, 0, errors.Wrap(ErrSpanNotFound, "no jpeg image")
	}
	if off := scanVideoSignature(data, eoi); off >= 0 {
		return int64(off), int64(len(data) - off), nil
	}
	return 0, 0, ErrSpanNotFound
}

// Split returns the still image and the video clip halves of data.
func Split(data []byte, offset int64) (still, clip []byte, err error) {
	if offset <= 0 || offset >= int64(len(data)) {
		return nil, nil, errors.Errorf("motion: split offset %d outside file of %d bytes", offset, len(data))
	}
	return data[:offset], data[offset:], nil
}

// Splice writes the still image with the video clip appended.
func Splice(w io.Writer, still, clip []byte) error {
	if _, err := w.Write(still); err != nil {
		return err
	}
	_, err := w.Write(clip)
	return err
}

// isVideoStart reports whether p starts with an MP4 box header.
func isVideoStart(p []byte) bool {
	return len(p) >= 12 && string(p[4:8]) == "ftyp"
}

// videoBrands are the ftyp signatures accepted by the fallback
// scan. HEIF brands are deliberately absent.
var videoBrands = []string{"isom", "mp42", "mp41", "mp4v", "qt  ", "MSNV"}

// scanVideoSignature searches data from pos for an ftyp signature
// with a video brand. The box starts 4 bytes before the signature,
// at its size field.
func scanVideoSignature(data []byte, pos int) int {
	sig := []byte("ftyp")
	for pos < len(data) {
		i := bytes.Index(data[pos:], sig)
		if i < 0 {
			return -1
		}
		s := pos + i
		if s >= 4 && s+8 <= len(data) {
			brand := string(data[s+4 : s+8])
			for _, b := range videoBrands {
				if brand == b || (len(brand) >= 3 && brand[:3] == "mp4") {
					return s - 4
				}
			}
		}
		pos = s + 4
	}
	return -1
}

// jpegXMP returns the XMP packet of the image's APP1 segment, or nil.
func jpegXMP(data []byte) []byte {
	var xmpPfx = []byte("http://ns.adobe.com/xap/1.0/\x00")

	if len(data) < 2 || data[0] != 0xff || data[1] != 0xd8 {
		return nil
	}
	pos := 2
	for pos+4 <= len(data) {
		if data[pos] != 0xff {
			return nil
		}
		marker := data[pos+1]
		switch {
		case marker == 0xd8 || (0xd0 <= marker && marker <= 0xd7):
			pos += 2
			continue
		case marker == 0xda || marker == 0xd9:
			return nil
		}
		l := int(data[pos+2])<<8 + int(data[pos+3])
		if l < 2 || pos+2+l > len(data) {
			return nil
		}
		if marker == 0xe1 {
			payload := data[pos+4 : pos+2+l]
			if bytes.HasPrefix(payload, xmpPfx) {
				return payload[len(xmpPfx):]
			}
		}
		pos += 2 + l
	}
	return nil
}

// jpegEnd returns the position just after the image's end marker,
// walking the entropy coded stream past stuffed bytes and restart
// markers. It returns -1 for content without a complete image.
func jpegEnd(data []byte) int {
	if len(data) < 2 || data[0] != 0xff || data[1] != 0xd8 {
		return -1
	}
	pos := 2
	inScan := false
	for pos+2 <= len(data) {
		if data[pos] != 0xff {
			if inScan {
				pos++
				continue
			}
			return -1
		}
		marker := data[pos+1]
		switch {
		case marker == 0x00 || marker == 0xff:
			// stuffed byte or fill
			pos++
			continue
		case 0xd0 <= marker && marker <= 0xd7:
			pos += 2
			continue
		case marker == 0xd9:
			return pos + 2
		case marker == 0xda:
			inScan = true
		}
		if pos+4 > len(data) {
			return -1
		}
		l := int(data[pos+2])<<8 + int(data[pos+3])
		if l < 2 || pos+2+l > len(data) {
			return -1
		}
		pos += 2 + l
	}
	return -1
}
