package exif

import (
	"encoding/binary"
	"time"

	"github.com/AssassinJY/live-motion-photos-convert/exif/exiftag"
)

// inch, as TIFF resolution unit
const resUnitInch = 2

// New initializes a new Exif structure for an image
// with the provided dimensions.
func New(dx, dy int) *Exif {
	bo := binary.BigEndian
	x := &Exif{ByteOrder: bo}

	ent := entryFunc(x.ByteOrder)

	x.IFD0 = Dir{
		// resolution
		ent(exiftag.XResolution, Rational{72, 1}),
		ent(exiftag.YResolution, Rational{72, 1}),
		ent(exiftag.ResolutionUnit, Short{resUnitInch}),
	}
	x.IFD0.Sort()

	x.Exif = Dir{
		ent(exiftag.ExifVersion, Undef("0220")),
		ent(exiftag.FlashpixVersion, Undef("0100")),

		ent(exiftag.PixelXDimension, Long{uint32(dx)}),
		ent(exiftag.PixelYDimension, Long{uint32(dy)}),

		// centered subsampling
		ent(exiftag.YCbCrPositioning, Short{1}),

		// sRGB colorspace
		ent(exiftag.ColorSpace, Short{1}),

		// YCbCr, therefore not RGB
		ent(exiftag.ComponentsConfiguration, Undef{1, 2, 3, 0}),
	}
	x.Exif.Sort()

	return x
}

// TimeFormat is the layout of Exif date/time fields.
// Exif times carry no zone and are interpreted in time.Local.
const TimeFormat = "2006:01:02 15:04:05"

// Time reports the time stored in the timeTag and subSecTag fields.
func (x *Exif) Time(timeTag, subSecTag uint32) (time.Time, bool) {
	return timeFromTags(x.Tag(timeTag), x.Tag(subSecTag))
}

// SetTime sets the timeTag and subSecTag fields to t.
func (x *Exif) SetTime(timeTag, subSecTag uint32, t time.Time) {
	v, subv := timeValues(t)
	x.Set(timeTag, v)
	x.Set(subSecTag, subv)
}

// DateTime reports the Exif capture time. The fields checked
// in order are Exif/DateTimeOriginal, Exif/DateTimeDigitized and
// Tiff/DateTime. If none is available, ok == false is returned.
func (x *Exif) DateTime() (t time.Time, ok bool) {
	t, ok = x.Time(exiftag.DateTimeOriginal, exiftag.SubSecTimeOriginal)
	if ok {
		return
	}

	t, ok = x.Time(exiftag.DateTimeDigitized, exiftag.SubSecTimeDigitized)
	if ok {
		return
	}

	t, ok = x.Time(exiftag.DateTime, exiftag.SubSecTime)
	return
}

// SetDateTime sets the fields
// Exif/DateTimeOriginal, Exif/DateTimeDigitized and
// Tiff/DateTime to t.
func (x *Exif) SetDateTime(t time.Time) {
	x.SetTime(exiftag.DateTimeOriginal, exiftag.SubSecTimeOriginal, t)
	x.SetTime(exiftag.DateTimeDigitized, exiftag.SubSecTimeDigitized, t)
	x.SetTime(exiftag.DateTime, exiftag.SubSecTime, t)
}

func timeFromTags(t, subt *Tag) (time.Time, bool) {
	tm, ok := timePart(t)
	if !ok {
		return time.Time{}, false
	}

	subs, ok := subt.Ascii()
	if !ok {
		return tm, true
	}

	var nanos time.Duration
	res := time.Second
	for _, r := range subs {
		if '0' <= r && r <= '9' {
			nanos = nanos*10 + time.Duration(r-'0')
			res /= 10
			if res == 0 {
				break
			}
		} else {
			break
		}
	}
	return tm.Add(nanos * res), true
}

func timePart(t *Tag) (time.Time, bool) {
	s, ok := t.Ascii()
	if !ok {
		return time.Time{}, false
	}

	tm, err := time.ParseInLocation(TimeFormat, s, time.Local)
	if err == nil {
		return tm, true
	}

	// parse prefix of a longer value
	if len(s) > len(TimeFormat) {
		tm, err = time.ParseInLocation(TimeFormat, s[:len(TimeFormat)], time.Local)
		if err == nil {
			return tm, true
		}
	}

	return time.Time{}, false
}

func timeValues(t time.Time) (v, subv Value) {
	v = Ascii(t.Format(TimeFormat))

	nano := t.Nanosecond()
	if nano == 0 {
		return v, nil
	}

	p := make([]byte, 0, 10)
	res := int(1e8)
	for nano > 0 && res > 0 {
		digit := nano / res
		nano = nano % res
		res /= 10
		p = append(p, '0'+byte(digit))
	}
	return v, Ascii(p)
}
