package mp4

import (
	"github.com/pkg/errors"
)

// QuickTime Keys namespace key names used for Live Photo pairing.
const (
	KeyContentIdentifier = "com.apple.quicktime.content.identifier"
	KeyLivePhotoAuto     = "com.apple.quicktime.live-photo.auto"
	KeyStillImageTime    = "com.apple.quicktime.still-image-time"
)

// Key data types of the QuickTime metadata well-known type space.
const (
	typeUTF8  = 1
	typeInt8  = 65
	typeInt32 = 67
)

// Keys holds the movie-level QuickTime metadata of the mdta key
// namespace: key names paired with their raw typed values.
type Keys struct {
	Entry []KeyEntry
}

// KeyEntry is one movie-level metadata entry.
type KeyEntry struct {
	Name string

	Type  uint32 // well-known data type
	Value []byte
}

// String returns the value of the named UTF-8 entry.
func (k *Keys) String(name string) (string, bool) {
	for _, e := range k.Entry {
		if e.Name == name && e.Type == typeUTF8 {
			return string(e.Value), true
		}
	}
	return "", false
}

// SetString sets the named entry to a UTF-8 value.
func (k *Keys) SetString(name, value string) {
	k.set(KeyEntry{Name: name, Type: typeUTF8, Value: []byte(value)})
}

// Int8 returns the value of the named 8-bit integer entry.
func (k *Keys) Int8(name string) (int8, bool) {
	for _, e := range k.Entry {
		if e.Name == name && e.Type == typeInt8 && len(e.Value) == 1 {
			return int8(e.Value[0]), true
		}
	}
	return 0, false
}

// SetInt8 sets the named entry to an 8-bit integer value.
func (k *Keys) SetInt8(name string, v int8) {
	k.set(KeyEntry{Name: name, Type: typeInt8, Value: []byte{byte(v)}})
}

func (k *Keys) set(e KeyEntry) {
	for i := range k.Entry {
		if k.Entry[i].Name == e.Name {
			k.Entry[i] = e
			return
		}
	}
	k.Entry = append(k.Entry, e)
}

// Delete removes the named entry.
func (k *Keys) Delete(name string) {
	for i := range k.Entry {
		if k.Entry[i].Name == name {
			k.Entry = append(k.Entry[:i], k.Entry[i+1:]...)
			return
		}
	}
}

// DecodeKeys reads the mdta keyed metadata of the movie.
// A movie without a moov-level meta box yields empty Keys.
func (f *File) DecodeKeys() (*Keys, error) {
	meta := f.Find("moov", "meta")
	if meta == nil {
		return new(Keys), nil
	}

	return decodeKeysBoxes(meta.Find("keys"), meta.Find("ilst"))
}

func decodeKeysBoxes(keysBox, ilst *Box) (*Keys, error) {
	if keysBox == nil || ilst == nil {
		return new(Keys), nil
	}

	names, err := decodeKeyNames(keysBox.Raw)
	if err != nil {
		return nil, err
	}

	k := new(Keys)
	for _, item := range ilst.Child {
		// the item type is the 1-based index into the key table
		idx := int(mp4bo.Uint32([]byte(item.Type)))
		if idx < 1 || idx > len(names) {
			continue
		}
		typ, value, ok := decodeDataBox(item.Raw)
		if !ok {
			continue
		}
		k.Entry = append(k.Entry, KeyEntry{
			Name:  names[idx-1],
			Type:  typ,
			Value: value,
		})
	}
	return k, nil
}

// SetKeys replaces the movie-level mdta metadata of f.
func (f *File) SetKeys(k *Keys) error {
	moov := f.Find("moov")
	if moov == nil {
		return errors.New("mp4: moov missing")
	}

	moov.Remove("meta")
	if len(k.Entry) == 0 {
		return nil
	}
	moov.Child = append(moov.Child, encodeKeysMeta(k))
	return nil
}

func decodeKeyNames(p []byte) ([]string, error) {
	if len(p) < 8 {
		return nil, formatError("keys box too short")
	}
	n := int(mp4bo.Uint32(p[4:]))
	pos := 8

	var names []string
	for i := 0; i < n; i++ {
		if len(p) < pos+8 {
			return nil, formatError("keys box too short")
		}
		size := int(mp4bo.Uint32(p[pos:]))
		namespace := string(p[pos+4 : pos+8])
		if size < 8 || len(p) < pos+size {
			return nil, formatError("invalid key entry size %d", size)
		}
		name := ""
		if namespace == "mdta" {
			name = string(p[pos+8 : pos+size])
		}
		names = append(names, name)
		pos += size
	}
	return names, nil
}

// decodeDataBox reads the data box within an ilst item payload.
func decodeDataBox(p []byte) (typ uint32, value []byte, ok bool) {
	pos := 0
	for pos+8 <= len(p) {
		size := int(mp4bo.Uint32(p[pos:]))
		if size < 8 || pos+size > len(p) {
			return 0, nil, false
		}
		if string(p[pos+4:pos+8]) == "data" && size >= 16 {
			typ = mp4bo.Uint32(p[pos+8:])
			// 4 bytes locale follow the type indicator
			return typ, p[pos+16 : pos+size], true
		}
		pos += size
	}
	return 0, nil, false
}

// encodeKeysMeta builds the moov-level meta box in the QuickTime
// layout: a plain meta box holding hdlr (mdta), keys and ilst.
func encodeKeysMeta(k *Keys) *Box {
	var keys boxBuild
	keys.VersionFlags(0, 0)
	keys.Uint32(uint32(len(k.Entry)))
	for _, e := range k.Entry {
		keys.Uint32(uint32(8 + len(e.Name)))
		keys.String("mdta")
		keys.String(e.Name)
	}

	var ilst []*Box
	for i, e := range k.Entry {
		var data boxBuild
		data.Uint32(uint32(16 + len(e.Value)))
		data.String("data")
		data.Uint32(e.Type)
		data.Uint32(0) // locale
		data.Bytes(e.Value)

		var itemType [4]byte
		mp4bo.PutUint32(itemType[:], uint32(i+1))
		ilst = append(ilst, NewBox(string(itemType[:]), data.p))
	}

	return NewContainerBox("meta",
		NewBox("hdlr", encodeHDLR("mdta", "")),
		NewBox("keys", keys.p),
		NewContainerBox("ilst", ilst...),
	)
}
