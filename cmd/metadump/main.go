// Command metadump prints the container structure and the motion and
// live photo metadata of JPEG, HEIC and QuickTime/MP4 files.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/AssassinJY/live-motion-photos-convert/exif"
	"github.com/AssassinJY/live-motion-photos-convert/heic"
	"github.com/AssassinJY/live-motion-photos-convert/jpeg"
	"github.com/AssassinJY/live-motion-photos-convert/metaio"
	"github.com/AssassinJY/live-motion-photos-convert/motion"
	"github.com/AssassinJY/live-motion-photos-convert/mp4"
	"github.com/AssassinJY/live-motion-photos-convert/xmp"
)

var exifDump = flag.Bool("exif", false, "dump all exif tags")

func main() {
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: metadump file...")
		os.Exit(2)
	}
	for _, fn := range flag.Args() {
		dumpFile(fn)
	}
}

func dumpFile(fn string) {
	data, err := os.ReadFile(fn)
	if err != nil {
		log.Println(err)
		return
	}

	c, cname, err := metaio.NewContainer(bytes.NewReader(data))
	if err != nil {
		log.Printf("%s: %s", fn, err)
		return
	}

	fmt.Printf("%s: %s, %d bytes\n", fn, cname, len(data))
	for _, rm := range c.RawMeta() {
		fmt.Printf("  segment %-14s %6d bytes\n", rm.Name, len(rm.Bytes))
	}

	switch c := c.(type) {
	case *jpeg.File:
		dumpJPEG(data, c)
	case *heic.Container:
		dumpIdentifier(metaio.Get(c.RawMeta(), "exif"))
	case *mp4.Container:
		dumpMovie(c.File())
	}
}

func dumpJPEG(data []byte, f *jpeg.File) {
	if dx, dy, ok := f.Size(); ok {
		fmt.Printf("  frame: %dx%d\n", dx, dy)
	}
	dumpIdentifier(metaio.Get(f.RawMeta(), "exif"))

	p := metaio.Get(f.RawMeta(), "xmp")
	if p != nil {
		if m, err := xmp.Decode(p); err == nil {
			fmt.Printf("  motion photo: %v\n", m.IsMotionPhoto())
			if vl, ok := m.VideoLength(); ok {
				fmt.Printf("  declared video length: %d\n", vl)
			}
			if ts, ok := m.PresentationTimestampUs(); ok {
				fmt.Printf("  cover timestamp: %dus\n", ts)
			}
			for _, it := range m.Directory() {
				fmt.Printf("  directory item: %s %s length %d\n",
					it.Semantic, it.Mime, it.Length)
			}
		}
	}

	if offset, length, err := motion.Locate(data); err == nil {
		fmt.Printf("  embedded video at %d, %d bytes\n", offset, length)
	}
}

func dumpIdentifier(exifData []byte) {
	if exifData == nil {
		return
	}
	x, err := exif.DecodeBytes(exifData)
	if err != nil {
		return
	}
	if id, ok := x.ContentIdentifier(); ok {
		fmt.Printf("  content identifier: %s\n", id)
	}
	if *exifDump {
		exif.Fdump(os.Stdout, x)
	}
}

func dumpMovie(f *mp4.File) {
	if mvhd := f.Find("moov", "mvhd"); mvhd != nil {
		if m, err := mp4.DecodeMVHD(mvhd.Raw); err == nil {
			fmt.Printf("  created: %s\n", m.DateCreated.Format(time.RFC3339))
			fmt.Printf("  duration: %s\n", m.Duration())
		}
	}

	if keys, err := f.DecodeKeys(); err == nil {
		for _, e := range keys.Entry {
			fmt.Printf("  key %s type %d: %q\n", e.Name, e.Type, e.Value)
		}
	}
	if st, ok := f.StillImageTime(); ok {
		fmt.Printf("  still image time: %s\n", st)
	}

	fmt.Println("  boxes:")
	for _, b := range f.Box {
		showBox("    ", b)
	}
}

func showBox(pfx string, b *mp4.Box) {
	fmt.Printf("%s%q off %d size %d", pfx, b.Type, b.Offset, b.Size)
	if len(b.Child) == 0 {
		fmt.Println()
		return
	}
	fmt.Println(" {")
	for _, c := range b.Child {
		showBox(pfx+"  ", c)
	}
	fmt.Printf("%s}\n", pfx)
}
