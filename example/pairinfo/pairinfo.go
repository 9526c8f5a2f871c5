// Command pairinfo reports whether media files form live photo pairs.
package main

import (
	"fmt"
	"log"
	"os"

	livemotion "github.com/AssassinJY/live-motion-photos-convert"
)

func main() {
	byID := make(map[string][]string)

	for _, fn := range os.Args[1:] {
		info, err := livemotion.ProbeFile(fn)
		if err != nil {
			log.Println(err)
			continue
		}

		switch {
		case info.ContentIdentifier != "":
			byID[info.ContentIdentifier] = append(byID[info.ContentIdentifier], fn)
		case info.MotionPhoto:
			fmt.Printf("%s: motion photo, clip of %d bytes\n", fn, info.VideoLength)
		default:
			fmt.Printf("%s: %s, no pairing metadata\n", fn, info.Format)
		}
	}

	for id, files := range byID {
		if len(files) > 1 {
			fmt.Printf("pair %s: %v\n", id, files)
		} else {
			fmt.Printf("unpaired %s: %v\n", id, files)
		}
	}
}
