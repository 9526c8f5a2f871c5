// Command motionconv converts between motion photos and live photo
// pairs.
//
//	motionconv merge -still s.jpg -clip c.mp4 -out motion.jpg
//	motionconv extract -in motion.jpg -still s.jpg -clip c.mp4
//	motionconv live -still s.heic -clip c.mp4 -outstill out.heic -outclip out.mov
//
// Defaults for the identifier, cover offset and auto-play marker may
// come from a YAML config file passed with -config.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	livemotion "github.com/AssassinJY/live-motion-photos-convert"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("motionconv: ")

	if len(os.Args) < 2 {
		usage()
	}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "merge":
		runMerge(args)
	case "extract":
		runExtract(args)
	case "live":
		runLive(args)
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: motionconv <command> [flags]

commands:
  merge    append a clip to a still jpeg as a motion photo
  extract  split a motion photo into still and clip
  live     build a live photo pair from a heic and a clip`)
	os.Exit(2)
}

// commonFlags are shared by the writing commands.
type commonFlags struct {
	config  string
	verbose bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.config, "config", "", "YAML config `file`")
	fs.BoolVar(&c.verbose, "v", false, "verbose logging")
}

func (c *commonFlags) setup() (*slog.Logger, *config) {
	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	cfg, err := loadConfig(c.config)
	if err != nil {
		log.Fatal(err)
	}
	return logger, cfg
}

func runMerge(args []string) {
	fs := flag.NewFlagSet("merge", flag.ExitOnError)
	var cf commonFlags
	cf.register(fs)
	still := fs.String("still", "", "source still jpeg")
	clip := fs.String("clip", "", "source clip mp4")
	out := fs.String("out", "", "output motion photo")
	cover := fs.Duration("cover", 0, "cover frame offset within the clip")
	fs.Parse(args)

	if *still == "" || *clip == "" || *out == "" {
		log.Fatal("merge needs -still, -clip and -out")
	}

	logger, cfg := cf.setup()
	o := cfg.options()
	if *cover != 0 {
		o.CoverOffset = *cover
	}

	start := time.Now()
	if err := livemotion.MakeMotionPhoto(*still, *clip, *out, o); err != nil {
		log.Fatal(err)
	}
	logger.Info("motion photo written",
		"out", *out,
		"elapsed", time.Since(start))
}

func runExtract(args []string) {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	var cf commonFlags
	cf.register(fs)
	in := fs.String("in", "", "source motion photo")
	still := fs.String("still", "", "output still jpeg")
	clip := fs.String("clip", "", "output clip mp4")
	fs.Parse(args)

	if *in == "" || *still == "" || *clip == "" {
		log.Fatal("extract needs -in, -still and -clip")
	}

	logger, _ := cf.setup()

	if err := livemotion.ExtractMotionPhoto(*in, *still, *clip); err != nil {
		log.Fatal(err)
	}
	logger.Info("motion photo split",
		"still", *still,
		"clip", *clip)
}

func runLive(args []string) {
	fs := flag.NewFlagSet("live", flag.ExitOnError)
	var cf commonFlags
	cf.register(fs)
	still := fs.String("still", "", "source heic still")
	clip := fs.String("clip", "", "source clip mp4")
	outStill := fs.String("outstill", "", "output heic")
	outClip := fs.String("outclip", "", "output mov")
	id := fs.String("id", "", "content identifier to use")
	cover := fs.Duration("cover", 0, "cover frame offset within the clip")
	auto := fs.Bool("auto", false, "set the live-photo.auto marker")
	fs.Parse(args)

	if *still == "" || *clip == "" || *outStill == "" || *outClip == "" {
		log.Fatal("live needs -still, -clip, -outstill and -outclip")
	}

	logger, cfg := cf.setup()
	o := cfg.options()
	if *id != "" {
		o.Identifier = *id
	}
	if *cover != 0 {
		o.CoverOffset = *cover
	}
	if *auto {
		o.AutoPlay = true
	}

	start := time.Now()
	if err := livemotion.MakeLivePhotoPair(*still, *clip, *outStill, *outClip, o); err != nil {
		log.Fatal(err)
	}

	info, err := livemotion.ProbeFile(*outStill)
	if err != nil {
		log.Fatal(err)
	}
	logger.Info("live photo pair written",
		"still", *outStill,
		"clip", *outClip,
		"identifier", info.ContentIdentifier,
		"elapsed", time.Since(start))
}
