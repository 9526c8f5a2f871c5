package main

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	livemotion "github.com/AssassinJY/live-motion-photos-convert"
)

// config holds conversion defaults loadable from a YAML file.
// Command line flags override it.
type config struct {
	// Identifier forces the content identifier of live photo pairs.
	Identifier string `yaml:"identifier"`

	// CoverOffsetMs positions the cover frame within the clip,
	// in milliseconds.
	CoverOffsetMs int `yaml:"cover_offset_ms"`

	// AutoPlay sets the live-photo.auto marker on composed movies.
	AutoPlay bool `yaml:"auto_play"`
}

func defaultConfig() *config {
	return &config{
		CoverOffsetMs: int(livemotion.DefaultCoverOffset / time.Millisecond),
	}
}

// loadConfig reads the YAML config at path, or returns the defaults
// when path is empty.
func loadConfig(path string) (*config, error) {
	c := defaultConfig()
	if path == "" {
		return c, nil
	}

	p, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(p, c); err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	if c.CoverOffsetMs < 0 {
		return nil, errors.Errorf("config %s: negative cover_offset_ms", path)
	}
	return c, nil
}

func (c *config) options() *livemotion.Options {
	return &livemotion.Options{
		Identifier:  c.Identifier,
		CoverOffset: time.Duration(c.CoverOffsetMs) * time.Millisecond,
		AutoPlay:    c.AutoPlay,
	}
}
