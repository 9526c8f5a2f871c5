package motion

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// SpliceFile writes the still image with the clip appended to path.
// The file is written to a temporary name and renamed into place, so
// no partial output remains on failure.
func SpliceFile(path string, still, clip []byte) error {
	return writeFileAtomic(path, still, clip)
}

// SplitFile locates the embedded video of the motion photo at src
// and writes the still image and the clip to separate files.
func SplitFile(src, stillPath, clipPath string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	offset, _, err := Locate(data)
	if err != nil {
		return err
	}
	still, clip, err := Split(data, offset)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(stillPath, still); err != nil {
		return err
	}
	return writeFileAtomic(clipPath, clip)
}

func writeFileAtomic(path string, parts ...[]byte) error {
	dir, base := filepath.Split(path)
	f, err := os.CreateTemp(dir, base+".tmp*")
	if err != nil {
		return err
	}
	tmp := f.Name()

	for _, p := range parts {
		if _, err := f.Write(p); err != nil {
			f.Close()
			os.Remove(tmp)
			return errors.Wrapf(err, "writing %s", path)
		}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, 0644); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
