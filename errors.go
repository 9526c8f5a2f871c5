package livemotion

import "github.com/pkg/errors"

var (
	// ErrNoMeta is returned by Probe for an image that carries no
	// metadata segments at all.
	ErrNoMeta = errors.New("livemotion: no metadata present")

	// ErrIdentifierMismatch is returned by VerifyPair when the two
	// halves of a live photo pair carry missing or differing
	// content identifiers.
	ErrIdentifierMismatch = errors.New("livemotion: pair content identifiers differ")

	// ErrWriteFailed is returned when an output file cannot be
	// written. The destination path never holds a partial file.
	ErrWriteFailed = errors.New("livemotion: writing output failed")
)

// writeFailed tags err as an output write failure. The cause rides in
// the message so ErrWriteFailed stays matchable with errors.Is.
func writeFailed(err error, path string) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(ErrWriteFailed, "%s: %v", path, err)
}
