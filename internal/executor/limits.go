package executor

import (
	"errors"
	"fmt"
	"os"
)

var ErrSizeLimitExceeded = errors.New("input file exceeds size limit")

// SizeLimit rejects input files above a configured byte ceiling.
type SizeLimit struct {
	Max int64
}

// Validate stats the file and checks it against the ceiling. Stat failures
// (missing file, permission) are returned as-is for the caller to classify.
func (l SizeLimit) Validate(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory, not a file", path)
	}
	if l.Max > 0 && info.Size() > l.Max {
		return info.Size(), fmt.Errorf("%w: %d bytes, limit %d", ErrSizeLimitExceeded, info.Size(), l.Max)
	}
	return info.Size(), nil
}
