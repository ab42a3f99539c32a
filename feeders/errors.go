package feeders

import (
	"errors"
	"fmt"
)

// Static error definitions for feeders
var (
	ErrUnsupportedFormat = errors.New("unsupported configuration file format")
)

func wrapUnsupportedFormatError(path string) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}
