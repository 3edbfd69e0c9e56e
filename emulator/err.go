package emulator

import (
	"errors"

	"github.com/tiny16/tiny16/translate"
)

var f = translate.From

// ErrImageTooLarge is returned by Load when base+len(image) would
// overflow the 16-bit address space.
var ErrImageTooLarge = errors.New(f("image does not fit in memory at the requested base address"))
