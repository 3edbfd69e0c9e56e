package mem

import (
	"errors"

	"github.com/tiny16/tiny16/translate"
)

var f = translate.From

var (
	// ErrSinkWrite wraps a failure writing to the UART sink.
	ErrSinkWrite = errors.New(f("sink write failed"))
)
