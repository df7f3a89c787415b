//go:build !linux

package dispatch

import (
	"errors"
	"runtime"
	"time"
)

// ErrUnsupported reports a platform without keystroke injection.
var ErrUnsupported = errors.New("keystroke injection is only supported on linux")

// NewKeyboard always fails off Linux.
func NewKeyboard(time.Duration) (Keyboard, error) {
	return nil, errors.Join(ErrUnsupported, errors.New(runtime.GOOS))
}
