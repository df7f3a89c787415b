//go:build linux

package dispatch

import (
	"fmt"
	"sync"
	"time"

	"github.com/micmonay/keybd_event"
)

type uinputKeyboard struct {
	mu sync.Mutex
	kb keybd_event.KeyBonding
}

// NewKeyboard creates a virtual uinput keyboard. The device needs write
// access to /dev/uinput and a short settle period before the compositor
// accepts its events.
func NewKeyboard(settle time.Duration) (Keyboard, error) {
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return nil, fmt.Errorf("create uinput keyboard: %w", err)
	}
	if settle > 0 {
		time.Sleep(settle)
	}
	return &uinputKeyboard{kb: kb}, nil
}

func (u *uinputKeyboard) Press(k Key) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.set(k)
	return u.kb.Press()
}

func (u *uinputKeyboard) Release(k Key) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.set(k)
	return u.kb.Release()
}

func (u *uinputKeyboard) set(k Key) {
	u.kb.Clear()
	u.kb.HasSHIFT(k.Shift)
	u.kb.SetKeys(k.Code)
}
