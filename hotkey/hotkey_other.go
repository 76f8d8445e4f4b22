//go:build !linux

package hotkey

import (
	"sync"

	"golang.design/x/hotkey"
)

type xHotkey struct {
	hk      *hotkey.Hotkey
	keydown chan struct{}
	keyup   chan struct{}
	stop    chan struct{}
	once    sync.Once
}

func New() Hotkey {
	return &xHotkey{
		hk:      hotkey.New([]hotkey.Modifier{hotkey.ModCtrl, hotkey.ModShift}, hotkey.KeySpace),
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}
}

func (h *xHotkey) Register() error {
	if err := h.hk.Register(); err != nil {
		return err
	}
	go h.pump()
	return nil
}

// pump relays OS events in order. Auto-repeat keydowns while the combo is
// held are dropped so every press yields exactly one down and one up.
func (h *xHotkey) pump() {
	held := false
	for {
		var out chan struct{}
		select {
		case <-h.stop:
			return
		case <-h.hk.Keydown():
			if held {
				continue
			}
			held, out = true, h.keydown
		case <-h.hk.Keyup():
			if !held {
				continue
			}
			held, out = false, h.keyup
		}
		select {
		case out <- struct{}{}:
		case <-h.stop:
			return
		}
	}
}

func (h *xHotkey) Unregister() {
	h.once.Do(func() {
		close(h.stop)
		h.hk.Unregister()
	})
}

func (h *xHotkey) Keydown() <-chan struct{} { return h.keydown }
func (h *xHotkey) Keyup() <-chan struct{}   { return h.keyup }

func Diagnose() (string, error) {
	return "global shortcut available (Ctrl+Shift+Space)", nil
}
