package inject

import (
	"runtime"
	"sync"
	"time"

	cb "github.com/atotto/clipboard"
	"github.com/micmonay/keybd_event"

	"murmur/log"
)

var (
	kb     keybd_event.KeyBonding
	kbOnce sync.Once
	kbErr  error
)

// InitKeyboard sets up the keystroke synthesizer once. On Linux this needs
// write access to /dev/uinput.
func InitKeyboard() error {
	kbOnce.Do(func() {
		kb, kbErr = keybd_event.NewKeyBonding()
		if kbErr == nil && runtime.GOOS == "linux" {
			// The compositor needs time to pick up the new input device.
			time.Sleep(2 * time.Second)
		}
	})
	return kbErr
}

func paste() error {
	if err := InitKeyboard(); err != nil {
		return err
	}
	kb.SetKeys(keybd_event.VK_V)
	if runtime.GOOS == "darwin" {
		kb.HasSuper(true)
	} else {
		kb.HasCTRL(true)
	}
	return kb.Launching()
}

// Clipboard types text by pasting it. When no fallback is requested the
// previous clipboard content is restored after RestoreDelay.
type Clipboard struct {
	RestoreDelay time.Duration

	read  func() (string, error)
	write func(string) error
	paste func() error
	after func(time.Duration, func())

	mu sync.Mutex
}

func NewClipboard() *Clipboard {
	return &Clipboard{
		RestoreDelay: 600 * time.Millisecond,
		read:         cb.ReadAll,
		write:        cb.WriteAll,
		paste:        paste,
		after: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

func (c *Clipboard) TypeText(text, clipboardFallback string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, readErr := c.read()
	if err := c.write(text); err != nil {
		return err
	}
	if err := c.paste(); err != nil {
		// The text stays reachable from the clipboard.
		if clipboardFallback != "" {
			c.write(clipboardFallback)
		}
		return err
	}

	restore := clipboardFallback
	if restore == "" {
		if readErr != nil || prev == "" {
			return nil
		}
		restore = prev
	}
	c.after(c.RestoreDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if err := c.write(restore); err != nil {
			log.Warnf("clipboard restore: %v", err)
		}
	})
	return nil
}

func (c *Clipboard) CopyToClipboard(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.write(text)
}
