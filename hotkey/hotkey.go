// Package hotkey turns the global push-to-talk shortcut (Ctrl+Shift+Space)
// into start and stop signals.
package hotkey

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}
