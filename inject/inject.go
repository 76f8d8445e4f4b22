// Package inject delivers dictated text to the focused application through
// the clipboard and a synthesized paste keystroke.
package inject

import (
	"fmt"

	"murmur/coordinator"
)

// Sink receives the coordinator's injection decisions.
type Sink interface {
	// TypeText inserts text at the cursor. clipboardFallback, if non-empty,
	// is left on the clipboard afterwards.
	TypeText(text, clipboardFallback string) error
	CopyToClipboard(text string) error
}

// Apply performs a coordinator action on s.
func Apply(s Sink, a coordinator.Action) error {
	switch a.Kind {
	case coordinator.ActionType:
		if a.Text == "" {
			return nil
		}
		if err := s.TypeText(a.Text, a.Clipboard); err != nil {
			return fmt.Errorf("type text: %w", err)
		}
	case coordinator.ActionCopy:
		if err := s.CopyToClipboard(a.Text); err != nil {
			return fmt.Errorf("copy to clipboard: %w", err)
		}
	}
	return nil
}
