//go:build !whisper

package transcriber

import (
	"context"
	"fmt"
)

// Without the whisper build tag the local backend can download models but
// not run them.
type stubWhisper struct{}

func newWhisperEngine() whisperEngine { return stubWhisper{} }

func (stubWhisper) load(string) error {
	return fmt.Errorf("whisper: rebuild with -tags whisper: %w", ErrUnsupported)
}

func (stubWhisper) loaded() bool { return false }

func (stubWhisper) decode(context.Context, []float32, string, func(string)) (string, error) {
	return "", fmt.Errorf("whisper: %w", ErrUnsupported)
}
