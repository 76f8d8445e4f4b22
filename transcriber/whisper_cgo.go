//go:build whisper

package transcriber

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"murmur/log"
)

type cgoWhisper struct {
	mu    sync.Mutex
	model whisperlib.Model
}

func newWhisperEngine() whisperEngine { return &cgoWhisper{} }

func (e *cgoWhisper) load(path string) error {
	model, err := whisperlib.New(path)
	if err != nil {
		return fmt.Errorf("whisper: load model %q: %w", path, err)
	}
	e.mu.Lock()
	old := e.model
	e.model = model
	e.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}

func (e *cgoWhisper) loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model != nil
}

func (e *cgoWhisper) decode(ctx context.Context, samples []float32, language string, onSegment func(string)) (string, error) {
	e.mu.Lock()
	model := e.model
	e.mu.Unlock()

	// Contexts are not safe for concurrent use; the model is.
	wctx, err := model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}
	if language == "" {
		language = "auto"
	}
	if err := wctx.SetLanguage(language); err != nil {
		log.Warnf("whisper: language %q not supported, using default: %v", language, err)
	}

	segmentCb := func(seg whisperlib.Segment) {
		if text := strings.TrimSpace(seg.Text); text != "" {
			onSegment(text)
		}
	}
	if err := wctx.Process(samples, nil, segmentCb, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}
