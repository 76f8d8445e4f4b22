package transcriber

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// whisperModels maps model ids to their ggml download URLs.
var whisperModels = map[string]string{
	"tiny":           "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-tiny.bin",
	"base":           "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base.bin",
	"small":          "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-small.bin",
	"medium":         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-medium.bin",
	"large-v3-turbo": "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-large-v3-turbo.bin",
}

const defaultWhisperModel = "base"

// Whisper decodes locally with whisper.cpp. The model file is downloaded
// into the model directory on first load.
type Whisper struct {
	modelDir string
	download func(ctx context.Context, url, dest string, onProgress func(float64)) error
	engine   whisperEngine
}

// whisperEngine is the part of the backend that needs cgo.
type whisperEngine interface {
	load(path string) error
	decode(ctx context.Context, samples []float32, language string, onSegment func(string)) (string, error)
	loaded() bool
}

func NewWhisper(modelDir string) *Whisper {
	return &Whisper{
		modelDir: modelDir,
		download: DownloadModel,
		engine:   newWhisperEngine(),
	}
}

func (w *Whisper) Name() string { return "whisper" }

func (w *Whisper) modelPath(modelID string) (string, string, error) {
	if modelID == "" {
		modelID = defaultWhisperModel
	}
	// A path to an existing ggml file is used as is.
	if strings.HasSuffix(modelID, ".bin") {
		return modelID, "", nil
	}
	url, ok := whisperModels[modelID]
	if !ok {
		return "", "", fmt.Errorf("unknown whisper model %q", modelID)
	}
	return filepath.Join(w.modelDir, "ggml-"+modelID+".bin"), url, nil
}

func (w *Whisper) LoadModel(ctx context.Context, modelID, _ string, onPhase func(Phase)) error {
	report := phaseReporter(onPhase)
	fail := func(err error) error {
		report(Failed(err))
		return err
	}

	path, url, err := w.modelPath(modelID)
	if err != nil {
		return fail(err)
	}
	if _, err := os.Stat(path); err != nil {
		if url == "" || !os.IsNotExist(err) {
			return fail(fmt.Errorf("whisper model %s: %w", path, err))
		}
		report(Downloading(0))
		err := w.download(ctx, url, path, func(p float64) { report(Downloading(p)) })
		if err != nil {
			return fail(fmt.Errorf("downloading whisper model: %w", err))
		}
	}

	report(Loading("loading model"))
	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	if err := w.engine.load(path); err != nil {
		return fail(err)
	}
	report(Ready())
	return nil
}

func (w *Whisper) Decode(ctx context.Context, samples []float32, language string, onPartial func(string)) (string, error) {
	if !w.engine.loaded() {
		return "", fmt.Errorf("whisper: %w", ErrModelNotLoaded)
	}
	var parts []string
	return w.engine.decode(ctx, samples, language, func(seg string) {
		parts = append(parts, seg)
		if onPartial != nil {
			onPartial(strings.Join(parts, " "))
		}
	})
}
