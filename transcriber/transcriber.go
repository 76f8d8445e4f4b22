// Package transcriber holds the speech decoder backends. Every backend
// decodes a whole chunk of 16 kHz mono float samples and may report partial
// guesses while it works.
package transcriber

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"
)

var (
	ErrMissingAPIKey  = errors.New("missing API key")
	ErrModelNotLoaded = errors.New("model not loaded")
	ErrLoadTimeout    = errors.New("model load timed out")
	ErrUnsupported    = errors.New("backend not supported in this build")
)

type PhaseKind int

const (
	PhaseIdle PhaseKind = iota
	PhaseDownloading
	PhaseLoading
	PhaseReady
	PhaseError
)

func (k PhaseKind) String() string {
	switch k {
	case PhaseDownloading:
		return "downloading"
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseError:
		return "error"
	}
	return "idle"
}

// Phase is the model readiness state. Progress is set while downloading,
// Step while loading and Message on error.
type Phase struct {
	Kind     PhaseKind
	Progress float64
	Step     string
	Message  string
}

func (p Phase) String() string {
	switch p.Kind {
	case PhaseDownloading:
		return fmt.Sprintf("downloading(%.0f%%)", p.Progress*100)
	case PhaseLoading:
		return "loading(" + p.Step + ")"
	case PhaseError:
		return "error(" + p.Message + ")"
	}
	return p.Kind.String()
}

func Idle() Phase { return Phase{Kind: PhaseIdle} }
func Ready() Phase { return Phase{Kind: PhaseReady} }
func Downloading(p float64) Phase { return Phase{Kind: PhaseDownloading, Progress: p} }
func Loading(step string) Phase { return Phase{Kind: PhaseLoading, Step: step} }
func Failed(err error) Phase { return Phase{Kind: PhaseError, Message: err.Error()} }

type Transcriber interface {
	Name() string
	// LoadModel prepares the backend, reporting phase changes. It must be
	// called before Decode; calling it again reloads.
	LoadModel(ctx context.Context, modelID, language string, onPhase func(Phase)) error
	// Decode transcribes samples. onPartial, if non-nil, receives the text
	// decoded so far before Decode returns.
	Decode(ctx context.Context, samples []float32, language string, onPartial func(string)) (string, error)
}

type NetworkMetrics struct {
	DNS         time.Duration
	ConnWait    time.Duration
	TCP         time.Duration
	TLS         time.Duration
	ReqHeaders  time.Duration
	ReqBody     time.Duration
	TTFB        time.Duration
	Download    time.Duration
	Total       time.Duration
	ConnReused  bool
	TLSProtocol string
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}

// Options selects and configures a backend.
type Options struct {
	Backend  string
	Model    string
	ModelDir string
}

// New builds the configured backend. An empty backend picks a cloud
// decoder from whichever API key is present.
func New(opts Options) (Transcriber, error) {
	backend := opts.Backend
	if backend == "" {
		switch {
		case os.Getenv("GROQ_API_KEY") != "":
			backend = "groq"
		case os.Getenv("DEEPGRAM_API_KEY") != "":
			backend = "deepgram"
		case os.Getenv("OPENAI_API_KEY") != "":
			backend = "openai"
		default:
			return nil, fmt.Errorf("set GROQ_API_KEY, DEEPGRAM_API_KEY or OPENAI_API_KEY: %w", ErrMissingAPIKey)
		}
	}

	switch backend {
	case "groq":
		return NewGroq(os.Getenv("GROQ_API_KEY")), nil
	case "openai":
		return NewOpenAI(os.Getenv("OPENAI_API_KEY")), nil
	case "deepgram":
		return NewDeepgram(os.Getenv("DEEPGRAM_API_KEY")), nil
	case "whisper":
		return NewWhisper(opts.ModelDir), nil
	}
	return nil, fmt.Errorf("unknown backend %q", backend)
}
