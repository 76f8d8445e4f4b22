package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"murmur/coordinator"
	"murmur/polish"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate(Default()) = %v", err)
	}
	if cfg.InjectionMode() != coordinator.Streaming {
		t.Errorf("default mode = %s, want streaming", cfg.InjectionMode())
	}
	if cfg.PolishMode() != polish.Fluent {
		t.Errorf("default polish = %s, want fluent", cfg.PolishMode())
	}
	if cfg.Chunk.Duration != 4*time.Second || cfg.Chunk.Overlap != 500*time.Millisecond {
		t.Errorf("chunk defaults = %+v", cfg.Chunk)
	}
}

func TestLoadFromReaderOverridesDefaults(t *testing.T) {
	const doc = `
backend: deepgram
language: es
mode: on_release
polish: basic
chunk:
  duration: 3s
  overlap: 250ms
pauses:
  sentence: 2s
history_limit: 5
silence:
  auto_stop: true
  threshold: 0.05
enhance:
  enabled: true
  model: gpt-4o
`
	cfg, err := LoadFromReader(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Backend != "deepgram" || cfg.Language != "es" {
		t.Errorf("backend/language = %q/%q", cfg.Backend, cfg.Language)
	}
	if cfg.InjectionMode() != coordinator.OnRelease {
		t.Errorf("mode = %s", cfg.InjectionMode())
	}

	cc := cfg.ChunkerConfig()
	if cc.ChunkDuration != 3*time.Second || cc.Overlap != 250*time.Millisecond {
		t.Errorf("chunker config = %+v", cc)
	}
	if cc.FinalizeWindow != 25*time.Second {
		t.Errorf("finalize window = %s, want default 25s", cc.FinalizeWindow)
	}

	co := cfg.CoordinatorConfig()
	if co.Polish != polish.Basic || co.SentencePause != 2*time.Second || co.CommaPause != 550*time.Millisecond || co.HistoryLimit != 5 {
		t.Errorf("coordinator config = %+v", co)
	}

	if sc := cfg.SilenceConfig(); sc.Threshold != 0.05 || sc.AutoStopAfter != 30*time.Second {
		t.Errorf("silence config = %+v", sc)
	}
	if !cfg.Enhance.Enabled || cfg.Enhance.Model != "gpt-4o" || cfg.Enhance.Timeout != 10*time.Second {
		t.Errorf("enhance = %+v", cfg.Enhance)
	}
}

func TestLoadFromReaderEmpty(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader(empty): %v", err)
	}
	if cfg.HistoryLimit != Default().HistoryLimit {
		t.Errorf("history limit = %d", cfg.HistoryLimit)
	}
}

func TestLoadFromReaderUnknownField(t *testing.T) {
	if _, err := LoadFromReader(strings.NewReader("bakend: groq\n")); err == nil {
		t.Fatal("unknown key accepted")
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := Default()
	cfg.Backend = "vosk"
	cfg.Mode = "sometimes"
	cfg.Polish = "shiny"
	cfg.Chunk.Overlap = 10 * time.Second
	cfg.Pauses.Comma = 3 * time.Second
	cfg.HistoryLimit = 0
	cfg.Silence.Threshold = 2

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate accepted a broken config")
	}
	for _, want := range []string{"backend", "mode", "polish", "chunk.overlap", "pauses.comma", "history_limit", "silence.threshold"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "murmur.yaml")
	if err := os.WriteFile(path, []byte("mode: release\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.InjectionMode() != coordinator.OnRelease {
		t.Errorf("mode = %s", cfg.InjectionMode())
	}

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load(missing) = %v, want ErrNotExist", err)
	}
}
