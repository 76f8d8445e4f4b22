package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupLogDir(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	SetDir(tmp)
	t.Cleanup(func() { Close(); SetDir("") })
	return tmp
}

func TestResolveDir(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		flag string
		env  string
		want string
	}{
		{"flag", "/tmp/mylog", "/tmp/ignored", "/tmp/mylog"},
		{"relative flag", "logs", "", filepath.Join(wd, "logs")},
		{"env", "", "/tmp/murmur-env-log", "/tmp/murmur-env-log"},
		{"relative env", "", "envlogs", filepath.Join(wd, "envlogs")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("MURMUR_LOG_PATH", tt.env)
			got, err := ResolveDir(tt.flag)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveDirDefault(t *testing.T) {
	t.Setenv("MURMUR_LOG_PATH", "")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got == "" {
		t.Error("expected non-empty default directory")
	}
}

func TestInitCreatesFiles(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{diagnosticsFile, transcriptFile} {
		path := filepath.Join(tmp, name)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}
}

func TestTranscriptionText(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	TranscriptionText("hello world")

	data, err := os.ReadFile(filepath.Join(tmp, "transcribe_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	line := string(data)
	if !strings.Contains(line, "hello world") {
		t.Errorf("transcribe_log.txt missing text, got: %q", line)
	}
	// format: "2006-01-02 15:04:05\t[pid]\ttext\n"
	if !strings.Contains(line, "\t") {
		t.Errorf("expected tab-separated format, got: %q", line)
	}
}

func TestCloseIdempotent(t *testing.T) {
	setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}
	Close()
	Close() // should not panic
}

func TestStructuredEvents(t *testing.T) {
	tmp := setupLogDir(t)
	if err := Init(); err != nil {
		t.Fatal(err)
	}

	SessionStart("abc", "fake", "streaming", "en")
	Chunk(ChunkMetrics{Session: "abc", AudioS: 4, DecodeMs: 120, Chars: 11})
	Chunk(ChunkMetrics{Session: "abc", Dropped: "hallucination"})
	ModelPhase("ready")
	SessionEnd(SessionMetricsData{Session: "abc", Chunks: 1, Characters: 11})
	Warnf("chunk %d failed", 3)

	data, err := os.ReadFile(filepath.Join(tmp, "diagnostics_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{"session_start", "backend=fake", "dropped=hallucination", "model_phase", "session_end", "chunk 3 failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("diagnostics log missing %q:\n%s", want, out)
		}
	}
}

func TestSilentBeforeInit(t *testing.T) {
	Close()
	// None of these may panic on nil files.
	Info("x")
	Debugf("%d", 1)
	TranscriptionText("x")
	TranscriptionMetrics(Metrics{}, "groq", true, "h2")
	Chunk(ChunkMetrics{})
	SessionEnd(SessionMetricsData{})
}

func TestLogLevel(t *testing.T) {
	tmp := setupLogDir(t)
	t.Setenv("MURMUR_LOG_LEVEL", "warn")
	if err := Init(); err != nil {
		t.Fatal(err)
	}
	Infof("quiet %d", 1)
	Warnf("loud %d", 2)

	data, err := os.ReadFile(filepath.Join(tmp, diagnosticsFile))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "quiet 1") {
		t.Error("info line written at warn level")
	}
	if !strings.Contains(string(data), "loud 2") {
		t.Error("warn line missing")
	}
}

func TestBadLogLevel(t *testing.T) {
	setupLogDir(t)
	t.Setenv("MURMUR_LOG_LEVEL", "chatty")
	if err := Init(); err == nil {
		t.Fatal("Init accepted an unknown level")
	}
}

func TestReinitReopens(t *testing.T) {
	tmp := setupLogDir(t)
	if err := Init(); err != nil {
		t.Fatal(err)
	}
	TranscriptionText("first")
	if err := Init(); err != nil {
		t.Fatal(err)
	}
	TranscriptionText("second")

	data, err := os.ReadFile(filepath.Join(tmp, transcriptFile))
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(string(data), "\n"); got != 2 {
		t.Errorf("transcript has %d lines, want 2:\n%s", got, data)
	}
}
