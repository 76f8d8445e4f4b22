// Package log writes the diagnostics and transcript logs. Every function is
// a no-op until Init succeeds, so library code can log unconditionally.
package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	diagnosticsFile = "diagnostics_log.txt"
	transcriptFile  = "transcribe_log.txt"
	timeFormat      = "2006-01-02 15:04:05"
)

type files struct {
	diag       *os.File
	transcript *os.File
	logger     zerolog.Logger
	pid        int
}

var (
	mu  sync.Mutex
	out *files
	dir string
)

func SetDir(d string) {
	mu.Lock()
	dir = d
	mu.Unlock()
}

func Dir() string {
	mu.Lock()
	defer mu.Unlock()
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(Dir(), 0o755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	return nil
}

func openAppend(name string) (*os.File, error) {
	return os.OpenFile(filepath.Join(dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}

// Init opens both log files in Dir. MURMUR_LOG_LEVEL (debug, info, warn,
// error) sets the diagnostics level; the default is info.
func Init() error {
	if err := EnsureDir(); err != nil {
		return err
	}
	level := zerolog.InfoLevel
	if v := os.Getenv("MURMUR_LOG_LEVEL"); v != "" {
		l, err := zerolog.ParseLevel(v)
		if err != nil {
			return fmt.Errorf("MURMUR_LOG_LEVEL: %w", err)
		}
		level = l
	}

	mu.Lock()
	defer mu.Unlock()
	closeLocked()

	diag, err := openAppend(diagnosticsFile)
	if err != nil {
		return err
	}
	transcript, err := openAppend(transcriptFile)
	if err != nil {
		diag.Close()
		return err
	}
	f := &files{diag: diag, transcript: transcript, pid: os.Getpid()}
	f.logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        diag,
		TimeFormat: timeFormat,
		NoColor:    true,
	}).Level(level).With().Timestamp().Int("pid", f.pid).Logger()
	out = f
	return nil
}

func closeLocked() {
	if out == nil {
		return
	}
	out.diag.Close()
	out.transcript.Close()
	out = nil
}

func Close() {
	mu.Lock()
	closeLocked()
	mu.Unlock()
}

// event starts a diagnostics entry. It returns nil before Init; zerolog
// treats a nil event as disabled.
func event(level zerolog.Level) *zerolog.Event {
	mu.Lock()
	defer mu.Unlock()
	if out == nil {
		return nil
	}
	return out.logger.WithLevel(level)
}

func Debugf(format string, args ...any) { event(zerolog.DebugLevel).Msgf(format, args...) }
func Info(msg string)                   { event(zerolog.InfoLevel).Msg(msg) }
func Infof(format string, args ...any)  { event(zerolog.InfoLevel).Msgf(format, args...) }
func Warnf(format string, args ...any)  { event(zerolog.WarnLevel).Msgf(format, args...) }
func Errorf(format string, args ...any) { event(zerolog.ErrorLevel).Msgf(format, args...) }

// TranscriptionText appends one line to the transcript log.
func TranscriptionText(text string) {
	mu.Lock()
	defer mu.Unlock()
	if out == nil {
		return
	}
	fmt.Fprintf(out.transcript, "%s\t[%d]\t%s\n", time.Now().Format(timeFormat), out.pid, text)
}

// Metrics describes one cloud chunk upload.
type Metrics struct {
	AudioLengthS     float64
	RawSizeKB        float64
	CompressedSizeKB float64
	CompressionPct   float64
	EncodeTimeMs     float64
	DNSTimeMs        float64
	TLSTimeMs        float64
	TTFBMs           float64
	TotalTimeMs      float64
}

func TranscriptionMetrics(m Metrics, backend string, connReused bool, tlsProto string) {
	conn := "new"
	if connReused {
		conn = "reused"
	}
	ev := event(zerolog.InfoLevel).Str("backend", backend).Str("conn", conn)
	if tlsProto != "" {
		ev = ev.Str("tls_proto", tlsProto)
	}
	ev.Float64("audio_s", m.AudioLengthS).
		Float64("raw_kb", m.RawSizeKB).
		Float64("compressed_kb", m.CompressedSizeKB).
		Float64("compression_pct", m.CompressionPct).
		Float64("encode_ms", m.EncodeTimeMs).
		Float64("dns_ms", m.DNSTimeMs).
		Float64("tls_ms", m.TLSTimeMs).
		Float64("ttfb_ms", m.TTFBMs).
		Float64("total_ms", m.TotalTimeMs).
		Msg("chunk_upload")
}

func Confidence(confidence float64) {
	if confidence > 0 {
		event(zerolog.DebugLevel).Float64("confidence", confidence).Msg("api_confidence")
	}
}

// StreamMetricsData describes one chunk decoded over a streaming socket.
type StreamMetricsData struct {
	ConnectMs    float64
	FinalizeMs   float64
	TotalMs      float64
	AudioS       float64
	SentChunks   int
	SentKB       float64
	RecvMessages int
	RecvFinal    int
	CommitEvents int
}

func StreamMetrics(m StreamMetricsData) {
	event(zerolog.InfoLevel).
		Float64("connect_ms", m.ConnectMs).
		Float64("finalize_ms", m.FinalizeMs).
		Float64("total_ms", m.TotalMs).
		Float64("audio_s", m.AudioS).
		Int("sent_chunks", m.SentChunks).
		Float64("sent_kb", m.SentKB).
		Int("recv_messages", m.RecvMessages).
		Int("recv_final", m.RecvFinal).
		Int("commit_events", m.CommitEvents).
		Msg("stream_decode")
}

func ModelPhase(phase string) {
	event(zerolog.InfoLevel).Str("phase", phase).Msg("model_phase")
}

// ChunkMetrics describes one decoded chunk. Dropped names the reason the
// text was discarded, if it was.
type ChunkMetrics struct {
	Session  string
	Final    bool
	AudioS   float64
	DecodeMs float64
	Chars    int
	Dropped  string
}

func Chunk(m ChunkMetrics) {
	ev := event(zerolog.InfoLevel).
		Str("session", m.Session).
		Bool("final", m.Final).
		Float64("audio_s", m.AudioS).
		Float64("decode_ms", m.DecodeMs).
		Int("chars", m.Chars)
	if m.Dropped != "" {
		ev = ev.Str("dropped", m.Dropped)
	}
	ev.Msg("chunk")
}

func SessionStart(session, backend, mode, language string) {
	event(zerolog.InfoLevel).
		Str("session", session).
		Str("backend", backend).
		Str("mode", mode).
		Str("language", language).
		Msg("session_start")
}

type SessionMetricsData struct {
	Session            string
	DurationS          float64
	Chunks             int
	Characters         int
	AvgChunkMs         float64
	FirstTextLatencyMs float64
	Injected           bool
}

func SessionEnd(m SessionMetricsData) {
	event(zerolog.InfoLevel).
		Str("session", m.Session).
		Float64("duration_s", m.DurationS).
		Int("chunks", m.Chunks).
		Int("chars", m.Characters).
		Float64("avg_chunk_ms", m.AvgChunkMs).
		Float64("first_text_ms", m.FirstTextLatencyMs).
		Bool("injected", m.Injected).
		Msg("session_end")
}
