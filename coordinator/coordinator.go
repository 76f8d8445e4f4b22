// Package coordinator assembles decoded chunks into the confirmed session
// transcript and decides what to inject after each one.
package coordinator

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"murmur/command"
	"murmur/history"
	"murmur/polish"
)

type Mode int

const (
	// Streaming types each confirmed chunk as it arrives.
	Streaming Mode = iota
	// OnRelease keeps the transcript on the clipboard and injects once,
	// after the recording stops.
	OnRelease
)

func (m Mode) String() string {
	if m == OnRelease {
		return "on_release"
	}
	return "streaming"
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "streaming", "stream", "":
		return Streaming, nil
	case "on_release", "onrelease", "release":
		return OnRelease, nil
	}
	return Streaming, fmt.Errorf("unknown injection mode %q", s)
}

type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionType
	ActionCopy
)

func (k ActionKind) String() string {
	switch k {
	case ActionType:
		return "type"
	case ActionCopy:
		return "copy"
	}
	return "none"
}

// Action tells the text sink what to do. For ActionType, Clipboard carries
// the full transcript as a fallback payload.
type Action struct {
	Kind      ActionKind
	Text      string
	Clipboard string
}

type Config struct {
	Polish        polish.Mode
	SentencePause time.Duration
	CommaPause    time.Duration
	HistoryLimit  int
}

func DefaultConfig() Config {
	return Config{
		Polish:        polish.Fluent,
		SentencePause: 1100 * time.Millisecond,
		CommaPause:    550 * time.Millisecond,
		HistoryLimit:  history.DefaultLimit,
	}
}

type Metrics struct {
	ChunkCount               int
	TotalCharacters          int
	LastChunkProcessingMs    float64
	AverageChunkProcessingMs float64
	FirstTextLatencyMs       float64
	HasFirstText             bool

	samples int
}

func (m *Metrics) recordProcessing(d time.Duration) {
	ms := float64(d) / float64(time.Millisecond)
	m.LastChunkProcessingMs = ms
	m.samples++
	m.AverageChunkProcessingMs += (ms - m.AverageChunkProcessingMs) / float64(m.samples)
}

// Final is one decoded chunk handed to ConsumeFinal.
type Final struct {
	Text               string
	Mode               Mode
	Confirmed          string
	RecordingStartedAt time.Time
	ChunkStartedAt     time.Time
	Now                time.Time
}

type Outcome struct {
	Confirmed string
	Partial   string
	Action    Action
	// Command is set when the chunk was an editing command.
	Command command.Kind
}

// Coordinator is not safe for concurrent use; a single session owner
// drives it.
type Coordinator struct {
	cfg         Config
	history     *history.Stack
	lastChunkAt time.Time
	metrics     Metrics
}

func New(cfg Config) *Coordinator {
	return &Coordinator{cfg: cfg, history: history.New(cfg.HistoryLimit)}
}

// ResetSession starts a new recording session and returns the empty
// confirmed and partial texts.
func (c *Coordinator) ResetSession() (confirmed, partial string) {
	c.history.Reset()
	c.lastChunkAt = time.Time{}
	c.metrics = Metrics{}
	return "", ""
}

// ConsumePartial returns the live preview for an in-flight decode. The
// confirmed transcript is never touched.
func (c *Coordinator) ConsumePartial(text, confirmed string) string {
	return text
}

func (c *Coordinator) ConsumeFinal(f Final) Outcome {
	out := Outcome{Confirmed: f.Confirmed}

	if f.Mode == OnRelease {
		if cmd, ok := command.Interpret(f.Text); ok {
			out.Command = cmd.Kind
			if cmd.Kind == command.Correction && !f.ChunkStartedAt.IsZero() {
				c.metrics.recordProcessing(f.Now.Sub(f.ChunkStartedAt))
			}
			next, changed := c.history.Apply(cmd, f.Confirmed)
			if changed {
				out.Confirmed = next
				out.Action = Action{Kind: ActionCopy, Text: next}
			}
			return out
		}
	}

	isFirst := strings.TrimSpace(f.Confirmed) == ""
	polished := polish.ProcessChunk(f.Text, c.cfg.Polish, isFirst)
	// A chunk that is only a dictated line break still counts.
	if strings.Trim(polished, " \t") == "" {
		return out
	}

	sep := ""
	if !isFirst {
		sep = c.separator(f.Confirmed, polished, f.Now)
		if sep == "." || endsSentence(f.Confirmed) {
			polished = polish.CapitalizeFirst(polished)
		}
	}
	next := join(f.Confirmed, sep, polished)

	c.history.Snapshot(f.Confirmed)
	c.lastChunkAt = f.Now
	c.metrics.ChunkCount++
	c.metrics.TotalCharacters += len([]rune(polished))
	if !f.ChunkStartedAt.IsZero() {
		c.metrics.recordProcessing(f.Now.Sub(f.ChunkStartedAt))
	}
	if !c.metrics.HasFirstText && !f.RecordingStartedAt.IsZero() {
		c.metrics.FirstTextLatencyMs = float64(f.Now.Sub(f.RecordingStartedAt)) / float64(time.Millisecond)
		c.metrics.HasFirstText = true
	}

	out.Confirmed = next
	switch f.Mode {
	case OnRelease:
		out.Action = Action{Kind: ActionCopy, Text: next}
	default:
		out.Action = Action{Kind: ActionType, Text: next[len(strings.TrimRightFunc(f.Confirmed, isBlank)):], Clipboard: next}
	}
	return out
}

// separator picks the mark inserted between the confirmed text and a new
// chunk from the pause since the previous chunk.
func (c *Coordinator) separator(confirmed, chunk string, now time.Time) string {
	trimmed := strings.TrimRightFunc(confirmed, isBlank)
	if trimmed == "" || strings.HasSuffix(trimmed, "\n") || endsWithPunct(trimmed) {
		return ""
	}
	if r := firstRune(chunk); unicode.IsPunct(r) && r != '¿' && r != '¡' {
		return ""
	}
	if c.lastChunkAt.IsZero() {
		return ""
	}
	switch gap := now.Sub(c.lastChunkAt); {
	case gap >= c.cfg.SentencePause:
		return "."
	case gap >= c.cfg.CommaPause:
		return ","
	}
	return ""
}

func join(confirmed, sep, chunk string) string {
	base := strings.TrimRightFunc(confirmed, isBlank)
	if base == "" {
		return chunk
	}
	base += sep
	if strings.HasSuffix(base, "\n") || strings.HasPrefix(chunk, "\n") {
		return base + chunk
	}
	if r := firstRune(chunk); unicode.IsPunct(r) && r != '¿' && r != '¡' && r != '"' && r != '(' {
		return base + chunk
	}
	return base + " " + chunk
}

// FinalizedOnReleaseText picks the text to inject when an on-release
// recording stops: the confirmed transcript, else the last partial.
func (c *Coordinator) FinalizedOnReleaseText(confirmed, partial string) (string, bool) {
	src := confirmed
	if strings.TrimSpace(src) == "" {
		src = partial
	}
	if strings.TrimSpace(src) == "" {
		return "", false
	}
	out := polish.ProcessFinal(src, c.cfg.Polish)
	if out == "" {
		return "", false
	}
	return out, true
}

func (c *Coordinator) Metrics() Metrics {
	return c.metrics
}

func isBlank(r rune) bool {
	return r == ' ' || r == '\t'
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}

func endsWithPunct(s string) bool {
	s = strings.TrimRight(s, " \t")
	if s == "" {
		return false
	}
	return strings.ContainsRune(".!?,;:…", []rune(s)[len([]rune(s))-1])
}

func endsSentence(s string) bool {
	s = strings.TrimRight(s, " \t")
	if s == "" {
		return false
	}
	last := []rune(s)[len([]rune(s))-1]
	return last == '.' || last == '!' || last == '?' || last == '…' || last == '\n'
}
