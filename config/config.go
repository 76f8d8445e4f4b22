// Package config holds the murmur configuration file schema, its defaults
// and validation. API keys never live here; they come from the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"murmur/chunker"
	"murmur/coordinator"
	"murmur/polish"
	"murmur/session"
)

var ValidBackends = []string{"", "groq", "openai", "deepgram", "whisper"}

type Config struct {
	// Backend is empty for auto-selection from the available API keys.
	Backend  string `yaml:"backend"`
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
	ModelDir string `yaml:"model_dir"`

	Mode   string `yaml:"mode"`
	Polish string `yaml:"polish"`

	Chunk  Chunk  `yaml:"chunk"`
	Pauses Pauses `yaml:"pauses"`

	HistoryLimit     int           `yaml:"history_limit"`
	StopGrace        time.Duration `yaml:"stop_grace"`
	ModelLoadTimeout time.Duration `yaml:"model_load_timeout"`
	WarmupRetry      time.Duration `yaml:"warmup_retry"`

	Silence Silence `yaml:"silence"`
	Enhance Enhance `yaml:"enhance"`
}

type Chunk struct {
	Duration       time.Duration `yaml:"duration"`
	Overlap        time.Duration `yaml:"overlap"`
	MinFinalize    time.Duration `yaml:"min_finalize"`
	FinalizeWindow time.Duration `yaml:"finalize_window"`
}

type Pauses struct {
	Sentence time.Duration `yaml:"sentence"`
	Comma    time.Duration `yaml:"comma"`
}

type Silence struct {
	AutoStop      bool          `yaml:"auto_stop"`
	Threshold     float64       `yaml:"threshold"`
	AutoStopAfter time.Duration `yaml:"auto_stop_after"`
}

type Enhance struct {
	Enabled      bool          `yaml:"enabled"`
	Model        string        `yaml:"model"`
	BaseURL      string        `yaml:"base_url"`
	LanguageHint string        `yaml:"language_hint"`
	Timeout      time.Duration `yaml:"timeout"`
}

func Default() *Config {
	ch := chunker.DefaultConfig()
	co := coordinator.DefaultConfig()
	lc := session.DefaultLifecycleConfig()
	sc := session.DefaultSilenceConfig()
	return &Config{
		Language: "en",
		Mode:     coordinator.Streaming.String(),
		Polish:   polish.Fluent.String(),
		Chunk: Chunk{
			Duration:       ch.ChunkDuration,
			Overlap:        ch.Overlap,
			MinFinalize:    ch.MinFinalize,
			FinalizeWindow: ch.FinalizeWindow,
		},
		Pauses: Pauses{
			Sentence: co.SentencePause,
			Comma:    co.CommaPause,
		},
		HistoryLimit:     co.HistoryLimit,
		StopGrace:        250 * time.Millisecond,
		ModelLoadTimeout: lc.LoadTimeout,
		WarmupRetry:      lc.RetryDelay,
		Silence: Silence{
			Threshold:     sc.Threshold,
			AutoStopAfter: sc.AutoStopAfter,
		},
		Enhance: Enhance{
			Timeout: 10 * time.Second,
		},
	}
}

// Load reads the YAML file at path over the defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r over the defaults and validates the
// result. Unknown keys are an error.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate returns a joined error listing every problem in cfg.
func Validate(cfg *Config) error {
	var errs []error

	if !slices.Contains(ValidBackends, cfg.Backend) {
		errs = append(errs, fmt.Errorf("backend %q is invalid; valid values: groq, openai, deepgram, whisper", cfg.Backend))
	}
	if _, err := coordinator.ParseMode(cfg.Mode); err != nil {
		errs = append(errs, fmt.Errorf("mode: %w", err))
	}
	if _, err := polish.ParseMode(cfg.Polish); err != nil {
		errs = append(errs, fmt.Errorf("polish: %w", err))
	}

	if cfg.Chunk.Duration <= 0 {
		errs = append(errs, fmt.Errorf("chunk.duration must be positive"))
	}
	if cfg.Chunk.Overlap < 0 || cfg.Chunk.Overlap >= cfg.Chunk.Duration {
		errs = append(errs, fmt.Errorf("chunk.overlap %s must be in [0, chunk.duration)", cfg.Chunk.Overlap))
	}
	if cfg.Chunk.MinFinalize < 0 {
		errs = append(errs, fmt.Errorf("chunk.min_finalize must not be negative"))
	}
	if cfg.Chunk.FinalizeWindow < cfg.Chunk.Duration {
		errs = append(errs, fmt.Errorf("chunk.finalize_window %s is shorter than chunk.duration", cfg.Chunk.FinalizeWindow))
	}

	if cfg.Pauses.Comma <= 0 || cfg.Pauses.Sentence <= 0 {
		errs = append(errs, fmt.Errorf("pauses must be positive"))
	} else if cfg.Pauses.Comma > cfg.Pauses.Sentence {
		errs = append(errs, fmt.Errorf("pauses.comma %s exceeds pauses.sentence %s", cfg.Pauses.Comma, cfg.Pauses.Sentence))
	}

	if cfg.HistoryLimit < 1 {
		errs = append(errs, fmt.Errorf("history_limit %d must be at least 1", cfg.HistoryLimit))
	}
	if cfg.StopGrace < 0 {
		errs = append(errs, fmt.Errorf("stop_grace must not be negative"))
	}
	if cfg.ModelLoadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("model_load_timeout must be positive"))
	}
	if cfg.WarmupRetry <= 0 {
		errs = append(errs, fmt.Errorf("warmup_retry must be positive"))
	}

	if cfg.Silence.Threshold < 0 || cfg.Silence.Threshold > 1 {
		errs = append(errs, fmt.Errorf("silence.threshold %.3f is out of range [0, 1]", cfg.Silence.Threshold))
	}
	if cfg.Silence.AutoStop && cfg.Silence.AutoStopAfter <= 0 {
		errs = append(errs, fmt.Errorf("silence.auto_stop_after must be positive when auto_stop is on"))
	}
	if cfg.Enhance.Enabled && cfg.Enhance.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("enhance.timeout must be positive when enhance is enabled"))
	}

	return errors.Join(errs...)
}

// InjectionMode returns the parsed mode; cfg must have passed Validate.
func (c *Config) InjectionMode() coordinator.Mode {
	m, _ := coordinator.ParseMode(c.Mode)
	return m
}

func (c *Config) PolishMode() polish.Mode {
	m, _ := polish.ParseMode(c.Polish)
	return m
}

func (c *Config) ChunkerConfig() chunker.Config {
	cc := chunker.DefaultConfig()
	cc.ChunkDuration = c.Chunk.Duration
	cc.Overlap = c.Chunk.Overlap
	cc.MinFinalize = c.Chunk.MinFinalize
	cc.FinalizeWindow = c.Chunk.FinalizeWindow
	return cc
}

func (c *Config) CoordinatorConfig() coordinator.Config {
	return coordinator.Config{
		Polish:        c.PolishMode(),
		SentencePause: c.Pauses.Sentence,
		CommaPause:    c.Pauses.Comma,
		HistoryLimit:  c.HistoryLimit,
	}
}

func (c *Config) SilenceConfig() session.SilenceConfig {
	sc := session.DefaultSilenceConfig()
	sc.Threshold = c.Silence.Threshold
	if c.Silence.AutoStopAfter > 0 {
		sc.AutoStopAfter = c.Silence.AutoStopAfter
	}
	return sc
}
