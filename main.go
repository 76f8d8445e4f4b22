package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"murmur/audio"
	"murmur/config"
	"murmur/dictation"
	"murmur/encoder"
	"murmur/enhance"
	"murmur/hotkey"
	"murmur/inject"
	"murmur/log"
	"murmur/observe"
	"murmur/session"
	"murmur/shutdown"
	"murmur/transcriber"
)

var version = "dev"

type flags struct {
	config    string
	logPath   string
	backend   string
	mode      string
	lang      string
	device    string
	setup     bool
	longPress time.Duration
	test      string
	check     bool
	version   bool
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.config, "config", "", "YAML config file (default: built-in defaults)")
	flag.StringVar(&f.logPath, "logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	flag.StringVar(&f.backend, "backend", "", "Decoder backend: groq, openai, deepgram or whisper (overrides config)")
	flag.StringVar(&f.mode, "mode", "", "Injection mode: streaming or on_release (overrides config)")
	flag.StringVar(&f.lang, "lang", "", "Language code for transcription (e.g., en, es). Overrides config")
	flag.StringVar(&f.device, "device", "", "Use named microphone device")
	flag.BoolVar(&f.setup, "setup", false, "Select microphone device interactively")
	flag.DurationVar(&f.longPress, "longpress", 350*time.Millisecond, "Hold longer than this for push-to-talk; shorter taps toggle")
	flag.StringVar(&f.test, "test", "", "Replay a WAV file, driven by KEYDOWN/KEYUP/WAIT/QUIT on stdin")
	flag.BoolVar(&f.check, "check", false, "Check devices, permissions and configuration, then exit")
	flag.BoolVar(&f.version, "version", false, "Print version and exit")
	flag.Parse()
	return f
}

// loadConfig reads the config file, applies flag overrides and validates
// the result.
func loadConfig(f flags) (*config.Config, error) {
	cfg := config.Default()
	if f.config != "" {
		var err error
		if cfg, err = config.Load(f.config); err != nil {
			return nil, err
		}
	}
	if f.backend != "" {
		cfg.Backend = f.backend
	}
	if f.mode != "" {
		cfg.Mode = f.mode
	}
	if f.lang != "" {
		cfg.Language = f.lang
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func initCrashLog() {
	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(crashFile, debug.CrashOptions{})
}

func run() {
	f := parseFlags()
	if f.version {
		fmt.Printf("murmur %s\n", version)
		os.Exit(0)
	}

	logPath, err := log.ResolveDir(f.logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}
	initCrashLog()
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	cfg, err := loadConfig(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	dec, err := transcriber.New(transcriber.Options{
		Backend:  cfg.Backend,
		Model:    cfg.Model,
		ModelDir: cfg.ModelDir,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := shutdown.Context(context.Background())
	defer stop()

	if f.test != "" {
		if err := runTestMode(ctx, cfg, dec, f.test, f.longPress); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	actx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing audio context: %v\n", err)
		os.Exit(1)
	}
	defer actx.Close()

	perms := inject.NewPermissions(func() (int, error) { return audio.DeviceCount(actx) })
	if f.check {
		os.Exit(runCheck(cfg, dec, perms))
	}

	device, err := pickDevice(actx, f.device, f.setup)
	if errors.Is(err, audio.ErrSelectionCancelled) {
		os.Exit(130)
	}
	if err != nil {
		log.Warnf("device selection failed: %v", err)
		fmt.Fprintf(os.Stderr, "Warning: device selection failed: %v, using the default device\n", err)
	}
	if device != nil && audio.IsBluetooth(device.Name) {
		fmt.Fprintf(os.Stderr, "Warning: %s looks like a Bluetooth headset; expect lower accuracy\n", device.Name)
	}
	capture, err := actx.NewCapture(device, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err != nil {
		log.Errorf("capture device init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing capture device: %v\n", err)
		os.Exit(1)
	}
	defer capture.Close()

	if err := inject.InitKeyboard(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: paste init failed: %v\n", err)
		fmt.Fprintln(os.Stderr, "Fix with: sudo chmod 660 /dev/uinput && sudo chgrp input /dev/uinput")
	}

	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		log.Errorf("hotkey register error: %v", err)
		fmt.Fprintf(os.Stderr, "Error registering hotkey: %v\n", err)
		os.Exit(1)
	}
	defer hk.Unregister()

	a := newApp(cfg, dec, inject.NewClipboard(), perms)
	fmt.Printf("murmur %s ready: %s, %s mode. Hold or tap Ctrl+Shift+Space to dictate.\n", version, dec.Name(), cfg.Mode)
	if err := a.run(ctx, hk, capture, f.longPress, nil); err != nil {
		log.Errorf("run: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func pickDevice(actx audio.Context, name string, setup bool) (*audio.DeviceInfo, error) {
	if setup && name == "" {
		return audio.SelectDevice(actx)
	}
	if name == "" {
		return nil, nil
	}
	devices, err := actx.Devices()
	if err != nil {
		return nil, err
	}
	for i := range devices {
		if devices[i].Name == name {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("device %q not found", name)
}

// app wires one engine, its lifecycle gates and the trigger together.
type app struct {
	cfg    *config.Config
	dec    transcriber.Transcriber
	sink   inject.Sink
	perms  session.Permissions
	models *session.ModelLifecycle
	opts   []dictation.Option
}

func newApp(cfg *config.Config, dec transcriber.Transcriber, sink inject.Sink, perms session.Permissions) *app {
	lc := session.DefaultLifecycleConfig()
	lc.ModelID = cfg.Model
	lc.Language = cfg.Language
	lc.LoadTimeout = cfg.ModelLoadTimeout
	lc.RetryDelay = cfg.WarmupRetry
	lc.Metrics = observe.Default()
	lc.OnPhase = func(p transcriber.Phase) {
		if p.Kind == transcriber.PhaseError {
			fmt.Fprintf(os.Stderr, "Model %s\n", p)
		}
	}

	a := &app{
		cfg:    cfg,
		dec:    dec,
		sink:   sink,
		perms:  perms,
		models: session.NewModelLifecycle(dec, lc),
	}
	if cfg.Enhance.Enabled {
		e, err := enhance.NewOpenAI(enhance.Config{
			BaseURL:      cfg.Enhance.BaseURL,
			Model:        cfg.Enhance.Model,
			LanguageHint: cfg.Enhance.LanguageHint,
		})
		if err != nil {
			log.Warnf("enhance disabled: %v", err)
			fmt.Fprintf(os.Stderr, "Warning: enhance disabled: %v\n", err)
		} else {
			a.opts = append(a.opts, dictation.WithEnhancer(e))
		}
	}
	return a
}

func (a *app) engineConfig(hy *hotkey.Hybrid, onSilence func(session.SilenceEvent)) dictation.Config {
	dc := dictation.DefaultConfig()
	dc.Mode = a.cfg.InjectionMode()
	dc.Coordinator = a.cfg.CoordinatorConfig()
	dc.Chunker = a.cfg.ChunkerConfig()
	dc.Language = a.cfg.Language
	dc.StopGrace = a.cfg.StopGrace
	dc.EnhanceTimeout = a.cfg.Enhance.Timeout
	sc := a.cfg.SilenceConfig()
	dc.Silence = &sc
	dc.IsToggle = func() bool { return a.cfg.Silence.AutoStop && hy.IsToggle() }
	dc.OnSilence = onSilence
	return dc
}

// run drives recordings from hk until ctx is done. stopped, when set,
// receives a value after every finished recording.
func (a *app) run(ctx context.Context, hk hotkey.Hotkey, capture audio.CaptureDevice, longPress time.Duration, stopped chan<- struct{}) error {
	defer a.models.Close()

	g, ctx := errgroup.WithContext(ctx)
	hy := hotkey.NewHybrid(ctx, hk, longPress)

	var ctrl *session.Controller
	stopRecording := func() {
		d, err := ctrl.RequestStop(ctx)
		if err != nil {
			log.Errorf("stop recording: %v", err)
		}
		log.Info("recording_stop: " + d.String())
		if stopped != nil {
			select {
			case stopped <- struct{}{}:
			default:
			}
		}
	}

	engine := dictation.New(a.engineConfig(hy, func(ev session.SilenceEvent) {
		switch ev {
		case session.SilenceWarn:
			fmt.Fprintln(os.Stderr, "No speech detected. Check your microphone.")
		case session.SilenceAutoStop:
			hy.Cancel()
			go stopRecording()
		}
	}), a.dec, a.sink, a.opts...)
	rec := &captureRecorder{engine: engine, capture: capture, onResult: printResult}
	ctrl = session.NewController(a.cfg.InjectionMode(), a.models, a.perms, rec)

	g.Go(func() error { return engine.Run(ctx) })
	g.Go(func() error {
		for u := range engine.Updates() {
			if u.Partial != "" {
				log.Debugf("partial: %s", u.Partial)
			}
		}
		return nil
	})
	g.Go(func() error {
		a.models.EnsureModelWarmInBackground(ctx)
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev := <-hy.Start():
				log.Info("hotkey_start_" + string(ev.Mode))
				d, err := ctrl.RequestStart(ctx)
				if err != nil {
					reportStartError(d, err)
				}
			case <-hy.StopChan():
				stopRecording()
			}
		}
	})
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func reportStartError(d session.StartDecision, err error) {
	log.Warnf("recording start: %s: %v", d, err)
	switch {
	case errors.Is(err, session.ErrMicrophonePermission):
		fmt.Fprintln(os.Stderr, "No microphone available. Connect one or grant access.")
	case errors.Is(err, session.ErrAccessibilityPermission):
		fmt.Fprintln(os.Stderr, "Cannot synthesize keystrokes. Fix with: sudo chmod 660 /dev/uinput && sudo chgrp input /dev/uinput")
	case errors.Is(err, session.ErrAlreadyRecording):
	default:
		fmt.Fprintf(os.Stderr, "Error recording: %v\n", err)
	}
}

func printResult(res dictation.Result) {
	if res.Text == "" {
		return
	}
	id := res.Session
	if len(id) > 8 {
		id = id[:8]
	}
	fmt.Printf("[%s] %s\n", id, res.Text)
}

// runCheck reports whether the pieces a recording needs are in place.
func runCheck(cfg *config.Config, dec transcriber.Transcriber, perms session.Permissions) int {
	status := 0
	check := func(name string, ok bool, detail string) {
		mark := "ok"
		if !ok {
			mark = "FAIL"
			status = 1
		}
		fmt.Printf("%-14s %-4s %s\n", name, mark, detail)
	}

	check("backend", true, dec.Name())
	check("mode", true, cfg.InjectionMode().String()+", polish "+cfg.PolishMode().String())
	check("microphone", perms.Microphone(), "capture device present")
	check("accessibility", perms.Accessibility(), "keystroke synthesizer")
	msg, err := hotkey.Diagnose()
	if err != nil {
		msg = err.Error()
	}
	check("hotkey", err == nil, msg)

	lc := session.DefaultLifecycleConfig()
	lc.ModelID = cfg.Model
	lc.Language = cfg.Language
	lc.LoadTimeout = cfg.ModelLoadTimeout
	models := session.NewModelLifecycle(dec, lc)
	err = models.Load(context.Background())
	models.Close()
	detail := models.Phase().String()
	if err != nil {
		detail = err.Error()
	}
	check("model", err == nil, detail)
	if cfg.Enhance.Enabled {
		_, err := enhance.NewOpenAI(enhance.Config{})
		check("enhance", err == nil, "OPENAI_API_KEY")
	}
	return status
}
