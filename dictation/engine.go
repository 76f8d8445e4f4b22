// Package dictation runs a recording session end to end: audio is chunked,
// decoded, filtered and reconciled into one confirmed transcript that is
// injected as it grows or once on release.
//
// The Engine is a single-writer actor. Decode goroutines, the stop sequence
// and callers only send events into Run; the transcript, the coordinator
// and its history are touched by the Run goroutine alone.
package dictation

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"murmur/chunker"
	"murmur/command"
	"murmur/coordinator"
	"murmur/enhance"
	"murmur/hallucination"
	"murmur/inject"
	"murmur/log"
	"murmur/observe"
	"murmur/reconcile"
	"murmur/session"
	"murmur/transcriber"
)

var (
	ErrNotRunning   = errors.New("dictation engine is not running")
	ErrNotRecording = errors.New("not recording")
)

type Config struct {
	Mode        coordinator.Mode
	Coordinator coordinator.Config
	Chunker     chunker.Config
	Language    string
	// StopGrace lets in-flight capture frames land before the stop
	// sequence drains the accumulator.
	StopGrace time.Duration
	// OverlapWords bounds how many leading words of a chunk may be dropped
	// as a re-decode of the chunk overlap.
	OverlapWords   int
	EnhanceTimeout time.Duration

	// Silence enables the silence monitor when non-nil. IsToggle reports
	// whether the current recording is hands-free.
	Silence  *session.SilenceConfig
	IsToggle func() bool
	// OnSilence receives silence monitor events.
	OnSilence func(session.SilenceEvent)
}

func DefaultConfig() Config {
	return Config{
		Mode:           coordinator.Streaming,
		Coordinator:    coordinator.DefaultConfig(),
		Chunker:        chunker.DefaultConfig(),
		Language:       "en",
		StopGrace:      250 * time.Millisecond,
		OverlapWords:   3,
		EnhanceTimeout: 10 * time.Second,
	}
}

// Update is a live view of the session, published after every change.
// Final is set once, after the session's last injection.
type Update struct {
	Session   string
	Confirmed string
	Partial   string
	Final     bool
}

// State is a consistent snapshot taken by the Run goroutine.
type State struct {
	Session   string
	Recording bool
	Confirmed string
	Partial   string
	Metrics   coordinator.Metrics
}

// Result describes a finished session.
type Result struct {
	Session string
	// Text is what was injected at stop (on-release) or the confirmed
	// transcript (streaming).
	Text     string
	Injected bool
}

type Engine struct {
	cfg      Config
	dec      transcriber.Transcriber
	sink     inject.Sink
	enhancer enhance.Enhancer
	metrics  *observe.Metrics
	acc      *chunker.Accumulator

	now   func() time.Time
	sleep func(context.Context, time.Duration) error

	ctx    context.Context
	cancel context.CancelFunc

	events  chan event
	updates chan Update
	silence chan context.Context
	done    chan struct{}

	gen       atomic.Uint64
	recording atomic.Bool
	level     atomic.Uint64

	stopMu      sync.Mutex
	stopSilence context.CancelFunc

	// Owned by the Run goroutine.
	coord     *coordinator.Coordinator
	sessionID string
	startedAt time.Time
	confirmed string
	partial   string
}

type Option func(*Engine)

// WithEnhancer runs e over the on-release text before it is injected.
func WithEnhancer(e enhance.Enhancer) Option {
	return func(en *Engine) { en.enhancer = e }
}

func WithMetrics(m *observe.Metrics) Option {
	return func(en *Engine) { en.metrics = m }
}

func withClock(now func() time.Time) Option {
	return func(en *Engine) { en.now = now }
}

func New(cfg Config, dec transcriber.Transcriber, sink inject.Sink, opts ...Option) *Engine {
	if cfg.OverlapWords <= 0 {
		cfg.OverlapWords = DefaultConfig().OverlapWords
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:     cfg,
		dec:     dec,
		sink:    sink,
		metrics: observe.Default(),
		now:     time.Now,
		sleep:   sleepCtx,
		ctx:     ctx,
		cancel:  cancel,
		events:  make(chan event, 64),
		updates: make(chan Update, 16),
		silence: make(chan context.Context, 1),
		done:    make(chan struct{}),
		coord:   coordinator.New(cfg.Coordinator),
	}
	for _, o := range opts {
		o(e)
	}
	e.acc = chunker.New(cfg.Chunker, e.decodeChunk)
	return e
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Updates delivers live session views. Slow readers miss intermediate
// updates; the channel is closed when Run returns.
func (e *Engine) Updates() <-chan Update {
	return e.updates
}

// Run applies events until ctx is done. It must be running for Start, Stop
// and State to make progress.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.updates)
	defer close(e.done)
	defer e.cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.loop(ctx) })
	g.Go(func() error { return e.watchSilence(ctx) })
	err := g.Wait()
	e.cancel()
	// A decode may still be running against the cancelled context.
	e.acc.FlushProcessing(context.Background())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (e *Engine) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-e.events:
			ev.apply(e)
		}
	}
}

func (e *Engine) watchSilence(ctx context.Context) error {
	if e.cfg.Silence == nil {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case sctx := <-e.silence:
			wctx, cancel := context.WithCancel(sctx)
			stop := context.AfterFunc(ctx, cancel)
			session.WatchSilence(wctx, *e.cfg.Silence, e.cfg.IsToggle, e.Level, func(ev session.SilenceEvent) {
				log.Info(ev.String())
				if e.cfg.OnSilence != nil {
					e.cfg.OnSilence(ev)
				}
			})
			stop()
			cancel()
		}
	}
}

// send hands ev to the Run goroutine.
func (e *Engine) send(ctx context.Context, ev event) error {
	select {
	case <-e.done:
		return ErrNotRunning
	default:
	}
	select {
	case e.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrNotRunning
	}
}

func (e *Engine) publish(u Update) {
	select {
	case e.updates <- u:
	default:
	}
}

// Feed delivers captured audio. It never blocks on decoding and is a no-op
// while not recording.
func (e *Engine) Feed(samples []float32, level float64) {
	if !e.recording.Load() {
		return
	}
	e.level.Store(math.Float64bits(level))
	e.acc.Feed(samples)
}

// Level is the RMS level of the last fed buffer.
func (e *Engine) Level() float64 {
	return math.Float64frombits(e.level.Load())
}

func (e *Engine) Recording() bool {
	return e.recording.Load()
}

// State returns a snapshot of the current session.
func (e *Engine) State(ctx context.Context) (State, error) {
	reply := make(chan State, 1)
	if err := e.send(ctx, stateQuery{reply: reply}); err != nil {
		return State{}, err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return State{}, ctx.Err()
	case <-e.done:
		return State{}, ErrNotRunning
	}
}

// StartRecording begins a new session. It implements session.Recorder.
func (e *Engine) StartRecording(ctx context.Context, startedAt time.Time) error {
	reply := make(chan error, 1)
	if err := e.send(ctx, startCmd{startedAt: startedAt, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrNotRunning
	}
}

// StopRecording implements session.Recorder.
func (e *Engine) StopRecording(ctx context.Context, finalize bool) error {
	_, err := e.Stop(ctx, finalize)
	return err
}

// Stop ends the session: after the grace period, automatic dispatch stops
// and the in-flight decode is awaited. With finalize, the session tail is
// re-decoded, reconciled and injected once; otherwise the undispatched
// remainder is decoded as a last streaming chunk. The stop itself is
// queued behind every earlier decode result.
func (e *Engine) Stop(ctx context.Context, finalize bool) (Result, error) {
	if !e.recording.Load() {
		return Result{}, ErrNotRecording
	}
	if err := e.sleep(ctx, e.cfg.StopGrace); err != nil {
		return Result{}, err
	}
	e.recording.Store(false)
	e.stopMu.Lock()
	if e.stopSilence != nil {
		e.stopSilence()
		e.stopSilence = nil
	}
	e.stopMu.Unlock()

	e.acc.PrepareForFinalize()
	if err := e.acc.FlushProcessing(ctx); err != nil {
		return Result{}, err
	}

	var (
		samples []float32
		ok      bool
	)
	if finalize {
		samples, ok = e.acc.Finalize()
	} else {
		samples, ok = e.acc.FlushPending()
	}

	cmd := stopCmd{finalize: finalize, reply: make(chan stopReply, 1)}
	if ok {
		cmd.audioS = float64(len(samples)) / float64(e.cfg.Chunker.SampleRate)
		cmd.chunkAt = e.now()
		cmd.text, cmd.err = e.decode(ctx, e.gen.Load(), samples)
	}
	if err := e.send(ctx, cmd); err != nil {
		return Result{}, err
	}
	var r stopReply
	select {
	case r = <-cmd.reply:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-e.done:
		return Result{}, ErrNotRunning
	}

	res := Result{Session: r.session, Text: r.text, Injected: r.injected}
	if finalize && r.ok {
		res.Text = enhance.Apply(ctx, e.enhancer, r.text, e.cfg.Language, e.cfg.EnhanceTimeout, e.metrics)
		if err := e.sink.TypeText(res.Text, res.Text); err != nil {
			log.Errorf("inject final text: %v", err)
		} else {
			res.Injected = true
			log.TranscriptionText(res.Text)
		}
	}

	m := r.metrics
	log.SessionEnd(log.SessionMetricsData{
		Session:            r.session,
		DurationS:          r.duration.Seconds(),
		Chunks:             m.ChunkCount,
		Characters:         m.TotalCharacters,
		AvgChunkMs:         m.AverageChunkProcessingMs,
		FirstTextLatencyMs: m.FirstTextLatencyMs,
		Injected:           res.Injected,
	})
	e.metrics.SessionEnded(context.Background())
	e.send(ctx, publishEvent{Update{Session: r.session, Confirmed: res.Text, Final: true}})
	return res, nil
}

// decodeChunk is the accumulator's process callback. It runs on the
// accumulator's goroutine, one chunk at a time.
func (e *Engine) decodeChunk(samples []float32) {
	gen := e.gen.Load()
	chunkAt := e.now()
	text, err := e.decode(e.ctx, gen, samples)
	e.send(e.ctx, finalEvent{
		gen:     gen,
		text:    text,
		err:     err,
		chunkAt: chunkAt,
		audioS:  float64(len(samples)) / float64(e.cfg.Chunker.SampleRate),
	})
}

func (e *Engine) decode(ctx context.Context, gen uint64, samples []float32) (string, error) {
	start := time.Now()
	text, err := e.dec.Decode(ctx, samples, e.cfg.Language, func(p string) {
		e.send(ctx, partialEvent{gen: gen, text: p})
	})
	e.metrics.RecordDecode(context.Background(), e.dec.Name(), time.Since(start), err)
	return text, err
}

// The methods below run on the Run goroutine only.

func (e *Engine) begin(startedAt time.Time) error {
	if e.recording.Load() {
		return session.ErrAlreadyRecording
	}
	e.confirmed, e.partial = e.coord.ResetSession()
	e.sessionID = uuid.NewString()
	e.startedAt = startedAt
	e.gen.Add(1)
	e.acc.Reset()
	e.level.Store(0)
	e.recording.Store(true)

	if e.cfg.Silence != nil {
		sctx, cancel := context.WithCancel(e.ctx)
		e.stopMu.Lock()
		e.stopSilence = cancel
		e.stopMu.Unlock()
		select {
		case e.silence <- sctx:
		default:
			cancel()
		}
	}

	log.SessionStart(e.sessionID, e.dec.Name(), e.cfg.Mode.String(), e.cfg.Language)
	e.metrics.SessionStarted(context.Background(), e.cfg.Mode.String())
	e.publish(Update{Session: e.sessionID})
	return nil
}

func (e *Engine) applyPartial(ev partialEvent) {
	if ev.gen != e.gen.Load() {
		return
	}
	e.partial = e.coord.ConsumePartial(ev.text, e.confirmed)
	e.publish(Update{Session: e.sessionID, Confirmed: e.confirmed, Partial: e.partial})
}

// applyFinal runs one decoded chunk through the filter, the overlap trim
// and the coordinator, then injects the resulting action. Failures drop
// the chunk and never end the session.
func (e *Engine) applyFinal(ev finalEvent) {
	cm := log.ChunkMetrics{
		Session:  e.sessionID,
		AudioS:   ev.audioS,
		DecodeMs: float64(e.now().Sub(ev.chunkAt).Milliseconds()),
	}
	if ev.gen != e.gen.Load() {
		return
	}
	drop := func(reason string) {
		cm.Dropped = reason
		log.Chunk(cm)
		e.metrics.RecordDropped(context.Background(), reason)
	}
	if ev.err != nil {
		log.Errorf("decode chunk: %v", ev.err)
		drop(observe.ReasonDecodeError)
		return
	}
	if ev.text == "" {
		drop(observe.ReasonEmpty)
		return
	}
	text, ok := hallucination.Filter(ev.text)
	if !ok {
		drop(observe.ReasonHallucination)
		return
	}
	if !ev.reconciled {
		text = reconcile.TrimOverlap(text, e.confirmed, e.cfg.OverlapWords)
	}

	out := e.coord.ConsumeFinal(coordinator.Final{
		Text:               text,
		Mode:               e.cfg.Mode,
		Confirmed:          e.confirmed,
		RecordingStartedAt: e.startedAt,
		ChunkStartedAt:     ev.chunkAt,
		Now:                e.now(),
	})
	if out.Command != command.None {
		e.metrics.RecordCommand(context.Background(), out.Command.String(), out.Action.Kind != coordinator.ActionNone)
		log.Infof("command %s applied=%t", out.Command, out.Action.Kind != coordinator.ActionNone)
	} else if out.Action.Kind == coordinator.ActionNone {
		drop(observe.ReasonEmpty)
		return
	}

	grew := len(out.Confirmed) - len(e.confirmed)
	e.confirmed = out.Confirmed
	e.partial = ""
	if out.Command == command.None {
		cm.Chars = grew
		log.Chunk(cm)
		e.metrics.RecordChunk(context.Background(), e.cfg.Mode.String(), grew)
	}

	if err := inject.Apply(e.sink, out.Action); err != nil {
		log.Errorf("inject: %v", err)
	}
	e.publish(Update{Session: e.sessionID, Confirmed: e.confirmed})
}

func (e *Engine) finish(cmd stopCmd) stopReply {
	r := stopReply{session: e.sessionID, duration: e.acc.SessionDuration()}

	if cmd.finalize {
		if cmd.err != nil {
			log.Errorf("finalize decode: %v", cmd.err)
		} else if retr, ok := hallucination.Filter(cmd.text); ok {
			if tail, ok := reconcile.ExtractNewTail(retr, e.confirmed); ok {
				e.applyFinal(finalEvent{gen: e.gen.Load(), text: tail, chunkAt: cmd.chunkAt, audioS: cmd.audioS, reconciled: true})
			}
		}
		r.text, r.ok = e.coord.FinalizedOnReleaseText(e.confirmed, e.partial)
	} else {
		if cmd.text != "" || cmd.err != nil {
			e.applyFinal(finalEvent{gen: e.gen.Load(), text: cmd.text, err: cmd.err, chunkAt: cmd.chunkAt, audioS: cmd.audioS})
		}
		// Streaming sessions typed their text chunk by chunk.
		r.text, r.ok = e.confirmed, e.confirmed != ""
		r.injected = r.ok
	}

	r.metrics = e.coord.Metrics()
	if r.metrics.HasFirstText {
		e.metrics.FirstTextLatency.Record(context.Background(), r.metrics.FirstTextLatencyMs/1000)
	}
	e.partial = ""
	return r
}
