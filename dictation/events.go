package dictation

import (
	"time"

	"murmur/coordinator"
)

// event is a message applied by the Run goroutine.
type event interface {
	apply(e *Engine)
}

type startCmd struct {
	startedAt time.Time
	reply     chan error
}

func (c startCmd) apply(e *Engine) {
	c.reply <- e.begin(c.startedAt)
}

type partialEvent struct {
	gen  uint64
	text string
}

func (p partialEvent) apply(e *Engine) {
	e.applyPartial(p)
}

type finalEvent struct {
	gen     uint64
	text    string
	err     error
	chunkAt time.Time
	audioS  float64
	// reconciled text already starts after the confirmed transcript.
	reconciled bool
}

func (f finalEvent) apply(e *Engine) {
	e.applyFinal(f)
}

// stopCmd carries the last decode of the session. text is the
// retranscribed tail when finalize is set, else the undispatched rest.
type stopCmd struct {
	finalize bool
	text     string
	err      error
	chunkAt  time.Time
	audioS   float64
	reply    chan stopReply
}

type stopReply struct {
	session  string
	text     string
	ok       bool
	injected bool
	duration time.Duration
	metrics  coordinator.Metrics
}

func (c stopCmd) apply(e *Engine) {
	c.reply <- e.finish(c)
}

type stateQuery struct {
	reply chan State
}

func (q stateQuery) apply(e *Engine) {
	q.reply <- State{
		Session:   e.sessionID,
		Recording: e.recording.Load(),
		Confirmed: e.confirmed,
		Partial:   e.partial,
		Metrics:   e.coord.Metrics(),
	}
}

type publishEvent struct {
	u Update
}

func (p publishEvent) apply(e *Engine) {
	e.publish(p.u)
}
