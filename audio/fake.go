package audio

import (
	"fmt"
	"os"
	"sync"
	"time"
)

const fakeFrameSize = 1024

// FakeContext replays a 16-bit mono WAV file as if it were a microphone.
// The file is expected to match the capture sample rate.
type FakeContext struct {
	samples  []float32
	realtime bool
}

func NewFakeContext(wavPath string, realtime bool) (*FakeContext, error) {
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, fmt.Errorf("read wav: %w", err)
	}
	return NewFakeContextFromPCM(data, realtime), nil
}

// NewFakeContextFromPCM builds a context from WAV bytes, header included.
func NewFakeContextFromPCM(wav []byte, realtime bool) *FakeContext {
	if len(wav) > WAVHeaderSize {
		wav = wav[WAVHeaderSize:]
	}
	return &FakeContext{samples: PCM16ToFloat32(wav), realtime: realtime}
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "fake", Name: "fake"}}, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	rate := config.SampleRate
	if rate == 0 {
		rate = 16000
	}
	return &FakeCapture{
		samples:   f.samples,
		realtime:  f.realtime,
		rate:      rate,
		audioDone: make(chan struct{}),
	}, nil
}

// FakeCapture feeds the file once, then silence until stopped.
type FakeCapture struct {
	samples  []float32
	realtime bool
	rate     uint32

	mu        sync.Mutex
	cb        DataCallback
	audioDone chan struct{}
	stopCh    chan struct{}
	feedDone  chan struct{}
}

// AudioDone is closed once the whole file has been delivered.
func (f *FakeCapture) AudioDone() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.audioDone
}

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string { return "fake" }

func (f *FakeCapture) callback() DataCallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb
}

func (f *FakeCapture) frame(pos int) ([]float32, int) {
	end := min(pos+fakeFrameSize, len(f.samples))
	out := make([]float32, end-pos)
	copy(out, f.samples[pos:end])
	return out, end
}

func (f *FakeCapture) Start() error {
	f.mu.Lock()
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})
	stop, feedDone, audioDone := f.stopCh, f.feedDone, f.audioDone
	f.mu.Unlock()

	interval := time.Duration(fakeFrameSize) * time.Second / time.Duration(f.rate)
	if !f.realtime {
		if cb := f.callback(); cb != nil {
			for pos := 0; pos < len(f.samples); {
				var frame []float32
				frame, pos = f.frame(pos)
				cb(frame)
			}
		}
		close(audioDone)
		interval = time.Millisecond
	} else if len(f.samples) == 0 {
		close(audioDone)
	}

	go func() {
		defer close(feedDone)
		pos := len(f.samples)
		if f.realtime {
			pos = 0
		}
		silence := make([]float32, fakeFrameSize)
		for {
			select {
			case <-stop:
				return
			default:
			}
			cb := f.callback()
			switch {
			case cb == nil:
			case pos < len(f.samples):
				var frame []float32
				frame, pos = f.frame(pos)
				cb(frame)
				if pos == len(f.samples) {
					close(audioDone)
				}
			default:
				cb(silence)
			}
			select {
			case <-stop:
				return
			case <-time.After(interval):
			}
		}
	}()
	return nil
}

func (f *FakeCapture) Stop() {
	f.mu.Lock()
	stop, feedDone := f.stopCh, f.feedDone
	f.mu.Unlock()
	if stop == nil {
		return
	}
	select {
	case <-stop:
	default:
		close(stop)
	}
	<-feedDone

	f.mu.Lock()
	select {
	case <-f.audioDone:
		// Reset for replay.
		f.audioDone = make(chan struct{})
	default:
	}
	f.mu.Unlock()
}

func (f *FakeCapture) Close() {}
