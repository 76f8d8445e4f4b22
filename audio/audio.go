// Package audio captures 16 kHz mono float PCM from the platform input
// device and reports its RMS level.
package audio

import (
	"encoding/binary"
	"math"
	"strings"
	"sync/atomic"
)

const WAVHeaderSize = 44

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"tozo", "anker soundcore", "skullcandy",
	"bluetooth", " bt ", " bt)", " bt]",
}

// IsBluetooth guesses from the device name whether the input is a headset
// running the narrowband hands-free profile.
func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// DataCallback receives captured samples. It runs on the capture thread and
// must not block.
type DataCallback func(samples []float32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	DeviceName() string
}

// callbackSlot holds the current DataCallback. Capture threads read it
// without locking.
type callbackSlot struct {
	cb atomic.Pointer[DataCallback]
}

func (s *callbackSlot) SetCallback(cb DataCallback) { s.cb.Store(&cb) }
func (s *callbackSlot) ClearCallback()              { s.cb.Store(nil) }

// deliver hands samples to the callback, if any. Drivers that reuse their
// buffer pass owned=false so the slice is copied first.
func (s *callbackSlot) deliver(samples []float32, owned bool) {
	cb := s.cb.Load()
	if cb == nil || len(samples) == 0 {
		return
	}
	if !owned {
		samples = append([]float32(nil), samples...)
	}
	(*cb)(samples)
}

const defaultDeviceName = "system default"

// DeviceCount returns the number of capture devices ctx can see.
func DeviceCount(ctx Context) (int, error) {
	devices, err := ctx.Devices()
	return len(devices), err
}

// Level is the RMS of samples, 0 for silence and 1 for a full-scale square
// wave.
func Level(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// PCM16ToFloat32 converts little-endian signed 16-bit PCM to floats in
// [-1, 1). A trailing odd byte is ignored.
func PCM16ToFloat32(data []byte) []float32 {
	out := make([]float32, len(data)/2)
	for i := range out {
		s := int16(binary.LittleEndian.Uint16(data[i*2:]))
		out[i] = float32(s) / 32768
	}
	return out
}

// f32LEToFloat32 decodes little-endian IEEE float32 samples.
func f32LEToFloat32(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}
