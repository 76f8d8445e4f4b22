//go:build linux

package audio

import (
	"fmt"
	"sync"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
)

type pulseContext struct {
	client *pulse.Client
}

func NewContext() (Context, error) {
	c, err := pulse.NewClient(pulse.ClientApplicationName("murmur"))
	if err != nil {
		return nil, fmt.Errorf("pulse: %w", err)
	}
	return &pulseContext{client: c}, nil
}

func (p *pulseContext) Devices() ([]DeviceInfo, error) {
	sources, err := p.client.ListSources()
	if err != nil {
		return nil, fmt.Errorf("pulse list sources: %w", err)
	}
	devices := make([]DeviceInfo, 0, len(sources))
	for _, s := range sources {
		devices = append(devices, DeviceInfo{ID: s.ID(), Name: s.Name()})
	}
	return devices, nil
}

// source resolves a picked device to a pulse source. A nil source records
// from the server default.
func (p *pulseContext) source(device *DeviceInfo) (*pulse.Source, error) {
	if device == nil {
		return nil, nil
	}
	s, err := p.client.SourceByID(device.ID)
	if err != nil {
		return nil, fmt.Errorf("pulse source %q: %w", device.Name, err)
	}
	return s, nil
}

func (p *pulseContext) NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	src, err := p.source(device)
	if err != nil {
		return nil, err
	}
	name := defaultDeviceName
	if device != nil {
		name = device.Name
	}
	return &pulseCapture{client: p.client, source: src, name: name, rate: int(config.SampleRate)}, nil
}

func (p *pulseContext) Close() {
	p.client.Close()
}

// pulseCapture opens a fresh record stream on every Start so device
// changes between recordings are picked up.
type pulseCapture struct {
	callbackSlot
	client *pulse.Client
	source *pulse.Source
	name   string
	rate   int

	mu     sync.Mutex
	stream *pulse.RecordStream
}

func (c *pulseCapture) options() []pulse.RecordOption {
	opts := []pulse.RecordOption{
		pulse.RecordMono,
		pulse.RecordSampleRate(c.rate),
		pulse.RecordLatency(0.05),
		// Record at unity gain regardless of the source's volume slider.
		pulse.RecordRawOption(func(r *proto.CreateRecordStream) {
			r.ChannelVolumes = proto.ChannelVolumes{uint32(proto.VolumeNorm)}
		}),
	}
	if c.source != nil {
		opts = append(opts, pulse.RecordSource(c.source))
	}
	return opts
}

func (c *pulseCapture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream != nil {
		return nil
	}
	w := pulse.Float32Writer(func(buf []float32) (int, error) {
		c.deliver(buf, false)
		return len(buf), nil
	})
	stream, err := c.client.NewRecord(w, c.options()...)
	if err != nil {
		return fmt.Errorf("pulse record: %w", err)
	}
	stream.Start()
	c.stream = stream
	return nil
}

func (c *pulseCapture) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream == nil {
		return
	}
	c.stream.Stop()
	c.stream.Close()
	c.stream = nil
}

func (c *pulseCapture) Close() { c.Stop() }

func (c *pulseCapture) DeviceName() string { return c.name }
