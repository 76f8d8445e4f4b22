// Package encoder turns captured float PCM into compressed upload bodies
// for cloud decoders.
package encoder

import (
	"bytes"
	"fmt"
	"time"
)

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

// Stats describes one encoded chunk.
type Stats struct {
	Samples    int
	Bytes      int
	EncodeTime time.Duration
}

// RawBytes is the size of the chunk as 16-bit PCM.
func (s Stats) RawBytes() int { return s.Samples * BitsPerSample / 8 }

// Duration is the audio length of the chunk.
func (s Stats) Duration() time.Duration {
	return time.Duration(s.Samples) * time.Second / SampleRate
}

// Savings is the fraction of the raw size removed by compression.
func (s Stats) Savings() float64 {
	if s.RawBytes() == 0 {
		return 0
	}
	return 1 - float64(s.Bytes)/float64(s.RawBytes())
}

func clip16(s float32) int32 {
	switch {
	case s >= 1:
		return 32767
	case s <= -1:
		return -32768
	default:
		return int32(s * 32767)
	}
}

// Float32ToPCM16 converts [-1, 1] samples to signed 16-bit, clipping
// anything out of range.
func Float32ToPCM16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		out[i] = int16(clip16(s))
	}
	return out
}

// EncodeFloat32 compresses a whole decode chunk into one FLAC stream.
func EncodeFloat32(samples []float32) ([]byte, Stats, error) {
	start := time.Now()
	var buf bytes.Buffer
	w, err := newFlacWriter(&buf)
	if err != nil {
		return nil, Stats{}, err
	}
	block := make([]int32, 0, BlockSize)
	for i, s := range samples {
		block = append(block, clip16(s))
		if len(block) == BlockSize || i == len(samples)-1 {
			if err := w.writeBlock(block); err != nil {
				return nil, Stats{}, fmt.Errorf("encoding block at %d: %w", i+1-len(block), err)
			}
			block = block[:0]
		}
	}
	if err := w.close(); err != nil {
		return nil, Stats{}, fmt.Errorf("closing flac stream: %w", err)
	}
	return buf.Bytes(), Stats{
		Samples:    w.samples,
		Bytes:      buf.Len(),
		EncodeTime: time.Since(start),
	}, nil
}
