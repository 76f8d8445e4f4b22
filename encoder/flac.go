package encoder

import (
	"fmt"
	"io"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

// flacWriter emits mono 16-bit frames of at most BlockSize samples.
type flacWriter struct {
	enc     *flac.Encoder
	samples int
}

func newFlacWriter(w io.Writer) (*flacWriter, error) {
	enc, err := flac.NewEncoder(w, &meta.StreamInfo{
		BlockSizeMin:  16,
		BlockSizeMax:  BlockSize,
		SampleRate:    SampleRate,
		NChannels:     Channels,
		BitsPerSample: BitsPerSample,
	})
	if err != nil {
		return nil, fmt.Errorf("creating flac encoder: %w", err)
	}
	enc.EnablePredictionAnalysis(true)
	return &flacWriter{enc: enc}, nil
}

func (w *flacWriter) writeBlock(block []int32) error {
	if len(block) == 0 {
		return nil
	}
	// The encoder keeps a reference to the subframe samples.
	samples := make([]int32, len(block))
	copy(samples, block)
	f := &frame.Frame{
		Header: frame.Header{
			BlockSize:     uint16(len(samples)),
			SampleRate:    SampleRate,
			Channels:      frame.ChannelsMono,
			BitsPerSample: BitsPerSample,
		},
		Subframes: []*frame.Subframe{{
			SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
			Samples:   samples,
			NSamples:  len(samples),
		}},
	}
	if err := w.enc.WriteFrame(f); err != nil {
		return fmt.Errorf("writing flac frame: %w", err)
	}
	w.samples += len(samples)
	return nil
}

func (w *flacWriter) close() error {
	return w.enc.Close()
}
