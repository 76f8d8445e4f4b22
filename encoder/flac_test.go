package encoder

import (
	"math"
	"testing"
	"time"
)

func sine(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/SampleRate))
	}
	return out
}

func TestEncodeFloat32(t *testing.T) {
	tests := []struct {
		name    string
		samples []float32
	}{
		{"empty", nil},
		{"partial block", sine(BlockSize / 4)},
		{"several blocks", sine(SampleRate + 123)},
		{"silence", make([]float32, 2*BlockSize)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, stats, err := EncodeFloat32(tt.samples)
			if err != nil {
				t.Fatalf("EncodeFloat32: %v", err)
			}
			if len(data) < 4 || string(data[:4]) != "fLaC" {
				t.Fatal("output does not start with FLAC magic")
			}
			if stats.Samples != len(tt.samples) {
				t.Errorf("Samples = %d, want %d", stats.Samples, len(tt.samples))
			}
			if stats.Bytes != len(data) {
				t.Errorf("Bytes = %d, want %d", stats.Bytes, len(data))
			}
		})
	}
}

func TestStats(t *testing.T) {
	s := Stats{Samples: SampleRate, Bytes: 8000}
	if s.RawBytes() != 32000 {
		t.Errorf("RawBytes = %d, want 32000", s.RawBytes())
	}
	if s.Duration() != time.Second {
		t.Errorf("Duration = %v, want 1s", s.Duration())
	}
	if got := s.Savings(); got != 0.75 {
		t.Errorf("Savings = %v, want 0.75", got)
	}
	if got := (Stats{}).Savings(); got != 0 {
		t.Errorf("empty Savings = %v, want 0", got)
	}
}

func TestFloat32ToPCM16(t *testing.T) {
	got := Float32ToPCM16([]float32{0, 1, -1, 2, -2, 0.5})
	want := []int16{0, 32767, -32768, 32767, -32768, 16383}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %d; want %d", i, got[i], want[i])
		}
	}
}
