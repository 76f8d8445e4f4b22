package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"murmur/audio"
	"murmur/config"
	"murmur/encoder"
	"murmur/hotkey"
	"murmur/transcriber"
)

// stdoutSink prints injections instead of typing them, so test runs can be
// diffed.
type stdoutSink struct{}

func (stdoutSink) TypeText(text, _ string) error {
	fmt.Printf("TYPE\t%q\n", text)
	return nil
}

func (stdoutSink) CopyToClipboard(text string) error {
	fmt.Printf("COPY\t%q\n", text)
	return nil
}

type grantAll struct{}

func (grantAll) Microphone() bool    { return true }
func (grantAll) Accessibility() bool { return true }

// runTestMode replays wavPath as the microphone. Stdin drives the fake
// hotkey: KEYDOWN, KEYUP, WAIT (for the recording to finish),
// WAIT_AUDIO_DONE, SLEEP <ms> and QUIT.
func runTestMode(ctx context.Context, cfg *config.Config, dec transcriber.Transcriber, wavPath string, longPress time.Duration) error {
	fakeCtx, err := audio.NewFakeContext(wavPath, dec.Name() == "deepgram")
	if err != nil {
		return err
	}
	capture, err := fakeCtx.NewCapture(nil, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err != nil {
		return fmt.Errorf("creating capture: %w", err)
	}
	defer capture.Close()

	fakeCapture := capture.(*audio.FakeCapture)
	hk := hotkey.NewFake()
	recordingDone := make(chan struct{}, 1)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		defer cancel()
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			cmd := strings.TrimSpace(scanner.Text())
			switch cmd {
			case "KEYDOWN":
				hk.SimKeydown()
			case "KEYUP":
				hk.SimKeyup()
			case "WAIT":
				select {
				case <-recordingDone:
				case <-ctx.Done():
					return
				}
			case "WAIT_AUDIO_DONE":
				<-fakeCapture.AudioDone()
			case "QUIT":
				return
			default:
				if ms, ok := strings.CutPrefix(cmd, "SLEEP "); ok {
					if n, err := strconv.Atoi(ms); err == nil {
						time.Sleep(time.Duration(n) * time.Millisecond)
					}
				}
			}
		}
	}()

	a := newApp(cfg, dec, stdoutSink{}, grantAll{})
	return a.run(ctx, hk, capture, longPress, recordingDone)
}
