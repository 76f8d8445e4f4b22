package transcriber

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"murmur/encoder"
	"murmur/log"
)

const (
	deepgramStreamURL = "wss://api.deepgram.com/v1/listen"
	deepgramSendMs    = 200
	deepgramSendBytes = encoder.SampleRate * encoder.Channels * (encoder.BitsPerSample / 8) * deepgramSendMs / 1000
	// deepgramFinalizeMax bounds the wait for the finalize response after
	// the last audio frame has been sent.
	deepgramFinalizeMax = 5 * time.Second
)

// Deepgram decodes each chunk over a short-lived streaming connection so
// interim results arrive as partials.
type Deepgram struct {
	apiKey    string
	streamURL string
	client    *tracedClient

	mu     sync.Mutex
	model  string
	loaded bool
}

type DeepgramOption func(*Deepgram)

func WithStreamURL(u string) DeepgramOption {
	return func(d *Deepgram) {
		d.streamURL = u
		d.client = newTracedClient("deepgram", httpURL(u))
	}
}

func NewDeepgram(apiKey string, opts ...DeepgramOption) *Deepgram {
	d := &Deepgram{
		apiKey:    apiKey,
		streamURL: deepgramStreamURL,
		client:    newTracedClient("deepgram", "https://api.deepgram.com"),
		model:     "nova-3",
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func httpURL(ws string) string {
	switch {
	case strings.HasPrefix(ws, "wss://"):
		return "https://" + strings.TrimPrefix(ws, "wss://")
	case strings.HasPrefix(ws, "ws://"):
		return "http://" + strings.TrimPrefix(ws, "ws://")
	}
	return ws
}

func (d *Deepgram) Name() string { return "deepgram" }

func (d *Deepgram) LoadModel(ctx context.Context, modelID, _ string, onPhase func(Phase)) error {
	report := phaseReporter(onPhase)
	d.mu.Lock()
	d.loaded = false
	if modelID != "" {
		d.model = modelID
	}
	d.mu.Unlock()

	if d.apiKey == "" {
		err := fmt.Errorf("deepgram: %w", ErrMissingAPIKey)
		report(Failed(err))
		return err
	}
	report(Loading("connecting"))
	if _, err := d.client.warm(ctx); err != nil {
		err = fmt.Errorf("deepgram: warming connection: %w", err)
		report(Failed(err))
		return err
	}

	d.mu.Lock()
	d.loaded = true
	d.mu.Unlock()
	report(Ready())
	return nil
}

type deepgramStreamResponse struct {
	Type         string `json:"type"`
	IsFinal      bool   `json:"is_final"`
	SpeechFinal  bool   `json:"speech_final"`
	FromFinalize bool   `json:"from_finalize"`
	Channel      struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (d *Deepgram) endpoint(language string) (string, error) {
	endpoint, err := url.Parse(d.streamURL)
	if err != nil {
		return "", err
	}
	d.mu.Lock()
	model := d.model
	d.mu.Unlock()

	q := endpoint.Query()
	q.Set("model", model)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(encoder.SampleRate))
	q.Set("channels", strconv.Itoa(encoder.Channels))
	q.Set("interim_results", "true")
	q.Set("punctuate", "true")
	if language != "" {
		q.Set("language", language)
	}
	endpoint.RawQuery = q.Encode()
	return endpoint.String(), nil
}

func (d *Deepgram) Decode(ctx context.Context, samples []float32, language string, onPartial func(string)) (string, error) {
	d.mu.Lock()
	loaded := d.loaded
	d.mu.Unlock()
	if !loaded {
		return "", fmt.Errorf("deepgram: %w", ErrModelNotLoaded)
	}
	if len(samples) == 0 {
		return "", nil
	}

	endpoint, err := d.endpoint(language)
	if err != nil {
		return "", err
	}
	headers := http.Header{}
	headers.Set("Authorization", "Token "+d.apiKey)

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	connectStart := time.Now()
	conn, _, err := websocket.Dial(streamCtx, endpoint, &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		return "", fmt.Errorf("deepgram dial: %w", err)
	}
	defer conn.CloseNow()
	connectDur := time.Since(connectStart)

	pcm := pcmBytes(samples)
	readCtx, stopRead := context.WithCancel(streamCtx)
	defer stopRead()
	sendErr := make(chan error, 1)
	go func() {
		for off := 0; off < len(pcm); off += deepgramSendBytes {
			end := min(off+deepgramSendBytes, len(pcm))
			if err := conn.Write(streamCtx, websocket.MessageBinary, pcm[off:end]); err != nil {
				sendErr <- err
				return
			}
		}
		err := conn.Write(streamCtx, websocket.MessageText, []byte(`{"type":"Finalize"}`))
		time.AfterFunc(deepgramFinalizeMax, stopRead)
		sendErr <- err
	}()

	var committed []string
	var stats log.StreamMetricsData
	stats.ConnectMs = float64(connectDur.Microseconds()) / 1000
	stats.AudioS = float64(len(samples)) / encoder.SampleRate
	stats.SentChunks = (len(pcm) + deepgramSendBytes - 1) / deepgramSendBytes
	stats.SentKB = float64(len(pcm)) / 1024
	start := time.Now()

read:
	for {
		_, data, err := conn.Read(readCtx)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			if readCtx.Err() != nil {
				log.Warnf("deepgram: no finalize response after %v", deepgramFinalizeMax)
				break
			}
			var ce websocket.CloseError
			if errors.As(err, &ce) && ce.Code == websocket.StatusNormalClosure {
				break
			}
			return "", fmt.Errorf("deepgram read: %w", err)
		}
		stats.RecvMessages++

		var resp deepgramStreamResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return "", fmt.Errorf("deepgram response parse error: %w", err)
		}
		if resp.Type != "" && resp.Type != "Results" {
			continue
		}
		transcript := ""
		if len(resp.Channel.Alternatives) > 0 {
			transcript = strings.TrimSpace(resp.Channel.Alternatives[0].Transcript)
		}
		if !resp.IsFinal {
			if onPartial != nil && transcript != "" {
				onPartial(strings.Join(append(committed[:len(committed):len(committed)], transcript), " "))
			}
			continue
		}
		stats.RecvFinal++
		if transcript != "" {
			committed = append(committed, transcript)
			stats.CommitEvents++
		}
		if resp.FromFinalize {
			break read
		}
	}

	select {
	case err := <-sendErr:
		if err != nil && ctx.Err() == nil {
			log.Warnf("deepgram send: %v", err)
		}
	default:
	}
	if readCtx.Err() == nil {
		conn.Write(streamCtx, websocket.MessageText, []byte(`{"type":"CloseStream"}`))
		conn.Close(websocket.StatusNormalClosure, "")
	}

	stats.FinalizeMs = float64(time.Since(start).Microseconds()) / 1000
	stats.TotalMs = float64(time.Since(connectStart).Microseconds()) / 1000
	log.StreamMetrics(stats)

	return strings.Join(committed, " "), nil
}

func pcmBytes(samples []float32) []byte {
	pcm := encoder.Float32ToPCM16(samples)
	out := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}
