package transcriber

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"

	"murmur/encoder"
	"murmur/log"
)

type parseFunc func(body []byte) (text string, confidence float64, err error)

// Cloud is a batch decoder behind an OpenAI-compatible
// /audio/transcriptions endpoint. Each chunk is uploaded as FLAC.
type Cloud struct {
	name           string
	apiURL         string
	apiKey         string
	model          string
	responseFormat string
	client         *tracedClient
	parse          parseFunc

	mu     sync.Mutex
	loaded bool
}

type CloudOption func(*Cloud)

// WithEndpoint overrides the transcription URL.
func WithEndpoint(url string) CloudOption {
	return func(c *Cloud) {
		c.apiURL = url
		c.client = newTracedClient(c.name, url)
	}
}

func newCloud(name, apiURL, apiKey, model, format string, parse parseFunc, opts []CloudOption) *Cloud {
	c := &Cloud{
		name:           name,
		apiURL:         apiURL,
		apiKey:         apiKey,
		model:          model,
		responseFormat: format,
		client:         newTracedClient(name, apiURL),
		parse:          parse,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Cloud) Name() string { return c.name }

func (c *Cloud) LoadModel(ctx context.Context, modelID, _ string, onPhase func(Phase)) error {
	report := phaseReporter(onPhase)
	c.mu.Lock()
	c.loaded = false
	c.mu.Unlock()

	if c.apiKey == "" {
		err := fmt.Errorf("%s: %w", c.name, ErrMissingAPIKey)
		report(Failed(err))
		return err
	}
	if modelID != "" {
		c.model = modelID
	}

	report(Loading("connecting"))
	warm, err := c.client.warm(ctx)
	if err != nil {
		err = fmt.Errorf("%s: warming connection: %w", c.name, err)
		report(Failed(err))
		return err
	}
	log.Infof("%s connection warm (tls %dms)", c.name, warm.TLS.Milliseconds())

	c.mu.Lock()
	c.loaded = true
	c.mu.Unlock()
	report(Ready())
	return nil
}

func (c *Cloud) Decode(ctx context.Context, samples []float32, language string, _ func(string)) (string, error) {
	c.mu.Lock()
	loaded := c.loaded
	c.mu.Unlock()
	if !loaded {
		return "", fmt.Errorf("%s: %w", c.name, ErrModelNotLoaded)
	}
	if len(samples) == 0 {
		return "", nil
	}

	audio, stats, err := encoder.EncodeFloat32(samples)
	if err != nil {
		return "", err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "audio.flac")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audio); err != nil {
		return "", err
	}
	writer.WriteField("model", c.model)
	writer.WriteField("response_format", c.responseFormat)
	if language != "" {
		writer.WriteField("language", language)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.do(req)
	if err != nil {
		return "", err
	}

	text, confidence, err := c.parse(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%s response parse error: %w", c.name, err)
	}

	m := resp.Metrics
	log.TranscriptionMetrics(log.Metrics{
		AudioLengthS:     stats.Duration().Seconds(),
		RawSizeKB:        float64(stats.RawBytes()) / 1024,
		CompressedSizeKB: float64(stats.Bytes) / 1024,
		CompressionPct:   stats.Savings() * 100,
		EncodeTimeMs:     float64(stats.EncodeTime.Microseconds()) / 1000,
		DNSTimeMs:        float64(m.DNS.Microseconds()) / 1000,
		TLSTimeMs:        float64(m.TLS.Microseconds()) / 1000,
		TTFBMs:           float64(m.TTFB.Microseconds()) / 1000,
		TotalTimeMs:      float64(m.Total.Microseconds()) / 1000,
	}, c.name, m.ConnReused, m.TLSProtocol)
	log.Confidence(confidence)
	log.Infof("%s rate limit %s/%s", c.name,
		firstNonEmpty(resp.Header, "x-ratelimit-remaining-requests"),
		firstNonEmpty(resp.Header, "x-ratelimit-limit-requests"))

	return strings.TrimSpace(text), nil
}

func phaseReporter(onPhase func(Phase)) func(Phase) {
	return func(p Phase) {
		log.ModelPhase(p.String())
		if onPhase != nil {
			onPhase(p)
		}
	}
}
