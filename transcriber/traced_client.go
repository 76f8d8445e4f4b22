package transcriber

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"time"
)

// maxResponseBytes caps how much of a decoder reply is read into memory.
const maxResponseBytes = 1 << 20

// APIError is a non-200 reply from a decoder endpoint.
type APIError struct {
	Backend    string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error %d: %s", e.Backend, e.StatusCode, e.Body)
}

// Temporary reports whether retrying the same chunk later could succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// tracedClient keeps one warm connection pool per decoder host and records
// where each upload spent its time.
type tracedClient struct {
	backend string
	client  *http.Client
	warmURL string
}

type tracedResponse struct {
	Body    []byte
	Header  http.Header
	Metrics NetworkMetrics
}

func newTracedClient(backend, warmURL string) *tracedClient {
	return &tracedClient{
		backend: backend,
		warmURL: warmURL,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     2 * time.Minute,
				ForceAttemptHTTP2:   true,
			},
		},
	}
}

// clientTrace fills m as the request progresses. The returned func stamps
// the download time once the body has been read.
func clientTrace(m *NetworkMetrics) (*httptrace.ClientTrace, func()) {
	var getConn, dns, tcp, tlsStart, gotConn, headers, wrote, firstByte time.Time
	trace := &httptrace.ClientTrace{
		GetConn: func(string) { getConn = time.Now() },
		GotConn: func(info httptrace.GotConnInfo) {
			gotConn = time.Now()
			m.ConnWait = gotConn.Sub(getConn)
			m.ConnReused = info.Reused
		},
		DNSStart:          func(httptrace.DNSStartInfo) { dns = time.Now() },
		DNSDone:           func(httptrace.DNSDoneInfo) { m.DNS = time.Since(dns) },
		ConnectStart:      func(_, _ string) { tcp = time.Now() },
		ConnectDone:       func(_, _ string, _ error) { m.TCP = time.Since(tcp) },
		TLSHandshakeStart: func() { tlsStart = time.Now() },
		TLSHandshakeDone: func(state tls.ConnectionState, _ error) {
			m.TLS = time.Since(tlsStart)
			m.TLSProtocol = state.NegotiatedProtocol
		},
		WroteHeaders: func() {
			headers = time.Now()
			m.ReqHeaders = headers.Sub(gotConn)
		},
		WroteRequest: func(httptrace.WroteRequestInfo) {
			wrote = time.Now()
			m.ReqBody = wrote.Sub(headers)
		},
		GotFirstResponseByte: func() {
			firstByte = time.Now()
			m.TTFB = firstByte.Sub(wrote)
		},
	}
	return trace, func() {
		if !firstByte.IsZero() {
			m.Download = time.Since(firstByte)
		}
	}
}

// do sends req and reads the reply. Any status other than 200 comes back
// as an *APIError.
func (c *tracedClient) do(req *http.Request) (*tracedResponse, error) {
	out := &tracedResponse{}
	trace, done := clientTrace(&out.Metrics)
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", c.backend, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%s reading response: %w", c.backend, err)
	}
	done()
	out.Metrics.Total = time.Since(start)
	out.Body = body
	out.Header = resp.Header

	if resp.StatusCode != http.StatusOK {
		return out, &APIError{Backend: c.backend, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return out, nil
}

// warm opens a connection to the API host so the first chunk upload skips
// the handshake.
func (c *tracedClient) warm(ctx context.Context) (NetworkMetrics, error) {
	var m NetworkMetrics
	trace, _ := clientTrace(&m)
	req, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, trace), http.MethodHead, c.warmURL, nil)
	if err != nil {
		return m, err
	}
	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return m, err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	m.Total = time.Since(start)
	return m, nil
}
