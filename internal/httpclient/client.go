// Package httpclient is an HTTP client whose requests are timed through a
// perflog engine. Every request records a timer for the whole exchange,
// failed when the transport errors or the server answers 5xx, plus one timer
// per connection phase observed:
//
//	http GET /dump
//	http GET /dump dns
//	http GET /dump connect
//	http GET /dump tls
//	http GET /dump ttfb
package httpclient

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptrace"
	"sync"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/wesleyorama2/perflog/internal/perflog"
)

// DefaultMetricPrefix prefixes every metric name the client records.
const DefaultMetricPrefix = "http"

// Client represents an instrumented HTTP client
type Client struct {
	httpClient *http.Client
	baseURL    string
	headers    map[string]string
	engine     *perflog.Engine
	clock      clockz.Clock
	prefix     string
}

// ClientOption is a function that configures a Client
type ClientOption func(*Client)

// NewClient creates a client that records into engine, timing with the
// engine's clock. A nil engine records nothing and times with the real clock.
func NewClient(engine *perflog.Engine, options ...ClientOption) *Client {
	client := &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		headers: make(map[string]string),
		engine:  engine,
		clock:   clockz.RealClock,
		prefix:  DefaultMetricPrefix,
	}
	if engine != nil {
		client.clock = engine.Clock()
	}

	for _, option := range options {
		option(client)
	}

	return client
}

// WithBaseURL sets the base URL for the client
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithTimeout sets the timeout for the client
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHeader adds a header to every request
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.headers[key] = value
	}
}

// WithMetricPrefix replaces DefaultMetricPrefix.
func WithMetricPrefix(prefix string) ClientOption {
	return func(c *Client) {
		c.prefix = prefix
	}
}

// MetricName returns the timer name used for req.
func (c *Client) MetricName(req *Request) string {
	return c.prefix + " " + req.Method + " " + req.Path
}

// Do executes req and records its timings.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := req.Build(ctx, c.baseURL)
	if err != nil {
		return nil, err
	}
	for key, value := range c.headers {
		if httpReq.Header.Get(key) == "" {
			httpReq.Header.Set(key, value)
		}
	}

	name := c.MetricName(req)
	tr := newTracer(c.clock)
	httpReq = httpReq.WithContext(httptrace.WithClientTrace(httpReq.Context(), tr.clientTrace()))

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.record(name, tr.finish(), true)
		return nil, err
	}
	defer httpResp.Body.Close()

	transferStart := c.clock.Now()
	body, err := io.ReadAll(httpResp.Body)
	timing := tr.finish()
	timing.ContentTransferTime = c.clock.Now().Sub(transferStart)
	if err != nil {
		c.record(name, timing, true)
		return nil, err
	}

	c.record(name, timing, httpResp.StatusCode >= http.StatusInternalServerError)
	return &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Headers:    httpResp.Header,
		Timing:     timing,
		body:       body,
	}, nil
}

func (c *Client) record(name string, t TimingInfo, failed bool) {
	if c.engine == nil {
		return
	}
	c.engine.Observe(name, t.TotalTime, failed)

	phases := []struct {
		suffix string
		d      time.Duration
	}{
		{"dns", t.DNSLookupTime},
		{"connect", t.TCPConnectTime},
		{"tls", t.TLSHandshakeTime},
		{"ttfb", t.TimeToFirstByte},
	}
	for _, p := range phases {
		if p.d > 0 {
			c.engine.Observe(name+" "+p.suffix, p.d, false)
		}
	}
}

// tracer captures phase timings. Trace hooks may run on dialer goroutines,
// so every field is guarded by mu.
type tracer struct {
	mu     sync.Mutex
	clock  clockz.Clock
	start  time.Time
	last   time.Time
	phase  map[string]time.Time
	timing TimingInfo
}

func newTracer(clock clockz.Clock) *tracer {
	start := clock.Now()
	return &tracer{clock: clock, start: start, last: start, phase: make(map[string]time.Time)}
}

func (t *tracer) begin(phase string) {
	now := t.clock.Now()
	t.mu.Lock()
	t.phase[phase] = now
	t.mu.Unlock()
}

func (t *tracer) end(phase string, dst *time.Duration) {
	now := t.clock.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	if started, ok := t.phase[phase]; ok {
		*dst = now.Sub(started)
		t.last = now
	}
}

func (t *tracer) clientTrace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		DNSStart: func(httptrace.DNSStartInfo) { t.begin("dns") },
		DNSDone:  func(httptrace.DNSDoneInfo) { t.end("dns", &t.timing.DNSLookupTime) },
		ConnectStart: func(string, string) {
			t.begin("connect")
		},
		ConnectDone: func(_, _ string, err error) {
			if err == nil {
				t.end("connect", &t.timing.TCPConnectTime)
			}
		},
		TLSHandshakeStart: func() { t.begin("tls") },
		TLSHandshakeDone: func(_ tls.ConnectionState, err error) {
			if err == nil {
				t.end("tls", &t.timing.TLSHandshakeTime)
			}
		},
		GotFirstResponseByte: func() {
			now := t.clock.Now()
			t.mu.Lock()
			t.timing.TimeToFirstByte = now.Sub(t.last)
			t.mu.Unlock()
		},
	}
}

func (t *tracer) finish() TimingInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timing.StartTime = t.start
	t.timing.TotalTime = t.clock.Now().Sub(t.start)
	return t.timing
}
