// Package answer is the gateway to the external answer-producing service.
//
// Usage:
//
//	client, err := answer.New("http://localhost:8000", 20, answer.WithTimeout(30*time.Second))
//	resp, err := client.Call(ctx, "What is 2+2?", "direct")
//
// callsPerMinute caps the number of calls in flight at once. It is not a
// per-minute budget unless WithPacing is also set.
package answer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"regeval/internal/listfield"
	"regeval/internal/logging"
)

// DefaultTimeout bounds one HTTP round trip.
const DefaultTimeout = 30 * time.Second

// DefaultPath is appended to the base URL for every call.
const DefaultPath = "/answer"

// Caller is anything that can answer a question in a given mode.
type Caller interface {
	Call(ctx context.Context, question, mode string) (*Response, error)
}

// Request is the JSON body sent to the service.
type Request struct {
	Question string `json:"question"`
	Mode     string `json:"mode"`
}

// Response is the normalized service payload. List fields are never nil.
type Response struct {
	Answer     string   `json:"answer"`
	InterpJira []string `json:"interp_jira"`
	ImplJira   []string `json:"impl_jira"`
	ImplPR     []string `json:"impl_pr"`
}

// wireResponse tells an absent answer apart from an empty one.
type wireResponse struct {
	Answer     *string  `json:"answer"`
	InterpJira []string `json:"interp_jira"`
	ImplJira   []string `json:"impl_jira"`
	ImplPR     []string `json:"impl_pr"`
}

// Observer is notified after every call attempt that acquired a slot.
type Observer interface {
	ObserveCall(d time.Duration, err error)
}

// Client calls the answer service with at most Cap() calls in flight.
type Client struct {
	baseURL    string
	path       string
	httpClient *http.Client
	logger     *slog.Logger
	sem        *semaphore.Weighted
	limiter    *rate.Limiter
	observer   Observer
	slots      int64
	inFlight   chan struct{}
}

// Option configures the Client during construction.
type Option func(*clientConfig) error

type clientConfig struct {
	httpClient *http.Client
	logger     *slog.Logger
	timeout    time.Duration
	timeoutSet bool
	path       string
	pacing     int
	observer   Observer
}

// New creates a Client for the service at baseURL. callsPerMinute must be
// positive and is the maximum number of concurrent in-flight calls.
func New(baseURL string, callsPerMinute int, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("answer: baseURL is required")
	}
	if callsPerMinute <= 0 {
		return nil, fmt.Errorf("answer: callsPerMinute must be > 0, got %d", callsPerMinute)
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	cfg := &clientConfig{timeout: DefaultTimeout, path: DefaultPath}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	// An injected client keeps its own timeout unless WithTimeout is given,
	// and is copied so the caller's value is never modified.
	var httpClient *http.Client
	switch {
	case cfg.httpClient == nil:
		httpClient = &http.Client{Timeout: cfg.timeout}
	case cfg.timeoutSet:
		c := *cfg.httpClient
		c.Timeout = cfg.timeout
		httpClient = &c
	default:
		httpClient = cfg.httpClient
	}

	logger := cfg.logger
	if logger == nil {
		logger = logging.Discard()
	}

	var limiter *rate.Limiter
	if cfg.pacing > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.pacing)), 1)
	}

	return &Client{
		baseURL:    baseURL,
		path:       cfg.path,
		httpClient: httpClient,
		logger:     logger,
		sem:        semaphore.NewWeighted(int64(callsPerMinute)),
		limiter:    limiter,
		observer:   cfg.observer,
		slots:      int64(callsPerMinute),
		inFlight:   make(chan struct{}, callsPerMinute),
	}, nil
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *clientConfig) error {
		cfg.httpClient = c
		return nil
	}
}

// WithLogger configures structured logging.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *clientConfig) error {
		cfg.logger = l
		return nil
	}
}

// WithTimeout sets a timeout on the HTTP client. Zero keeps the client's own.
func WithTimeout(d time.Duration) Option {
	return func(cfg *clientConfig) error {
		if d < 0 {
			return fmt.Errorf("answer: negative timeout %s", d)
		}
		if d == 0 {
			return nil
		}
		cfg.timeout = d
		cfg.timeoutSet = true
		return nil
	}
}

// WithPath overrides the request path (default "/answer").
func WithPath(p string) Option {
	return func(cfg *clientConfig) error {
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		cfg.path = p
		return nil
	}
}

// WithPacing additionally spaces call starts so that at most perMinute calls
// begin per minute. Zero disables pacing.
func WithPacing(perMinute int) Option {
	return func(cfg *clientConfig) error {
		if perMinute < 0 {
			return fmt.Errorf("answer: negative pacing %d", perMinute)
		}
		cfg.pacing = perMinute
		return nil
	}
}

// WithObserver reports call durations and outcomes.
func WithObserver(o Observer) Option {
	return func(cfg *clientConfig) error {
		cfg.observer = o
		return nil
	}
}

// Cap returns the maximum number of concurrent calls.
func (c *Client) Cap() int { return int(c.slots) }

// InFlight returns the number of calls currently holding a slot.
func (c *Client) InFlight() int { return len(c.inFlight) }

// Call asks the service one question. It blocks until a concurrency slot is
// free or ctx is done; the slot is released on every return path.
func (c *Client) Call(ctx context.Context, question, mode string) (*Response, error) {
	const op = "answer"

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s: wait for pacing: %w", op, err)
		}
	}
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%s: acquire slot: %w", op, err)
	}
	c.inFlight <- struct{}{}
	defer func() {
		<-c.inFlight
		c.sem.Release(1)
	}()

	start := time.Now()
	resp, err := c.post(ctx, op, Request{Question: question, Mode: mode})
	if c.observer != nil {
		c.observer.ObserveCall(time.Since(start), err)
	}
	return resp, err
}

func (c *Client) post(ctx context.Context, op string, body Request) (*Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", op, err)
	}
	url := c.baseURL + c.path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	c.logger.DebugContext(ctx, "API request", "operation", op, "url", url, "mode", body.Mode)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: do request: %w: %w", op, ErrServiceCall, err)
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "API response", "operation", op, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := strings.TrimSpace(string(respBody))
		if msg == "" {
			msg = resp.Status
		}
		return nil, newAPIError(op, resp.StatusCode, msg)
	}

	var wire wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w: %w", op, ErrServiceCall, err)
	}
	if wire.Answer == nil {
		return nil, fmt.Errorf("%s: response has no answer field: %w", op, ErrServiceCall)
	}
	return &Response{
		Answer:     *wire.Answer,
		InterpJira: listfield.Normalize(wire.InterpJira),
		ImplJira:   listfield.Normalize(wire.ImplJira),
		ImplPR:     listfield.Normalize(wire.ImplPR),
	}, nil
}
