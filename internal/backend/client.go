// Package backend is the REST transport to the knowledge-base API. It
// implements catalog.Source, relations.Source and search.Backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/agenthands/nutrigraph/internal/config"
	"github.com/agenthands/nutrigraph/internal/metric"
	"github.com/agenthands/nutrigraph/internal/platform/apierr"
	"github.com/agenthands/nutrigraph/internal/platform/logger"
	"github.com/google/uuid"
)

const maxBody = 1 << 20

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
	Logger     *logger.Logger
	Metrics    *metric.Metrics
}

type Client struct {
	baseURL    string
	timeout    time.Duration
	maxRetries int
	httpClient *http.Client
	log        *logger.Logger
	metrics    *metric.Metrics
}

func New(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("backend base URL required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid backend base URL: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}

	return &Client{
		baseURL:    baseURL,
		timeout:    timeout,
		maxRetries: maxRetries,
		httpClient: hc,
		log:        logger.OrNop(opts.Logger).With("component", "backend"),
		metrics:    opts.Metrics,
	}, nil
}

// NewFromConfig builds a client from the backend section of the config.
func NewFromConfig(cfg config.BackendConfig, log *logger.Logger, m *metric.Metrics) (*Client, error) {
	return New(Options{
		BaseURL:    cfg.BaseURL,
		Timeout:    cfg.Timeout.Std(),
		MaxRetries: cfg.MaxRetries,
		Logger:     log,
		Metrics:    m,
	})
}

func (c *Client) BaseURL() string { return c.baseURL }

// HTTPError is a non-2xx answer that carried no backend error message.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP error! status: %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP error! status: %d: %s", e.StatusCode, e.Body)
}

// envelope is the {success, error} wrapper mutation endpoints answer with.
type envelope struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (e envelope) failure() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

type call struct {
	op         string
	method     string
	path       string
	body       any
	idempotent bool
}

// do sends one JSON request and returns the raw 2xx body. Transport failures,
// 5xx and 429 are retried with exponential backoff when the call is
// idempotent. Backend-reported failures are never retried.
func (c *Client) do(ctx context.Context, cl call) ([]byte, error) {
	var buf bytes.Buffer
	if cl.body != nil {
		if err := json.NewEncoder(&buf).Encode(cl.body); err != nil {
			return nil, apierr.New(apierr.Validation, cl.op, fmt.Errorf("failed to encode request: %w", err))
		}
	}

	ctx2, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	retries := c.maxRetries
	if !cl.idempotent {
		retries = 0
	}
	requestID := uuid.NewString()
	start := time.Now()
	defer func() { c.metrics.ObserveBackend(cl.op, time.Since(start)) }()

	var lastErr error
	backoff := 250 * time.Millisecond
	for attempt := 0; attempt <= retries; attempt++ {
		if ctx2.Err() != nil {
			return nil, apierr.New(apierr.Transport, cl.op, ctx2.Err())
		}

		req, err := http.NewRequestWithContext(ctx2, cl.method, c.baseURL+cl.path, bytes.NewReader(buf.Bytes()))
		if err != nil {
			return nil, apierr.New(apierr.Transport, cl.op, err)
		}
		req.Header.Set("Accept", "application/json")
		if cl.body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("X-Request-ID", requestID)

		raw, status, err := c.roundTrip(req)
		switch {
		case err != nil:
			lastErr = apierr.New(apierr.Transport, cl.op, err)
		case status >= 200 && status < 300:
			if msg, failed := backendFailure(raw); failed {
				return nil, &apierr.Error{Kind: apierr.Backend, Op: cl.op, Status: status, Err: errors.New(msg)}
			}
			return raw, nil
		default:
			if msg, failed := backendFailure(raw); failed {
				return nil, &apierr.Error{Kind: apierr.Backend, Op: cl.op, Status: status, Err: errors.New(msg)}
			}
			herr := &HTTPError{StatusCode: status, Body: strings.TrimSpace(string(raw))}
			lastErr = &apierr.Error{Kind: apierr.Transport, Op: cl.op, Status: status, Err: herr}
			if status < 500 && status != http.StatusTooManyRequests {
				return nil, lastErr
			}
		}

		if attempt < retries {
			c.log.Debug("retrying backend call", "op", cl.op, "attempt", attempt+1, "request_id", requestID, "error", lastErr)
			select {
			case <-ctx2.Done():
				return nil, apierr.New(apierr.Transport, cl.op, ctx2.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}
	return nil, lastErr
}

func (c *Client) roundTrip(req *http.Request) ([]byte, int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	return raw, resp.StatusCode, nil
}

// backendFailure reports a {success:false} or bare {error} object body.
func backendFailure(raw []byte) (string, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return "", false
	}
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return "", false
	}
	if env.Success != nil && !*env.Success {
		msg := env.failure()
		if msg == "" {
			msg = "Erreur inconnue"
		}
		return msg, true
	}
	if env.Success == nil && env.Error != "" {
		return env.Error, true
	}
	return "", false
}

func decode(op string, raw []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return apierr.New(apierr.Backend, op, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}
