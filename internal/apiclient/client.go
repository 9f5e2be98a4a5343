// Package apiclient is the single outbound HTTP path of the client. It attaches
// the session credential, tags every request with an id, maps 401 to an auth
// failure and rejects malformed responses before they are decoded.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/khrees2412/jobportal/internal/apperr"
	"github.com/khrees2412/jobportal/internal/logger"
	"github.com/khrees2412/jobportal/internal/metrics"
)

const maxResponseBytes = 10 << 20

// RequestIDHeader carries the per-request id to the server.
const RequestIDHeader = "X-Request-ID"

// Client talks to one base URL.
type Client struct {
	service     string
	baseURL     string
	http        *http.Client
	cookieName  string
	cookieValue string
	log         logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithCredential attaches a session cookie to every request.
func WithCredential(name, value string) Option {
	return func(c *Client) {
		c.cookieName = name
		c.cookieValue = value
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithTimeout sets the timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http = &http.Client{Timeout: d} }
}

// New returns a Client for service (used in logs and metrics) at baseURL.
func New(service, baseURL string, opts ...Option) *Client {
	c := &Client{
		service: service,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     logger.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FilePart is one file in a multipart form.
type FilePart struct {
	Field       string
	Filename    string
	ContentType string
	Data        []byte
}

// Multipart is a multipart/form-data body.
type Multipart struct {
	Fields map[string]string
	Files  []FilePart
}

// GetJSON issues a GET and decodes the validated response into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, schema *Schema, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, path, schema, out)
}

// PostJSON issues a JSON POST and decodes the validated response into out.
func (c *Client) PostJSON(ctx context.Context, path string, body any, schema *Schema, out any) error {
	bs, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bs))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path, schema, out)
}

// PostMultipart issues a multipart/form-data POST.
func (c *Client) PostMultipart(ctx context.Context, path string, form Multipart, schema *Schema, out any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range form.Files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.Field, f.Filename))
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return fmt.Errorf("create form file: %w", err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return fmt.Errorf("write form file: %w", err)
		}
	}
	for k, val := range form.Fields {
		if err := w.WriteField(k, val); err != nil {
			return fmt.Errorf("write form field: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return c.do(req, path, schema, out)
}

func (c *Client) do(req *http.Request, path string, schema *Schema, out any) error {
	op := c.service + " " + req.Method + " " + path
	reqID := uuid.New().String()
	start := time.Now()
	log := c.log.WithFields(map[string]interface{}{
		"req_id":  reqID,
		"service": c.service,
		"method":  req.Method,
		"path":    path,
	})

	req.Header.Set(RequestIDHeader, reqID)
	req.Header.Set("Accept", "application/json")
	if c.cookieValue != "" {
		req.AddCookie(&http.Cookie{Name: c.cookieName, Value: c.cookieValue})
	}

	log.Debug("http request", nil)
	resp, err := c.http.Do(req)
	if err != nil {
		log.Warn("http send failed", map[string]interface{}{
			"error":      err.Error(),
			"elapsed_ms": time.Since(start).Milliseconds(),
		})
		c.observe("network_error", start)
		return apperr.NewNetwork(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.observe("network_error", start)
		return apperr.NewNetwork(op, fmt.Errorf("read body: %w", err))
	}

	log.Info("http response", map[string]interface{}{
		"status":     resp.StatusCode,
		"bytes":      len(raw),
		"elapsed_ms": time.Since(start).Milliseconds(),
	})

	if resp.StatusCode == http.StatusUnauthorized {
		c.observe("unauthorized", start)
		return apperr.NewAuth(op)
	}
	if resp.StatusCode/100 != 2 {
		c.observe("service_error", start)
		return apperr.NewService(op, resp.StatusCode, errorMessage(raw, resp.StatusCode), nil)
	}

	if schema != nil {
		if err := schema.Validate(raw); err != nil {
			log.Warn("malformed response", map[string]interface{}{"error": err.Error()})
			c.observe("malformed", start)
			return apperr.NewService(op, resp.StatusCode, "malformed response from "+c.service, err)
		}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			c.observe("malformed", start)
			return apperr.NewService(op, resp.StatusCode, "malformed response from "+c.service, err)
		}
	}
	c.observe("ok", start)
	return nil
}

func (c *Client) observe(outcome string, start time.Time) {
	metrics.APIRequests.WithLabelValues(c.service, outcome).Inc()
	metrics.APIRequestDuration.WithLabelValues(c.service).Observe(time.Since(start).Seconds())
}

// errorMessage pulls a message out of an error body, if the server sent one.
func errorMessage(raw []byte, status int) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status))
}

// IsUnauthorized reports whether err is an authentication failure.
func IsUnauthorized(err error) bool {
	return apperr.Is(err, apperr.KindAuth)
}

// IsCanceled reports whether err was caused by context cancellation.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
