// Package client is a typed HTTP client for the class schedule REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/class-schedule/internal/models"
)

// DefaultTimeout bounds every request unless overridden.
const DefaultTimeout = 10 * time.Second

const maxErrorBody = 64 << 10

// Ack is the body returned by a successful delete.
type Ack struct {
	Message string `json:"message"`
	ID      int64  `json:"id"`
}

// Download is a rendered schedule export.
type Download struct {
	Filename    string
	ContentType string
	Body        []byte
}

// Client talks to the /api/classes endpoints.
type Client struct {
	base *url.URL
	http *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// New builds a client for the server at baseURL, e.g. http://localhost:8080.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url %q must use http or https", baseURL)
	}
	c := &Client{base: u, http: &http.Client{Timeout: DefaultTimeout}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ListClasses returns every class, or only those held on day when it is non-empty.
func (c *Client) ListClasses(ctx context.Context, day string) ([]models.Class, error) {
	q := url.Values{}
	if day = strings.TrimSpace(day); day != "" {
		q.Set("day", day)
	}
	var out []models.Class
	if err := c.do(ctx, http.MethodGet, "/api/classes", q, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Class{}
	}
	return out, nil
}

// GetClass fetches a single class.
func (c *Client) GetClass(ctx context.Context, id int64) (*models.Class, error) {
	var out models.Class
	if err := c.do(ctx, http.MethodGet, classPath(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateClass adds a class and returns it with its assigned id.
func (c *Client) CreateClass(ctx context.Context, in models.ClassInput) (*models.Class, error) {
	var out models.Class
	if err := c.do(ctx, http.MethodPost, "/api/classes", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateClass replaces every editable field of the class.
func (c *Client) UpdateClass(ctx context.Context, id int64, in models.ClassInput) (*models.Class, error) {
	var out models.Class
	if err := c.do(ctx, http.MethodPut, classPath(id), nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteClass removes the class.
func (c *Client) DeleteClass(ctx context.Context, id int64) (*Ack, error) {
	var out Ack
	if err := c.do(ctx, http.MethodDelete, classPath(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Export downloads the schedule rendered as format ("csv" or "pdf").
func (c *Client) Export(ctx context.Context, format, day string) (*Download, error) {
	q := url.Values{"format": {format}}
	if day = strings.TrimSpace(day); day != "" {
		q.Set("day", day)
	}
	resp, err := c.send(ctx, http.MethodGet, "/api/classes/export", q, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: "read export", Err: err}
	}
	dl := &Download{ContentType: resp.Header.Get("Content-Type"), Body: body}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		dl.Filename = params["filename"]
	}
	return dl, nil
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body, dest interface{}) error {
	resp, err := c.send(ctx, method, path, q, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if dest == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		if isTimeout(err) {
			return &NetworkError{Op: method + " " + path, Err: err}
		}
		return &APIError{Status: resp.StatusCode, Code: "DECODE_ERROR", Message: fmt.Sprintf("decode response: %v", err)}
	}
	return nil
}

// send performs the request and converts transport failures and non-2xx
// statuses into typed errors. The caller owns the body on success.
func (c *Client) send(ctx context.Context, method, path string, q url.Values, body interface{}) (*http.Response, error) {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: method + " " + path, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}
	return resp, nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var envelope struct {
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != nil {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func classPath(id int64) string {
	return "/api/classes/" + strconv.FormatInt(id, 10)
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &te) && te.Timeout())
}
