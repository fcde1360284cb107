// Package backend talks to the grant-management REST API that owns every
// record shown by the console.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxErrorBody = 64 << 10

// TokenSource yields the bearer token attached to every request. An empty
// string means no token exists yet.
type TokenSource interface {
	Token() string
}

// StaticToken is a fixed token, such as the worker's service account.
type StaticToken string

// Token returns the fixed token.
func (t StaticToken) Token() string { return string(t) }

// Observer records the outcome of backend calls.
type Observer interface {
	ObserveBackend(method, resource string, status int, elapsed time.Duration)
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Observer   Observer
	Logger     *slog.Logger
}

// Client is a thin JSON client for the REST backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	observer   Observer
	logger     *slog.Logger
}

// New constructs a Client.
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: httpClient,
		observer:   opts.Observer,
		logger:     logger,
	}
}

// Get decodes the resource at path into out.
func (c *Client) Get(ctx context.Context, token, path string, out any) error {
	return c.Do(ctx, token, http.MethodGet, path, nil, nil, out)
}

// Create POSTs body to path.
func (c *Client) Create(ctx context.Context, token, path string, body, out any) error {
	return c.Do(ctx, token, http.MethodPost, path, nil, body, out)
}

// Update PUTs body to path.
func (c *Client) Update(ctx context.Context, token, path string, body, out any) error {
	return c.Do(ctx, token, http.MethodPut, path, nil, body, out)
}

// Delete removes the resource at path.
func (c *Client) Delete(ctx context.Context, token, path string) error {
	return c.Do(ctx, token, http.MethodDelete, path, nil, nil, nil)
}

// List fetches one page of a collection.
func List[T any](ctx context.Context, c *Client, token, path string, params ListParams) (ListResult[T], error) {
	var result ListResult[T]
	if err := c.Do(ctx, token, http.MethodGet, path, params.Values(), nil, &result); err != nil {
		return ListResult[T]{}, err
	}
	if result.Data == nil {
		result.Data = []T{}
	}
	return result, nil
}

// Do performs one JSON round trip. A nil body sends no payload and a nil out
// discards the response body.
func (c *Client) Do(ctx context.Context, token, method, path string, query url.Values, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("backend: encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := c.newRequest(ctx, token, method, path, query, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.send(req, path)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return &APIError{Method: method, Path: path, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// Upload describes one multipart file upload.
type Upload struct {
	Filename    string
	ContentType string
	Content     io.Reader
	Fields      map[string]string
}

// UploadResult is the backend answer to an upload.
type UploadResult struct {
	FileID string `json:"file_id"`
}

// Upload sends a multipart/form-data request with a "file" part plus the
// metadata fields.
func (c *Client) Upload(ctx context.Context, token, path string, up Upload) (UploadResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, value := range up.Fields {
		if err := writer.WriteField(name, value); err != nil {
			return UploadResult{}, err
		}
	}
	part, err := writer.CreateFormFile("file", up.Filename)
	if err != nil {
		return UploadResult{}, err
	}
	if _, err := io.Copy(part, up.Content); err != nil {
		return UploadResult{}, fmt.Errorf("backend: buffer upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return UploadResult{}, err
	}

	req, err := c.newRequest(ctx, token, http.MethodPost, path, nil, body)
	if err != nil {
		return UploadResult{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp, err := c.send(req, path)
	if err != nil {
		return UploadResult{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	var result UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return UploadResult{}, &APIError{Method: http.MethodPost, Path: path, Status: resp.StatusCode, Err: fmt.Errorf("decode upload: %w", err)}
	}
	return result, nil
}

// Download is a streamed binary response. Callers must close Body.
type Download struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
	Filename      string
}

// Download opens a binary stream from path.
func (c *Client) Download(ctx context.Context, token, path string) (*Download, error) {
	req, err := c.newRequest(ctx, token, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.send(req, path)
	if err != nil {
		return nil, err
	}
	dl := &Download{
		Body:          resp.Body,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
	}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		dl.Filename = params["filename"]
	}
	return dl, nil
}

func (c *Client) newRequest(ctx context.Context, token, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	target := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("backend: build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// send executes req and turns transport failures and status >= 400 into
// *APIError. On success the caller owns the response body.
func (c *Client) send(req *http.Request, path string) (*http.Response, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(req.Method, path, 0, start)
		return nil, &APIError{Method: req.Method, Path: path, Err: err}
	}
	c.observe(req.Method, path, resp.StatusCode, start)
	if resp.StatusCode < http.StatusBadRequest {
		return resp, nil
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	apiErr := &APIError{Method: req.Method, Path: path, Status: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if len(raw) > 0 && json.Unmarshal(raw, &payload) == nil {
		apiErr.Message = payload.Message
		if apiErr.Message == "" {
			apiErr.Message = payload.Error
		}
	}
	c.logger.Debug("backend request failed",
		slog.String("method", req.Method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode))
	return nil, apiErr
}

func (c *Client) observe(method, path string, status int, start time.Time) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveBackend(method, resourceLabel(path), status, time.Since(start))
}

// resourceLabel keeps metric cardinality bounded by using the first segment.
func resourceLabel(path string) string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return "/"
	}
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		trimmed = trimmed[:i]
	}
	return "/" + trimmed
}
