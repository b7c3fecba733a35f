package client

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

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"tonotes/dto"
	"tonotes/model"
)

const DefaultTimeout = 30 * time.Second

// Client talks to the notes REST API. Every failure is reported with the
// model error taxonomy so callers can branch with errors.Is and errors.As.
//
// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

type Option func(*Client)

// WithHTTPClient replaces the default instrumented client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithBearerToken sends token on every request for servers with the
// identity gate enabled.
func WithBearerToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// errorBody is the server's utils.Response envelope.
type errorBody struct {
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrTransport, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// do sends the request and returns the status and body. Only failures to
// reach the server are errors here; status handling is left to callers.
func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %s %s: %v", model.ErrTransport, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%w: read response: %v", model.ErrTransport, err)
	}
	return resp.StatusCode, raw, nil
}

// call performs a JSON round trip. Non-2xx statuses are mapped by
// statusError; out may be nil when the body is not needed.
func (c *Client) call(ctx context.Context, method, path string, in, out interface{}) error {
	req, err := c.newRequest(ctx, method, path, in)
	if err != nil {
		return err
	}
	status, raw, err := c.do(req)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return statusError(status, raw)
	}
	if out == nil || status == http.StatusNoContent {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode %s %s response: %v", model.ErrTransport, method, path, err)
	}
	return nil
}

// statusError maps a failed response onto the error taxonomy. 409 is the
// only status that yields a version conflict.
func statusError(status int, raw []byte) error {
	var body errorBody
	_ = json.Unmarshal(raw, &body)
	detail := body.Error
	if detail == "" {
		detail = http.StatusText(status)
	}

	switch {
	case status == http.StatusConflict:
		conflict := &model.VersionConflictError{}
		var current model.Note
		if len(body.Data) > 0 && json.Unmarshal(body.Data, &current) == nil && current.ID != "" {
			conflict.NoteID = current.ID
			conflict.Current = &current
		}
		return conflict
	case status == http.StatusNotFound:
		return model.ErrNotFound
	case status == http.StatusBadRequest:
		return model.ValidationError(detail)
	case status >= 500:
		return fmt.Errorf("%w: %s", model.ErrStorageUnavailable, detail)
	default:
		return fmt.Errorf("%w: unexpected status %d: %s", model.ErrTransport, status, detail)
	}
}

func validContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return model.ValidationError("note content cannot be empty")
	}
	return nil
}

func notePath(id string) string {
	return "/api/notes/" + url.PathEscape(id)
}

func (c *Client) List(ctx context.Context) ([]*model.Note, error) {
	var notes []*model.Note
	if err := c.call(ctx, http.MethodGet, "/api/notes", nil, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

func (c *Client) Get(ctx context.Context, id string) (*model.Note, error) {
	var note model.Note
	if err := c.call(ctx, http.MethodGet, notePath(id), nil, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

// Create rejects blank content without contacting the server.
func (c *Client) Create(ctx context.Context, content string) (*model.Note, error) {
	if err := validContent(content); err != nil {
		return nil, err
	}
	var note model.Note
	if err := c.call(ctx, http.MethodPost, "/api/notes", dto.CreateNoteRequest{Content: content}, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

// Update sends content with the version the caller last saw. A stale version
// yields a *model.VersionConflictError carrying the server's current note.
func (c *Client) Update(ctx context.Context, id, content string, expectedVersion int64) (*model.Note, error) {
	if err := validContent(content); err != nil {
		return nil, err
	}
	var note model.Note
	err := c.call(ctx, http.MethodPut, notePath(id),
		dto.UpdateNoteRequest{Content: content, Version: expectedVersion}, &note)
	if err != nil {
		var conflict *model.VersionConflictError
		if errors.As(err, &conflict) {
			conflict.NoteID = id
			conflict.Expected = expectedVersion
		}
		return nil, err
	}
	return &note, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, notePath(id), nil, nil)
}

// Share asks the server to snapshot the note and mint a token for it.
func (c *Client) Share(ctx context.Context, id string) (*dto.ShareResponse, error) {
	var share dto.ShareResponse
	if err := c.call(ctx, http.MethodPost, notePath(id)+"/share", nil, &share); err != nil {
		return nil, err
	}
	return &share, nil
}

// Resolve decodes token on the server. Prefer services.SnapshotCodec for
// local resolution of unsigned tokens.
func (c *Client) Resolve(ctx context.Context, token string) (model.Snapshot, error) {
	var snapshot model.Snapshot
	err := c.call(ctx, http.MethodGet, "/api/share/"+url.PathEscape(token), nil, &snapshot)
	if errors.Is(err, model.ErrValidation) {
		return model.Snapshot{}, fmt.Errorf("%w: %v", model.ErrDecode, err)
	}
	return snapshot, err
}

// Status reports the search service state. Unknown states read as loading.
func (c *Client) Status(ctx context.Context) (model.ServiceStatus, error) {
	var status model.ServiceStatus
	if err := c.call(ctx, http.MethodGet, "/api/rag/status", nil, &status); err != nil {
		return model.ServiceStatus{}, err
	}
	switch status.State {
	case model.StateActive, model.StateError:
	default:
		status.State = model.StateLoading
	}
	return status, nil
}

func (c *Client) Refresh(ctx context.Context) error {
	err := c.call(ctx, http.MethodPost, "/api/rag/refresh", nil, nil)
	if err == nil {
		return nil
	}
	if errors.Is(err, model.ErrTransport) {
		return &model.SearchError{Detail: err.Error(), Err: err}
	}
	return &model.SearchError{Detail: err.Error()}
}

// Search runs a semantic search. Blank queries are rejected locally. Every
// other failure is a *model.SearchError; the response body is normalized by
// NormalizeSearchResponse.
func (c *Client) Search(ctx context.Context, query string, topK int) (*model.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, model.ValidationError("query cannot be empty")
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/notes/search", dto.SearchRequest{Query: query, TopK: topK})
	if err != nil {
		return nil, err
	}
	status, raw, err := c.do(req)
	if err != nil {
		return nil, &model.SearchError{Detail: err.Error(), Err: err}
	}
	if status < 200 || status > 299 {
		var body errorBody
		detail := http.StatusText(status)
		if json.Unmarshal(raw, &body) == nil && body.Error != "" {
			detail = body.Error
		}
		return nil, &model.SearchError{Status: status, Detail: detail}
	}
	return NormalizeSearchResponse(raw)
}
