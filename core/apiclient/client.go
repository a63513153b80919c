package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-admin/core"
)

const defaultTimeout = 15 * time.Second

// Source tells where the data of a Response comes from.
type Source int

const (
	SourceNetwork Source = iota
	SourceMock
	SourceFallback
)

func (s Source) String() string {
	switch s {
	case SourceNetwork:
		return "network"
	case SourceMock:
		return "mock"
	case SourceFallback:
		return "fallback"
	}
	return "unknown"
}

type (
	// Request describes one API call. Body is JSON encoded; Form, when set, is sent as multipart instead.
	Request struct {
		Method string
		Path   string
		Query  url.Values
		Body   interface{}
		Form   *Form
		// Raw skips envelope normalization (binary downloads).
		Raw bool
	}

	// Form is a multipart body with an optional file part.
	Form struct {
		Fields    url.Values
		FileField string
		FileName  string
		File      []byte
	}

	Response struct {
		Status int
		Header http.Header
		Data   []byte
		Source Source
	}

	// TokenSource provides the bearer token of the current session, "" when logged out.
	TokenSource interface {
		AccessToken() string
	}

	Options struct {
		BaseURL    string
		Timeout    time.Duration
		HTTPClient *http.Client
		Tokens     TokenSource
		// Mock serves as primary source in mock mode, and as second chance after infra failures.
		Mock     MockProvider
		MockMode bool
		Fallback bool
		Logger   core.Logger
		Observer Observer
	}

	// Client is the single entry point of every API call.
	Client struct {
		cctx       *ClientContext
		baseURL    string
		timeout    time.Duration
		httpClient *http.Client
		tokens     TokenSource
		mock       MockProvider
		mockMode   bool
		fallback   bool
		logger     core.Logger
		observer   Observer
	}
)

// Decode unmarshals the response data into v.
func (r *Response) Decode(v interface{}) error {
	if v == nil || len(r.Data) == 0 {
		return nil
	}
	return errors.Wrap(json.Unmarshal(r.Data, v), "decoding response")
}

// Mocked reports whether the data did not come from the backend.
func (r *Response) Mocked() bool {
	return r.Source != SourceNetwork
}

func NewClient(cctx *ClientContext, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Mock == nil {
		opts.Mock = NewMockTable()
	}
	if opts.Logger == nil {
		opts.Logger = core.NopLogger{}
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	return &Client{
		cctx:       cctx,
		baseURL:    strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		timeout:    opts.Timeout,
		httpClient: opts.HTTPClient,
		tokens:     opts.Tokens,
		mock:       opts.Mock,
		mockMode:   opts.MockMode,
		fallback:   opts.Fallback,
		logger:     opts.Logger,
		observer:   opts.Observer,
	}
}

// Context returns the shared client state.
func (c *Client) Context() *ClientContext {
	return c.cctx
}

// MockMode reports whether the mock table is the primary source.
func (c *Client) MockMode() bool {
	return c.mockMode
}

// Do dispatches req. Infra failures (5xx, no response, timeout) never reach the caller:
// they count against the resource health, then the mock table and finally a safe empty shape answer instead.
// Application level rejections are returned as *BackendError.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	resourceType, tracked := Classify(req.Path)

	h := c.cctx.Requests.Register(ctx, req.Method, req.Path, req.Query)
	defer c.cctx.Requests.Release(h)

	if c.mockMode {
		if res := c.mock.Lookup(req); res.Status == MockHit {
			return c.finish(resourceType, req, &Response{Status: http.StatusOK, Data: res.Payload, Source: SourceMock}, start)
		}
	}

	if tracked && c.cctx.Health.ShouldUseFallback(resourceType) {
		c.logger.Warn("resource degraded, serving fallback", diagnostics(resourceType, req, 0))
		return c.finish(resourceType, req, c.fallbackResponse(req), start)
	}

	resp, err := c.send(h.Context(), req)
	if err != nil {
		if !IsInfraError(err) {
			return nil, err
		}
		status := StatusOf(err)
		c.logger.Error("request failed", err, diagnostics(resourceType, req, status))
		c.observer.ObserveFailure(resourceType, failureKind(err), status)
		if tracked && c.cctx.Health.RecordFailure(resourceType) {
			c.logger.Warn("resource degraded", diagnostics(resourceType, req, status))
		}
		if !c.fallback {
			return nil, err
		}
		return c.finish(resourceType, req, c.fallbackResponse(req), start)
	}
	return c.finish(resourceType, req, resp, start)
}

// fallbackResponse gives the mock table a second chance, then falls back to a safe shape.
func (c *Client) fallbackResponse(req *Request) *Response {
	if res := c.mock.Lookup(req); res.Status == MockHit {
		return &Response{Status: http.StatusOK, Data: res.Payload, Source: SourceMock}
	}
	return &Response{Status: http.StatusOK, Data: SafeShape(req.Method, req.Path), Source: SourceFallback}
}

func (c *Client) finish(resourceType string, req *Request, resp *Response, start time.Time) (*Response, error) {
	c.observer.ObserveRequest(resourceType, resp.Source, time.Since(start))
	if req.Raw && resp.Status < http.StatusBadRequest {
		return resp, nil
	}

	data, err := Normalize(resp.Data, req.Path)
	if err != nil {
		if bErr, ok := err.(*BackendError); ok && bErr.Status == 0 && resp.Status >= http.StatusBadRequest {
			bErr.Status = resp.Status
		}
		c.logger.Warn("request rejected", err, diagnostics(resourceType, req, resp.Status))
		return nil, err
	}
	if resp.Status >= http.StatusBadRequest && !isAuthPath(req.Path) {
		bErr := &BackendError{Message: http.StatusText(resp.Status), Details: data, Status: resp.Status}
		if msg := errorMessage(data); msg != "" {
			bErr.Message = msg
		}
		c.logger.Warn("request rejected", bErr, diagnostics(resourceType, req, resp.Status))
		return nil, bErr
	}
	resp.Data = data
	return resp, nil
}

func (c *Client) send(ctx context.Context, req *Request) (*Response, error) {
	body, contentType, err := req.encode()
	if err != nil {
		return nil, &RequestSetupError{Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, strings.ToUpper(req.Method), c.url(req), body)
	if err != nil {
		return nil, &RequestSetupError{Err: err}
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-Id", uuid.New().String())
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if c.tokens != nil {
		if token := c.tokens.AccessToken(); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(ctx, req.Path, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, classifyTransportError(ctx, req.Path, err)
	}
	if httpResp.StatusCode >= http.StatusInternalServerError {
		return nil, &ServerError{Path: req.Path, Status: httpResp.StatusCode, Body: data}
	}
	return &Response{Status: httpResp.StatusCode, Header: httpResp.Header, Data: data, Source: SourceNetwork}, nil
}

func (c *Client) url(req *Request) string {
	u := c.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + req.Query.Encode()
	}
	return u
}

// classifyTransportError tells timeouts apart from missing responses.
// A request cancelled by the caller is neither: it does not count against the backend.
func classifyTransportError(ctx context.Context, path string, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return &TimeoutError{Path: path, Err: err}
	case errors.Is(ctx.Err(), context.Canceled):
		return errors.Wrap(ctx.Err(), "request cancelled")
	}
	return &NoResponseError{Path: path, Err: err}
}

func failureKind(err error) string {
	var (
		srvErr     *ServerError
		timeoutErr *TimeoutError
	)
	switch {
	case errors.As(err, &srvErr):
		return "server"
	case errors.As(err, &timeoutErr):
		return "timeout"
	}
	return "no_response"
}

func diagnostics(resourceType string, req *Request, status int) map[string]interface{} {
	return map[string]interface{}{
		"resource": resourceType,
		"method":   strings.ToUpper(req.Method),
		"path":     req.Path,
		"status":   status,
	}
}

// errorMessage digs a message out of an error body that did not follow any failing envelope.
func errorMessage(data []byte) string {
	var body struct {
		Message      json.RawMessage `json:"message"`
		Error        json.RawMessage `json:"error"`
		ErrorMessage json.RawMessage `json:"errorMessage"`
		Title        json.RawMessage `json:"title"`
	}
	if !isObject(data) || json.Unmarshal(data, &body) != nil {
		return ""
	}
	return firstString(body.Message, body.Error, body.ErrorMessage, body.Title)
}

func (req *Request) validate() error {
	if strings.TrimSpace(req.Method) == "" {
		return &RequestSetupError{Err: errEmptyMethod}
	}
	if strings.TrimSpace(req.Path) == "" {
		return &RequestSetupError{Err: errors.New("missing request path")}
	}
	return nil
}

func (req *Request) encode() (io.Reader, string, error) {
	switch {
	case req.Form != nil:
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		for k, vals := range req.Form.Fields {
			for _, v := range vals {
				if err := w.WriteField(k, v); err != nil {
					return nil, "", errors.Wrapf(err, "writing field %q", k)
				}
			}
		}
		if req.Form.FileField != "" {
			part, err := w.CreateFormFile(req.Form.FileField, req.Form.FileName)
			if err != nil {
				return nil, "", errors.Wrap(err, "creating file part")
			}
			if _, err = part.Write(req.Form.File); err != nil {
				return nil, "", errors.Wrap(err, "writing file part")
			}
		}
		if err := w.Close(); err != nil {
			return nil, "", errors.Wrap(err, "closing multipart writer")
		}
		return &buf, w.FormDataContentType(), nil
	case req.Body != nil:
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, "", errors.Wrap(err, "encoding body")
		}
		return bytes.NewReader(b), "application/json", nil
	}
	return nil, "", nil
}

// Helpers

func (c *Client) call(ctx context.Context, req *Request, out interface{}) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.call(ctx, &Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out interface{}) error {
	return c.call(ctx, &Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out interface{}) error {
	return c.call(ctx, &Request{Method: http.MethodPut, Path: path, Body: body}, out)
}

func (c *Client) Patch(ctx context.Context, path string, body, out interface{}) error {
	return c.call(ctx, &Request{Method: http.MethodPatch, Path: path, Body: body}, out)
}

func (c *Client) Delete(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.call(ctx, &Request{Method: http.MethodDelete, Path: path, Query: query}, out)
}

var probePaths = []string{"/api/health", "/api/version", "/health", "/api/ping", "/api", "/"}

// ErrUnreachable is returned by Probe when no probe path answered.
var ErrUnreachable = errors.New("backend unreachable")

// Probe checks whether the backend is reachable. It bypasses the mock table and the health registry,
// and returns the first probe path answering a non-empty body.
func (c *Client) Probe(ctx context.Context) (string, error) {
	for _, path := range probePaths {
		if err := ctx.Err(); err != nil {
			return "", errors.Wrap(err, "probing backend")
		}
		resp, err := c.send(ctx, &Request{Method: http.MethodGet, Path: path})
		if err != nil {
			c.logger.Debug("probe failed", err, map[string]interface{}{"path": path})
			continue
		}
		if len(bytes.TrimSpace(resp.Data)) > 0 {
			return path, nil
		}
	}
	return "", ErrUnreachable
}
