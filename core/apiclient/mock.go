package apiclient

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// MockStatus tells whether the mock table had an answer.
type MockStatus int

const (
	NoMockAvailable MockStatus = iota
	MockHit
)

type (
	// MockResult is the outcome of a mock lookup.
	MockResult struct {
		Status  MockStatus
		Payload []byte
	}

	// MockProvider answers requests from canned or generated data.
	MockProvider interface {
		Lookup(req *Request) MockResult
	}

	// MockHandler generates the payload of a matched route.
	MockHandler func(req *Request) MockResult

	mockRoute struct {
		method  string
		pattern string
		handle  MockHandler
	}

	mockRule struct {
		contains string
		handle   MockHandler
	}

	// MockTable matches exact (method, path) routes first, then path substrings.
	// Route patterns use IDPlaceholder for numeric segments, eg. "/api/courses/:id".
	MockTable struct {
		mu     sync.RWMutex
		routes []mockRoute
		rules  []mockRule
	}
)

var noMock = MockResult{Status: NoMockAvailable}

// Hit wraps a payload into a MockResult.
func Hit(payload []byte) MockResult {
	return MockResult{Status: MockHit, Payload: payload}
}

// HitJSON marshals v into a MockResult. Values that cannot be marshalled are no hit.
func HitJSON(v interface{}) MockResult {
	b, err := json.Marshal(v)
	if err != nil {
		return noMock
	}
	return Hit(b)
}

// NoMock is the MockResult of a lookup without answer.
func NoMock() MockResult {
	return noMock
}

func NewMockTable() *MockTable {
	return &MockTable{}
}

var _ MockProvider = (*MockTable)(nil)

// Handle registers an exact route. method "" matches any method.
func (t *MockTable) Handle(method, pattern string, handle MockHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.routes = append(t.routes, mockRoute{method: strings.ToUpper(method), pattern: NormalizePath(pattern), handle: handle})
}

// Static registers an exact route answering a fixed payload.
func (t *MockTable) Static(method, pattern string, payload []byte) {
	t.Handle(method, pattern, func(*Request) MockResult { return Hit(payload) })
}

// Contains registers a substring rule, tried after every exact route.
func (t *MockTable) Contains(substr string, handle MockHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rules = append(t.rules, mockRule{contains: strings.ToLower(substr), handle: handle})
}

func (t *MockTable) Lookup(req *Request) MockResult {
	t.mu.RLock()
	defer t.mu.RUnlock()

	method := strings.ToUpper(req.Method)
	path := NormalizePath(req.Path)
	for _, route := range t.routes {
		if (route.method == "" || route.method == method) && route.pattern == path {
			if res := route.handle(req); res.Status == MockHit {
				return res
			}
		}
	}

	lpath := strings.ToLower(path)
	for _, rule := range t.rules {
		if strings.Contains(lpath, rule.contains) {
			if res := rule.handle(req); res.Status == MockHit {
				return res
			}
		}
	}
	return noMock
}

// SafeShape is the last resort answer when neither the backend nor the mock table can answer:
// an empty list for collection reads, an empty object for single item reads and a success flag for writes.
func SafeShape(method, path string) []byte {
	if strings.ToUpper(method) != http.MethodGet {
		return []byte(`{"success":true}`)
	}
	if isItemPath(path) {
		return []byte(`{}`)
	}
	return []byte(`[]`)
}

func isItemPath(path string) bool {
	segs := strings.Split(strings.TrimRight(NormalizePath(path), "/"), "/")
	return segs[len(segs)-1] == IDPlaceholder
}

// Fields gathers the parameters of a request: query values, multipart fields and top level JSON body fields.
func Fields(req *Request) url.Values {
	fields := make(url.Values)
	if i := strings.Index(req.Path, "?"); i >= 0 {
		if inline, err := url.ParseQuery(stripFragment(req.Path[i+1:])); err == nil {
			for k, vals := range inline {
				fields[k] = append(fields[k], vals...)
			}
		}
	}
	for k, vals := range req.Query {
		fields[k] = append(fields[k], vals...)
	}
	if req.Form != nil {
		for k, vals := range req.Form.Fields {
			fields[k] = append(fields[k], vals...)
		}
	}
	if req.Body != nil {
		var body map[string]json.RawMessage
		if b, err := json.Marshal(req.Body); err == nil && json.Unmarshal(b, &body) == nil {
			for k, raw := range body {
				fields.Add(k, stringValue(raw))
			}
		}
	}
	return fields
}
