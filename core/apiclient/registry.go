package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// IDPlaceholder replaces numeric path segments in request keys.
const IDPlaceholder = ":id"

const defaultRequestTTL = 10 * time.Second

// volatileParams never take part in a request key (pagination, sorting, cache busting).
var volatileParams = map[string]struct{}{
	"page":      {},
	"pagesize":  {},
	"page_size": {},
	"pagenum":   {},
	"per_page":  {},
	"limit":     {},
	"offset":    {},
	"sort":      {},
	"sortby":    {},
	"sort_by":   {},
	"order":     {},
	"orderby":   {},
	"ordering":  {},
	"timestamp": {},
	"_t":        {},
	"t":         {},
	"_":         {},
}

// Handle tracks one in-flight request.
type Handle struct {
	Key       string
	CreatedAt time.Time

	id     uint64
	ctx    context.Context
	cancel context.CancelFunc
}

// Context is cancelled once the handle is released.
func (h *Handle) Context() context.Context {
	return h.ctx
}

// Registry keeps track of in-flight requests by key.
// Duplicate requests are tracked side by side and never aborted.
type Registry struct {
	mu      sync.Mutex
	entries map[string]map[uint64]*Handle
	lastID  uint64
	ttl     time.Duration
	now     func() time.Time
}

func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = defaultRequestTTL
	}
	return &Registry{
		entries: make(map[string]map[uint64]*Handle),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Register always issues a new handle. The entry is dropped on Release or after the registry TTL,
// whichever comes first; expiry does not cancel the request.
func (r *Registry) Register(ctx context.Context, method, path string, query url.Values) *Handle {
	hctx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	r.lastID++
	h := &Handle{
		Key:       Key(method, path, query),
		CreatedAt: r.now(),
		id:        r.lastID,
		ctx:       hctx,
		cancel:    cancel,
	}
	byID, ok := r.entries[h.Key]
	if !ok {
		byID = make(map[uint64]*Handle)
		r.entries[h.Key] = byID
	}
	byID[h.id] = h
	r.mu.Unlock()

	time.AfterFunc(r.ttl, func() { r.remove(h) })
	return h
}

// Release drops the entry and cancels its context. Safe to call more than once.
func (r *Registry) Release(h *Handle) {
	if h == nil {
		return
	}
	r.remove(h)
	h.cancel()
}

func (r *Registry) remove(h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byID, ok := r.entries[h.Key]
	if !ok {
		return
	}
	delete(byID, h.id)
	if len(byID) == 0 {
		delete(r.entries, h.Key)
	}
}

// InFlight returns the number of tracked requests for key.
func (r *Registry) InFlight(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries[key])
}

// Len returns the total number of tracked requests.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int
	for _, byID := range r.entries {
		n += len(byID)
	}
	return n
}

// Key builds the de-duplication key of a request: method and path with numeric segments collapsed,
// plus, for GET requests, the significant query parameters in a stable JSON form.
func Key(method, path string, query url.Values) string {
	method = strings.ToUpper(method)
	key := method + " " + NormalizePath(path)
	if method != http.MethodGet {
		return key
	}

	params := make(map[string][]string)
	if i := strings.Index(path, "?"); i >= 0 {
		if inline, err := url.ParseQuery(stripFragment(path[i+1:])); err == nil {
			mergeSignificant(params, inline)
		}
	}
	mergeSignificant(params, query)
	if len(params) == 0 {
		return key
	}
	b, err := json.Marshal(params) // map keys are sorted
	if err != nil {
		return key
	}
	return key + " " + string(b)
}

// NormalizePath drops the query string and replaces numeric segments with IDPlaceholder,
// so that "/api/users/42" and "/api/users/7" share "/api/users/:id".
func NormalizePath(path string) string {
	segs := strings.Split(stripQuery(path), "/")
	for i, seg := range segs {
		if isNumeric(seg) {
			segs[i] = IDPlaceholder
		}
	}
	return strings.Join(segs, "/")
}

func mergeSignificant(dst map[string][]string, src url.Values) {
	for k, vals := range src {
		if _, volatile := volatileParams[strings.ToLower(k)]; volatile {
			continue
		}
		dst[k] = append(dst[k], vals...)
	}
}

func stripFragment(s string) string {
	if i := strings.Index(s, "#"); i >= 0 {
		return s[:i]
	}
	return s
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
