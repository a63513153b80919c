package apiclient

import (
	"sort"
	"sync"
	"time"
)

const (
	defaultFailureThreshold = 3
	defaultCooldown         = 5 * time.Minute
)

// ResourceHealth is the breaker state of one resource type.
// UseBackup is only ever set once FailCount reached the threshold,
// and FailCount goes back to 0 exactly when UseBackup is cleared.
type ResourceHealth struct {
	ResourceType string    `json:"resourceType"`
	FailCount    int       `json:"failCount"`
	LastFailTime time.Time `json:"lastFailTime"`
	UseBackup    bool      `json:"useBackup"`
}

// HealthRegistry is a per resource type circuit breaker.
// Recovery is timed: Degraded resources are reset once the cooldown elapses, without probing the backend.
type HealthRegistry struct {
	mu        sync.Mutex
	resources map[string]*ResourceHealth
	threshold int
	cooldown  time.Duration
	now       func() time.Time
	observer  Observer
}

func NewHealthRegistry(threshold int, cooldown time.Duration, observer Observer) *HealthRegistry {
	if threshold <= 0 {
		threshold = defaultFailureThreshold
	}
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &HealthRegistry{
		resources: make(map[string]*ResourceHealth),
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
		observer:  observer,
	}
}

// RecordFailure counts an infra level failure against resourceType.
// It reports true when this failure moved the resource to Degraded.
func (h *HealthRegistry) RecordFailure(resourceType string) bool {
	h.mu.Lock()
	rh, ok := h.resources[resourceType]
	if !ok {
		rh = &ResourceHealth{ResourceType: resourceType}
		h.resources[resourceType] = rh
	}
	rh.FailCount++
	rh.LastFailTime = h.now()

	tripped := !rh.UseBackup && rh.FailCount >= h.threshold
	if tripped {
		rh.UseBackup = true
	}
	h.mu.Unlock()

	if tripped {
		h.observer.ObserveBreaker(resourceType, true)
		time.AfterFunc(h.cooldown, func() { h.reset(resourceType) })
	}
	return tripped
}

// ShouldUseFallback reports whether calls for resourceType must be served from the fallback path.
func (h *HealthRegistry) ShouldUseFallback(resourceType string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	rh, ok := h.resources[resourceType]
	return ok && rh.UseBackup
}

// Snapshot returns a copy of the state of resourceType.
func (h *HealthRegistry) Snapshot(resourceType string) (ResourceHealth, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rh, ok := h.resources[resourceType]
	if !ok {
		return ResourceHealth{ResourceType: resourceType}, false
	}
	return *rh, true
}

// All returns a copy of every tracked resource, sorted by resource type.
func (h *HealthRegistry) All() []ResourceHealth {
	h.mu.Lock()
	all := make([]ResourceHealth, 0, len(h.resources))
	for _, rh := range h.resources {
		all = append(all, *rh)
	}
	h.mu.Unlock()

	sort.Slice(all, func(i, j int) bool { return all[i].ResourceType < all[j].ResourceType })
	return all
}

func (h *HealthRegistry) reset(resourceType string) {
	h.mu.Lock()
	if rh, ok := h.resources[resourceType]; ok {
		rh.FailCount = 0
		rh.UseBackup = false
	}
	h.mu.Unlock()

	h.observer.ObserveBreaker(resourceType, false)
}
