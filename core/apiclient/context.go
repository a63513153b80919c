package apiclient

import "time"

type (
	// Observer receives dispatcher events, eg. to export metrics.
	Observer interface {
		ObserveRequest(resourceType string, source Source, duration time.Duration)
		ObserveFailure(resourceType string, kind string, status int)
		ObserveBreaker(resourceType string, open bool)
	}

	nopObserver struct{}

	// ClientContext owns the state shared by every dispatch of an application:
	// the per resource health registry and the in-flight request registry.
	ClientContext struct {
		Health   *HealthRegistry
		Requests *Registry
	}

	ContextOptions struct {
		FailureThreshold int
		Cooldown         time.Duration
		RequestTTL       time.Duration
		Observer         Observer
	}
)

func (nopObserver) ObserveRequest(string, Source, time.Duration) {}
func (nopObserver) ObserveFailure(string, string, int)           {}
func (nopObserver) ObserveBreaker(string, bool)                  {}

// NewClientContext is meant to be called once, by the application root.
func NewClientContext(opts ContextOptions) *ClientContext {
	return &ClientContext{
		Health:   NewHealthRegistry(opts.FailureThreshold, opts.Cooldown, opts.Observer),
		Requests: NewRegistry(opts.RequestTTL),
	}
}
