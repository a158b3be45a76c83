package breaker

import "sync"

// Well-known service names. Each dependency gets its own breaker so one
// outage never fails calls to another.
const (
	ServiceTranscription = "transcription"
	ServiceTTS           = "tts"
	ServiceAudioProc     = "audioproc"
	ServiceStorage       = "storage"
	ServiceWorker        = "worker"
)

// Registry holds one circuit breaker per named external dependency.
// Construct it in the composition root and inject it; there is no package
// level instance.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
	defaults Options
}

// NewRegistry creates a registry whose breakers share the given defaults.
func NewRegistry(defaults Options) *Registry {
	return &Registry{
		breakers: make(map[string]*CircuitBreaker),
		defaults: defaults,
	}
}

// Get returns the breaker for a service, creating it on first use.
func (r *Registry) Get(service string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	cb, ok := r.breakers[service]
	if !ok {
		cb = New(service, r.defaults)
		r.breakers[service] = cb
	}
	return cb
}

// States returns a snapshot of every registered breaker's state, keyed by
// service name. Used by the health endpoint.
func (r *Registry) States() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.breakers))
	for name, cb := range r.breakers {
		out[name] = cb.State().String()
	}
	return out
}
