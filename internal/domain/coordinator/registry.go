package coordinator

import "sync"

// Registry hands out one coordinator per user.
type Registry struct {
	cfg Config

	mu           sync.Mutex
	coordinators map[string]*Coordinator
	closed       bool
}

// NewRegistry creates a registry whose coordinators share cfg.
func NewRegistry(cfg Config) *Registry {
	return &Registry{cfg: cfg, coordinators: make(map[string]*Coordinator)}
}

// For returns the user's coordinator, creating it on first use.
func (r *Registry) For(userID string) (*Coordinator, error) {
	if userID == "" {
		userID = AnonymousUser
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	c, ok := r.coordinators[userID]
	if !ok {
		c = New(r.cfg)
		r.coordinators[userID] = c
	}
	return c, nil
}

// Close shuts down every coordinator.
func (r *Registry) Close() {
	r.mu.Lock()
	coordinators := r.coordinators
	r.coordinators = map[string]*Coordinator{}
	r.closed = true
	r.mu.Unlock()

	for _, c := range coordinators {
		c.Close()
	}
}
