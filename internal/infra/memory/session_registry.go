package memory

import (
	"sync"

	"quiztap-service/internal/app"
)

// SessionRegistry is an in-memory implementation of app.SessionRegistry.
type SessionRegistry struct {
	mu   sync.Mutex
	live map[string]*app.Lifecycle
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{live: make(map[string]*app.Lifecycle)}
}

func (r *SessionRegistry) Register(username string, lc *app.Lifecycle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.live[username]; ok {
		return false
	}
	r.live[username] = lc
	return true
}

func (r *SessionRegistry) Unregister(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.live, username)
}

// Get returns the live lifecycle for a username, if any.
func (r *SessionRegistry) Get(username string) (*app.Lifecycle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lc, ok := r.live[username]
	return lc, ok
}
