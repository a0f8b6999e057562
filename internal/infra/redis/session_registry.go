package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"quiztap-service/internal/app"
)

// SessionRegistry is a Redis-aware implementation of app.SessionRegistry.
// Notes:
//   - Lifecycles live in-process; the local map is what actually serializes
//     "one live session per username" on this instance.
//   - Redis carries a liveness marker per username so operators (and, later,
//     other instances) can see who is mid-quiz.
type SessionRegistry struct {
	client *redis.Client
	ttl    time.Duration
	mu     sync.Mutex
	live   map[string]*app.Lifecycle
}

func NewSessionRegistry(client *redis.Client, ttl time.Duration) *SessionRegistry {
	return &SessionRegistry{
		client: client,
		ttl:    ttl,
		live:   make(map[string]*app.Lifecycle),
	}
}

func (r *SessionRegistry) Register(username string, lc *app.Lifecycle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.live[username]; ok {
		return false
	}
	r.live[username] = lc
	// best-effort liveness marker
	_ = r.client.Set(context.Background(), r.key(username), "1", r.ttl).Err()
	return true
}

func (r *SessionRegistry) Unregister(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.live[username]; !ok {
		return
	}
	delete(r.live, username)
	_ = r.client.Del(context.Background(), r.key(username)).Err()
}

func (r *SessionRegistry) key(username string) string {
	return "quiz:live:" + username
}
