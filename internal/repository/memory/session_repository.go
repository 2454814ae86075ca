package memory

import (
	"context"
	"sync"
	"time"

	"ai-helpdesk-be/pkg/store"

	"github.com/patrickmn/go-cache"
)

// SessionRepository keeps sessions in process memory.
// A ttl of 0 keeps sessions resident until deleted; maxSessions of 0 means unbounded.
type SessionRepository struct {
	cache       *cache.Cache
	maxSessions int

	mu        sync.Mutex // serializes Save/Delete so the bound and Delete's result hold
	clearing  sync.Map   // ids being deleted on request, not evicted
	onEvicted func(id string)
	hookMu    sync.RWMutex
}

func NewSessionRepository(ttl, cleanupInterval time.Duration, maxSessions int) *SessionRepository {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	r := &SessionRepository{
		cache:       cache.New(ttl, cleanupInterval),
		maxSessions: maxSessions,
	}
	r.cache.OnEvicted(func(id string, _ interface{}) {
		if _, ok := r.clearing.Load(id); ok {
			return
		}
		r.hookMu.RLock()
		fn := r.onEvicted
		r.hookMu.RUnlock()
		if fn != nil {
			fn(id)
		}
	})
	return r
}

func (r *SessionRepository) OnEvicted(fn func(id string)) {
	r.hookMu.Lock()
	r.onEvicted = fn
	r.hookMu.Unlock()
}

func (r *SessionRepository) Get(_ context.Context, id string) (*store.Session, bool, error) {
	if x, found := r.cache.Get(id); found {
		return x.(*store.Session).Clone(), true, nil
	}
	return nil, false, nil
}

func (r *SessionRepository) Save(_ context.Context, session *store.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.maxSessions > 0 {
		if _, exists := r.cache.Get(session.ID); !exists {
			for r.cache.ItemCount() >= r.maxSessions {
				if !r.evictOldest() {
					break
				}
			}
		}
	}

	r.cache.Set(session.ID, session.Clone(), cache.DefaultExpiration)
	return nil
}

// evictOldest drops the least recently updated session
func (r *SessionRepository) evictOldest() bool {
	var (
		oldestID string
		oldestAt time.Time
	)
	for id, item := range r.cache.Items() {
		s := item.Object.(*store.Session)
		if oldestID == "" || s.UpdatedAt.Before(oldestAt) {
			oldestID, oldestAt = id, s.UpdatedAt
		}
	}
	if oldestID == "" {
		return false
	}
	r.cache.Delete(oldestID)
	return true
}

func (r *SessionRepository) Delete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, found := r.cache.Get(id); !found {
		return false, nil
	}
	r.clearing.Store(id, struct{}{})
	r.cache.Delete(id)
	r.clearing.Delete(id)
	return true, nil
}

// Count reports live sessions only; ItemCount would include expired entries
// the janitor has not swept yet.
func (r *SessionRepository) Count(_ context.Context) (int, error) {
	return len(r.cache.Items()), nil
}
