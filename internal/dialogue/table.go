package dialogue

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// Table holds the live sessions keyed by ID and indexes the one active
// session each user may hold. Idle sessions are evicted after the TTL.
type Table struct {
	mu       sync.Mutex
	items    *cache.Cache
	byUser   map[string]string
	deleting map[string]struct{}
	onExpire func(*Session)
}

// NewTable creates a table whose sessions expire after ttl without
// access. A non-positive ttl disables expiry.
func NewTable(ttl time.Duration) *Table {
	var c *cache.Cache
	if ttl <= 0 {
		c = cache.New(cache.NoExpiration, 0)
	} else {
		c = cache.New(ttl, ttl/2)
	}
	t := &Table{items: c, byUser: make(map[string]string), deleting: make(map[string]struct{})}
	c.OnEvicted(t.evicted)
	return t
}

// Put stores s and makes it its user's active session. It fails with
// ErrSessionActive when the user already holds another live session.
func (t *Table) Put(s *Session) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.byUser[s.UserID()]; ok && id != s.ID() {
		if _, live := t.items.Get(id); live {
			return &ErrSessionActive{UserID: s.UserID(), SessionID: id}
		}
	}
	t.items.SetDefault(s.ID(), s)
	t.byUser[s.UserID()] = s.ID()
	return nil
}

// Get returns the session and re-arms its idle timer.
func (t *Table) Get(id string) (*Session, error) {
	v, ok := t.items.Get(id)
	if !ok {
		return nil, &ErrSessionNotFound{SessionID: id}
	}
	s := v.(*Session)
	t.items.SetDefault(id, s)
	return s, nil
}

// Active returns the user's live session, if any.
func (t *Table) Active(userID string) (*Session, bool) {
	t.mu.Lock()
	id, ok := t.byUser[userID]
	t.mu.Unlock()
	if !ok {
		return nil, false
	}
	v, ok := t.items.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

// OnExpire sets the function called with each session evicted for
// idleness. Sessions removed through Delete are not reported.
func (t *Table) OnExpire(fn func(*Session)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onExpire = fn
}

// Delete removes a session.
func (t *Table) Delete(id string) {
	t.mu.Lock()
	t.deleting[id] = struct{}{}
	t.mu.Unlock()
	t.items.Delete(id)

	t.mu.Lock()
	delete(t.deleting, id)
	t.mu.Unlock()
}

// Sweep evicts every idle session now instead of waiting for the janitor.
func (t *Table) Sweep() {
	t.items.DeleteExpired()
}

// Len counts live sessions.
func (t *Table) Len() int {
	return t.items.ItemCount()
}

// evicted drops the user index entry of a removed session and reports
// idle evictions. go-cache calls it outside its own lock.
func (t *Table) evicted(id string, v any) {
	s, ok := v.(*Session)
	if !ok {
		return
	}
	t.mu.Lock()
	if t.byUser[s.UserID()] == id {
		delete(t.byUser, s.UserID())
	}
	_, deleted := t.deleting[id]
	fn := t.onExpire
	t.mu.Unlock()

	if !deleted && fn != nil {
		fn(s)
	}
}
