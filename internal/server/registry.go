package server

import (
	"sync"

	"github.com/udisondev/chessd/internal/model"
)

// registry is the shared user directory: every known account keyed by ID
// and by name, plus the subset that is currently online. The listener
// resolves returning accounts and registers new ones; the relay promotes
// staged users to online and demotes disconnected ones.
type registry struct {
	mu        sync.RWMutex
	byID      map[int64]*model.User
	byName    map[string]*model.User
	onlineSet map[int64]*model.User
}

func newRegistry() *registry {
	return &registry{
		byID:      make(map[int64]*model.User),
		byName:    make(map[string]*model.User),
		onlineSet: make(map[int64]*model.User),
	}
}

// register adds a user to the known set. Names are unique: a second user
// with an existing name is rejected by the admission pipeline before
// registration, so this simply records both keys.
func (r *registry) register(u *model.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[u.ID] = u
	r.byName[u.Name] = u
}

// remove drops a user from the known set entirely.
func (r *registry) remove(u *model.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, u.ID)
	delete(r.byName, u.Name)
	delete(r.onlineSet, u.ID)
}

func (r *registry) byNameLookup(name string) (*model.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byName[name]
	return u, ok
}

func (r *registry) isOnline(id int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.onlineSet[id]
	return ok
}

func (r *registry) onlineByName(name string) (*model.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	if _, on := r.onlineSet[u.ID]; !on {
		return nil, false
	}
	return u, true
}

func (r *registry) setOnline(u *model.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onlineSet[u.ID] = u
}

func (r *registry) setOffline(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.onlineSet, id)
}

// online returns a snapshot slice of the online users.
func (r *registry) online() []*model.User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.User, 0, len(r.onlineSet))
	for _, u := range r.onlineSet {
		out = append(out, u)
	}
	return out
}

// all returns a snapshot slice of every known user.
func (r *registry) all() []*model.User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.User, 0, len(r.byID))
	for _, u := range r.byID {
		out = append(out, u)
	}
	return out
}

// ipTracker counts online users per source address so admission can
// enforce the per-IP cap. The listener increments, the relay decrements.
type ipTracker struct {
	mu     sync.Mutex
	counts map[string]int
}

func newIPTracker() *ipTracker {
	return &ipTracker{counts: make(map[string]int)}
}

func (t *ipTracker) Add(ip string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[ip]++
}

// Discard decrements the count for ip, dropping the entry at zero.
func (t *ipTracker) Discard(ip string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.counts[ip]
	if !ok {
		return
	}
	if n <= 1 {
		delete(t.counts, ip)
		return
	}
	t.counts[ip] = n - 1
}

func (t *ipTracker) Count(ip string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[ip]
}

// Snapshot returns a copy of the per-IP counts.
func (t *ipTracker) Snapshot() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int, len(t.counts))
	for ip, n := range t.counts {
		out[ip] = n
	}
	return out
}
