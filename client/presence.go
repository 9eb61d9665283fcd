package client

import (
	"sort"
	"sync"

	"github.com/Youssouf13001/creativindustry-chat/internal/models"
)

// PresenceSet is the membership of "who is online". The push surface
// mutates it incrementally; the poll surface replaces it wholesale and
// reads the diff.
type PresenceSet struct {
	mu    sync.RWMutex
	users map[string]models.OnlineUser
}

// NewPresenceSet creates an empty presence set.
func NewPresenceSet() *PresenceSet {
	return &PresenceSet{users: make(map[string]models.OnlineUser)}
}

// Replace swaps the whole membership for the given snapshot.
func (p *PresenceSet) Replace(snapshot []models.OnlineUser) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users = make(map[string]models.OnlineUser, len(snapshot))
	for _, u := range snapshot {
		p.users[u.ID] = u
	}
}

// ReplaceDiff swaps the membership for the snapshot and reports who joined
// and who left relative to the previous state.
func (p *PresenceSet) ReplaceDiff(snapshot []models.OnlineUser) (joined, left []models.OnlineUser) {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := make(map[string]models.OnlineUser, len(snapshot))
	for _, u := range snapshot {
		next[u.ID] = u
		if _, ok := p.users[u.ID]; !ok {
			joined = append(joined, u)
		}
	}
	for id, u := range p.users {
		if _, ok := next[id]; !ok {
			left = append(left, u)
		}
	}
	p.users = next
	return joined, left
}

// Add inserts a user. Adding a present id is a no-op; the return value
// reports whether membership changed.
func (p *PresenceSet) Add(u models.OnlineUser) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.users[u.ID]; ok {
		return false
	}
	p.users[u.ID] = u
	return true
}

// Remove deletes a user by id. Removing an absent id is a no-op.
func (p *PresenceSet) Remove(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.users[id]; !ok {
		return false
	}
	delete(p.users, id)
	return true
}

// Contains reports whether the given id is online.
func (p *PresenceSet) Contains(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.users[id]
	return ok
}

// Len returns the membership size.
func (p *PresenceSet) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.users)
}

// List returns the members sorted by name for stable display.
func (p *PresenceSet) List() []models.OnlineUser {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]models.OnlineUser, 0, len(p.users))
	for _, u := range p.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
