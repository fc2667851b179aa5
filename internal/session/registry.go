package session

import (
	"sort"
	"sync"
	"time"

	"github.com/eleven-am/voice-bridge/internal/audiocodes"
)

// Conversation is the per-call state tracked for a downstream connection.
type Conversation struct {
	ID          string
	ConnID      string
	Downstream  audiocodes.Sender
	MediaFormat audiocodes.MediaFormat
	BotName     string
	Caller      string
	StartedAt   time.Time
}

// Registry maps conversation ids to their live state. Reads return copies.
type Registry struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
}

func NewRegistry() *Registry {
	return &Registry{
		conversations: make(map[string]*Conversation),
	}
}

// Add stores c, replacing any entry with the same id. It reports whether an
// entry was replaced.
func (r *Registry) Add(c Conversation) bool {
	if c.StartedAt.IsZero() {
		c.StartedAt = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	_, replaced := r.conversations[c.ID]
	r.conversations[c.ID] = &c
	return replaced
}

func (r *Registry) Get(id string) (Conversation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conversations[id]
	if !ok {
		return Conversation{}, false
	}
	return *c, true
}

func (r *Registry) Remove(id string) (Conversation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[id]
	if !ok {
		return Conversation{}, false
	}
	delete(r.conversations, id)
	return *c, true
}

// RemoveIfOwned deletes id only while it is still bound to connID, so a
// connection tearing down cannot remove a conversation that has since been
// resumed elsewhere.
func (r *Registry) RemoveIfOwned(id, connID string) (Conversation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[id]
	if !ok || c.ConnID != connID {
		return Conversation{}, false
	}
	delete(r.conversations, id)
	return *c, true
}

func (r *Registry) List() []Conversation {
	r.mu.RLock()
	list := make([]Conversation, 0, len(r.conversations))
	for _, c := range r.conversations {
		list = append(list, *c)
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].StartedAt.Before(list[j].StartedAt)
	})
	return list
}

func (r *Registry) ByConnection(connID string) []Conversation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var list []Conversation
	for _, c := range r.conversations {
		if c.ConnID == connID {
			list = append(list, *c)
		}
	}
	return list
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conversations)
}
