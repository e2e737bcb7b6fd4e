package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/cortexai/cortexbi/internal/models"
)

// Manager is the in-memory registry of conversations. A conversation that
// is not touched for ttl is evicted; nothing survives a restart.
type Manager struct {
	cache  *cache.Cache
	collab Collaborators
	opts   []Option
}

// NewManager creates a registry whose conversations share collab and opts.
func NewManager(collab Collaborators, ttl time.Duration, opts ...Option) *Manager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	c := cache.New(ttl, ttl/2)
	c.OnEvicted(func(id string, _ interface{}) {
		log.Debug().Str("conversation_id", id).Msg("conversation expired")
	})
	return &Manager{cache: c, collab: collab, opts: opts}
}

// Create starts a new conversation.
func (m *Manager) Create() *Conversation {
	conv := New(uuid.NewString(), m.collab, m.opts...)
	m.cache.SetDefault(conv.ID(), conv)
	return conv
}

// Get returns conversation id and refreshes its expiry.
func (m *Manager) Get(id string) (*Conversation, error) {
	v, ok := m.cache.Get(id)
	if !ok {
		return nil, models.ErrConversationNotFound
	}
	conv := v.(*Conversation)
	m.cache.SetDefault(id, conv)
	return conv, nil
}

// Delete clears and forgets conversation id.
func (m *Manager) Delete(id string) error {
	conv, err := m.Get(id)
	if err != nil {
		return err
	}
	conv.Clear()
	m.cache.Delete(id)
	return nil
}

// Len reports how many conversations are live.
func (m *Manager) Len() int {
	return m.cache.ItemCount()
}
