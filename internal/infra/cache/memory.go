package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"nova-xfinity/internal/domain"
)

// ErrMiss is returned by MemoryCache.Get for absent or expired keys.
var ErrMiss = errors.New("cache miss")

var (
	_ domain.Cache        = (*MemoryCache)(nil)
	_ domain.SessionStore = (*MemorySessionStore)(nil)
)

type memEntry struct {
	value   []byte
	expires time.Time
}

// MemoryCache is a process-local domain.Cache used when Redis is not configured.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memEntry
	now     domain.Clock
}

func NewMemory() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memEntry), now: time.Now}
}

func (c *MemoryCache) Once(_ context.Context, key string, ttl time.Duration, fn func() error) error {
	c.mu.Lock()
	if _, ok := c.lookup(key); ok {
		c.mu.Unlock()
		return nil
	}
	c.store(key, []byte("1"), ttl)
	c.mu.Unlock()

	if err := fn(); err != nil {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return err
	}
	return nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store(key, append([]byte(nil), value...), ttl)
	return nil
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lookup(key)
	if !ok {
		return nil, ErrMiss
	}
	return append([]byte(nil), e.value...), nil
}

func (c *MemoryCache) lookup(key string) (memEntry, bool) {
	e, ok := c.entries[key]
	if !ok {
		return memEntry{}, false
	}
	if !e.expires.IsZero() && !c.now().Before(e.expires) {
		delete(c.entries, key)
		return memEntry{}, false
	}
	return e, true
}

func (c *MemoryCache) store(key string, value []byte, ttl time.Duration) {
	e := memEntry{value: value}
	if ttl > 0 {
		e.expires = c.now().Add(ttl)
	}
	c.entries[key] = e
}

// MemorySessionStore keeps assistant sessions in process memory.
type MemorySessionStore struct {
	mu            sync.Mutex
	tokens        map[string]int
	conversations map[string][]domain.ChatMessage
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		tokens:        make(map[string]int),
		conversations: make(map[string][]domain.ChatMessage),
	}
}

func (s *MemorySessionStore) AddTokens(_ context.Context, sessionKey string, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[sessionKey] += delta
	return s.tokens[sessionKey], nil
}

func (s *MemorySessionStore) Tokens(_ context.Context, sessionKey string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens[sessionKey], nil
}

func (s *MemorySessionStore) AppendConversation(_ context.Context, sessionKey string, messages []domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[sessionKey] = append(s.conversations[sessionKey], messages...)
	return nil
}

func (s *MemorySessionStore) Conversation(_ context.Context, sessionKey string) ([]domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ChatMessage(nil), s.conversations[sessionKey]...), nil
}

func (s *MemorySessionStore) Clear(_ context.Context, sessionKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, sessionKey)
	delete(s.conversations, sessionKey)
	return nil
}
