// Package tokenstore holds the access tokens a resource currently accepts.
package tokenstore

import (
	"container/list"
	"errors"
	"sync"
	"time"
)

// DefaultMaxSize bounds a store when no size is configured
const DefaultMaxSize = 10000

// ErrEmptyToken is returned when adding an empty token
var ErrEmptyToken = errors.New("tokenstore: token is empty")

type entry struct {
	added   time.Time
	element *list.Element
}

// Memory is a mutex-guarded bounded set of tokens. When full, the oldest
// token is evicted to make room. With a TTL, tokens older than the TTL are
// treated as absent and dropped lazily.
type Memory struct {
	mu      sync.Mutex
	tokens  map[string]*entry
	order   *list.List // oldest at front
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

// Option configures a Memory store
type Option func(*Memory)

// WithMaxSize sets the eviction bound; non-positive values keep the default
func WithMaxSize(n int) Option {
	return func(m *Memory) {
		if n > 0 {
			m.maxSize = n
		}
	}
}

// WithTTL expires tokens after ttl; zero keeps them until consumed or evicted
func WithTTL(ttl time.Duration) Option {
	return func(m *Memory) {
		m.ttl = ttl
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(m *Memory) {
		m.now = now
	}
}

// NewMemory creates an empty store
func NewMemory(opts ...Option) *Memory {
	m := &Memory{
		tokens:  make(map[string]*entry),
		order:   list.New(),
		maxSize: DefaultMaxSize,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Add inserts token. Re-adding a live token keeps its original position.
func (m *Memory) Add(token string) error {
	if token == "" {
		return ErrEmptyToken
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.tokens[token]; ok {
		if !m.expiredLocked(e) {
			return nil
		}
		m.removeLocked(token, e)
	}

	for len(m.tokens) >= m.maxSize {
		m.evictOldestLocked()
	}

	m.tokens[token] = &entry{
		added:   m.now(),
		element: m.order.PushBack(token),
	}
	return nil
}

// Contains reports whether token is present and not expired
func (m *Memory) Contains(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.tokens[token]
	if !ok {
		return false
	}
	if m.expiredLocked(e) {
		m.removeLocked(token, e)
		return false
	}
	return true
}

// Consume removes token and reports whether it was present and not expired.
// Exactly one of any number of concurrent callers sees true.
func (m *Memory) Consume(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.tokens[token]
	if !ok {
		return false
	}
	m.removeLocked(token, e)
	return !m.expiredLocked(e)
}

// Remove deletes token if present
func (m *Memory) Remove(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.tokens[token]; ok {
		m.removeLocked(token, e)
	}
}

// Len returns the number of stored tokens, dropping expired ones first
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pruneLocked()
	return len(m.tokens)
}

func (m *Memory) expiredLocked(e *entry) bool {
	return m.ttl > 0 && m.now().Sub(e.added) >= m.ttl
}

func (m *Memory) removeLocked(token string, e *entry) {
	m.order.Remove(e.element)
	delete(m.tokens, token)
}

func (m *Memory) evictOldestLocked() {
	front := m.order.Front()
	if front == nil {
		return
	}
	token, _ := front.Value.(string)
	m.order.Remove(front)
	delete(m.tokens, token)
}

// pruneLocked drops expired tokens from the front; insertion order is age order.
func (m *Memory) pruneLocked() {
	if m.ttl <= 0 {
		return
	}
	for front := m.order.Front(); front != nil; front = m.order.Front() {
		token, _ := front.Value.(string)
		e := m.tokens[token]
		if !m.expiredLocked(e) {
			return
		}
		m.removeLocked(token, e)
	}
}
