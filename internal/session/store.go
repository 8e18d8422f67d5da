package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists sessions between interactions.
type Store interface {
	// Load returns the session for chatID, or a fresh one when none is stored.
	Load(ctx context.Context, chatID int64) (*Session, error)
	Save(ctx context.Context, s *Session) error
}

// MemoryStore keeps sessions in process memory. They vanish on restart.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore builds a memory store. A zero ttl keeps sessions until restart.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[int64]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (m *MemoryStore) Load(_ context.Context, chatID int64) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[chatID]
	if !ok {
		return New(chatID), nil
	}
	if m.expired(s) {
		delete(m.sessions, chatID)
		return New(chatID), nil
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	if s == nil {
		return fmt.Errorf("nil session")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := s.Clone()
	stored.UpdatedAt = m.now()
	m.sessions[s.ChatID] = stored
	return nil
}

// Sweep drops expired sessions and returns how many were removed.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.sessions {
		if m.expired(s) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

func (m *MemoryStore) expired(s *Session) bool {
	return m.ttl > 0 && m.now().Sub(s.UpdatedAt) > m.ttl
}

// RedisStore keeps sessions as JSON values with a sliding TTL.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

const defaultKeyPrefix = "attendance-bot:session:"

// NewRedisStore builds a Redis-backed store.
func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: defaultKeyPrefix, ttl: ttl}
}

func (r *RedisStore) key(chatID int64) string {
	return fmt.Sprintf("%s%d", r.prefix, chatID)
}

func (r *RedisStore) Load(ctx context.Context, chatID int64) (*Session, error) {
	raw, err := r.client.Get(ctx, r.key(chatID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return New(chatID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session %d: %w", chatID, err)
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode session %d: %w", chatID, err)
	}
	s.ChatID = chatID
	return &s, nil
}

func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	if s == nil {
		return fmt.Errorf("nil session")
	}
	s.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session %d: %w", s.ChatID, err)
	}
	if err := r.client.Set(ctx, r.key(s.ChatID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("save session %d: %w", s.ChatID, err)
	}
	return nil
}
