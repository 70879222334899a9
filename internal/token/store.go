// Package token keeps short-lived ids that defer audio extraction until a user asks for it.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/smallbiznis/teleload/internal/clock"
)

const (
	DefaultTTL = 15 * time.Minute
	idBytes    = 6
)

var ErrNotFound = errors.New("token_not_found")

// Payload is what a token defers: the source video and a filesystem-safe title.
type Payload struct {
	SourceURL string
	Title     string
}

type entry struct {
	payload   Payload
	createdAt time.Time
}

// Store is safe for concurrent use. Put, Take and Sweep are serialized by one mutex.
type Store struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	clock   clock.Clock
	newID   func() (string, error)
}

func NewStore(ttl time.Duration, c clock.Clock) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if c == nil {
		c = clock.New()
	}
	return &Store{
		entries: make(map[string]entry),
		ttl:     ttl,
		clock:   c,
		newID:   randomID,
	}
}

func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Put registers payload under a fresh random id. Collisions are not checked.
func (s *Store) Put(payload Payload) (string, error) {
	id, err := s.newID()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.entries[id] = entry{payload: payload, createdAt: s.clock.Now()}
	s.mu.Unlock()
	return id, nil
}

// Take removes and returns the payload. Entries past the TTL are removed and reported as missing.
func (s *Store) Take(id string) (Payload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return Payload{}, ErrNotFound
	}
	delete(s.entries, id)

	if s.expired(e, s.clock.Now()) {
		return Payload{}, ErrNotFound
	}
	return e.payload, nil
}

// Sweep drops every entry older than the TTL and returns how many were removed.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.entries {
		if s.expired(e, now) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) expired(e entry, now time.Time) bool {
	return now.Sub(e.createdAt) > s.ttl
}

func randomID() (string, error) {
	buf := make([]byte, idBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
