// Package session holds per-session state shared by the DLP components: the
// active bearer credentials, the cached protection-scope values, and the
// activity-mode table. Everything here lives for one signed-in session and is
// cleared wholesale on logout.
package session

import (
	"strings"
	"sync"
	"time"
)

// Fixed keys for session-scoped values. Activity modes use ActivityKey.
const (
	// KeyScopeIdentifier is the last good protection scope identifier.
	KeyScopeIdentifier = "purview.scopeIdentifier"
	// KeyRevalidationTag is the cached ETag for conditional scope refresh.
	KeyRevalidationTag = "purview.revalidationTag"
	// KeyScopeState is the opaque policy scope-state token, last-write-wins.
	KeyScopeState = "purview.scopeState"

	activityKeyPrefix = "purview.activity."
)

// ActivityKey returns the session key holding one activity's execution mode.
func ActivityKey(activity string) string {
	return activityKeyPrefix + strings.TrimSpace(activity)
}

// Audience names which API a credential is scoped to.
type Audience string

const (
	// AudienceBackend is the first-party chat backend API.
	AudienceBackend Audience = "backend"
	// AudienceGraph is the Microsoft Graph data-security surface.
	AudienceGraph Audience = "graph"
)

// Credential is an owned bearer credential with an explicit lifetime:
// acquired at login, invalidated at logout.
type Credential struct {
	Token       string
	DisplayName string
	AcquiredAt  time.Time
	ExpiresAt   time.Time
}

// Valid reports whether the credential carries a usable, non-expired token.
func (c Credential) Valid() bool {
	if strings.TrimSpace(c.Token) == "" {
		return false
	}
	if !c.ExpiresAt.IsZero() && !time.Now().Before(c.ExpiresAt) {
		return false
	}
	return true
}

// Store is the session-scoped key-value store. Safe for concurrent use;
// single value per key, no history.
type Store struct {
	mu     sync.RWMutex
	values map[string]string
	creds  map[Audience]Credential
	seqs   map[string]int
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		values: make(map[string]string),
		creds:  make(map[Audience]Credential),
		seqs:   make(map[string]int),
	}
}

// Set stores a value under key, overwriting any previous value.
func (s *Store) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Get returns the value stored under key.
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	return value, ok
}

// Delete removes key from the store.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// SetCredential installs the active credential for one audience.
func (s *Store) SetCredential(audience Audience, cred Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cred.AcquiredAt.IsZero() {
		cred.AcquiredAt = time.Now().UTC()
	}
	s.creds[audience] = cred
}

// Credential returns the active credential for an audience, if one is set
// and still valid.
func (s *Store) Credential(audience Audience) (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.creds[audience]
	if !ok || !cred.Valid() {
		return Credential{}, false
	}
	return cred, true
}

// NextSequence returns the next per-conversation sequence number, starting
// at 1. The policy engine uses these to reconstruct turn order even when
// offline evaluations race.
func (s *Store) NextSequence(conversationID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seqs[conversationID]++
	return s.seqs[conversationID]
}

// Logout clears every session value and invalidates all credentials.
func (s *Store) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]string)
	s.creds = make(map[Audience]Credential)
	s.seqs = make(map[string]int)
}
