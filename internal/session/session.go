// Package session holds the authenticated identity of the console: the bearer
// token and the user it belongs to. The two always travel as a pair.
package session

import (
	"context"
	"errors"
	"sync"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is the identity the remote service returned at login.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

type Session struct {
	Token string
	User  User
}

var (
	ErrNoSession      = errors.New("no session")
	ErrIncompletePair = errors.New("session requires both a token and a user id")
)

// Store is the single source of truth for who is logged in.
//
// Get returns ErrNoSession when nothing (or only half of the pair) is stored.
// Set replaces both halves atomically. Clear is idempotent.
type Store interface {
	Get(ctx context.Context) (*Session, error)
	Set(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
}

func (s *Session) IsAdmin() bool {
	return s != nil && s.Token != "" && s.User.Role == RoleAdmin
}

// Validate enforces the pair invariant before anything is persisted.
func (s Session) Validate() error {
	if s.Token == "" || s.User.ID == "" {
		return ErrIncompletePair
	}
	return nil
}

// IsAdmin reports whether store holds a session whose user is an admin.
// A storage failure counts as no session.
func IsAdmin(ctx context.Context, store Store) bool {
	s, err := store.Get(ctx)
	if err != nil {
		return false
	}
	return s.IsAdmin()
}

// Token returns the bearer token of the current session.
func Token(ctx context.Context, store Store) (string, error) {
	s, err := store.Get(ctx)
	if err != nil {
		return "", err
	}
	return s.Token, nil
}

// MemoryStore keeps the session for the lifetime of the process.
type MemoryStore struct {
	mu      sync.RWMutex
	current *Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Get(_ context.Context) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return nil, ErrNoSession
	}
	cp := *m.current
	return &cp, nil
}

func (m *MemoryStore) Set(_ context.Context, s Session) error {
	if err := s.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = &s
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = nil
	return nil
}
