package identity

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store used in dev mode and unit tests.
type MemoryStore struct {
	mu         sync.RWMutex
	byID       map[string]User
	byEmail    map[string]string
	byUsername map[string]string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:       make(map[string]User),
		byEmail:    make(map[string]string),
		byUsername: make(map[string]string),
	}
}

func (s *MemoryStore) InsertUser(_ context.Context, u User) error {
	const op = "identity.InsertUser"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[u.ID]; ok {
		return ConflictError{Op: op, Field: "id"}
	}
	if _, ok := s.byEmail[u.Email]; ok {
		return ConflictError{Op: op, Field: "email"}
	}
	if u.Username != nil {
		if _, ok := s.byUsername[*u.Username]; ok {
			return ConflictError{Op: op, Field: "username"}
		}
		s.byUsername[*u.Username] = u.ID
	}
	s.byEmail[u.Email] = u.ID
	s.byID[u.ID] = u
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return User{}, notFound("identity.FindByID")
	}
	return u, nil
}

func (s *MemoryStore) FindByEmail(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[s.byEmail[NormalizeEmail(email)]]
	if !ok {
		return User{}, notFound("identity.FindByEmail")
	}
	return u, nil
}

func (s *MemoryStore) FindByUsername(_ context.Context, username string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[s.byUsername[NormalizeUsername(username)]]
	if !ok {
		return User{}, notFound("identity.FindByUsername")
	}
	return u, nil
}

func (s *MemoryStore) UpdateUser(_ context.Context, id string, upd UserUpdate) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return User{}, notFound("identity.UpdateUser")
	}
	upd.apply(&u)
	s.byID[id] = u
	return u, nil
}
