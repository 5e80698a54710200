package access

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-process GrantStore.
type MemoryStore struct {
	mu     sync.RWMutex
	grants map[string]Grant
}

var _ GrantStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{grants: make(map[string]Grant)}
}

func (m *MemoryStore) FindActiveGrant(_ context.Context, resourceID, granteeID string) (Grant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if g, ok := m.activeLocked(resourceID, granteeID); ok {
		return g, nil
	}
	return Grant{}, ErrNotFound
}

func (m *MemoryStore) activeLocked(resourceID, granteeID string) (Grant, bool) {
	for _, g := range m.grants {
		if g.ResourceID == resourceID && g.GranteeID == granteeID && g.Status == GrantActive {
			return g, true
		}
	}
	return Grant{}, false
}

func (m *MemoryStore) FindGrant(_ context.Context, id string) (Grant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.grants[id]
	if !ok {
		return Grant{}, ErrNotFound
	}
	return g, nil
}

func (m *MemoryStore) InsertGrant(_ context.Context, g Grant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.grants[g.ID]; ok {
		return ErrDuplicateGrant
	}
	if g.Status == GrantActive {
		if _, ok := m.activeLocked(g.ResourceID, g.GranteeID); ok {
			return ErrDuplicateGrant
		}
	}
	m.grants[g.ID] = g
	return nil
}

func (m *MemoryStore) UpdateGrant(_ context.Context, g Grant) (Grant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.grants[g.ID]
	if !ok || cur.Status != GrantActive {
		return Grant{}, ErrNotFound
	}
	cur.CanView = g.CanView
	cur.CanEdit = g.CanEdit
	cur.ExpiresAt = g.ExpiresAt
	cur.Status = g.Status
	cur.RevokedAt = g.RevokedAt
	cur.UpdatedAt = g.UpdatedAt
	m.grants[g.ID] = cur
	return cur, nil
}

func (m *MemoryStore) DeleteGrant(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.grants[id]; !ok {
		return ErrNotFound
	}
	delete(m.grants, id)
	return nil
}

func (m *MemoryStore) ListGrants(_ context.Context, f GrantFilter) ([]Grant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Grant
	for _, g := range m.grants {
		if f.GranteeID != "" && g.GranteeID != f.GranteeID {
			continue
		}
		if f.GrantorID != "" && g.GrantorID != f.GrantorID {
			continue
		}
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GrantedAt.Equal(out[j].GrantedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].GrantedAt.After(out[j].GrantedAt)
	})
	return out, nil
}
