package invite

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.Mutex
	invites map[string]Invite
	byHash  map[string]string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{invites: make(map[string]Invite), byHash: make(map[string]string)}
}

func (m *MemoryStore) Create(_ context.Context, in CreateRecord) (Invite, error) {
	if in.ID == "" || in.TokenHash == "" || in.MaxUses <= 0 {
		return Invite{}, ErrInvalidInput
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.invites[in.ID]; ok {
		return Invite{}, ErrInvalidInput
	}
	if _, ok := m.byHash[in.TokenHash]; ok {
		return Invite{}, ErrInvalidInput
	}
	m.invites[in.ID] = in.Invite
	m.byHash[in.TokenHash] = in.ID
	return in.Invite, nil
}

func (m *MemoryStore) FindByTokenHash(_ context.Context, tokenHash string) (Invite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byHash[tokenHash]
	if !ok {
		return Invite{}, ErrNotFound
	}
	return m.invites[id], nil
}

func (m *MemoryStore) FindByID(_ context.Context, id string) (Invite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inv, ok := m.invites[id]
	if !ok {
		return Invite{}, ErrNotFound
	}
	return inv, nil
}

func (m *MemoryStore) ListByResource(_ context.Context, resourceID string) ([]Invite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Invite
	for _, inv := range m.invites {
		if inv.ResourceID == resourceID {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) Consume(_ context.Context, in ConsumeRecord) (Invite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byHash[in.TokenHash]
	if !ok {
		return Invite{}, ErrNotFound
	}
	inv := m.invites[id]
	if !inv.ActiveAt(in.Now) {
		return Invite{}, ErrNotActive
	}
	now, by := in.Now, in.ConsumedBy
	inv.UsedCount++
	inv.ConsumedAt = &now
	inv.ConsumedBy = &by
	m.invites[id] = inv
	return inv, nil
}

func (m *MemoryStore) Revoke(_ context.Context, id string, now time.Time) (Invite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inv, ok := m.invites[id]
	if !ok {
		return Invite{}, ErrNotFound
	}
	if inv.RevokedAt == nil {
		inv.RevokedAt = &now
		m.invites[id] = inv
	}
	return inv, nil
}
