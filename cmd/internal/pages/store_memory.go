package pages

import (
	"context"
	"sync"
	"time"

	"github.com/Flugers27/Memory-book/cmd/internal/access"
)

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu    sync.RWMutex
	pages map[string]Page
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{pages: make(map[string]Page)}
}

func (m *MemoryStore) FindResource(ctx context.Context, id string) (access.Resource, error) {
	p, err := m.FindPage(ctx, id)
	if err != nil {
		return access.Resource{}, err
	}
	return p.Resource(), nil
}

func (m *MemoryStore) FindPage(_ context.Context, id string) (Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.pages[id]
	if !ok {
		return Page{}, ErrNotFound
	}
	return p, nil
}

func (m *MemoryStore) InsertPage(_ context.Context, p Page) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.pages[p.ID]; ok {
		return ErrInvalidInput
	}
	if p.Published() {
		m.demoteLocked(p.OwnerID, p.ParentID, p.ID, p.UpdatedAt)
	}
	m.pages[p.ID] = p
	return nil
}

func (m *MemoryStore) UpdatePage(_ context.Context, p Page) (Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.pages[p.ID]
	if !ok {
		return Page{}, ErrNotFound
	}
	if p.Published() {
		m.demoteLocked(cur.OwnerID, cur.ParentID, p.ID, p.UpdatedAt)
	}
	cur.Title = p.Title
	cur.IsPublic = p.IsPublic
	cur.IsDraft = p.IsDraft
	cur.UpdatedAt = p.UpdatedAt
	m.pages[p.ID] = cur
	return cur, nil
}

func (m *MemoryStore) DemoteSiblings(_ context.Context, ownerID, parentID, exceptID string, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.demoteLocked(ownerID, parentID, exceptID, now), nil
}

func (m *MemoryStore) demoteLocked(ownerID, parentID, exceptID string, now time.Time) int64 {
	var n int64
	for id, p := range m.pages {
		if id == exceptID || p.OwnerID != ownerID || p.ParentID != parentID || p.IsDraft {
			continue
		}
		p.IsDraft = true
		p.UpdatedAt = now
		m.pages[id] = p
		n++
	}
	return n
}
