package session

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process ledger. One mutex serializes every write, which
// gives Rotate the same single-winner behavior as the Postgres row lock.
type MemoryStore struct {
	mu   sync.Mutex
	rows map[string]Session // by ID
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]Session)}
}

func (m *MemoryStore) InsertSession(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.insertLocked(s)
	return nil
}

func (m *MemoryStore) insertLocked(s Session) {
	for id, r := range m.rows {
		if r.UserID == s.UserID && r.DeviceLabel == s.DeviceLabel {
			delete(m.rows, id)
		}
	}
	m.rows[s.ID] = s
}

func (m *MemoryStore) FindByDigest(_ context.Context, digest string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.byDigestLocked(digest); ok {
		return r, nil
	}
	return Session{}, ErrSessionNotFound
}

func (m *MemoryStore) byDigestLocked(digest string) (Session, bool) {
	for _, r := range m.rows {
		if r.TokenDigest == digest {
			return r, true
		}
	}
	return Session{}, false
}

func (m *MemoryStore) Rotate(_ context.Context, digest string, fn RotateFunc) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.byDigestLocked(digest)
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	next, err := fn(old)
	if err != nil {
		return Session{}, err
	}

	delete(m.rows, old.ID)
	m.insertLocked(next)
	return next, nil
}

func (m *MemoryStore) DeleteByDigest(_ context.Context, digest string) (int64, error) {
	return m.deleteIf(func(r Session) bool { return r.TokenDigest == digest }), nil
}

func (m *MemoryStore) DeleteWhere(_ context.Context, userID string, deviceLabel *string) (int64, error) {
	return m.deleteIf(func(r Session) bool {
		return r.UserID == userID && (deviceLabel == nil || r.DeviceLabel == *deviceLabel)
	}), nil
}

func (m *MemoryStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	return m.deleteIf(func(r Session) bool { return r.Expired(now) }), nil
}

func (m *MemoryStore) ListByUser(_ context.Context, userID string, now time.Time) ([]Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Session
	for _, r := range m.rows {
		if r.UserID == userID && !r.Expired(now) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) deleteIf(match func(Session) bool) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, r := range m.rows {
		if match(r) {
			delete(m.rows, id)
			n++
		}
	}
	return n
}
