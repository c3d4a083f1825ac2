package history

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kapu/reel-spar-go/internal/domain"
)

// memrepo is a development-only in-memory repository used when no database
// is configured.
type memrepo struct {
	mu sync.RWMutex

	nextID int64

	byID   map[int64]*domain.SparSession
	byUUID map[string]*domain.SparSession
}

func NewMemoryRepository() Repository {
	return &memrepo{
		byID:   make(map[int64]*domain.SparSession),
		byUUID: make(map[string]*domain.SparSession),
	}
}

func (m *memrepo) InsertSession(ctx context.Context, rec *domain.SparSession) (int64, error) {
	if rec == nil {
		return 0, ErrDuplicateSession
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byUUID[rec.SessionUUID]; exists {
		return 0, ErrDuplicateSession
	}

	m.nextID++
	id := m.nextID
	copied := *rec
	copied.ID = id
	copied.MovesUCI = append([]string(nil), rec.MovesUCI...)
	copied.MovesSAN = append([]string(nil), rec.MovesSAN...)

	m.byID[id] = &copied
	m.byUUID[rec.SessionUUID] = &copied
	return id, nil
}

func (m *memrepo) GetSession(ctx context.Context, id int64) (*domain.SparSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	copied := *rec
	return &copied, nil
}

func (m *memrepo) GetRecentSessions(ctx context.Context, limit int) ([]*domain.SparSession, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	m.mu.RLock()
	all := make([]*domain.SparSession, 0, len(m.byID))
	for _, rec := range m.byID {
		all = append(all, rec)
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].EndedAt.After(all[j].EndedAt) })
	if len(all) > limit {
		all = all[:limit]
	}
	out := make([]*domain.SparSession, 0, len(all))
	for _, rec := range all {
		copied := *rec
		out = append(out, &copied)
	}
	return out, nil
}

func durationFromMS(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
