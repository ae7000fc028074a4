package ledger

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrRunNotFound = errors.New("run not found")

type memStore struct {
	mu   sync.Mutex
	runs map[string]Run
	now  func() time.Time
}

func NewMemoryStore() Store {
	return &memStore{runs: map[string]Run{}, now: time.Now}
}

func (m *memStore) Start(_ context.Context, orgID string, kind Kind) (Run, error) {
	r := Run{ID: uuid.NewString(), OrgID: orgID, Kind: kind, Status: StatusRunning, StartedAt: m.now().UTC()}
	m.mu.Lock()
	m.runs[r.ID] = r
	m.mu.Unlock()
	return r, nil
}

func (m *memStore) Step(_ context.Context, runID, step string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[runID]
	if !ok {
		return ErrRunNotFound
	}
	r.LastStep = step
	m.runs[runID] = r
	return nil
}

func (m *memStore) Finish(_ context.Context, runID string, runErr error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[runID]
	if !ok {
		return ErrRunNotFound
	}
	now := m.now().UTC()
	r.FinishedAt = &now
	r.Status = StatusSucceeded
	if runErr != nil {
		r.Status = StatusFailed
		r.Error = runErr.Error()
	}
	m.runs[runID] = r
	return nil
}

func (m *memStore) List(_ context.Context, orgID string, limit int) ([]Run, error) {
	m.mu.Lock()
	out := make([]Run, 0, len(m.runs))
	for _, r := range m.runs {
		if orgID == "" || r.OrgID == orgID {
			out = append(out, r)
		}
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
