package jobs

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store with the same claim semantics as
// the Postgres repo. Used by tests and local development.
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[string]*ReminderJob
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*ReminderJob)}
}

func (s *MemoryStore) Put(j ReminderJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := j
	s.jobs[j.ID] = &cp
}

func (s *MemoryStore) Get(id string) (ReminderJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return ReminderJob{}, false
	}
	return *j, true
}

func (s *MemoryStore) FetchDue(ctx context.Context, now time.Time, limit int) ([]ReminderJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []ReminderJob
	for _, j := range s.jobs {
		if j.Status == StatusPending && !j.ScheduledFor.After(now) {
			out = append(out, *j)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ScheduledFor.Before(out[k].ScheduledFor) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) FetchStale(ctx context.Context, cutoff time.Time, limit int) ([]ReminderJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []ReminderJob
	for _, j := range s.jobs {
		if j.Status == StatusClaimed && j.ClaimedAt != nil && !j.ClaimedAt.After(cutoff) {
			out = append(out, *j)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ClaimedAt.Before(*out[k].ClaimedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) TryClaim(ctx context.Context, id string, now time.Time) (*ReminderJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	if j.Status != StatusPending {
		return nil, ErrClaimConflict
	}
	j.Status = StatusClaimed
	claimed := now
	j.ClaimedAt = &claimed
	j.UpdatedAt = time.Now()
	cp := *j
	return &cp, nil
}

func (s *MemoryStore) Release(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok || j.Status != StatusClaimed {
		return nil
	}
	j.Status = StatusPending
	j.ClaimedAt = nil
	j.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) Reschedule(ctx context.Context, id string, next time.Time, lastErr *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok || j.Status != StatusClaimed {
		return nil
	}
	j.Status = StatusPending
	j.Attempts++
	j.ScheduledFor = next
	j.ClaimedAt = nil
	j.LastError = lastErr
	j.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) Complete(ctx context.Context, id string) error {
	return s.terminal(id, StatusCompleted, nil)
}

func (s *MemoryStore) Cancel(ctx context.Context, id string) error {
	return s.terminal(id, StatusCancelled, nil)
}

func (s *MemoryStore) Fail(ctx context.Context, id string, lastErr string) error {
	return s.terminal(id, StatusFailed, &lastErr)
}

func (s *MemoryStore) terminal(id string, to Status, lastErr *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok || j.Status != StatusClaimed {
		return nil
	}
	j.Status = to
	if lastErr != nil {
		j.LastError = lastErr
	}
	j.UpdatedAt = time.Now()
	return nil
}
