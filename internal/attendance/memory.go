package attendance

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory. One mutex covers every
// check-and-mutate step.
type MemoryStore struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	open      map[string]string // course id -> session id
	openCodes map[string]string // code -> session id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:  make(map[string]*Session),
		open:      make(map[string]string),
		openCodes: make(map[string]string),
	}
}

func (m *MemoryStore) OpenSession(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.open[s.CourseID]; ok {
		return ErrSessionOpen
	}
	if _, ok := m.openCodes[s.Code]; ok {
		return ErrCodeTaken
	}
	s.ClosedAt = nil
	s.Submissions = nil
	m.sessions[s.ID] = &s
	m.open[s.CourseID] = s.ID
	m.openCodes[s.Code] = s.ID
	return nil
}

func (m *MemoryStore) ActiveSession(_ context.Context, courseID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.open[courseID]
	if !ok {
		return nil, nil
	}
	cp := clone(m.sessions[id])
	return &cp, nil
}

func (m *MemoryStore) AddSubmission(_ context.Context, sessionID string, sub Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok || !s.Open() {
		return ErrNoOpenSession
	}
	if s.Submitted(sub.StudentID) {
		return ErrAlreadySubmitted
	}
	s.Submissions = append(s.Submissions, sub)
	return nil
}

func (m *MemoryStore) CloseSession(_ context.Context, courseID string, closedAt time.Time) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.open[courseID]
	if !ok {
		return Session{}, ErrNoOpenSession
	}
	s := m.sessions[id]
	s.ClosedAt = &closedAt
	delete(m.open, courseID)
	delete(m.openCodes, s.Code)
	return clone(s), nil
}

func (m *MemoryStore) ClosedSessions(_ context.Context, courseID string) ([]Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Session
	for _, s := range m.sessions {
		if s.CourseID == courseID && !s.Open() {
			out = append(out, clone(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := *out[i].ClosedAt, *out[j].ClosedAt
		if !a.Equal(b) {
			return a.After(b)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func clone(s *Session) Session {
	cp := *s
	if s.ClosedAt != nil {
		t := *s.ClosedAt
		cp.ClosedAt = &t
	}
	cp.Submissions = append([]Submission(nil), s.Submissions...)
	return cp
}
