package course

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps courses in process memory.
type MemoryRepository struct {
	mu     sync.RWMutex
	byID   map[string]*Course
	byCode map[string]string
	order  []string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]*Course), byCode: make(map[string]string)}
}

func (m *MemoryRepository) Create(_ context.Context, c *Course) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byCode[c.Code]; ok {
		return ErrCodeTaken
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.StudentEmails == nil {
		c.StudentEmails = []string{}
	}
	cp := copyCourse(c)
	m.byID[c.ID] = &cp
	m.byCode[c.Code] = c.ID
	m.order = append(m.order, c.ID)
	return nil
}

func (m *MemoryRepository) Get(_ context.Context, id string) (*Course, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	cp := copyCourse(c)
	return &cp, nil
}

func (m *MemoryRepository) ListByTeacher(_ context.Context, teacherID string) ([]Course, error) {
	return m.list(func(c *Course) bool { return c.TeacherID == teacherID }), nil
}

func (m *MemoryRepository) ListByStudent(_ context.Context, email string) ([]Course, error) {
	return m.list(func(c *Course) bool { return c.Enrolled(email) }), nil
}

func (m *MemoryRepository) AddStudents(_ context.Context, courseID string, emails []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[courseID]
	if !ok {
		return nil, nil
	}
	added := []string{}
	for _, email := range emails {
		if c.Enrolled(email) {
			continue
		}
		c.StudentEmails = append(c.StudentEmails, email)
		added = append(added, email)
	}
	return added, nil
}

func (m *MemoryRepository) IsEnrolled(_ context.Context, courseID, email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byID[courseID]
	return ok && c.Enrolled(email), nil
}

func (m *MemoryRepository) list(match func(*Course) bool) []Course {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Course{}
	for _, id := range m.order {
		if c := m.byID[id]; match(c) {
			out = append(out, copyCourse(c))
		}
	}
	return out
}

func copyCourse(c *Course) Course {
	cp := *c
	cp.StudentEmails = append([]string{}, c.StudentEmails...)
	return cp
}
