package course

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/apperr"
	"rollcall/internal/attendance"
	"rollcall/internal/auth"
	"rollcall/internal/user"
)

type fixture struct {
	svc      *Service
	users    *user.MemoryRepository
	sessions *attendance.MemoryStore
	teacher  auth.Identity
	other    auth.Identity
	student  auth.Identity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	users := user.NewMemoryRepository()
	sessions := attendance.NewMemoryStore()
	dir := user.NewService(users, user.DomainPolicy{}, nil)
	return &fixture{
		svc:      NewService(NewMemoryRepository(), dir, sessions, nil),
		users:    users,
		sessions: sessions,
		teacher:  auth.Identity{UserID: "t1", Email: "t@x.test", Role: auth.RoleTeacher},
		other:    auth.Identity{UserID: "t2", Email: "t2@x.test", Role: auth.RoleTeacher},
		student:  auth.Identity{UserID: "s1", Email: "a@x.test", Role: auth.RoleStudent},
	}
}

func (f *fixture) course(t *testing.T, code string) *Course {
	t.Helper()
	c, err := f.svc.Create(context.Background(), f.teacher, CreateInput{Name: "Networks", Code: code, Schedule: "Mon 9:00"})
	require.NoError(t, err)
	return c
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.course(t, "C101")
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "t1", c.TeacherID)
	assert.Empty(t, c.StudentEmails)

	_, err := f.svc.Create(ctx, f.teacher, CreateInput{Name: "Again", Code: "C101"})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = f.svc.Create(ctx, f.student, CreateInput{Name: "Nope", Code: "C999"})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = f.svc.Create(ctx, f.teacher, CreateInput{Name: "  ", Code: "C102"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, "name is required", apperr.DetailOf(err))
}

func TestAddStudents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.course(t, "C101")

	added, err := f.svc.AddStudents(ctx, c.ID, f.teacher, []string{" A@X.test ", "b@x.test", "a@x.test"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a@x.test", "b@x.test"}, added)

	added, err = f.svc.AddStudents(ctx, c.ID, f.teacher, []string{"b@x.test", "c@x.test"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c@x.test"}, added)

	got, err := f.svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a@x.test", "b@x.test", "c@x.test"}, got.StudentEmails)

	placeholder, err := f.users.GetByEmail(ctx, "c@x.test")
	require.NoError(t, err)
	require.NotNil(t, placeholder)
	assert.True(t, placeholder.Placeholder())
	assert.Equal(t, user.RoleStudent, placeholder.Role)

	ok, err := f.svc.IsEnrolled(ctx, c.ID, "C@x.test")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAddStudentsFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.course(t, "C101")

	tests := []struct {
		name     string
		courseID string
		who      auth.Identity
		emails   []string
		kind     apperr.Kind
	}{
		{name: "unknown course", courseID: "missing", who: f.teacher, emails: []string{"a@x.test"}, kind: apperr.KindNotFound},
		{name: "other teacher", courseID: c.ID, who: f.other, emails: []string{"a@x.test"}, kind: apperr.KindForbidden},
		{name: "student", courseID: c.ID, who: f.student, emails: []string{"a@x.test"}, kind: apperr.KindForbidden},
		{name: "empty list", courseID: c.ID, who: f.teacher, emails: nil, kind: apperr.KindValidation},
		{name: "malformed email", courseID: c.ID, who: f.teacher, emails: []string{"a@x.test", "not-an-email"}, kind: apperr.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.AddStudents(ctx, tt.courseID, tt.who, tt.emails)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
		})
	}

	got, err := f.svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, got.StudentEmails)
}

func TestAddStudentsRejectsTeacherEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.course(t, "C101")
	require.NoError(t, f.users.Create(ctx, &user.User{Email: "prof@x.test", Role: user.RoleTeacher, PasswordHash: "h"}))

	_, err := f.svc.AddStudents(ctx, c.ID, f.teacher, []string{"prof@x.test"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestListForUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c1 := f.course(t, "C101")
	c2 := f.course(t, "C102")
	_, err := f.svc.Create(ctx, f.other, CreateInput{Name: "Other", Code: "C200"})
	require.NoError(t, err)

	_, err = f.svc.AddStudents(ctx, c1.ID, f.teacher, []string{"a@x.test"})
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, f.sessions.OpenSession(ctx, attendance.Session{ID: "s1", CourseID: c1.ID, Code: "ABC123", OpenedAt: now}))

	teacherViews, err := f.svc.ListForUser(ctx, f.teacher)
	require.NoError(t, err)
	require.Len(t, teacherViews, 2)
	assert.Equal(t, c1.ID, teacherViews[0].ID)
	assert.True(t, teacherViews[0].HasActiveAttendance)
	assert.Equal(t, "ABC123", teacherViews[0].ActiveAttendanceCode)
	assert.Nil(t, teacherViews[0].AlreadyAttended)
	assert.Equal(t, c2.ID, teacherViews[1].ID)
	assert.False(t, teacherViews[1].HasActiveAttendance)

	studentViews, err := f.svc.ListForUser(ctx, f.student)
	require.NoError(t, err)
	require.Len(t, studentViews, 1)
	assert.True(t, studentViews[0].HasActiveAttendance)
	assert.Empty(t, studentViews[0].ActiveAttendanceCode)
	require.NotNil(t, studentViews[0].AlreadyAttended)
	assert.False(t, *studentViews[0].AlreadyAttended)

	require.NoError(t, f.sessions.AddSubmission(ctx, "s1", attendance.Submission{StudentID: "s1", Email: "a@x.test", SubmittedAt: now}))
	studentViews, err = f.svc.ListForUser(ctx, f.student)
	require.NoError(t, err)
	assert.True(t, *studentViews[0].AlreadyAttended)
}

func TestCanView(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.course(t, "C101")
	_, err := f.svc.AddStudents(ctx, c.ID, f.teacher, []string{"a@x.test"})
	require.NoError(t, err)

	_, err = f.svc.CanView(ctx, c.ID, f.teacher)
	assert.NoError(t, err)
	_, err = f.svc.CanView(ctx, c.ID, f.student)
	assert.NoError(t, err)

	outsider := auth.Identity{UserID: "s9", Email: "z@x.test", Role: auth.RoleStudent}
	for _, id := range []auth.Identity{f.other, outsider} {
		_, err = f.svc.CanView(ctx, c.ID, id)
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
	}
	_, err = f.svc.CanView(ctx, "missing", f.teacher)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestOwner(t *testing.T) {
	f := newFixture(t)
	c := f.course(t, "C101")

	owner, err := f.svc.Owner(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, "t1", owner)

	_, err = f.svc.Owner(context.Background(), "missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

var _ attendance.Roster = (*Service)(nil)
