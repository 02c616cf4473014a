package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"rollcall/internal/apperr"
	"rollcall/internal/auth"
)

func init() {
	hashCost = bcrypt.MinCost
}

func newTestService(policy DomainPolicy) (*Service, *MemoryRepository) {
	repo := NewMemoryRepository()
	return NewService(repo, policy, nil), repo
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc, _ := newTestService(DomainPolicy{})
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterInput{Email: " Ada@School.Test ", Password: "secret1", FullName: "Ada", Role: RoleStudent})
	require.NoError(t, err)
	assert.Equal(t, "ada@school.test", u.Email)

	got, err := svc.Authenticate(ctx, "ADA@school.test", "secret1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = svc.Authenticate(ctx, "ada@school.test", "wrong")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	_, err = svc.Authenticate(ctx, "nobody@school.test", "secret1")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	_, err = svc.Register(ctx, RegisterInput{Email: "ada@school.test", Password: "secret1", FullName: "Ada", Role: RoleStudent})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(DomainPolicy{Teacher: "ogretmen.edu.tr", Student: "@ogrenci.edu.tr"})
	ctx := context.Background()

	tests := []struct {
		name string
		in   RegisterInput
	}{
		{name: "bad email", in: RegisterInput{Email: "nope", Password: "secret1", FullName: "X", Role: RoleStudent}},
		{name: "short password", in: RegisterInput{Email: "x@ogrenci.edu.tr", Password: "123", FullName: "X", Role: RoleStudent}},
		{name: "no name", in: RegisterInput{Email: "x@ogrenci.edu.tr", Password: "secret1", Role: RoleStudent}},
		{name: "bad role", in: RegisterInput{Email: "x@ogrenci.edu.tr", Password: "secret1", FullName: "X", Role: "admin"}},
		{name: "teacher domain", in: RegisterInput{Email: "x@ogrenci.edu.tr", Password: "secret1", FullName: "X", Role: RoleTeacher}},
		{name: "student domain", in: RegisterInput{Email: "x@gmail.com", Password: "secret1", FullName: "X", Role: RoleStudent}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.in)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}

	_, err := svc.Register(ctx, RegisterInput{Email: "t@ogretmen.edu.tr", Password: "secret1", FullName: "T", Role: RoleTeacher})
	assert.NoError(t, err)
}

func TestEnsureStudentsCreatesPlaceholders(t *testing.T) {
	svc, repo := newTestService(DomainPolicy{})
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Email: "t@school.test", Password: "secret1", FullName: "T", Role: RoleTeacher})
	require.NoError(t, err)

	require.NoError(t, svc.EnsureStudents(ctx, []string{"new@school.test"}))
	ph, err := repo.GetByEmail(ctx, "new@school.test")
	require.NoError(t, err)
	require.NotNil(t, ph)
	assert.True(t, ph.Placeholder())
	assert.Equal(t, RoleStudent, ph.Role)

	// idempotent
	require.NoError(t, svc.EnsureStudents(ctx, []string{"new@school.test"}))

	err = svc.EnsureStudents(ctx, []string{"t@school.test"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	// placeholders cannot log in until claimed
	_, err = svc.Authenticate(ctx, "new@school.test", "")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	claimed, err := svc.Register(ctx, RegisterInput{Email: "new@school.test", Password: "secret1", FullName: "New", Role: RoleStudent})
	require.NoError(t, err)
	assert.Equal(t, ph.ID, claimed.ID)

	_, err = svc.Authenticate(ctx, "new@school.test", "secret1")
	assert.NoError(t, err)
}

func TestEnsureStudentsRejectedBatchWritesNothing(t *testing.T) {
	svc, repo := newTestService(DomainPolicy{})
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Email: "t@school.test", Password: "secret1", FullName: "T", Role: RoleTeacher})
	require.NoError(t, err)

	err = svc.EnsureStudents(ctx, []string{"new@school.test", "t@school.test"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	left, err := repo.GetByEmail(ctx, "new@school.test")
	require.NoError(t, err)
	assert.Nil(t, left)

	// the address is still free for any role
	_, err = svc.Register(ctx, RegisterInput{Email: "new@school.test", Password: "secret1", FullName: "New", Role: RoleTeacher})
	assert.NoError(t, err)
}

func TestEnsureStudentsPolicyFailureWritesNothing(t *testing.T) {
	svc, repo := newTestService(DomainPolicy{Student: "ogrenci.edu.tr"})
	ctx := context.Background()

	err := svc.EnsureStudents(ctx, []string{"a@ogrenci.edu.tr", "b@gmail.com"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	left, err := repo.GetByEmail(ctx, "a@ogrenci.edu.tr")
	require.NoError(t, err)
	assert.Nil(t, left)
}

func TestPlaceholderCannotBeClaimedAsTeacher(t *testing.T) {
	svc, _ := newTestService(DomainPolicy{})
	ctx := context.Background()
	require.NoError(t, svc.EnsureStudents(ctx, []string{"p@school.test"}))

	_, err := svc.Register(ctx, RegisterInput{Email: "p@school.test", Password: "secret1", FullName: "P", Role: RoleTeacher})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestCreateUserRequiresTeacher(t *testing.T) {
	svc, _ := newTestService(DomainPolicy{})
	ctx := context.Background()
	in := RegisterInput{Email: "s@school.test", Password: "secret1", FullName: "S", Role: RoleStudent}

	_, err := svc.CreateUser(ctx, auth.Identity{Role: auth.RoleStudent}, in)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	u, err := svc.CreateUser(ctx, auth.Identity{Role: auth.RoleTeacher}, in)
	require.NoError(t, err)
	assert.Equal(t, RoleStudent, u.Role)
}

func TestSeedDemoIsIdempotent(t *testing.T) {
	svc, _ := newTestService(DomainPolicy{})
	ctx := context.Background()

	n, err := svc.SeedDemo(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(DemoAccounts), n)

	n, err = svc.SeedDemo(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = svc.Authenticate(ctx, DemoAccounts[0].Email, DemoPassword)
	assert.NoError(t, err)
}
