package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"rollcall/internal/apperr"
	"rollcall/internal/auth"
)

// hashCost is lowered by tests.
var hashCost = bcrypt.DefaultCost

const minPasswordLen = 6

var errBadCredentials = apperr.Unauthorized("Incorrect email or password")

// DomainPolicy optionally requires an email suffix per role. An empty suffix
// accepts any address.
type DomainPolicy struct {
	Teacher string
	Student string
}

// Check validates email against the suffix configured for role.
func (p DomainPolicy) Check(role Role, email string) error {
	suffix := p.Student
	if role == RoleTeacher {
		suffix = p.Teacher
	}
	if suffix == "" {
		return nil
	}
	if !strings.HasPrefix(suffix, "@") {
		suffix = "@" + suffix
	}
	if !strings.HasSuffix(email, strings.ToLower(suffix)) {
		return apperr.Validationf("%s email must end with %s", role, suffix)
	}
	return nil
}

// RegisterInput describes a new account.
type RegisterInput struct {
	Email    string
	Password string
	FullName string
	Role     Role
}

// Service handles accounts and credential checks.
type Service struct {
	repo     Repository
	policy   DomainPolicy
	validate *validator.Validate
	log      *zap.Logger
}

// NewService creates a service backed by a repository.
func NewService(repo Repository, policy DomainPolicy, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, policy: policy, validate: validator.New(), log: log}
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether email is syntactically valid.
func (s *Service) ValidEmail(email string) bool {
	return s.validate.Var(email, "required,email") == nil
}

// Authenticate checks credentials. Placeholder accounts cannot log in.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	u, err := s.repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if u == nil || u.Placeholder() {
		return nil, errBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, errBadCredentials
	}
	return u, nil
}

// Register creates an account, or claims a placeholder student created by
// roster enrollment.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	in.Email = NormalizeEmail(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	if err := s.check(in); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	existing, err := s.repo.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if existing != nil {
		if !existing.Placeholder() || existing.Role != in.Role {
			return nil, apperr.Conflict("Email already registered")
		}
		existing.FullName = in.FullName
		existing.PasswordHash = string(hash)
		if err := s.repo.Claim(ctx, existing); err != nil {
			if errors.Is(err, ErrEmailTaken) {
				return nil, apperr.Conflict("Email already registered")
			}
			return nil, fmt.Errorf("claim user: %w", err)
		}
		s.log.Info("placeholder account claimed", zap.String("user_id", existing.ID))
		return existing, nil
	}

	u := &User{Email: in.Email, FullName: in.FullName, Role: in.Role, PasswordHash: string(hash)}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, apperr.Conflict("Email already registered")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.log.Info("user registered", zap.String("user_id", u.ID), zap.String("role", string(u.Role)))
	return u, nil
}

// CreateUser is the teacher-only variant of Register.
func (s *Service) CreateUser(ctx context.Context, requester auth.Identity, in RegisterInput) (*User, error) {
	if !requester.IsTeacher() {
		return nil, apperr.Forbidden("Only teachers can create users")
	}
	return s.Register(ctx, in)
}

// EnsureStudents makes sure every email has a student record, creating
// placeholders for unknown addresses. Emails must already be normalized.
// Every address is checked before any placeholder is written, so a rejected
// batch leaves no records behind.
func (s *Service) EnsureStudents(ctx context.Context, emails []string) error {
	var missing []string
	seen := make(map[string]bool, len(emails))
	for _, email := range emails {
		if seen[email] {
			continue
		}
		seen[email] = true
		if err := s.policy.Check(RoleStudent, email); err != nil {
			return err
		}
		u, err := s.repo.GetByEmail(ctx, email)
		if err != nil {
			return fmt.Errorf("lookup student %s: %w", email, err)
		}
		if u == nil {
			missing = append(missing, email)
			continue
		}
		if u.Role != RoleStudent {
			return apperr.Validationf("%s does not belong to a student account", email)
		}
	}

	for _, email := range missing {
		err := s.repo.Create(ctx, &User{Email: email, Role: RoleStudent})
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrEmailTaken) {
			return fmt.Errorf("create placeholder %s: %w", email, err)
		}
		u, err := s.repo.GetByEmail(ctx, email)
		if err != nil {
			return fmt.Errorf("reload student %s: %w", email, err)
		}
		if u == nil {
			return fmt.Errorf("student %s vanished after create conflict", email)
		}
		if u.Role != RoleStudent {
			return apperr.Validationf("%s does not belong to a student account", email)
		}
	}
	return nil
}

// DemoPassword is the password of every account created by SeedDemo.
const DemoPassword = "123456"

// DemoAccounts are created by SeedDemo.
var DemoAccounts = []RegisterInput{
	{Email: "teacher@rollcall.test", FullName: "Demo Teacher", Role: RoleTeacher},
	{Email: "student1@rollcall.test", FullName: "Demo Student", Role: RoleStudent},
	{Email: "student2@rollcall.test", FullName: "Demo Student 2", Role: RoleStudent},
}

// SeedDemo creates the demo accounts that do not exist yet and returns how
// many were created.
func (s *Service) SeedDemo(ctx context.Context) (int, error) {
	created := 0
	for _, in := range DemoAccounts {
		in.Password = DemoPassword
		if _, err := s.Register(ctx, in); err != nil {
			if apperr.Is(err, apperr.KindConflict) {
				continue
			}
			return created, err
		}
		created++
	}
	return created, nil
}

func (s *Service) check(in RegisterInput) error {
	if !s.ValidEmail(in.Email) {
		return apperr.Validation("A valid email is required")
	}
	if len(in.Password) < minPasswordLen {
		return apperr.Validationf("Password must be at least %d characters", minPasswordLen)
	}
	if in.FullName == "" {
		return apperr.Validation("full_name is required")
	}
	if !in.Role.Valid() {
		return apperr.Validation("role must be teacher or student")
	}
	return s.policy.Check(in.Role, in.Email)
}
