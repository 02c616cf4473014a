package course

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"rollcall/internal/apperr"
	"rollcall/internal/attendance"
	"rollcall/internal/auth"
	"rollcall/internal/user"
)

// StudentDirectory creates placeholder student accounts for enrolled emails.
type StudentDirectory interface {
	EnsureStudents(ctx context.Context, emails []string) error
}

// SessionLookup finds the open attendance session of a course.
type SessionLookup interface {
	ActiveSession(ctx context.Context, courseID string) (*attendance.Session, error)
}

// CreateInput describes a new course.
type CreateInput struct {
	Name     string `json:"name" validate:"required,max=200"`
	Code     string `json:"code" validate:"required,max=32"`
	Schedule string `json:"schedule" validate:"max=200"`
}

var errNotFound = apperr.NotFound("Course not found")

// Service manages courses and their rosters. It satisfies
// attendance.Roster.
type Service struct {
	repo     Repository
	students StudentDirectory
	sessions SessionLookup
	validate *validator.Validate
	log      *zap.Logger
}

func NewService(repo Repository, students StudentDirectory, sessions SessionLookup, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		students: students,
		sessions: sessions,
		validate: validator.New(),
		log:      log,
	}
}

// Create adds a course owned by the requesting teacher.
func (s *Service) Create(ctx context.Context, requester auth.Identity, in CreateInput) (*Course, error) {
	if !requester.IsTeacher() {
		return nil, apperr.Forbidden("Only teachers can create courses")
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Code = strings.TrimSpace(in.Code)
	in.Schedule = strings.TrimSpace(in.Schedule)
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}

	c := &Course{Name: in.Name, Code: in.Code, Schedule: in.Schedule, TeacherID: requester.UserID}
	if err := s.repo.Create(ctx, c); err != nil {
		if errors.Is(err, ErrCodeTaken) {
			return nil, apperr.Conflict("Course code already exists")
		}
		return nil, fmt.Errorf("create course: %w", err)
	}
	s.log.Info("course created", zap.String("course_id", c.ID), zap.String("teacher_id", c.TeacherID))
	return c, nil
}

// Get returns a course or a NotFound error.
func (s *Service) Get(ctx context.Context, id string) (*Course, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load course: %w", err)
	}
	if c == nil {
		return nil, errNotFound
	}
	return c, nil
}

// Owner returns the teacher id of a course.
func (s *Service) Owner(ctx context.Context, courseID string) (string, error) {
	c, err := s.Get(ctx, courseID)
	if err != nil {
		return "", err
	}
	return c.TeacherID, nil
}

// IsEnrolled reports whether email is on the roster of a course.
func (s *Service) IsEnrolled(ctx context.Context, courseID, email string) (bool, error) {
	return s.repo.IsEnrolled(ctx, courseID, user.NormalizeEmail(email))
}

// CanView returns the course if id may see it: its teacher or an enrolled
// student. Anything else looks like a missing course.
func (s *Service) CanView(ctx context.Context, courseID string, id auth.Identity) (*Course, error) {
	c, err := s.repo.Get(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("load course: %w", err)
	}
	if c != nil {
		switch {
		case id.IsTeacher() && c.TeacherID == id.UserID:
			return c, nil
		case id.IsStudent() && c.Enrolled(user.NormalizeEmail(id.Email)):
			return c, nil
		}
	}
	return nil, apperr.NotFound("Course not found or you don't have access")
}

// ListForUser returns the courses a user teaches or is enrolled in, annotated
// with the state of their open attendance session.
func (s *Service) ListForUser(ctx context.Context, id auth.Identity) ([]View, error) {
	var (
		courses []Course
		err     error
	)
	if id.IsTeacher() {
		courses, err = s.repo.ListByTeacher(ctx, id.UserID)
	} else {
		courses, err = s.repo.ListByStudent(ctx, user.NormalizeEmail(id.Email))
	}
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}

	views := make([]View, 0, len(courses))
	for _, c := range courses {
		active, err := s.sessions.ActiveSession(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("load active session: %w", err)
		}
		v := View{Course: c, HasActiveAttendance: active != nil}
		if id.IsTeacher() {
			if active != nil {
				v.ActiveAttendanceCode = active.Code
			}
		} else {
			attended := active != nil && active.Submitted(id.UserID)
			v.AlreadyAttended = &attended
		}
		views = append(views, v)
	}
	return views, nil
}

// AddStudents enrolls emails in a course owned by the requester, creating
// placeholder student accounts where needed, and returns the emails that
// were newly enrolled.
func (s *Service) AddStudents(ctx context.Context, courseID string, requester auth.Identity, emails []string) ([]string, error) {
	c, err := s.Get(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !requester.IsTeacher() || c.TeacherID != requester.UserID {
		return nil, apperr.Forbidden("Only the course's teacher can manage its students")
	}
	if len(emails) == 0 {
		return nil, apperr.Validation("student_emails must not be empty")
	}

	seen := make(map[string]bool, len(emails))
	normalized := make([]string, 0, len(emails))
	for _, raw := range emails {
		email := user.NormalizeEmail(raw)
		if s.validate.Var(email, "required,email") != nil {
			return nil, apperr.Validationf("Invalid email: %q", raw)
		}
		if seen[email] {
			continue
		}
		seen[email] = true
		normalized = append(normalized, email)
	}

	if err := s.students.EnsureStudents(ctx, normalized); err != nil {
		return nil, err
	}
	added, err := s.repo.AddStudents(ctx, c.ID, normalized)
	if err != nil {
		return nil, fmt.Errorf("enroll students: %w", err)
	}
	s.log.Info("students enrolled",
		zap.String("course_id", c.ID),
		zap.Int("requested", len(normalized)),
		zap.Int("added", len(added)))
	return added, nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := strings.ToLower(fe.Field())
		if fe.Tag() == "required" {
			return apperr.Validationf("%s is required", field)
		}
		return apperr.Validationf("%s is invalid", field)
	}
	return apperr.Validation(err.Error())
}
