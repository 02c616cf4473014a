package course

import (
	"context"
	"errors"
	"time"
)

// Course is a class owned by one teacher. StudentEmails is the roster.
type Course struct {
	ID            string    `json:"_id"`
	Name          string    `json:"name"`
	Code          string    `json:"code"`
	Schedule      string    `json:"schedule"`
	TeacherID     string    `json:"teacher_id"`
	StudentEmails []string  `json:"student_emails"`
	CreatedAt     time.Time `json:"created_at"`
}

// Enrolled reports whether email is on the roster. Emails are stored
// normalized.
func (c Course) Enrolled(email string) bool {
	for _, e := range c.StudentEmails {
		if e == email {
			return true
		}
	}
	return false
}

// View is a course annotated for the user listing it.
type View struct {
	Course
	HasActiveAttendance  bool   `json:"has_active_attendance"`
	ActiveAttendanceCode string `json:"active_attendance_code,omitempty"`
	AlreadyAttended      *bool  `json:"already_attended,omitempty"`
}

// ErrCodeTaken is returned by repositories on a duplicate course code.
var ErrCodeTaken = errors.New("course: code already used")

// Repository persists courses and rosters. Lookups return (nil, nil) when
// nothing matches.
type Repository interface {
	Create(ctx context.Context, c *Course) error
	Get(ctx context.Context, id string) (*Course, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]Course, error)
	ListByStudent(ctx context.Context, email string) ([]Course, error)
	// AddStudents enrolls emails and returns the ones that were not on the
	// roster yet.
	AddStudents(ctx context.Context, courseID string, emails []string) ([]string, error)
	IsEnrolled(ctx context.Context, courseID, email string) (bool, error)
}
