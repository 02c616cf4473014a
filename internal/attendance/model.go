package attendance

import (
	"context"
	"errors"
	"time"

	"rollcall/internal/apperr"
)

// Session is one attendance window of a course.
type Session struct {
	ID          string
	CourseID    string
	Code        string
	OpenedAt    time.Time
	ClosedAt    *time.Time
	Submissions []Submission
}

// Open reports whether the session still accepts submissions.
func (s Session) Open() bool { return s.ClosedAt == nil }

// Submitted reports whether studentID already checked in.
func (s Session) Submitted(studentID string) bool {
	for _, sub := range s.Submissions {
		if sub.StudentID == studentID {
			return true
		}
	}
	return false
}

// Submission is a single student's check-in.
type Submission struct {
	StudentID   string    `json:"student_id"`
	FullName    string    `json:"full_name"`
	Email       string    `json:"email"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Student identifies the caller of SubmitAttendance.
type Student struct {
	ID       string
	Email    string
	FullName string
}

// HistoryRecord is a closed session as shown to the owning teacher.
type HistoryRecord struct {
	SessionID string       `json:"_id"`
	Code      string       `json:"code"`
	OpenedAt  time.Time    `json:"opened_at"`
	Date      time.Time    `json:"date"`
	Students  []Submission `json:"students"`
}

// StudentRecord is a closed session as shown to an enrolled student; it
// never lists other students.
type StudentRecord struct {
	SessionID string    `json:"_id"`
	Date      time.Time `json:"date"`
	Attended  bool      `json:"attended"`
}

func (s Session) record() HistoryRecord {
	students := make([]Submission, len(s.Submissions))
	copy(students, s.Submissions)
	rec := HistoryRecord{SessionID: s.ID, Code: s.Code, OpenedAt: s.OpenedAt, Students: students}
	if s.ClosedAt != nil {
		rec.Date = *s.ClosedAt
	}
	return rec
}

// Errors returned by stores. ErrCodeTaken never leaves the package.
var (
	ErrSessionOpen      = apperr.Conflict("There is already an active attendance for this course")
	ErrNoOpenSession    = apperr.NotFound("No active attendance found")
	ErrAlreadySubmitted = apperr.Conflict("You have already submitted attendance")
	ErrCodeTaken        = errors.New("attendance: join code held by another open session")
)

// Store persists sessions. Every method is atomic with respect to the others.
type Store interface {
	// OpenSession inserts an open session; ErrSessionOpen if the course has
	// one, ErrCodeTaken if another open session holds the code.
	OpenSession(ctx context.Context, s Session) error
	// ActiveSession returns the open session of a course with its
	// submissions, or nil.
	ActiveSession(ctx context.Context, courseID string) (*Session, error)
	// AddSubmission appends to an open session; ErrNoOpenSession if it is
	// closed or unknown, ErrAlreadySubmitted on a repeat.
	AddSubmission(ctx context.Context, sessionID string, sub Submission) error
	// CloseSession closes the open session of a course and returns it frozen;
	// ErrNoOpenSession if there is none.
	CloseSession(ctx context.Context, courseID string, closedAt time.Time) (Session, error)
	// ClosedSessions lists closed sessions, most recently closed first.
	ClosedSessions(ctx context.Context, courseID string) ([]Session, error)
}

// Roster answers ownership and enrollment questions about courses. Owner
// fails with a NotFound apperr for unknown courses.
type Roster interface {
	Owner(ctx context.Context, courseID string) (teacherID string, err error)
	IsEnrolled(ctx context.Context, courseID, email string) (bool, error)
}

// HistoryCache stores teacher history per course. Every Invalidate bumps
// the course version; Set is dropped when the version it was given is no
// longer current, so a load that raced a close never repopulates the cache.
type HistoryCache interface {
	Get(ctx context.Context, courseID string) ([]HistoryRecord, bool, error)
	Version(ctx context.Context, courseID string) (int64, error)
	Set(ctx context.Context, courseID string, version int64, records []HistoryRecord) error
	Invalidate(ctx context.Context, courseID string) error
}
