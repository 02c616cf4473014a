package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rollcall/internal/apperr"
	"rollcall/internal/metrics"
	"rollcall/internal/queue"
)

// MessageSessionClosed is published after a session closes; its body is a
// JSON SessionClosedEvent.
const MessageSessionClosed = "attendance.session_closed"

// SessionClosedEvent is the body of MessageSessionClosed.
type SessionClosedEvent struct {
	CourseID  string `json:"course_id"`
	SessionID string `json:"session_id"`
}

// Publisher is satisfied by queue.Queue.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// Service manages the open/closed lifecycle of attendance sessions and
// admits student check-ins.
type Service struct {
	store  Store
	roster Roster
	codes  CodeSource
	cache  HistoryCache
	events Publisher
	now    func() time.Time
	log    *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithCodeSource(src CodeSource) Option   { return func(s *Service) { s.codes = src } }
func WithHistoryCache(c HistoryCache) Option { return func(s *Service) { s.cache = c } }
func WithPublisher(p Publisher) Option       { return func(s *Service) { s.events = p } }
func WithLogger(log *zap.Logger) Option      { return func(s *Service) { s.log = log } }
func WithClock(now func() time.Time) Option  { return func(s *Service) { s.now = now } }

// NewService creates a service backed by a store and a roster.
func NewService(store Store, roster Roster, opts ...Option) *Service {
	s := &Service{
		store:  store,
		roster: roster,
		codes:  NewRandomCodes(DefaultCodeLength),
		now:    func() time.Time { return time.Now().UTC() },
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartSession opens a session on a course owned by teacherID and returns it
// with its join code.
func (s *Service) StartSession(ctx context.Context, courseID, teacherID string) (Session, error) {
	if err := s.authorizeTeacher(ctx, courseID, teacherID); err != nil {
		return Session{}, err
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := s.codes.Next()
		if err != nil {
			return Session{}, fmt.Errorf("generate join code: %w", err)
		}
		sess := Session{
			ID:       uuid.NewString(),
			CourseID: courseID,
			Code:     code,
			OpenedAt: s.now(),
		}
		err = s.store.OpenSession(ctx, sess)
		switch {
		case err == nil:
			metrics.SessionsStarted.Inc()
			s.log.Info("attendance session started",
				zap.String("course_id", courseID), zap.String("session_id", sess.ID))
			return sess, nil
		case errors.Is(err, ErrCodeTaken):
			metrics.CodeCollisions.Inc()
			continue
		default:
			return Session{}, err
		}
	}
	return Session{}, fmt.Errorf("no free join code after %d attempts", maxCodeAttempts)
}

// SubmitAttendance records a check-in of st on the open session of a course.
// The code must match exactly.
func (s *Service) SubmitAttendance(ctx context.Context, courseID string, st Student, code string) (Submission, error) {
	sub, err := s.submit(ctx, courseID, st, code)
	metrics.Submissions.WithLabelValues(submissionResult(err)).Inc()
	return sub, err
}

func (s *Service) submit(ctx context.Context, courseID string, st Student, code string) (Submission, error) {
	if _, err := s.roster.Owner(ctx, courseID); err != nil {
		return Submission{}, err
	}
	enrolled, err := s.roster.IsEnrolled(ctx, courseID, st.Email)
	if err != nil {
		return Submission{}, fmt.Errorf("check enrollment: %w", err)
	}
	if !enrolled {
		return Submission{}, apperr.Forbidden("You are not enrolled in this course")
	}

	active, err := s.store.ActiveSession(ctx, courseID)
	if err != nil {
		return Submission{}, fmt.Errorf("load active session: %w", err)
	}
	if active == nil {
		return Submission{}, ErrNoOpenSession
	}
	if code != active.Code {
		return Submission{}, apperr.InvalidCode("Invalid or expired attendance code")
	}

	sub := Submission{StudentID: st.ID, FullName: st.FullName, Email: st.Email, SubmittedAt: s.now()}
	if err := s.store.AddSubmission(ctx, active.ID, sub); err != nil {
		return Submission{}, err
	}
	return sub, nil
}

// EndSession closes the open session of a course owned by teacherID and
// returns it as a history record.
func (s *Service) EndSession(ctx context.Context, courseID, teacherID string) (HistoryRecord, error) {
	if err := s.authorizeTeacher(ctx, courseID, teacherID); err != nil {
		return HistoryRecord{}, err
	}
	closed, err := s.store.CloseSession(ctx, courseID, s.now())
	if err != nil {
		return HistoryRecord{}, err
	}
	metrics.SessionsClosed.Inc()
	s.log.Info("attendance session closed",
		zap.String("course_id", courseID),
		zap.String("session_id", closed.ID),
		zap.Int("submissions", len(closed.Submissions)))

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, courseID); err != nil {
			s.log.Warn("history cache invalidate failed", zap.String("course_id", courseID), zap.Error(err))
		}
	}
	if s.events != nil {
		body, _ := json.Marshal(SessionClosedEvent{CourseID: courseID, SessionID: closed.ID})
		if err := s.events.Publish(ctx, queue.Message{Type: MessageSessionClosed, Body: body}); err != nil {
			s.log.Warn("publish session closed failed", zap.String("course_id", courseID), zap.Error(err))
		}
	}
	return closed.record(), nil
}

// ActiveSession returns the open session of a course, or nil.
func (s *Service) ActiveSession(ctx context.Context, courseID string) (*Session, error) {
	return s.store.ActiveSession(ctx, courseID)
}

// GetHistory returns the closed sessions of a course, most recently closed
// first. Access control is the caller's job.
func (s *Service) GetHistory(ctx context.Context, courseID string) ([]HistoryRecord, error) {
	if s.cache != nil {
		records, ok, err := s.cache.Get(ctx, courseID)
		switch {
		case err != nil:
			metrics.HistoryCacheLookups.WithLabelValues("error").Inc()
			s.log.Warn("history cache read failed", zap.String("course_id", courseID), zap.Error(err))
		case ok:
			metrics.HistoryCacheLookups.WithLabelValues("hit").Inc()
			return records, nil
		default:
			metrics.HistoryCacheLookups.WithLabelValues("miss").Inc()
		}
	}

	// The version is read before the store so a close that lands during the
	// load makes the Set below a no-op.
	var version int64
	cacheable := false
	if s.cache != nil {
		v, err := s.cache.Version(ctx, courseID)
		if err != nil {
			s.log.Warn("history cache version read failed", zap.String("course_id", courseID), zap.Error(err))
		} else {
			version, cacheable = v, true
		}
	}

	records, err := s.loadHistory(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if cacheable {
		if err := s.cache.Set(ctx, courseID, version, records); err != nil {
			s.log.Warn("history cache write failed", zap.String("course_id", courseID), zap.Error(err))
		}
	}
	return records, nil
}

// StudentHistory returns the closed sessions of a course flagged with
// whether studentID attended each.
func (s *Service) StudentHistory(ctx context.Context, courseID, studentID string) ([]StudentRecord, error) {
	records, err := s.GetHistory(ctx, courseID)
	if err != nil {
		return nil, err
	}
	out := make([]StudentRecord, 0, len(records))
	for _, rec := range records {
		attended := false
		for _, sub := range rec.Students {
			if sub.StudentID == studentID {
				attended = true
				break
			}
		}
		out = append(out, StudentRecord{SessionID: rec.SessionID, Date: rec.Date, Attended: attended})
	}
	return out, nil
}

// WarmHistory reloads the history of a course into the cache.
func (s *Service) WarmHistory(ctx context.Context, courseID string) error {
	if s.cache == nil {
		return nil
	}
	version, err := s.cache.Version(ctx, courseID)
	if err != nil {
		return err
	}
	records, err := s.loadHistory(ctx, courseID)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, courseID, version, records)
}

func (s *Service) loadHistory(ctx context.Context, courseID string) ([]HistoryRecord, error) {
	sessions, err := s.store.ClosedSessions(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("load closed sessions: %w", err)
	}
	records := make([]HistoryRecord, 0, len(sessions))
	for _, sess := range sessions {
		records = append(records, sess.record())
	}
	return records, nil
}

func (s *Service) authorizeTeacher(ctx context.Context, courseID, teacherID string) error {
	owner, err := s.roster.Owner(ctx, courseID)
	if err != nil {
		return err
	}
	if owner != teacherID {
		return apperr.Forbidden("Only the course's teacher can manage its attendance")
	}
	return nil
}

func submissionResult(err error) string {
	if err == nil {
		return "accepted"
	}
	switch apperr.KindOf(err) {
	case apperr.KindInvalidCode:
		return "invalid_code"
	case apperr.KindForbidden:
		return "forbidden"
	case apperr.KindConflict:
		return "conflict"
	case apperr.KindNotFound:
		return "not_found"
	default:
		return "error"
	}
}
