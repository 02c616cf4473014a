package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Partial unique indexes backing the open-session invariants.
const (
	oneOpenPerCourseIndex = "attendance_sessions_one_open_per_course"
	openCodeIndex         = "attendance_sessions_open_code"
)

// Repository persists attendance sessions in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) OpenSession(ctx context.Context, s Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_sessions (id, course_id, code, opened_at)
		VALUES ($1, $2, $3, $4)
	`, s.ID, s.CourseID, s.Code, s.OpenedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case oneOpenPerCourseIndex:
			return ErrSessionOpen
		case openCodeIndex:
			return ErrCodeTaken
		}
	}
	return err
}

func (r *Repository) ActiveSession(ctx context.Context, courseID string) (*Session, error) {
	if !validID(courseID) {
		return nil, nil
	}
	var s Session
	err := r.db.QueryRowContext(ctx, `
		SELECT id, course_id, code, opened_at
		FROM attendance_sessions
		WHERE course_id = $1 AND closed_at IS NULL
	`, courseID).Scan(&s.ID, &s.CourseID, &s.Code, &s.OpenedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if s.Submissions, err = loadSubmissions(ctx, r.db, s.ID); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repository) AddSubmission(ctx context.Context, sessionID string, sub Submission) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// FOR SHARE blocks CloseSession until this submission commits or aborts.
	var closedAt sql.NullTime
	err = tx.QueryRowContext(ctx, `
		SELECT closed_at FROM attendance_sessions WHERE id = $1 FOR SHARE
	`, sessionID).Scan(&closedAt)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && closedAt.Valid) {
		return ErrNoOpenSession
	}
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO attendance_submissions (session_id, student_id, full_name, email, submitted_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id, student_id) DO NOTHING
	`, sessionID, sub.StudentID, sub.FullName, sub.Email, sub.SubmittedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadySubmitted
	}
	return tx.Commit()
}

func (r *Repository) CloseSession(ctx context.Context, courseID string, closedAt time.Time) (Session, error) {
	if !validID(courseID) {
		return Session{}, ErrNoOpenSession
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Session{}, err
	}
	defer tx.Rollback()

	var s Session
	var closed time.Time
	err = tx.QueryRowContext(ctx, `
		UPDATE attendance_sessions SET closed_at = $2
		WHERE course_id = $1 AND closed_at IS NULL
		RETURNING id, course_id, code, opened_at, closed_at
	`, courseID, closedAt).Scan(&s.ID, &s.CourseID, &s.Code, &s.OpenedAt, &closed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrNoOpenSession
		}
		return Session{}, err
	}
	s.ClosedAt = &closed
	if s.Submissions, err = loadSubmissions(ctx, tx, s.ID); err != nil {
		return Session{}, err
	}
	return s, tx.Commit()
}

func (r *Repository) ClosedSessions(ctx context.Context, courseID string) ([]Session, error) {
	if !validID(courseID) {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.course_id, s.code, s.opened_at, s.closed_at,
		       sub.student_id, sub.full_name, sub.email, sub.submitted_at
		FROM attendance_sessions s
		LEFT JOIN attendance_submissions sub ON sub.session_id = s.id
		WHERE s.course_id = $1 AND s.closed_at IS NOT NULL
		ORDER BY s.closed_at DESC, s.id, sub.submitted_at
	`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var (
			s                          Session
			closed                     time.Time
			studentID, fullName, email sql.NullString
			submittedAt                sql.NullTime
		)
		if err := rows.Scan(&s.ID, &s.CourseID, &s.Code, &s.OpenedAt, &closed,
			&studentID, &fullName, &email, &submittedAt); err != nil {
			return nil, err
		}
		if len(out) == 0 || out[len(out)-1].ID != s.ID {
			s.ClosedAt = &closed
			out = append(out, s)
		}
		if studentID.Valid {
			last := &out[len(out)-1]
			last.Submissions = append(last.Submissions, Submission{
				StudentID:   studentID.String,
				FullName:    fullName.String,
				Email:       email.String,
				SubmittedAt: submittedAt.Time,
			})
		}
	}
	return out, rows.Err()
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func loadSubmissions(ctx context.Context, q queryer, sessionID string) ([]Submission, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT student_id, full_name, email, submitted_at
		FROM attendance_submissions
		WHERE session_id = $1
		ORDER BY submitted_at
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var subs []Submission
	for rows.Next() {
		var sub Submission
		if err := rows.Scan(&sub.StudentID, &sub.FullName, &sub.Email, &sub.SubmittedAt); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
