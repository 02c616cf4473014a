package course

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresRepository persists courses in the courses and course_students
// tables.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const courseColumns = `id, name, code, schedule, teacher_id, created_at`

func (r *PostgresRepository) Create(ctx context.Context, c *Course) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.StudentEmails == nil {
		c.StudentEmails = []string{}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO courses (id, name, code, schedule, teacher_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.ID, c.Name, c.Code, c.Schedule, c.TeacherID, c.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrCodeTaken
	}
	return err
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*Course, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	var c Course
	err := r.db.QueryRowContext(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Code, &c.Schedule, &c.TeacherID, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if c.StudentEmails, err = r.roster(ctx, c.ID); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PostgresRepository) ListByTeacher(ctx context.Context, teacherID string) ([]Course, error) {
	if _, err := uuid.Parse(teacherID); err != nil {
		return []Course{}, nil
	}
	return r.list(ctx, `
		SELECT `+courseColumns+` FROM courses
		WHERE teacher_id = $1
		ORDER BY created_at, name
	`, teacherID)
}

func (r *PostgresRepository) ListByStudent(ctx context.Context, email string) ([]Course, error) {
	return r.list(ctx, `
		SELECT c.id, c.name, c.code, c.schedule, c.teacher_id, c.created_at
		FROM courses c
		JOIN course_students cs ON cs.course_id = c.id
		WHERE cs.student_email = $1
		ORDER BY c.created_at, c.name
	`, email)
}

func (r *PostgresRepository) AddStudents(ctx context.Context, courseID string, emails []string) ([]string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	added := []string{}
	for _, email := range emails {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO course_students (course_id, student_email, enrolled_at)
			VALUES ($1, $2, now())
			ON CONFLICT (course_id, student_email) DO NOTHING
		`, courseID, email)
		if err != nil {
			return nil, err
		}
		if n, _ := res.RowsAffected(); n == 1 {
			added = append(added, email)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return added, nil
}

func (r *PostgresRepository) IsEnrolled(ctx context.Context, courseID, email string) (bool, error) {
	if _, err := uuid.Parse(courseID); err != nil {
		return false, nil
	}
	var ok bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM course_students WHERE course_id = $1 AND student_email = $2
		)
	`, courseID, email).Scan(&ok)
	return ok, err
}

func (r *PostgresRepository) list(ctx context.Context, query string, arg any) ([]Course, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Course{}
	for rows.Next() {
		var c Course
		if err := rows.Scan(&c.ID, &c.Name, &c.Code, &c.Schedule, &c.TeacherID, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].StudentEmails, err = r.roster(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *PostgresRepository) roster(ctx context.Context, courseID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT student_email FROM course_students
		WHERE course_id = $1
		ORDER BY enrolled_at, student_email
	`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	emails := []string{}
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, err
		}
		emails = append(emails, e)
	}
	return emails, rows.Err()
}
