package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/khrees2412/jobportal/internal/apperr"
	"github.com/khrees2412/jobportal/pkg/models"
)

const redirectKey = "redirect_after_login"

// Repository is the local store: a cache of job postings, application state
// and a small key/value table.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// Job cache operations

func (r *Repository) UpsertJobs(ctx context.Context, jobs []models.JobPosting) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `INSERT INTO jobs (id, title, description, cv_score, quiz_score, created_at, fetched_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT(id) DO UPDATE SET title=excluded.title, description=excluded.description,
			  cv_score=excluded.cv_score, quiz_score=excluded.quiz_score,
			  created_at=excluded.created_at, fetched_at=excluded.fetched_at`
	now := r.now()
	for _, job := range jobs {
		if _, err := tx.ExecContext(ctx, query, job.ID, job.Title, job.Description,
			job.CVThreshold(), job.QuizThreshold(), job.CreatedAt, now); err != nil {
			return fmt.Errorf("upsert job %d: %w", job.ID, err)
		}
	}
	return tx.Commit()
}

func (r *Repository) GetJob(ctx context.Context, id int) (*models.JobPosting, error) {
	query := `SELECT id, title, description, cv_score, quiz_score, created_at, fetched_at
			  FROM jobs WHERE id=?`
	job := &models.JobPosting{}
	var desc sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(&job.ID, &job.Title, &desc,
		&job.RequiredCVScore, &job.RequiredQuizScore, &job.CreatedAt, &job.FetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	job.Description = desc.String
	return job, nil
}

// SearchJobs matches search against title and description, newest first
func (r *Repository) SearchJobs(ctx context.Context, search string) ([]models.JobPosting, error) {
	query := `SELECT id, title, description, cv_score, quiz_score, created_at, fetched_at
			  FROM jobs`
	args := []any{}
	if s := strings.TrimSpace(search); s != "" {
		query += ` WHERE title LIKE ? OR description LIKE ?`
		pattern := "%" + s + "%"
		args = append(args, pattern, pattern)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []models.JobPosting{}
	for rows.Next() {
		var job models.JobPosting
		var desc sql.NullString
		if err := rows.Scan(&job.ID, &job.Title, &desc, &job.RequiredCVScore,
			&job.RequiredQuizScore, &job.CreatedAt, &job.FetchedAt); err != nil {
			return nil, err
		}
		job.Description = desc.String
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Application state operations

func (r *Repository) SaveApplication(ctx context.Context, state models.ApplicationState) error {
	answers, err := encodeAnswers(state.Answers)
	if err != nil {
		return err
	}
	var quizScore sql.NullInt64
	if state.QuizScore != nil {
		quizScore = sql.NullInt64{Int64: int64(*state.QuizScore), Valid: true}
	}

	query := `INSERT INTO applications (job_id, cv_score, has_profile_photo, qualified, degraded,
			  quiz_score, quiz_completed, quiz_passed, answers, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT(job_id) DO UPDATE SET cv_score=excluded.cv_score,
			  has_profile_photo=excluded.has_profile_photo, qualified=excluded.qualified,
			  degraded=excluded.degraded, quiz_score=excluded.quiz_score,
			  quiz_completed=excluded.quiz_completed, quiz_passed=excluded.quiz_passed,
			  answers=excluded.answers, updated_at=excluded.updated_at`
	_, err = r.db.ExecContext(ctx, query, state.JobID, state.CVScore, state.HasProfilePhoto,
		state.Qualified, state.Degraded, quizScore, state.QuizCompleted, state.QuizPassed,
		answers, r.now())
	return err
}

func (r *Repository) LoadApplication(ctx context.Context, jobID int) (*models.ApplicationState, error) {
	query := `SELECT job_id, cv_score, has_profile_photo, qualified, degraded, quiz_score,
			  quiz_completed, quiz_passed, answers, updated_at FROM applications WHERE job_id=?`
	state, err := scanApplication(r.db.QueryRowContext(ctx, query, jobID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	return state, err
}

// MergeQuizResult records the quiz outcome on the application. A row created
// here has no wizard summary behind it and is not marked qualified.
func (r *Repository) MergeQuizResult(ctx context.Context, jobID int, result models.QuizResult) error {
	answers, err := encodeAnswers(result.Answers)
	if err != nil {
		return err
	}
	query := `INSERT INTO applications (job_id, qualified, quiz_score, quiz_completed, quiz_passed, answers, updated_at)
			  VALUES (?, 0, ?, 1, ?, ?, ?)
			  ON CONFLICT(job_id) DO UPDATE SET quiz_score=excluded.quiz_score, quiz_completed=1,
			  quiz_passed=excluded.quiz_passed, answers=excluded.answers, updated_at=excluded.updated_at`
	_, err = r.db.ExecContext(ctx, query, jobID, result.Score, result.Passed, answers, r.now())
	return err
}

func (r *Repository) ListApplications(ctx context.Context) ([]models.ApplicationState, error) {
	query := `SELECT job_id, cv_score, has_profile_photo, qualified, degraded, quiz_score,
			  quiz_completed, quiz_passed, answers, updated_at FROM applications
			  ORDER BY updated_at DESC, job_id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	states := []models.ApplicationState{}
	for rows.Next() {
		state, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, *state)
	}
	return states, rows.Err()
}

// DeleteApplication forgets the summary for jobID
func (r *Repository) DeleteApplication(ctx context.Context, jobID int) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM applications WHERE job_id=?`, jobID)
	return err
}

// Redirect target operations

func (r *Repository) SetRedirect(ctx context.Context, path string) error {
	query := `INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
			  ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`
	_, err := r.db.ExecContext(ctx, query, redirectKey, path, r.now())
	return err
}

// TakeRedirect returns and clears the stored redirect target ("" if none)
func (r *Repository) TakeRedirect(ctx context.Context) (string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var path string
	err = tx.QueryRowContext(ctx, `SELECT value FROM kv WHERE key=?`, redirectKey).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM kv WHERE key=?`, redirectKey); err != nil {
		return "", err
	}
	return path, tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (*models.ApplicationState, error) {
	state := &models.ApplicationState{}
	var quizScore sql.NullInt64
	var answers sql.NullString
	err := row.Scan(&state.JobID, &state.CVScore, &state.HasProfilePhoto, &state.Qualified,
		&state.Degraded, &quizScore, &state.QuizCompleted, &state.QuizPassed, &answers, &state.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if quizScore.Valid {
		score := int(quizScore.Int64)
		state.QuizScore = &score
	}
	if answers.Valid && answers.String != "" {
		if err := json.Unmarshal([]byte(answers.String), &state.Answers); err != nil {
			return nil, fmt.Errorf("decode answers for job %d: %w", state.JobID, err)
		}
	}
	return state, nil
}

func encodeAnswers(answers map[int]models.Answer) (sql.NullString, error) {
	if len(answers) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(answers)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode answers: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
