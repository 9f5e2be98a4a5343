// Package session carries application state from the wizard to the quiz:
// the typed handoff record, its signed token form, and the stores that
// persist application summaries between commands.
package session

import (
	"context"
	"time"

	"github.com/khrees2412/jobportal/pkg/models"
)

// Record is the minimal state handed from the wizard to the quiz.
type Record struct {
	JobID           int    `json:"jobId"`
	CVScore         int    `json:"cvScore"`
	HasProfilePhoto bool   `json:"hasProfilePhoto"`
	Topic           string `json:"topic,omitempty"`
	Degraded        bool   `json:"degraded,omitempty"`
}

// ApplicationState converts the record into the persisted summary of a
// qualified application.
func (r Record) ApplicationState(now time.Time) models.ApplicationState {
	return models.ApplicationState{
		JobID:           r.JobID,
		CVScore:         r.CVScore,
		HasProfilePhoto: r.HasProfilePhoto,
		Qualified:       true,
		Degraded:        r.Degraded,
		UpdatedAt:       now,
	}
}

// Store persists application summaries and the post-login redirect target.
// Lookups that find nothing return apperr.ErrNotFound.
type Store interface {
	SaveApplication(ctx context.Context, state models.ApplicationState) error
	LoadApplication(ctx context.Context, jobID int) (*models.ApplicationState, error)
	MergeQuizResult(ctx context.Context, jobID int, result models.QuizResult) error
	ListApplications(ctx context.Context) ([]models.ApplicationState, error)
	DeleteApplication(ctx context.Context, jobID int) error
	SetRedirect(ctx context.Context, path string) error
	TakeRedirect(ctx context.Context) (string, error)
}
