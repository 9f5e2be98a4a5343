// Package jobs reads and publishes postings through the job directory API and
// keeps a local copy for offline browsing.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/khrees2412/jobportal/internal/apiclient"
	"github.com/khrees2412/jobportal/internal/apperr"
	"github.com/khrees2412/jobportal/pkg/models"
)

const jobsPath = "/jobs"

var jobSchema = map[string]any{
	"type":     "object",
	"required": []string{"id", "job_title"},
	"properties": map[string]any{
		"id":          map[string]any{"type": "integer"},
		"job_title":   map[string]any{"type": "string"},
		"description": map[string]any{"type": []string{"string", "null"}},
		"cv_score":    map[string]any{"type": []string{"integer", "null"}, "minimum": 0, "maximum": 100},
		"quiz_score":  map[string]any{"type": []string{"integer", "null"}, "minimum": 0, "maximum": 100},
		"created_at":  map[string]any{"type": "string"},
	},
}

var (
	listSchema = apiclient.MustCompileSchema("job-list", map[string]any{
		"type":     "object",
		"required": []string{"data"},
		"properties": map[string]any{
			"message": map[string]any{"type": "string"},
			"data":    map[string]any{"type": "array", "items": jobSchema},
		},
	})
	itemSchema = apiclient.MustCompileSchema("job", map[string]any{
		"type":     "object",
		"required": []string{"data"},
		"properties": map[string]any{
			"message": map[string]any{"type": "string"},
			"data":    jobSchema,
		},
	})
)

type envelope[T any] struct {
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// CreateRequest is the body of a new posting.
type CreateRequest struct {
	Title       string `json:"job_title"`
	Description string `json:"description"`
	CVScore     int    `json:"cv_score,omitempty"`
	QuizScore   int    `json:"quiz_score,omitempty"`
}

// Validate checks the request locally.
func (r CreateRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return apperr.NewValidation("job_title", "Job title is required")
	}
	if strings.TrimSpace(r.Description) == "" {
		return apperr.NewValidation("description", "Job description is required")
	}
	for field, score := range map[string]int{"cv_score": r.CVScore, "quiz_score": r.QuizScore} {
		if score < 0 || score > 100 {
			return apperr.NewValidation(field, "Score must be between 0 and 100")
		}
	}
	return nil
}

// Directory is the job directory API client.
type Directory struct {
	api *apiclient.Client
}

func NewDirectory(api *apiclient.Client) *Directory {
	return &Directory{api: api}
}

// List returns postings matching search (all when empty).
func (d *Directory) List(ctx context.Context, search string) ([]models.JobPosting, error) {
	var query url.Values
	if s := strings.TrimSpace(search); s != "" {
		query = url.Values{"search": {s}}
	}
	var resp envelope[[]models.JobPosting]
	if err := d.api.GetJSON(ctx, jobsPath, query, listSchema, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Get returns one posting. A 404 maps to apperr.ErrNotFound.
func (d *Directory) Get(ctx context.Context, id int) (*models.JobPosting, error) {
	var resp envelope[models.JobPosting]
	err := d.api.GetJSON(ctx, jobsPath+"/"+strconv.Itoa(id), nil, itemSchema, &resp)
	if err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) && ae.Kind == apperr.KindService && ae.Status == http.StatusNotFound {
			return nil, fmt.Errorf("job %d: %w", id, apperr.ErrNotFound)
		}
		return nil, err
	}
	return &resp.Data, nil
}

// Create publishes a posting.
func (d *Directory) Create(ctx context.Context, req CreateRequest) (*models.JobPosting, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var resp envelope[models.JobPosting]
	if err := d.api.PostJSON(ctx, jobsPath, req, itemSchema, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}
