package jobs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/khrees2412/jobportal/internal/apiclient"
	"github.com/khrees2412/jobportal/internal/apperr"
	"github.com/khrees2412/jobportal/internal/logger"
	"github.com/khrees2412/jobportal/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCache struct {
	jobs map[int]models.JobPosting
}

func newMemCache() *memCache { return &memCache{jobs: map[int]models.JobPosting{}} }

func (m *memCache) UpsertJobs(_ context.Context, jobs []models.JobPosting) error {
	for _, j := range jobs {
		m.jobs[j.ID] = j
	}
	return nil
}

func (m *memCache) GetJob(_ context.Context, id int) (*models.JobPosting, error) {
	j, ok := m.jobs[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &j, nil
}

func (m *memCache) SearchJobs(_ context.Context, search string) ([]models.JobPosting, error) {
	out := []models.JobPosting{}
	for _, j := range m.jobs {
		if search == "" || strings.Contains(strings.ToLower(j.Title), strings.ToLower(search)) {
			out = append(out, j)
		}
	}
	return out, nil
}

const listBody = `{"message":"ok","data":[
	{"id":1,"job_title":"Go Developer","description":"APIs","cv_score":80,"quiz_score":75,"created_at":"2024-03-01T10:00:00Z"},
	{"id":2,"job_title":"QA Engineer","description":null,"cv_score":null,"created_at":"2024-03-02T10:00:00Z"}
]}`

func directoryServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("search") == "go" {
			w.Write([]byte(`{"message":"ok","data":[{"id":1,"job_title":"Go Developer","created_at":"2024-03-01T10:00:00Z"}]}`))
			return
		}
		w.Write([]byte(listBody))
	})
	mux.HandleFunc("GET /jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "1" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message":"Job not found"}`))
			return
		}
		w.Write([]byte(`{"message":"ok","data":{"id":1,"job_title":"Go Developer","description":"APIs","cv_score":80,"quiz_score":75,"created_at":"2024-03-01T10:00:00Z"}}`))
	})
	mux.HandleFunc("POST /jobs", func(w http.ResponseWriter, r *http.Request) {
		var req CreateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := map[string]any{"message": "created", "data": map[string]any{
			"id": 10, "job_title": req.Title, "description": req.Description,
			"cv_score": req.CVScore, "quiz_score": req.QuizScore, "created_at": "2024-04-01T00:00:00Z",
		}}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(resp)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestDirectoryList(t *testing.T) {
	srv := directoryServer(t)
	dir := NewDirectory(apiclient.New("jobs", srv.URL))

	jobs, err := dir.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "Go Developer", jobs[0].Title)
	assert.Equal(t, 80, jobs[0].CVThreshold())
	assert.Equal(t, 75, jobs[0].QuizThreshold())
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), jobs[0].CreatedAt)
	assert.Equal(t, models.DefaultRequiredCVScore, jobs[1].CVThreshold())
	assert.Equal(t, models.DefaultRequiredQuizScore, jobs[1].QuizThreshold())

	filtered, err := dir.List(context.Background(), " go ")
	require.NoError(t, err)
	assert.Len(t, filtered, 1)
}

func TestDirectoryGet(t *testing.T) {
	srv := directoryServer(t)
	dir := NewDirectory(apiclient.New("jobs", srv.URL))

	job, err := dir.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "APIs", job.Description)

	_, err = dir.Get(context.Background(), 404)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDirectoryCreate(t *testing.T) {
	srv := directoryServer(t)
	dir := NewDirectory(apiclient.New("jobs", srv.URL))

	job, err := dir.Create(context.Background(), CreateRequest{Title: "SRE", Description: "On-call", CVScore: 85})
	require.NoError(t, err)
	assert.Equal(t, 10, job.ID)
	assert.Equal(t, 85, job.CVThreshold())
	assert.Equal(t, models.DefaultRequiredQuizScore, job.QuizThreshold())

	_, err = dir.Create(context.Background(), CreateRequest{Title: "", Description: "x"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = dir.Create(context.Background(), CreateRequest{Title: "x", Description: "y", QuizScore: 120})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestServiceCachesAndFallsBack(t *testing.T) {
	srv := directoryServer(t)
	cache := newMemCache()
	svc := NewService(NewDirectory(apiclient.New("jobs", srv.URL)), cache, logger.NewTestLogger(t))
	ctx := context.Background()

	jobs, stale, err := svc.List(ctx, "")
	require.NoError(t, err)
	assert.False(t, stale)
	assert.Len(t, jobs, 2)
	assert.Len(t, cache.jobs, 2)

	srv.Close()

	jobs, stale, err = svc.List(ctx, "qa")
	require.NoError(t, err)
	assert.True(t, stale)
	require.Len(t, jobs, 1)
	assert.Equal(t, 2, jobs[0].ID)

	job, stale, err := svc.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, stale)
	assert.Equal(t, "Go Developer", job.Title)

	_, _, err = svc.Get(ctx, 3)
	assert.True(t, apperr.Is(err, apperr.KindNetwork))
}

func TestServiceDoesNotMaskAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	cache := newMemCache()
	cache.UpsertJobs(context.Background(), []models.JobPosting{{ID: 1, Title: "cached"}})
	svc := NewService(NewDirectory(apiclient.New("jobs", srv.URL)), cache, logger.NewNoOpLogger())

	_, _, err := svc.List(context.Background(), "")
	assert.True(t, apperr.Is(err, apperr.KindAuth))
}
