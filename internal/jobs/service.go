package jobs

import (
	"context"

	"github.com/khrees2412/jobportal/internal/apperr"
	"github.com/khrees2412/jobportal/internal/logger"
	"github.com/khrees2412/jobportal/pkg/models"
)

// Cache is the local copy of postings.
type Cache interface {
	UpsertJobs(ctx context.Context, jobs []models.JobPosting) error
	GetJob(ctx context.Context, id int) (*models.JobPosting, error)
	SearchJobs(ctx context.Context, search string) ([]models.JobPosting, error)
}

// Service reads through the directory into the cache and serves cached
// postings when the directory cannot be reached.
type Service struct {
	dir   *Directory
	cache Cache
	log   logger.Logger
}

func NewService(dir *Directory, cache Cache, log logger.Logger) *Service {
	return &Service{dir: dir, cache: cache, log: log}
}

// List returns postings and whether they came from the cache.
func (s *Service) List(ctx context.Context, search string) ([]models.JobPosting, bool, error) {
	jobs, err := s.dir.List(ctx, search)
	if err == nil {
		s.store(ctx, jobs)
		return jobs, false, nil
	}
	if !apperr.Is(err, apperr.KindNetwork) {
		return nil, false, err
	}

	s.log.WithError(err).Warn("job directory unreachable, serving cached postings", map[string]interface{}{"search": search})
	cached, cacheErr := s.cache.SearchJobs(ctx, search)
	if cacheErr != nil || len(cached) == 0 {
		return nil, false, err
	}
	return cached, true, nil
}

// Get returns one posting and whether it came from the cache.
func (s *Service) Get(ctx context.Context, id int) (*models.JobPosting, bool, error) {
	job, err := s.dir.Get(ctx, id)
	if err == nil {
		s.store(ctx, []models.JobPosting{*job})
		return job, false, nil
	}
	if !apperr.Is(err, apperr.KindNetwork) {
		return nil, false, err
	}

	s.log.WithError(err).Warn("job directory unreachable, serving cached posting", map[string]interface{}{"job_id": id})
	cached, cacheErr := s.cache.GetJob(ctx, id)
	if cacheErr != nil {
		return nil, false, err
	}
	return cached, true, nil
}

// Create publishes a posting and caches the stored copy.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.JobPosting, error) {
	job, err := s.dir.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	s.store(ctx, []models.JobPosting{*job})
	return job, nil
}

func (s *Service) store(ctx context.Context, jobs []models.JobPosting) {
	if len(jobs) == 0 {
		return
	}
	if err := s.cache.UpsertJobs(ctx, jobs); err != nil {
		s.log.WithError(err).Warn("failed to cache job postings", map[string]interface{}{"count": len(jobs)})
	}
}
