// Package devserver emulates the portal backend and the AI services on one
// address so the client can be exercised end to end without them.
package devserver

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"

	"github.com/khrees2412/jobportal/internal/logger"
	"github.com/khrees2412/jobportal/internal/metrics"
	"github.com/khrees2412/jobportal/pkg/models"
)

// Options configures the emulator.
type Options struct {
	// CookieName and CookieValue, when both set, are required on every /api
	// and /jobs request. Requests without them get 401.
	CookieName  string
	CookieValue string
	Seed        []models.JobPosting
	Clock       clockwork.Clock
	Logger      logger.Logger
}

// Server holds the emulated state.
type Server struct {
	opts   Options
	log    logger.Logger
	engine *gin.Engine

	mu        sync.RWMutex
	jobs      []models.JobPosting
	nextID    int
	reference *frameInfo
}

// New builds the router and seeds the job list.
func New(opts Options) *Server {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}
	if opts.Seed == nil {
		opts.Seed = DefaultJobs(opts.Clock.Now())
	}

	s := &Server{opts: opts, log: opts.Logger, nextID: 1}
	for _, j := range opts.Seed {
		s.jobs = append(s.jobs, j)
		if j.ID >= s.nextID {
			s.nextID = j.ID + 1
		}
	}
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), accessLog(s.log))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	authed := router.Group("/", requireCookie(s.opts.CookieName, s.opts.CookieValue))
	authed.GET("/jobs", s.listJobs)
	authed.GET("/jobs/:id", s.getJob)
	authed.POST("/jobs", s.createJob)

	api := authed.Group("/api")
	api.POST("/callExternalApi/cv-analyzer", s.analyzeCV)
	api.POST("/set-reference", s.setReference)
	api.POST("/verify-presence", s.verifyPresence)
	api.POST("/generate-quiz", s.generateQuiz)

	return router
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("dev server listening", map[string]interface{}{"addr": addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// DefaultJobs is the seed list used when none is given.
func DefaultJobs(now time.Time) []models.JobPosting {
	return []models.JobPosting{
		{
			ID:                1,
			Title:             "Backend Engineer",
			Description:       "Build Go services on Kubernetes with PostgreSQL and Redis. Experience with REST APIs, Docker and CI pipelines.",
			RequiredCVScore:   75,
			RequiredQuizScore: 70,
			CreatedAt:         now.Add(-72 * time.Hour),
		},
		{
			ID:                2,
			Title:             "Frontend Developer",
			Description:       "React and TypeScript developer for a component library. Accessibility, testing and design systems.",
			RequiredCVScore:   70,
			RequiredQuizScore: 65,
			CreatedAt:         now.Add(-48 * time.Hour),
		},
		{
			ID:                3,
			Title:             "Data Analyst",
			Description:       "SQL, Python and dashboards. Statistics, experimentation and stakeholder reporting.",
			RequiredCVScore:   0,
			RequiredQuizScore: 0,
			CreatedAt:         now.Add(-24 * time.Hour),
		},
	}
}
