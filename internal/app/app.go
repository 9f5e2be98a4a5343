package app

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/khrees2412/jobportal/internal/ai"
	"github.com/khrees2412/jobportal/internal/apiclient"
	"github.com/khrees2412/jobportal/internal/config"
	"github.com/khrees2412/jobportal/internal/database"
	"github.com/khrees2412/jobportal/internal/jobs"
	"github.com/khrees2412/jobportal/internal/logger"
	"github.com/khrees2412/jobportal/internal/session"
)

// both stores back the same commands
var (
	_ session.Store = (*database.Repository)(nil)
	_ session.Store = (*session.RedisStore)(nil)
)

// App is the dependency container for the CLI application
type App struct {
	Config *config.Config
	Logger logger.Logger
	DB     *sql.DB
	Repo   *database.Repository
	Store  session.Store

	Jobs       *jobs.Service
	CVAnalyzer *ai.CVAnalyzer
	Faces      *ai.FaceVerifier
	Quizzes    *ai.QuizGenerator
	Issuer     *session.Issuer

	closers []func() error
}

// NewApp loads ~/.jobportal/config.yaml and wires the application
func NewApp(ctx context.Context) (*App, error) {
	if err := config.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize config: %w", err)
	}
	return Build(ctx, config.AppConfig, filepath.Join(config.Dir(), "jobportal.db"))
}

// Build wires the application from an already loaded config
func Build(ctx context.Context, cfg *config.Config, dbPath string) (*App, error) {
	log, err := logger.NewStructured(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	db, err := database.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a := &App{
		Config:  cfg,
		Logger:  log,
		DB:      db,
		Repo:    database.NewRepository(db),
		closers: []func() error{db.Close},
	}

	switch cfg.Store.Backend {
	case "redis":
		rs, err := session.NewRedisStore(ctx, cfg.Store.RedisAddr, cfg.Store.RedisTTL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.Store = rs
		a.closers = append(a.closers, rs.Close)
	default:
		a.Store = a.Repo
	}

	backend := a.apiClient("portal", cfg.APIURL)
	a.Jobs = jobs.NewService(jobs.NewDirectory(backend), a.Repo, log)
	a.CVAnalyzer = ai.NewCVAnalyzer(backend)
	a.Faces = ai.NewFaceVerifier(a.apiClient("face", cfg.FaceAPIURL))
	a.Quizzes = ai.NewQuizGenerator(a.apiClient("quiz", cfg.QuizAPIURL))

	if cfg.Handoff.Secret != "" {
		a.Issuer, err = session.NewIssuer(cfg.Handoff.Secret, cfg.Handoff.TTL)
		if err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *App) apiClient(service, baseURL string) *apiclient.Client {
	opts := []apiclient.Option{
		apiclient.WithTimeout(a.Config.RequestTimeout),
		apiclient.WithLogger(a.Logger),
	}
	if a.Config.SessionCookie != "" {
		opts = append(opts, apiclient.WithCredential(a.Config.SessionCookieName, a.Config.SessionCookie))
	}
	return apiclient.New(service, baseURL, opts...)
}

// SignIn returns the handler the wizard calls on an unauthorized response
func (a *App) SignIn() *SignInHandoff {
	return &SignInHandoff{Store: a.Store, Logger: a.Logger}
}

// Close closes all resources
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

type ctxKey struct{}

// GetAppFromContext returns the App stored by SetAppInContext, or nil
func GetAppFromContext(ctx context.Context) *App {
	a, _ := ctx.Value(ctxKey{}).(*App)
	return a
}

// SetAppInContext attaches the App to a command context
func SetAppInContext(ctx context.Context, a *App) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}
