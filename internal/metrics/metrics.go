package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector of the client.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	APIRequests = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobportal_api_requests_total",
			Help: "Outbound API requests by service and outcome",
		},
		[]string{"service", "outcome"},
	)

	APIRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jobportal_api_request_duration_seconds",
			Help:    "Duration of outbound API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	WizardTransitions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobportal_wizard_transitions_total",
			Help: "Application wizard step transitions",
		},
		[]string{"from", "to"},
	)

	CVFallbacks = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "jobportal_cv_fallback_total",
			Help: "Simulated CV scores substituted for an unreachable analyzer",
		},
	)

	QuizSubmissions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobportal_quiz_submissions_total",
			Help: "Completed quizzes by trigger (manual, timeout)",
		},
		[]string{"trigger"},
	)

	PresenceChecks = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobportal_presence_checks_total",
			Help: "Presence verification checks by result",
		},
		[]string{"result"},
	)
)

// Handler exposes Registry in the text exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
