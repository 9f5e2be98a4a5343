// Package wizard implements the application flow for one job posting:
// CV upload and scoring, an optional face verification step, and the
// decision that either hands off to the quiz or offers a retry.
//
// All methods are safe for concurrent use. Network calls run without the
// lock held, and every step change bumps a generation counter so a response
// that resolves after the step moved on is discarded.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/khrees2412/jobportal/internal/ai"
	"github.com/khrees2412/jobportal/internal/apperr"
	"github.com/khrees2412/jobportal/internal/logger"
	"github.com/khrees2412/jobportal/internal/metrics"
	"github.com/khrees2412/jobportal/internal/session"
	"github.com/khrees2412/jobportal/internal/upload"
	"github.com/khrees2412/jobportal/pkg/models"
)

// Step is a wizard state.
type Step string

const (
	StepCVUpload    Step = "CV_UPLOAD"
	StepPhotoUpload Step = "PHOTO_UPLOAD"
	StepDecision    Step = "DECISION"
)

// DefaultPhotoHold is how long a verified photo stays on screen before the
// decision step.
const DefaultPhotoHold = 2 * time.Second

var (
	ErrClosed          = errors.New("wizard closed")
	ErrWrongStep       = errors.New("action not available in current step")
	ErrBusy            = errors.New("a request is already in progress")
	ErrAlreadyScored   = errors.New("CV already scored; retry to upload a new one")
	ErrStale           = errors.New("response discarded: wizard moved on")
	ErrNotQualified    = errors.New("CV score below the required threshold")
	ErrFaceNotVerified = errors.New("face not verified")
	ErrTooManyAttempts = errors.New("face verification attempts exhausted")
)

// Analyzer scores a CV against a job description.
type Analyzer interface {
	Analyze(ctx context.Context, resume upload.File, jobDescription string) (*ai.CVAnalysis, error)
}

// FaceVerifier registers a reference photo.
type FaceVerifier interface {
	SetReference(ctx context.Context, dataURL string) (*ai.Verification, error)
}

// AuthHandler is told when a call came back unauthorized. It should remember
// returnPath and send the user to sign in.
type AuthHandler interface {
	RequireSignIn(ctx context.Context, returnPath string) error
}

// Recorder persists application summaries.
type Recorder interface {
	SaveApplication(ctx context.Context, state models.ApplicationState) error
}

// FallbackPolicy controls the simulated score used when the analyzer fails.
// Disabled unless explicitly enabled.
type FallbackPolicy struct {
	Enabled bool
	Delay   time.Duration
	Rand    func() float64
}

// Config wires a Wizard.
type Config struct {
	Job             models.JobPosting
	Analyzer        Analyzer
	Verifier        FaceVerifier
	Auth            AuthHandler
	Recorder        Recorder
	Clock           clockwork.Clock
	Fallback        FallbackPolicy
	PhotoHold       time.Duration
	MaxFaceAttempts int
	Logger          logger.Logger
	OnChange        func(Snapshot)
}

// Wizard is one application session.
type Wizard struct {
	cfg Config
	log logger.Logger

	mu     sync.Mutex
	gen    uint64
	closed bool
	st     state
}

type state struct {
	step            Step
	cvFile          *FileInfo
	analyzing       bool
	cvScore         *int
	scores          *models.DetailedScores
	report          string
	hasProfilePhoto *bool
	photoFile       *FileInfo
	verifying       bool
	faceVerified    bool
	faceMessage     string
	faceAttempts    int
	degraded        bool
	authRequired    bool
	lastError       error
}

// New validates cfg and returns a wizard in CV_UPLOAD.
func New(cfg Config) (*Wizard, error) {
	if cfg.Job.ID <= 0 {
		return nil, fmt.Errorf("wizard: job id is required")
	}
	if cfg.Analyzer == nil || cfg.Verifier == nil {
		return nil, fmt.Errorf("wizard: analyzer and verifier are required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.PhotoHold <= 0 {
		cfg.PhotoHold = DefaultPhotoHold
	}
	if cfg.Fallback.Rand == nil {
		cfg.Fallback.Rand = rand.Float64
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoOpLogger()
	}
	return &Wizard{
		cfg: cfg,
		log: cfg.Logger.WithFields(map[string]interface{}{"job_id": cfg.Job.ID}),
		st:  state{step: StepCVUpload},
	}, nil
}

// Job returns the job context.
func (w *Wizard) Job() models.JobPosting {
	return w.cfg.Job
}

// ReturnPath is where sign-in should send the user back to.
func (w *Wizard) ReturnPath() string {
	return fmt.Sprintf("/apply/%d", w.cfg.Job.ID)
}

// Snapshot returns a copy of the current session.
func (w *Wizard) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

// SubmitCV validates file locally, then sends it for analysis and applies the
// scoring rule. Validation failures never reach the network.
func (w *Wizard) SubmitCV(ctx context.Context, file upload.File) error {
	w.mu.Lock()
	if err := w.checkLocked(StepCVUpload); err != nil {
		w.mu.Unlock()
		return err
	}
	if w.st.analyzing {
		w.mu.Unlock()
		return ErrBusy
	}
	if w.st.cvScore != nil {
		w.mu.Unlock()
		return ErrAlreadyScored
	}
	if err := upload.ValidateCV(file); err != nil {
		w.st.lastError = err
		w.mu.Unlock()
		w.notify()
		return err
	}
	info := newFileInfo(file)
	w.st.cvFile = &info
	w.st.analyzing = true
	w.st.lastError = nil
	gen := w.gen
	w.mu.Unlock()
	w.notify()

	w.log.Info("submitting CV for analysis", map[string]interface{}{"file": file.Name, "size": file.Size})
	res, err := w.cfg.Analyzer.Analyze(ctx, file, w.cfg.Job.Description)
	if err != nil {
		return w.handleAnalysisError(ctx, gen, err)
	}

	w.mu.Lock()
	if gen != w.gen {
		w.mu.Unlock()
		w.log.Debug("discarding stale CV analysis", nil)
		return ErrStale
	}
	w.st.analyzing = false
	w.st.scores = &res.Scores
	w.st.report = res.Report
	w.applyScoreLocked(res.CVScore, res.HasProfilePhoto)
	snap := w.snapshotLocked()
	w.mu.Unlock()
	w.notify()
	w.persistDisqualified(ctx, snap)
	return nil
}

func (w *Wizard) handleAnalysisError(ctx context.Context, gen uint64, err error) error {
	w.mu.Lock()
	if gen != w.gen {
		w.mu.Unlock()
		return ErrStale
	}
	w.st.lastError = err

	switch {
	case apperr.Is(err, apperr.KindAuth):
		w.st.analyzing = false
		w.st.authRequired = true
		w.mu.Unlock()
		w.notify()
		w.requireSignIn(ctx)
		return err
	case ctx.Err() != nil, !w.cfg.Fallback.Enabled:
		w.st.analyzing = false
		w.mu.Unlock()
		w.notify()
		w.log.WithError(err).Warn("CV analysis failed", nil)
		return err
	}
	w.mu.Unlock()
	// surface the failure while the fallback timer runs
	w.notify()

	select {
	case <-w.cfg.Clock.After(w.cfg.Fallback.Delay):
	case <-ctx.Done():
		w.mu.Lock()
		if gen == w.gen {
			w.st.analyzing = false
		}
		w.mu.Unlock()
		w.notify()
		return ctx.Err()
	}

	w.mu.Lock()
	if gen != w.gen {
		w.mu.Unlock()
		return ErrStale
	}
	score := 80 + int(w.cfg.Fallback.Rand()*20)
	hasPhoto := w.cfg.Fallback.Rand() >= 0.5
	w.st.analyzing = false
	w.st.degraded = true
	w.applyScoreLocked(score, hasPhoto)
	snap := w.snapshotLocked()
	w.mu.Unlock()

	metrics.CVFallbacks.Inc()
	w.log.WithError(err).Warn("CV analyzer unavailable, using simulated score", map[string]interface{}{
		"degraded":          true,
		"simulated_score":   score,
		"simulated_photo":   hasPhoto,
		"resulting_step":    string(snap.Step),
		"required_cv_score": w.cfg.Job.CVThreshold(),
	})
	w.notify()
	w.persistDisqualified(ctx, snap)
	return nil
}

// applyScoreLocked records the score and moves to the next step:
// a qualifying score goes to PHOTO_UPLOAD when no photo was detected and to
// DECISION otherwise; a failing score always goes to DECISION.
func (w *Wizard) applyScoreLocked(score int, hasPhoto bool) {
	w.st.cvScore = &score
	w.st.hasProfilePhoto = &hasPhoto
	if score >= w.cfg.Job.CVThreshold() && !hasPhoto {
		w.setStepLocked(StepPhotoUpload)
		return
	}
	w.setStepLocked(StepDecision)
}

// SubmitPhoto validates the photo locally and registers it as the reference
// face. On success the wizard holds in PHOTO_UPLOAD for the configured window
// and then moves to DECISION. Failures leave the step unchanged.
func (w *Wizard) SubmitPhoto(ctx context.Context, file upload.File) error {
	w.mu.Lock()
	if err := w.checkLocked(StepPhotoUpload); err != nil {
		w.mu.Unlock()
		return err
	}
	if w.st.verifying {
		w.mu.Unlock()
		return ErrBusy
	}
	if w.st.faceVerified {
		w.mu.Unlock()
		return ErrWrongStep
	}
	if limit := w.cfg.MaxFaceAttempts; limit > 0 && w.st.faceAttempts >= limit {
		w.mu.Unlock()
		return ErrTooManyAttempts
	}
	if err := upload.ValidatePhoto(file); err != nil {
		w.st.lastError = err
		w.mu.Unlock()
		w.notify()
		return err
	}
	info := newFileInfo(file)
	w.st.photoFile = &info
	w.st.verifying = true
	w.st.faceAttempts++
	w.st.faceMessage = ""
	w.st.lastError = nil
	gen := w.gen
	attempt := w.st.faceAttempts
	w.mu.Unlock()
	w.notify()

	v, err := w.cfg.Verifier.SetReference(ctx, file.DataURL())

	w.mu.Lock()
	if gen != w.gen {
		w.mu.Unlock()
		return ErrStale
	}
	w.st.verifying = false
	if err != nil {
		w.st.lastError = err
		auth := apperr.Is(err, apperr.KindAuth)
		if auth {
			w.st.authRequired = true
		}
		w.mu.Unlock()
		w.notify()
		if auth {
			w.requireSignIn(ctx)
		}
		w.log.WithError(err).Warn("face verification request failed", map[string]interface{}{"attempt": attempt})
		return err
	}
	if !v.Success {
		w.st.faceMessage = v.Message
		w.st.lastError = fmt.Errorf("%w: %s", ErrFaceNotVerified, v.Message)
		failure := w.st.lastError
		w.mu.Unlock()
		w.notify()
		return failure
	}

	w.st.faceVerified = true
	photo := true
	w.st.hasProfilePhoto = &photo
	w.st.faceMessage = v.Message
	w.mu.Unlock()
	w.notify()

	select {
	case <-w.cfg.Clock.After(w.cfg.PhotoHold):
	case <-ctx.Done():
		return ctx.Err()
	}

	w.mu.Lock()
	if gen != w.gen {
		w.mu.Unlock()
		return ErrStale
	}
	w.setStepLocked(StepDecision)
	w.mu.Unlock()
	w.notify()
	return nil
}

// Back returns from PHOTO_UPLOAD to CV_UPLOAD, keeping the score.
func (w *Wizard) Back() error {
	w.mu.Lock()
	if err := w.checkLocked(StepPhotoUpload); err != nil {
		w.mu.Unlock()
		return err
	}
	w.st.verifying = false
	w.setStepLocked(StepCVUpload)
	w.mu.Unlock()
	w.notify()
	return nil
}

// Proceed moves forward without a new upload: from CV_UPLOAD once a
// qualifying score exists, or from PHOTO_UPLOAD once the face is verified.
func (w *Wizard) Proceed() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	switch {
	case w.st.step == StepCVUpload && w.st.cvScore != nil && !w.st.analyzing:
		if *w.st.cvScore >= w.cfg.Job.CVThreshold() && !w.hasPhotoLocked() {
			w.setStepLocked(StepPhotoUpload)
		} else {
			w.setStepLocked(StepDecision)
		}
	case w.st.step == StepPhotoUpload && w.st.faceVerified:
		w.setStepLocked(StepDecision)
	default:
		w.mu.Unlock()
		return ErrWrongStep
	}
	w.mu.Unlock()
	w.notify()
	return nil
}

// Retry resets the session to CV_UPLOAD, keeping only the job context.
// Anything still in flight is discarded when it resolves.
func (w *Wizard) Retry() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	from := w.st.step
	w.st = state{step: StepCVUpload}
	w.gen++
	w.mu.Unlock()
	metrics.WizardTransitions.WithLabelValues(string(from), string(StepCVUpload)).Inc()
	w.log.Info("application reset", map[string]interface{}{"from": string(from)})
	w.notify()
	return nil
}

// StartQuiz builds the handoff record for a qualified decision and persists
// the application summary.
func (w *Wizard) StartQuiz(ctx context.Context) (session.Record, error) {
	w.mu.Lock()
	if err := w.checkLocked(StepDecision); err != nil {
		w.mu.Unlock()
		return session.Record{}, err
	}
	if w.decisionLocked() != DecisionQualified {
		w.mu.Unlock()
		return session.Record{}, ErrNotQualified
	}
	rec := session.Record{
		JobID:           w.cfg.Job.ID,
		CVScore:         *w.st.cvScore,
		HasProfilePhoto: w.hasPhotoLocked(),
		Topic:           w.cfg.Job.Title,
		Degraded:        w.st.degraded,
	}
	w.mu.Unlock()

	if w.cfg.Recorder != nil {
		if err := w.cfg.Recorder.SaveApplication(ctx, rec.ApplicationState(w.cfg.Clock.Now())); err != nil {
			return session.Record{}, fmt.Errorf("save application state: %w", err)
		}
	}
	w.log.Info("handing off to quiz", map[string]interface{}{"cv_score": rec.CVScore, "has_photo": rec.HasProfilePhoto})
	return rec, nil
}

// Close ends the session. Pending responses are discarded.
func (w *Wizard) Close() {
	w.mu.Lock()
	w.closed = true
	w.gen++
	w.mu.Unlock()
}

func (w *Wizard) checkLocked(want Step) error {
	if w.closed {
		return ErrClosed
	}
	if w.st.step != want {
		return fmt.Errorf("%w: in %s, need %s", ErrWrongStep, w.st.step, want)
	}
	return nil
}

func (w *Wizard) setStepLocked(to Step) {
	from := w.st.step
	w.st.step = to
	w.gen++
	metrics.WizardTransitions.WithLabelValues(string(from), string(to)).Inc()
	w.log.Info("wizard transition", map[string]interface{}{"from": string(from), "to": string(to)})
}

func (w *Wizard) hasPhotoLocked() bool {
	return w.st.faceVerified || (w.st.hasProfilePhoto != nil && *w.st.hasProfilePhoto)
}

func (w *Wizard) decisionLocked() Decision {
	if w.st.step != StepDecision || w.st.cvScore == nil {
		return DecisionNone
	}
	if *w.st.cvScore >= w.cfg.Job.CVThreshold() {
		return DecisionQualified
	}
	return DecisionDisqualified
}

func (w *Wizard) requireSignIn(ctx context.Context) {
	if w.cfg.Auth == nil {
		return
	}
	if err := w.cfg.Auth.RequireSignIn(ctx, w.ReturnPath()); err != nil {
		w.log.WithError(err).Error("failed to hand off to sign-in", nil)
	}
}

func (w *Wizard) persistDisqualified(ctx context.Context, snap Snapshot) {
	if w.cfg.Recorder == nil || snap.Decision != DecisionDisqualified {
		return
	}
	state := models.ApplicationState{
		JobID:           w.cfg.Job.ID,
		CVScore:         *snap.CVScore,
		HasProfilePhoto: snap.HasProfilePhoto != nil && *snap.HasProfilePhoto,
		Degraded:        snap.Degraded,
		UpdatedAt:       w.cfg.Clock.Now(),
	}
	if err := w.cfg.Recorder.SaveApplication(ctx, state); err != nil {
		w.log.WithError(err).Warn("failed to record decision", nil)
	}
}

func (w *Wizard) notify() {
	if w.cfg.OnChange == nil {
		return
	}
	w.cfg.OnChange(w.Snapshot())
}
