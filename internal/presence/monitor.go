// Package presence polls a camera and asks the face service whether the
// registered user is still in front of it.
package presence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/khrees2412/jobportal/internal/ai"
	"github.com/khrees2412/jobportal/internal/apperr"
	"github.com/khrees2412/jobportal/internal/logger"
	"github.com/khrees2412/jobportal/internal/metrics"
)

const (
	DefaultInterval       = 3 * time.Second
	DefaultConfidentAbove = 0.7
	failedMessage         = "Verification failed"
)

var (
	ErrNotInitialized = errors.New("camera not initialized")
	ErrNoReference    = errors.New("reference face not set")
	ErrRunning        = errors.New("verification already running")
	ErrClosed         = errors.New("monitor closed")
)

// FrameSource is a camera. Capture returns one frame as a data URL.
// Close must release the device.
type FrameSource interface {
	Open(ctx context.Context) error
	Capture(ctx context.Context) (string, error)
	Close() error
}

// Verifier is the face service.
type Verifier interface {
	SetReference(ctx context.Context, dataURL string) (*ai.Verification, error)
	VerifyPresence(ctx context.Context, dataURL string) (*ai.Presence, error)
}

// Level summarises a presence result for display.
type Level string

const (
	LevelUnknown   Level = "unknown"
	LevelVerified  Level = "verified"
	LevelUncertain Level = "uncertain"
	LevelAbsent    Level = "absent"
)

// LevelOf maps a result onto a display level: present above the confidence
// bar is verified, present below it is uncertain, anything else is absent.
func LevelOf(p ai.Presence, confidentAbove float64) Level {
	switch {
	case p.UserPresent && p.Confidence > confidentAbove:
		return LevelVerified
	case p.UserPresent:
		return LevelUncertain
	default:
		return LevelAbsent
	}
}

// Status is the outcome of one check.
type Status struct {
	Presence  ai.Presence
	Level     Level
	CheckedAt time.Time
	Err       error
}

// Options configures a Monitor. Zero values take defaults.
type Options struct {
	Interval       time.Duration
	ConfidentAbove float64
	Clock          clockwork.Clock
	Logger         logger.Logger
	OnStatus       func(Status)
}

// Monitor owns a camera for its lifetime and runs the polling loop.
type Monitor struct {
	src  FrameSource
	ver  Verifier
	opts Options
	log  logger.Logger

	mu           sync.Mutex
	initialized  bool
	referenceSet bool
	closed       bool
	stop         chan struct{}
	done         chan struct{}
	last         *Status
	checks       int
}

// New returns an idle monitor. The camera is not touched until Open.
func New(src FrameSource, ver Verifier, opts Options) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.ConfidentAbove <= 0 {
		opts.ConfidentAbove = DefaultConfidentAbove
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}
	return &Monitor{src: src, ver: ver, opts: opts, log: opts.Logger}
}

// Open acquires the camera.
func (m *Monitor) Open(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.initialized {
		return nil
	}
	if err := m.src.Open(ctx); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	m.initialized = true
	m.log.Info("camera initialized", nil)
	return nil
}

// CaptureReference takes a frame from the camera and registers it as the
// reference face.
func (m *Monitor) CaptureReference(ctx context.Context) (*ai.Verification, error) {
	if !m.Initialized() {
		return nil, ErrNotInitialized
	}
	frame, err := m.src.Capture(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture reference frame: %w", err)
	}
	return m.UseReference(ctx, frame)
}

// UseReference registers an existing image as the reference face.
func (m *Monitor) UseReference(ctx context.Context, dataURL string) (*ai.Verification, error) {
	v, err := m.ver.SetReference(ctx, dataURL)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.referenceSet = v.Success
	m.mu.Unlock()
	if !v.Success {
		return v, fmt.Errorf("set reference: %s", v.Message)
	}
	return v, nil
}

// Start begins checking every interval. The camera must be open and a
// reference face set. Cancelling ctx has the same effect as Stop.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	switch {
	case m.closed:
		m.mu.Unlock()
		return ErrClosed
	case !m.initialized:
		m.mu.Unlock()
		return ErrNotInitialized
	case !m.referenceSet:
		m.mu.Unlock()
		return ErrNoReference
	case m.stop != nil:
		m.mu.Unlock()
		return ErrRunning
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	m.stop, m.done = stop, done
	ticker := m.opts.Clock.NewTicker(m.opts.Interval)
	m.mu.Unlock()

	m.log.Info("presence verification started", map[string]interface{}{"interval": m.opts.Interval.String()})
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				m.check(ctx)
			case <-stop:
				return
			case <-ctx.Done():
				m.abandon(stop)
				return
			}
		}
	}()
	return nil
}

// Running reports whether the polling loop is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stop != nil
}

// Initialized reports whether the camera is open.
func (m *Monitor) Initialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initialized
}

// Last returns the most recent check, if any.
func (m *Monitor) Last() (Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return Status{Level: LevelUnknown}, false
	}
	return *m.last, true
}

// Checks returns how many checks have completed.
func (m *Monitor) Checks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checks
}

// check captures one frame and verifies it. Any failure is reported as an
// absent user rather than an error.
func (m *Monitor) check(ctx context.Context) Status {
	st := Status{CheckedAt: m.opts.Clock.Now()}
	frame, err := m.src.Capture(ctx)
	if err == nil {
		var p *ai.Presence
		p, err = m.ver.VerifyPresence(ctx, frame)
		if err == nil {
			st.Presence = *p
		}
	}
	if err != nil {
		st.Err = err
		st.Presence = ai.Presence{UserPresent: false, Confidence: 0, Message: failedMessage}
		m.log.WithError(err).Warn("presence check failed", map[string]interface{}{"kind": string(apperr.KindOf(err))})
	}
	st.Level = LevelOf(st.Presence, m.opts.ConfidentAbove)

	m.mu.Lock()
	m.last = &st
	m.checks++
	m.mu.Unlock()

	metrics.PresenceChecks.WithLabelValues(string(st.Level)).Inc()
	m.log.Debug("presence check", map[string]interface{}{
		"level":      string(st.Level),
		"confidence": st.Presence.Confidence,
	})
	if m.opts.OnStatus != nil {
		m.opts.OnStatus(st)
	}
	return st
}

// Stop ends polling and releases the camera. Open must be called again
// before restarting. It must not be called from OnStatus.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	stop, done := m.stop, m.done
	m.stop, m.done = nil, nil
	wasOpen := m.initialized
	m.initialized = false
	m.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
		m.log.Info("presence verification stopped", nil)
	}
	if !wasOpen {
		return nil
	}
	if err := m.src.Close(); err != nil {
		return fmt.Errorf("release camera: %w", err)
	}
	return nil
}

// abandon clears the loop started with stop once its context ends, so the
// monitor reports idle and the camera is released. It is a no-op if Stop
// already took the loop over.
func (m *Monitor) abandon(stop chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop != stop {
		return
	}
	m.stop, m.done = nil, nil
	m.log.Info("presence verification cancelled", nil)
	if !m.initialized {
		return
	}
	m.initialized = false
	if err := m.src.Close(); err != nil {
		m.log.WithError(err).Warn("failed to release camera", nil)
	}
}

// Close stops the monitor for good.
func (m *Monitor) Close() error {
	err := m.Stop()
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return err
}
