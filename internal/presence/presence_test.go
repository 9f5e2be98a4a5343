package presence

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khrees2412/jobportal/internal/ai"
	"github.com/khrees2412/jobportal/internal/apperr"
	"github.com/khrees2412/jobportal/internal/logger"
	"github.com/khrees2412/jobportal/internal/upload"
)

type fakeCamera struct {
	mu       sync.Mutex
	open     bool
	opened   int
	released int
	openErr  error
}

func (c *fakeCamera) Open(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.openErr != nil {
		return c.openErr
	}
	c.open = true
	c.opened++
	return nil
}

func (c *fakeCamera) Capture(context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return "", ErrNotInitialized
	}
	return "data:image/jpeg;base64,AAAA", nil
}

func (c *fakeCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	c.released++
	return nil
}

func (c *fakeCamera) isOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

type fakeFace struct {
	mu        sync.Mutex
	reference *ai.Verification
	presence  []*ai.Presence
	err       error
	calls     int
}

func (f *fakeFace) SetReference(context.Context, string) (*ai.Verification, error) {
	return f.reference, nil
}

func (f *fakeFace) VerifyPresence(context.Context, string) (*ai.Presence, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	p := f.presence[0]
	if len(f.presence) > 1 {
		f.presence = f.presence[1:]
	}
	return p, nil
}

func TestLevelOf(t *testing.T) {
	tests := []struct {
		name string
		p    ai.Presence
		want Level
	}{
		{"confident", ai.Presence{UserPresent: true, Confidence: 0.71}, LevelVerified},
		{"at the bar", ai.Presence{UserPresent: true, Confidence: 0.7}, LevelUncertain},
		{"low confidence", ai.Presence{UserPresent: true, Confidence: 0.2}, LevelUncertain},
		{"absent", ai.Presence{UserPresent: false, Confidence: 0.95}, LevelAbsent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LevelOf(tt.p, DefaultConfidentAbove))
		})
	}
}

func blockUntil(t *testing.T, clk *clockwork.FakeClock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, clk.BlockUntilContext(ctx, n))
}

func newMonitor(t *testing.T, cam FrameSource, face Verifier, opts Options) *Monitor {
	t.Helper()
	opts.Logger = logger.NewTestLogger(t)
	m := New(cam, face, opts)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestStartPreconditions(t *testing.T) {
	cam := &fakeCamera{}
	face := &fakeFace{reference: &ai.Verification{Success: false, Message: "No face detected"}}
	m := newMonitor(t, cam, face, Options{Clock: clockwork.NewFakeClock()})
	ctx := context.Background()

	assert.ErrorIs(t, m.Start(ctx), ErrNotInitialized)
	_, err := m.CaptureReference(ctx)
	assert.ErrorIs(t, err, ErrNotInitialized)

	require.NoError(t, m.Open(ctx))
	assert.ErrorIs(t, m.Start(ctx), ErrNoReference)

	v, err := m.CaptureReference(ctx)
	require.Error(t, err)
	assert.Equal(t, "No face detected", v.Message)
	assert.ErrorIs(t, m.Start(ctx), ErrNoReference)

	face.reference = &ai.Verification{Success: true}
	_, err = m.CaptureReference(ctx)
	require.NoError(t, err)
	require.NoError(t, m.Start(ctx))
	assert.ErrorIs(t, m.Start(ctx), ErrRunning)
}

func TestOpenFailure(t *testing.T) {
	m := newMonitor(t, &fakeCamera{openErr: errors.New("permission denied")}, &fakeFace{}, Options{})
	err := m.Open(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	assert.False(t, m.Initialized())
}

func TestPollingReportsLevels(t *testing.T) {
	clk := clockwork.NewFakeClock()
	cam := &fakeCamera{}
	face := &fakeFace{
		reference: &ai.Verification{Success: true},
		presence: []*ai.Presence{
			{UserPresent: true, Confidence: 0.92, Message: "User verified"},
			{UserPresent: true, Confidence: 0.4, Message: "Low confidence"},
			{UserPresent: false, Message: "No face detected"},
		},
	}
	statuses := make(chan Status, 10)
	m := newMonitor(t, cam, face, Options{Clock: clk, OnStatus: func(s Status) { statuses <- s }})
	ctx := context.Background()

	require.NoError(t, m.Open(ctx))
	_, err := m.UseReference(ctx, "data:image/png;base64,AAAA")
	require.NoError(t, err)
	require.NoError(t, m.Start(ctx))

	_, ok := m.Last()
	assert.False(t, ok, "no check before the first interval")

	for _, want := range []Level{LevelVerified, LevelUncertain, LevelAbsent} {
		clk.Advance(DefaultInterval)
		st := <-statuses
		assert.Equal(t, want, st.Level)
	}
	assert.Equal(t, 3, m.Checks())

	last, ok := m.Last()
	require.True(t, ok)
	assert.Equal(t, "No face detected", last.Presence.Message)
}

func TestFailedCheckIsAbsent(t *testing.T) {
	clk := clockwork.NewFakeClock()
	face := &fakeFace{
		reference: &ai.Verification{Success: true},
		err:       apperr.NewNetwork("verify-presence", errors.New("connection refused")),
	}
	statuses := make(chan Status, 1)
	m := newMonitor(t, &fakeCamera{}, face, Options{Clock: clk, OnStatus: func(s Status) { statuses <- s }})
	ctx := context.Background()

	require.NoError(t, m.Open(ctx))
	_, err := m.CaptureReference(ctx)
	require.NoError(t, err)
	require.NoError(t, m.Start(ctx))

	clk.Advance(DefaultInterval)
	st := <-statuses
	assert.Error(t, st.Err)
	assert.Equal(t, LevelAbsent, st.Level)
	assert.False(t, st.Presence.UserPresent)
	assert.Zero(t, st.Presence.Confidence)
	assert.Equal(t, "Verification failed", st.Presence.Message)
}

func TestStopReleasesCamera(t *testing.T) {
	clk := clockwork.NewFakeClock()
	cam := &fakeCamera{}
	face := &fakeFace{reference: &ai.Verification{Success: true}, presence: []*ai.Presence{{UserPresent: true, Confidence: 1}}}
	m := newMonitor(t, cam, face, Options{Clock: clk})
	ctx := context.Background()

	require.NoError(t, m.Open(ctx))
	_, err := m.CaptureReference(ctx)
	require.NoError(t, err)
	require.NoError(t, m.Start(ctx))
	assert.True(t, m.Running())
	blockUntil(t, clk, 1)

	require.NoError(t, m.Stop())
	assert.False(t, m.Running())
	assert.False(t, cam.isOpen(), "camera released on stop")
	assert.Equal(t, 1, cam.released)
	blockUntil(t, clk, 0)

	clk.Advance(10 * DefaultInterval)
	assert.Equal(t, 0, m.Checks())

	assert.ErrorIs(t, m.Start(ctx), ErrNotInitialized)
	require.NoError(t, m.Open(ctx))
	require.NoError(t, m.Start(ctx), "reference survives a restart")
	assert.Equal(t, 2, cam.opened)
}

func TestStopWithoutStartStillReleases(t *testing.T) {
	cam := &fakeCamera{}
	m := newMonitor(t, cam, &fakeFace{}, Options{})

	require.NoError(t, m.Open(context.Background()))
	require.NoError(t, m.Close())
	assert.False(t, cam.isOpen())
	assert.Equal(t, 1, cam.released)

	require.NoError(t, m.Close())
	assert.Equal(t, 1, cam.released, "released once")
	assert.ErrorIs(t, m.Open(context.Background()), ErrClosed)
}

func TestContextCancelEndsPolling(t *testing.T) {
	clk := clockwork.NewFakeClock()
	cam := &fakeCamera{}
	m := newMonitor(t, cam, &fakeFace{reference: &ai.Verification{Success: true}}, Options{Clock: clk})
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, m.Open(ctx))
	_, err := m.CaptureReference(ctx)
	require.NoError(t, err)
	require.NoError(t, m.Start(ctx))

	cancel()
	require.Eventually(t, func() bool { return !m.Running() }, time.Second, time.Millisecond)
	blockUntil(t, clk, 0)
	require.Eventually(t, func() bool { return !cam.isOpen() }, time.Second, time.Millisecond, "camera released")
	assert.False(t, m.Initialized())

	ctx = context.Background()
	assert.ErrorIs(t, m.Start(ctx), ErrNotInitialized)
	require.NoError(t, m.Open(ctx))
	require.NoError(t, m.Start(ctx))
	assert.True(t, m.Running())

	require.NoError(t, m.Stop())
	assert.False(t, cam.isOpen())
	cam.mu.Lock()
	defer cam.mu.Unlock()
	assert.Equal(t, 2, cam.released)
}

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.png"), pngHeader, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.png"), pngHeader, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o644))

	src := NewDirSource(dir)
	_, err := src.Capture(context.Background())
	assert.ErrorIs(t, err, ErrNotInitialized)

	require.NoError(t, src.Open(context.Background()))
	assert.True(t, src.IsOpen())

	for i := 0; i < 3; i++ {
		frame, err := src.Capture(context.Background())
		require.NoError(t, err)
		mt, data, err := upload.ParseDataURL(frame)
		require.NoError(t, err)
		assert.Equal(t, "image/png", mt)
		assert.Equal(t, pngHeader, data)
	}

	require.NoError(t, src.Close())
	assert.False(t, src.IsOpen())
}

func TestDirSourceWithoutFrames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.md"), []byte("#"), 0o644))

	err := NewDirSource(dir).Open(context.Background())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "no jpg or png frames"))
}
