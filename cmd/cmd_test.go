package cmd

import (
	"archive/zip"
	"bufio"
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khrees2412/jobportal/internal/app"
	"github.com/khrees2412/jobportal/internal/apperr"
	"github.com/khrees2412/jobportal/internal/config"
	"github.com/khrees2412/jobportal/internal/devserver"
	"github.com/khrees2412/jobportal/internal/logger"
	"github.com/khrees2412/jobportal/internal/quiz"
	"github.com/khrees2412/jobportal/internal/session"
	"github.com/khrees2412/jobportal/pkg/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestApp(t *testing.T) *app.App {
	t.Helper()
	return newTestAppWith(t, devserver.Options{})
}

func newTestAppWith(t *testing.T, opts devserver.Options) *app.App {
	t.Helper()
	opts.Logger = logger.NewTestLogger(t)
	srv := httptest.NewServer(devserver.New(opts).Handler())
	t.Cleanup(srv.Close)

	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)
	cfg.APIURL, cfg.FaceAPIURL, cfg.QuizAPIURL = srv.URL, srv.URL, srv.URL
	cfg.Wizard.PhotoHold = time.Millisecond

	a, err := app.Build(context.Background(), cfg, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func newTestCommand(input string) (*cobra.Command, *bytes.Buffer) {
	c := &cobra.Command{}
	out := &bytes.Buffer{}
	c.SetOut(out)
	c.SetErr(out)
	c.SetIn(strings.NewReader(input))
	c.SetContext(context.Background())
	return c, out
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func writeDocx(t *testing.T, text string, withImage bool) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte("<w:document><w:body><w:p><w:r><w:t>" + text + "</w:t></w:r></w:p></w:body></w:document>"))
	require.NoError(t, err)
	if withImage {
		img, err := zw.Create("word/media/image1.png")
		require.NoError(t, err)
		_, err = img.Write(pngBytes(t, 64, 64))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	path := filepath.Join(t.TempDir(), "cv.docx")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func strongCV(job models.JobPosting) string {
	return "Experience Skills Education jane@example.com +1 555 123 4567 " + job.Description + " " + strings.Repeat("delivered ", 250)
}

func firstJob(t *testing.T, a *app.App) *models.JobPosting {
	t.Helper()
	job, _, err := a.Jobs.Get(context.Background(), 1)
	require.NoError(t, err)
	return job
}

func TestParseJobID(t *testing.T) {
	id, err := parseJobID("42")
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	for _, bad := range []string{"", "abc", "0", "-3"} {
		_, err := parseJobID(bad)
		assert.ErrorIs(t, err, app.ErrInvalidArgument, bad)
	}
}

func TestApplyQualifiedWithPhotoInCV(t *testing.T) {
	a := newTestApp(t)
	job := firstJob(t, a)
	c, out := newTestCommand("n\n")

	err := runApply(c, a, job, applyInput{cv: writeDocx(t, strongCV(*job), true)}, bufioReader(c))
	require.NoError(t, err)

	assert.Contains(t, out.String(), "You qualify")
	assert.Contains(t, out.String(), "jobportal quiz 1 --token ")

	state, err := a.Store.LoadApplication(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, state.Qualified)
	assert.True(t, state.HasProfilePhoto)
	assert.Equal(t, models.StatusAwaitingQuiz, state.Status())
}

func TestApplyWithPhotoThenQuiz(t *testing.T) {
	a := newTestApp(t)
	job := firstJob(t, a)
	photo := filepath.Join(t.TempDir(), "me.png")
	require.NoError(t, os.WriteFile(photo, pngBytes(t, 64, 64), 0o644))
	c, out := newTestCommand("1\nn\n2\ns\n")

	err := runApply(c, a, job, applyInput{cv: writeDocx(t, strongCV(*job), false), photo: photo, quiz: true}, bufioReader(c))
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Face verified successfully")
	assert.Contains(t, out.String(), "Quiz Results")

	state, err := a.Store.LoadApplication(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, state.QuizCompleted)
	require.NotNil(t, state.QuizScore)
	assert.Len(t, state.Answers, 2)
}

func TestApplyDisqualified(t *testing.T) {
	a := newTestApp(t)
	job := firstJob(t, a)
	c, out := newTestCommand("n\n")

	err := runApply(c, a, job, applyInput{cv: writeDocx(t, "I like gardening", false)}, bufioReader(c))
	require.NoError(t, err)
	assert.Contains(t, out.String(), "below the required 75%")

	state, err := a.Store.LoadApplication(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDisqualified, state.Status())
}

func TestApplyRejectsBadFileWithoutLeavingStep(t *testing.T) {
	a := newTestApp(t)
	job := firstJob(t, a)
	c, out := newTestCommand("q\n")

	err := runApply(c, a, job, applyInput{cv: filepath.Join(t.TempDir(), "missing.pdf")}, bufioReader(c))
	require.NoError(t, err)
	assert.Contains(t, out.String(), "✗")
	assert.Contains(t, out.String(), "Path to your CV")
}

func TestResolveHandoff(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	c, out := newTestCommand("")

	h, err := resolveHandoff(c, a, 7, "")
	require.NoError(t, err)
	assert.Equal(t, handoff{Record: session.Record{JobID: 7}}, h)
	assert.Contains(t, out.String(), "No application record")

	require.NoError(t, a.Store.SaveApplication(ctx, models.ApplicationState{JobID: 8, CVScore: 40}))
	_, err = resolveHandoff(c, a, 8, "")
	assert.ErrorIs(t, err, app.ErrNoHandoff)

	require.NoError(t, a.Store.SaveApplication(ctx, models.ApplicationState{JobID: 6, CVScore: 81, Qualified: true}))
	h, err = resolveHandoff(c, a, 6, "")
	require.NoError(t, err)
	assert.True(t, h.Stored)
	assert.Equal(t, 81, h.CVScore)

	token, err := a.Issuer.Issue(session.Record{JobID: 9, CVScore: 88, Topic: "Go"})
	require.NoError(t, err)
	h, err = resolveHandoff(c, a, 9, token)
	require.NoError(t, err)
	assert.True(t, h.Stored)
	assert.Equal(t, 88, h.CVScore)
	assert.Equal(t, "Go", h.Topic)

	state, err := a.Store.LoadApplication(ctx, 9)
	require.NoError(t, err, "token handoff is recorded locally")
	assert.Equal(t, models.StatusAwaitingQuiz, state.Status())
	assert.Equal(t, 88, state.CVScore)

	_, err = resolveHandoff(c, a, 10, token)
	assert.ErrorIs(t, err, app.ErrInvalidArgument)

	_, err = resolveHandoff(c, a, 9, "not-a-token")
	assert.Error(t, err)
}

func TestQuizOnDefaultsIsNotRecorded(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	c, out := newTestCommand("s\n")

	h, err := resolveHandoff(c, a, 1, "")
	require.NoError(t, err)
	assert.False(t, h.Stored)

	require.NoError(t, runQuiz(c, a, h, 70, bufioReader(c)))
	assert.Contains(t, out.String(), "Quiz Results")

	_, err = a.Store.LoadApplication(ctx, 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	apps, err := a.Store.ListApplications(ctx)
	require.NoError(t, err)
	assert.Empty(t, apps)
}

func TestQuizSignInSavesReturnPath(t *testing.T) {
	a := newTestAppWith(t, devserver.Options{CookieName: "session", CookieValue: "s3cret"})
	ctx := context.Background()
	c, _ := newTestCommand("")

	err := runQuiz(c, a, handoff{Record: session.Record{JobID: 2}}, 70, bufioReader(c))
	require.ErrorIs(t, err, app.ErrSignInRequired)

	path, err := a.Store.TakeRedirect(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/quiz/2", path)
	assert.Equal(t, "Continue your quiz with 'jobportal quiz 2'", resumeHint(path))
}

func TestResumeHint(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/apply/3", "Continue your application with 'jobportal apply 3'"},
		{"/quiz/12", "Continue your quiz with 'jobportal quiz 12'"},
		{"/jobs", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, resumeHint(tt.path))
		})
	}
}

func TestLoginReturnsSaveError(t *testing.T) {
	a := newTestApp(t)
	dir := t.TempDir()
	_, err := config.Load(dir)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(dir))

	c, out := newTestCommand("")
	c.SetContext(app.SetAppInContext(context.Background(), a))
	c.Flags().String("cookie", "", "")
	require.NoError(t, c.Flags().Set("cookie", "abc"))

	err = loginCmd.RunE(c, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save session")
	assert.NotContains(t, out.String(), "Signed in")
}

func testQuestions() []models.Question {
	zero := 0
	return []models.Question{
		{ID: 1, Type: models.QuestionMCQ, Prompt: "Pick A", Options: []string{"A", "B"}, Correct: &zero},
		{ID: 2, Type: models.QuestionCode, Prompt: "Write code", Placeholder: "// here"},
	}
}

func TestHandleQuizInput(t *testing.T) {
	rt, err := quiz.New(testQuestions(), quiz.Options{})
	require.NoError(t, err)
	c, out := newTestCommand("")

	assert.False(t, handleQuizInput(c, rt, "1"))
	assert.Equal(t, 1, rt.AnsweredCount())

	assert.False(t, handleQuizInput(c, rt, "9"))
	assert.Contains(t, out.String(), "Unknown command")

	assert.False(t, handleQuizInput(c, rt, "c fmt.Println()"))
	assert.Contains(t, out.String(), "multiple choice")

	assert.False(t, handleQuizInput(c, rt, "n"))
	assert.True(t, rt.IsLast())
	assert.False(t, handleQuizInput(c, rt, "c return x"))
	assert.Equal(t, 2, rt.AnsweredCount())
	assert.Contains(t, out.String(), "return x")

	assert.False(t, handleQuizInput(c, rt, "n"))
	assert.Contains(t, out.String(), "last question")

	assert.False(t, handleQuizInput(c, rt, "g 1"))
	assert.Equal(t, 0, rt.Snapshot().Index)
	assert.False(t, handleQuizInput(c, rt, "g 5"))
	assert.Equal(t, 0, rt.Snapshot().Index)

	assert.True(t, handleQuizInput(c, rt, "s"))
}

func TestCalculateStats(t *testing.T) {
	passed, failed := 90, 40
	states := []models.ApplicationState{
		{JobID: 1, CVScore: 80, Qualified: true, QuizCompleted: true, QuizPassed: true, QuizScore: &passed},
		{JobID: 2, CVScore: 90, Qualified: true, Degraded: true, QuizCompleted: true, QuizScore: &failed},
		{JobID: 3, CVScore: 85, Qualified: true},
		{JobID: 4, CVScore: 45},
	}

	stats := calculateStats(states)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 3, stats.Qualified)
	assert.Equal(t, 2, stats.QuizzesTaken)
	assert.Equal(t, 1, stats.QuizzesPassed)
	assert.Equal(t, 1, stats.Estimated)
	assert.InDelta(t, 75.0, stats.AvgCVScore, 0.001)
	assert.InDelta(t, 65.0, stats.AvgQuizScore, 0.001)
	assert.Equal(t, map[string]int{
		models.StatusQuizPassed:   1,
		models.StatusQuizFailed:   1,
		models.StatusAwaitingQuiz: 1,
		models.StatusDisqualified: 1,
	}, stats.StatusBreakdown)
}

func TestStatusLabels(t *testing.T) {
	assert.Equal(t, "🎉 Quiz Passed", getStatusLabel(models.StatusQuizPassed))
	assert.Equal(t, "unknown", getStatusLabel("unknown"))
	assert.Equal(t, "Backend Engineer", titleCase("backend engineer"))
	assert.Equal(t, "60 minutes", formatDuration(3600))
	assert.Equal(t, "90 seconds", formatDuration(90))
}

func bufioReader(c *cobra.Command) *bufio.Reader {
	return bufio.NewReader(c.InOrStdin())
}
