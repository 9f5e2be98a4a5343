// Package quiz runs a timed question set: navigation, answer collection,
// scoring and a single submission triggered either by the user or by the
// countdown reaching zero.
package quiz

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/khrees2412/jobportal/internal/ai"
	"github.com/khrees2412/jobportal/internal/logger"
	"github.com/khrees2412/jobportal/internal/metrics"
	"github.com/khrees2412/jobportal/internal/session"
	"github.com/khrees2412/jobportal/pkg/models"
)

// State is the lifecycle of a quiz session.
type State string

const (
	StateInProgress State = "IN_PROGRESS"
	StateCompleted  State = "COMPLETED"
)

// Trigger records what caused the submission.
type Trigger string

const (
	TriggerManual  Trigger = "manual"
	TriggerTimeout Trigger = "timeout"
)

const (
	DefaultDuration = time.Hour
	// CodeCredit is awarded for any non-empty code answer. Code is not evaluated.
	CodeCredit = 0.8
)

var (
	ErrNoQuestions     = errors.New("quiz has no questions")
	ErrCompleted       = errors.New("quiz already submitted")
	ErrAlreadyStarted  = errors.New("quiz timer already running")
	ErrUnknownQuestion = errors.New("unknown question")
)

// Generator produces a question set for a topic.
type Generator interface {
	Generate(ctx context.Context, topic string) (*ai.QuestionSet, error)
}

// ResultSink receives the outcome once the quiz completes.
type ResultSink interface {
	MergeQuizResult(ctx context.Context, jobID int, result models.QuizResult) error
}

// Options configures a Runtime. Zero values take defaults.
type Options struct {
	Record    *session.Record
	Duration  time.Duration
	PassScore int
	Clock     clockwork.Clock
	Sink      ResultSink
	Logger    logger.Logger
	OnChange  func(Snapshot)
}

// Runtime is one quiz session. Questions are fixed at creation.
type Runtime struct {
	questions []models.Question
	byID      map[int]int
	opts      Options
	log       logger.Logger

	mu        sync.Mutex
	index     int
	answers   map[int]models.Answer
	remaining int
	state     State
	result    *models.QuizResult
	trigger   Trigger
	stop      chan struct{}
	done      chan struct{}
}

// TopicFor picks the generation topic: the handoff record's topic when
// present, otherwise fallback.
func TopicFor(rec *session.Record, fallback string) string {
	if rec != nil && strings.TrimSpace(rec.Topic) != "" {
		return rec.Topic
	}
	return fallback
}

// Enter generates the question set once and returns a runtime for it.
func Enter(ctx context.Context, gen Generator, defaultTopic string, opts Options) (*Runtime, error) {
	topic := TopicFor(opts.Record, defaultTopic)
	set, err := gen.Generate(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("generate questions for %q: %w", topic, err)
	}
	return New(set.Questions, opts)
}

// New returns a runtime in IN_PROGRESS with the full duration remaining.
// The countdown does not run until Start.
func New(questions []models.Question, opts Options) (*Runtime, error) {
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	if opts.Duration <= 0 {
		opts.Duration = DefaultDuration
	}
	if opts.PassScore <= 0 {
		opts.PassScore = models.DefaultRequiredQuizScore
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}

	byID := make(map[int]int, len(questions))
	for i, q := range questions {
		if _, dup := byID[q.ID]; dup {
			return nil, fmt.Errorf("duplicate question id %d", q.ID)
		}
		byID[q.ID] = i
	}

	fields := map[string]interface{}{"questions": len(questions)}
	if opts.Record != nil {
		fields["job_id"] = opts.Record.JobID
	}
	r := &Runtime{
		questions: append([]models.Question(nil), questions...),
		byID:      byID,
		opts:      opts,
		log:       opts.Logger.WithFields(fields),
	}
	r.resetLocked()
	return r, nil
}

func (r *Runtime) resetLocked() {
	r.index = 0
	r.answers = make(map[int]models.Answer)
	r.remaining = int(r.opts.Duration / time.Second)
	r.state = StateInProgress
	r.result = nil
	r.trigger = ""
}

// Start runs the countdown, one tick per second, until the quiz completes,
// Stop is called or ctx is done. Expiry submits with TriggerTimeout.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.state == StateCompleted {
		r.mu.Unlock()
		return ErrCompleted
	}
	if r.stop != nil {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	r.stop, r.done = stop, done
	ticker := r.opts.Clock.NewTicker(time.Second)
	r.mu.Unlock()

	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				if r.tick() {
					if _, err := r.submit(ctx, TriggerTimeout); err != nil {
						r.log.WithError(err).Error("failed to record quiz result", nil)
					}
					return
				}
			case <-stop:
				return
			case <-ctx.Done():
				r.mu.Lock()
				if r.stop == stop {
					r.stop = nil
				}
				r.mu.Unlock()
				return
			}
		}
	}()
	return nil
}

// tick decrements the countdown and reports whether it just expired.
func (r *Runtime) tick() bool {
	r.mu.Lock()
	if r.state == StateCompleted {
		r.mu.Unlock()
		return false
	}
	if r.remaining > 0 {
		r.remaining--
	}
	expired := r.remaining == 0
	r.mu.Unlock()
	r.notify()
	return expired
}

// Stop halts the countdown and waits for it to exit. It must not be called
// from OnChange.
func (r *Runtime) Stop() {
	r.mu.Lock()
	done := r.stopTimerLocked()
	r.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (r *Runtime) stopTimerLocked() chan struct{} {
	if r.stop != nil {
		close(r.stop)
		r.stop = nil
	}
	return r.done
}

// Running reports whether the countdown is active.
func (r *Runtime) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stop != nil
}

// Reset stops the countdown and restarts the session over the same
// questions. Call Start to run the new countdown.
func (r *Runtime) Reset() {
	r.Stop()
	r.mu.Lock()
	r.resetLocked()
	r.mu.Unlock()
	r.notify()
}

// Submit scores the quiz. Calling it again, or racing the timer, returns the
// first result unchanged.
func (r *Runtime) Submit(ctx context.Context) (models.QuizResult, error) {
	return r.submit(ctx, TriggerManual)
}

func (r *Runtime) submit(ctx context.Context, trigger Trigger) (models.QuizResult, error) {
	r.mu.Lock()
	if r.state == StateCompleted {
		res := cloneResult(*r.result)
		r.mu.Unlock()
		return res, nil
	}
	score := Score(r.questions, r.answers)
	res := models.QuizResult{
		Score:   score,
		Passed:  score >= r.opts.PassScore,
		Answers: cloneAnswers(r.answers),
	}
	r.result = &res
	r.state = StateCompleted
	r.trigger = trigger
	// the timer goroutine may be the caller, so don't wait for it here
	r.stopTimerLocked()
	out := cloneResult(res)
	r.mu.Unlock()

	metrics.QuizSubmissions.WithLabelValues(string(trigger)).Inc()
	r.log.Info("quiz submitted", map[string]interface{}{
		"trigger":  string(trigger),
		"score":    res.Score,
		"passed":   res.Passed,
		"answered": len(res.Answers),
	})
	r.notify()

	if r.opts.Sink != nil && r.opts.Record != nil {
		if err := r.opts.Sink.MergeQuizResult(ctx, r.opts.Record.JobID, out); err != nil {
			return out, fmt.Errorf("merge quiz result: %w", err)
		}
	}
	return out, nil
}

// Wait blocks until the countdown goroutine exits.
func (r *Runtime) Wait() {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Answer records an answer for the question with id. Answers are not
// validated until submission.
func (r *Runtime) Answer(id int, a models.Answer) error {
	r.mu.Lock()
	if r.state == StateCompleted {
		r.mu.Unlock()
		return ErrCompleted
	}
	if _, ok := r.byID[id]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrUnknownQuestion, id)
	}
	if a.IsEmpty() {
		delete(r.answers, id)
	} else {
		r.answers[id] = a
	}
	r.mu.Unlock()
	r.notify()
	return nil
}

// AnswerCurrent records an answer for the question on screen.
func (r *Runtime) AnswerCurrent(a models.Answer) error {
	r.mu.Lock()
	id := r.questions[r.index].ID
	r.mu.Unlock()
	return r.Answer(id, a)
}

// Next moves forward one question. It reports false at the last question.
func (r *Runtime) Next() bool {
	return r.move(func(i int) int { return i + 1 })
}

// Previous moves back one question. It reports false at the first question.
func (r *Runtime) Previous() bool {
	return r.move(func(i int) int { return i - 1 })
}

// GoTo jumps to index i. Out-of-range indexes are ignored.
func (r *Runtime) GoTo(i int) bool {
	return r.move(func(int) int { return i })
}

func (r *Runtime) move(to func(int) int) bool {
	r.mu.Lock()
	next := to(r.index)
	if next < 0 || next >= len(r.questions) || next == r.index || r.state == StateCompleted {
		r.mu.Unlock()
		return false
	}
	r.index = next
	r.mu.Unlock()
	r.notify()
	return true
}

// Progress is the current position as a percentage of the set.
func (r *Runtime) Progress() float64 { return r.Snapshot().Progress() }

// AnsweredCount is the number of questions with a recorded answer.
func (r *Runtime) AnsweredCount() int { return r.Snapshot().Answered }

// IsLast reports whether the current question is the final one.
func (r *Runtime) IsLast() bool { return r.Snapshot().IsLast() }

// Questions returns the fixed question set.
func (r *Runtime) Questions() []models.Question {
	return append([]models.Question(nil), r.questions...)
}

// Snapshot returns a copy of the session for rendering.
func (r *Runtime) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	q := r.questions[r.index]
	snap := Snapshot{
		State:     r.state,
		Index:     r.index,
		Total:     len(r.questions),
		Question:  q,
		Answered:  len(r.answers),
		Remaining: r.remaining,
		PassScore: r.opts.PassScore,
		Trigger:   r.trigger,
	}
	if a, ok := r.answers[q.ID]; ok {
		snap.Answer = &a
	}
	if r.result != nil {
		res := cloneResult(*r.result)
		snap.Result = &res
	}
	return snap
}

func (r *Runtime) notify() {
	if r.opts.OnChange != nil {
		r.opts.OnChange(r.Snapshot())
	}
}

// Score awards one point per correct multiple-choice answer and CodeCredit
// per non-empty code answer, scaled to 0..100. An empty set scores 0.
func Score(questions []models.Question, answers map[int]models.Answer) int {
	if len(questions) == 0 {
		return 0
	}
	var points float64
	for _, q := range questions {
		a, ok := answers[q.ID]
		if !ok {
			continue
		}
		switch q.Type {
		case models.QuestionMCQ:
			if a.Option != nil && q.Correct != nil && *a.Option == *q.Correct {
				points++
			}
		case models.QuestionCode:
			if a.Text != "" {
				points += CodeCredit
			}
		}
	}
	return int(math.Round(100 * points / float64(len(questions))))
}

// FormatTime renders seconds as m:ss.
func FormatTime(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

func cloneAnswers(in map[int]models.Answer) map[int]models.Answer {
	out := make(map[int]models.Answer, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneResult(res models.QuizResult) models.QuizResult {
	res.Answers = cloneAnswers(res.Answers)
	return res
}
