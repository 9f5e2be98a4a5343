package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/khrees2412/jobportal/internal/app"
	"github.com/khrees2412/jobportal/internal/apperr"
	"github.com/khrees2412/jobportal/internal/quiz"
	"github.com/khrees2412/jobportal/internal/session"
	"github.com/khrees2412/jobportal/pkg/models"
)

var quizCmd = &cobra.Command{
	Use:   "quiz <job-id>",
	Short: "Take the timed technical quiz for a job you qualified for",
	Example: `  jobportal quiz 3
  jobportal quiz 3 --token eyJhbGciOi...`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := getApp(cmd)
		if err != nil {
			return err
		}
		jobID, err := parseJobID(args[0])
		if err != nil {
			return err
		}
		token, _ := cmd.Flags().GetString("token")

		h, err := resolveHandoff(cmd, application, jobID, token)
		if err != nil {
			return err
		}

		passScore := application.Config.Quiz.PassScore
		if job, _, err := application.Jobs.Get(cmd.Context(), jobID); err == nil {
			passScore = job.QuizThreshold()
			if h.Topic == "" {
				h.Topic = job.Title
			}
		}
		return runQuiz(cmd, application, h, passScore, bufio.NewReader(cmd.InOrStdin()))
	},
}

// handoff is what a quiz starts from. Stored is false when no qualified
// application backs the record; such a quiz still runs but its result is
// not saved.
type handoff struct {
	session.Record
	Stored bool
}

// resolveHandoff finds the record the wizard left for jobID. A token wins
// over the local store and is saved as the application if none exists yet.
// With neither, the quiz runs on defaults.
func resolveHandoff(cmd *cobra.Command, application *app.App, jobID int, token string) (handoff, error) {
	ctx := cmd.Context()
	if token != "" {
		if application.Issuer == nil {
			return handoff{}, errors.New("cannot verify --token: handoff.secret is not configured")
		}
		rec, err := application.Issuer.Parse(token)
		if err != nil {
			return handoff{}, fmt.Errorf("invalid handoff token: %w", err)
		}
		if rec.JobID != jobID {
			return handoff{}, fmt.Errorf("%w: token is for job %d", app.ErrInvalidArgument, rec.JobID)
		}
		_, err = application.Store.LoadApplication(ctx, jobID)
		if errors.Is(err, apperr.ErrNotFound) {
			err = application.Store.SaveApplication(ctx, rec.ApplicationState(time.Now()))
		}
		if err != nil {
			return handoff{}, fmt.Errorf("record application: %w", err)
		}
		return handoff{Record: rec, Stored: true}, nil
	}

	state, err := application.Store.LoadApplication(ctx, jobID)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		cmd.Println(warnStyle.Render("⚠ No application record for this job, starting with default settings. The result will not be saved."))
		return handoff{Record: session.Record{JobID: jobID}}, nil
	case err != nil:
		return handoff{}, fmt.Errorf("load application: %w", err)
	case !state.Qualified:
		return handoff{}, app.ErrNoHandoff
	}
	if state.QuizCompleted && state.QuizScore != nil {
		cmd.Println(warnStyle.Render(fmt.Sprintf("⚠ You already took this quiz (score %d%%). A new attempt replaces it.", *state.QuizScore)))
	}
	return handoff{
		Record: session.Record{
			JobID:           state.JobID,
			CVScore:         state.CVScore,
			HasProfilePhoto: state.HasProfilePhoto,
			Degraded:        state.Degraded,
		},
		Stored: true,
	}, nil
}

func quizPath(jobID int) string {
	return fmt.Sprintf("/quiz/%d", jobID)
}

const quizHelp = `Commands:
  1-9        select an option
  c <text>   answer a code question
  n / p      next / previous question
  g <num>    go to question
  t          time left
  s          submit`

func runQuiz(cmd *cobra.Command, application *app.App, h handoff, passScore int, in *bufio.Reader) error {
	ctx := cmd.Context()
	cfg := application.Config
	rec := h.Record

	completed := make(chan struct{})
	var once sync.Once

	opts := quiz.Options{
		Record:    &rec,
		Duration:  time.Duration(cfg.Quiz.Duration) * time.Second,
		PassScore: passScore,
		Logger:    application.Logger,
		OnChange: func(s quiz.Snapshot) {
			if s.Completed() {
				once.Do(func() { close(completed) })
			}
		},
	}
	if h.Stored {
		opts.Sink = application.Store
	}

	cmd.Println("⏳ Generating questions...")
	rt, err := quiz.Enter(ctx, application.Quizzes, cfg.Quiz.DefaultTopic, opts)
	if err != nil {
		if apperr.Is(err, apperr.KindAuth) {
			if err := application.SignIn().RequireSignIn(ctx, quizPath(rec.JobID)); err != nil {
				application.Logger.Warn("failed to save sign-in redirect", map[string]interface{}{"error": err.Error()})
			}
			return app.ErrSignInRequired
		}
		return err
	}
	defer rt.Stop()

	cmd.Println(titleStyle.Render("Technical Quiz: " + titleCase(quiz.TopicFor(&rec, cfg.Quiz.DefaultTopic))))
	cmd.Println(valueStyle.Render(quizHelp))
	if err := rt.Start(ctx); err != nil {
		return err
	}
	renderQuestion(cmd, rt.Snapshot())

	lines := make(chan string)
	go func() {
		defer close(lines)
		for {
			line, err := in.ReadString('\n')
			if line = strings.TrimSpace(line); line != "" {
				select {
				case lines <- line:
				case <-completed:
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-completed:
			rt.Wait()
			snap := rt.Snapshot()
			if snap.Trigger == quiz.TriggerTimeout {
				cmd.Println(warnStyle.Render("\n⏰ Time is up! Your answers were submitted automatically."))
			}
			// the timer path merges in its own goroutine; Submit returns the stored result
			res, err := rt.Submit(ctx)
			printResult(cmd, res, passScore)
			return err

		case <-ctx.Done():
			return ctx.Err()

		case line, ok := <-lines:
			if !ok {
				cmd.Println("\nInput closed, submitting your answers.")
				res, err := rt.Submit(ctx)
				printResult(cmd, res, passScore)
				return err
			}
			if handleQuizInput(cmd, rt, line) {
				res, err := rt.Submit(ctx)
				printResult(cmd, res, passScore)
				return err
			}
		}
	}
}

// handleQuizInput applies one command line. It reports true on submit.
func handleQuizInput(cmd *cobra.Command, rt *quiz.Runtime, line string) bool {
	snap := rt.Snapshot()
	fields := strings.Fields(line)
	switch fields[0] {
	case "s", "submit":
		return true
	case "n", "next":
		if !rt.Next() {
			cmd.Println("This is the last question. Type s to submit.")
			return false
		}
	case "p", "prev":
		if !rt.Previous() {
			cmd.Println("This is the first question.")
			return false
		}
	case "g", "goto":
		n := 0
		if len(fields) == 2 {
			n, _ = strconv.Atoi(fields[1])
		}
		if !rt.GoTo(n - 1) {
			cmd.Printf("Enter a question number between 1 and %d.\n", snap.Total)
			return false
		}
	case "t", "time":
		cmd.Printf("⏱ %s left\n", snap.TimeLeft())
		return false
	case "?", "h", "help":
		cmd.Println(quizHelp)
		return false
	case "c", "code":
		if snap.Question.Type != models.QuestionCode {
			cmd.Println("This question is multiple choice; enter an option number.")
			return false
		}
		_ = rt.AnswerCurrent(models.TextAnswer(strings.TrimSpace(strings.TrimPrefix(line, fields[0]))))
	default:
		n, err := strconv.Atoi(fields[0])
		if err != nil || snap.Question.Type != models.QuestionMCQ || n < 1 || n > len(snap.Question.Options) {
			cmd.Println("Unknown command. Type ? for help.")
			return false
		}
		_ = rt.AnswerCurrent(models.ChoiceAnswer(n - 1))
	}
	renderQuestion(cmd, rt.Snapshot())
	return false
}

func renderQuestion(cmd *cobra.Command, snap quiz.Snapshot) {
	q := snap.Question
	cmd.Printf("\n%s  ⏱ %s  %s\n",
		labelStyle.Render(fmt.Sprintf("Question %d of %d", snap.Index+1, snap.Total)),
		snap.TimeLeft(),
		valueStyle.Render(fmt.Sprintf("(%d answered)", snap.Answered)))
	cmd.Println(q.Prompt)

	switch q.Type {
	case models.QuestionMCQ:
		for i, opt := range q.Options {
			marker := "( )"
			if snap.Answer != nil && snap.Answer.Option != nil && *snap.Answer.Option == i {
				marker = okStyle.Render("(•)")
			}
			cmd.Printf("  %s %d. %s\n", marker, i+1, opt)
		}
	case models.QuestionCode:
		if snap.Answer != nil && snap.Answer.Text != "" {
			cmd.Printf("  %s %s\n", labelStyle.Render("Your answer:"), snap.Answer.Text)
		} else if q.Placeholder != "" {
			cmd.Printf("  %s\n", valueStyle.Render(q.Placeholder))
		}
		cmd.Println("  Answer with: c <your code>")
	}
	if snap.IsLast() {
		cmd.Println(valueStyle.Render("Last question. Type s to submit."))
	}
}

func printResult(cmd *cobra.Command, res models.QuizResult, passScore int) {
	cmd.Println(titleStyle.Render("Quiz Results"))
	cmd.Printf("%s %d%% (pass mark %d%%)\n", labelStyle.Render("Score:"), res.Score, passScore)
	if res.Passed {
		cmd.Println(okStyle.Render("✓ Congratulations, you passed!"))
	} else {
		cmd.Println(errStyle.Render("✗ You did not reach the pass mark this time."))
	}
}

func init() {
	rootCmd.AddCommand(quizCmd)

	quizCmd.Flags().String("token", "", "Handoff token printed by 'jobportal apply'")
}
