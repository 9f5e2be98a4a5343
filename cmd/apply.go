package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/khrees2412/jobportal/internal/app"
	"github.com/khrees2412/jobportal/internal/apperr"
	"github.com/khrees2412/jobportal/internal/upload"
	"github.com/khrees2412/jobportal/internal/wizard"
	"github.com/khrees2412/jobportal/pkg/models"
)

var applyCmd = &cobra.Command{
	Use:   "apply <job-id>",
	Short: "Apply to a job: CV screening, photo check, then the quiz",
	Long: `Walks through the application for one job. Your CV is scored against the
job description; if it qualifies and has no photo you are asked for a profile
photo, which must pass face verification. Qualified applications can go
straight into the timed quiz.`,
	Example: `  jobportal apply 3 --cv ~/resume.pdf
  jobportal apply 3 --cv ~/resume.docx --photo ~/me.jpg --quiz`,
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
		cvPath, _ := cmd.Flags().GetString("cv")
		photoPath, _ := cmd.Flags().GetString("photo")
		startQuiz, _ := cmd.Flags().GetBool("quiz")

		job, stale, err := application.Jobs.Get(cmd.Context(), jobID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return fmt.Errorf("job %d not found", jobID)
			}
			if apperr.Is(err, apperr.KindAuth) {
				_ = application.SignIn().RequireSignIn(cmd.Context(), fmt.Sprintf("/apply/%d", jobID))
				return app.ErrSignInRequired
			}
			return fmt.Errorf("fetch job: %w", err)
		}
		if stale {
			cmd.Println(warnStyle.Render("⚠ Portal unreachable, using cached job details"))
		}

		in := bufio.NewReader(cmd.InOrStdin())
		return runApply(cmd, application, job, applyInput{cv: cvPath, photo: photoPath, quiz: startQuiz}, in)
	},
}

type applyInput struct {
	cv    string
	photo string
	quiz  bool
}

func runApply(cmd *cobra.Command, application *app.App, job *models.JobPosting, input applyInput, in *bufio.Reader) error {
	ctx := cmd.Context()
	cfg := application.Config

	w, err := wizard.New(wizard.Config{
		Job:      *job,
		Analyzer: application.CVAnalyzer,
		Verifier: application.Faces,
		Auth:     application.SignIn(),
		Recorder: application.Store,
		Fallback: wizard.FallbackPolicy{
			Enabled: cfg.Fallback.Enabled,
			Delay:   cfg.Fallback.Delay,
		},
		PhotoHold:       cfg.Wizard.PhotoHold,
		MaxFaceAttempts: cfg.Wizard.MaxFaceAttempts,
		Logger:          application.Logger,
	})
	if err != nil {
		return err
	}
	defer w.Close()

	cmd.Println(titleStyle.Render("Apply: " + titleCase(job.Title)))
	cmd.Printf("%s %d%%\n", labelStyle.Render("Required CV Score:"), job.CVThreshold())

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		snap := w.Snapshot()

		switch snap.Step {
		case wizard.StepCVUpload:
			path := input.cv
			input.cv = ""
			if path == "" {
				if path, err = prompt(cmd, in, "\nPath to your CV (PDF or Word, max 5MB), or q to quit: "); err != nil || path == "q" {
					return quitOnEOF(err)
				}
			}
			file, err := upload.Load(path)
			if err != nil {
				cmd.Println(errStyle.Render("✗ " + err.Error()))
				continue
			}
			cmd.Printf("⏳ Analyzing %s...\n", file.Name)
			if err := w.SubmitCV(ctx, file); err != nil {
				if stop := handleStepError(cmd, err); stop != nil {
					return stop
				}
				continue
			}
			printScore(cmd, w.Snapshot())

		case wizard.StepPhotoUpload:
			cmd.Println(warnStyle.Render("\nNo photo found in your CV. Upload a clear photo of your face (JPG or PNG, max 2MB)."))
			path := input.photo
			input.photo = ""
			if path == "" {
				if path, err = prompt(cmd, in, "Path to your photo, or q to quit: "); err != nil || path == "q" {
					return quitOnEOF(err)
				}
			}
			file, err := upload.Load(path)
			if err != nil {
				cmd.Println(errStyle.Render("✗ " + err.Error()))
				continue
			}
			cmd.Println("⏳ Verifying your photo...")
			err = w.SubmitPhoto(ctx, file)
			switch {
			case err == nil:
				cmd.Println(okStyle.Render("✓ Face verified successfully"))
			case errors.Is(err, wizard.ErrFaceNotVerified):
				cmd.Println(errStyle.Render("✗ " + w.Snapshot().FaceMessage))
				cmd.Println("Try another photo with your face clearly visible.")
			case errors.Is(err, wizard.ErrTooManyAttempts):
				return err
			default:
				if stop := handleStepError(cmd, err); stop != nil {
					return stop
				}
			}

		case wizard.StepDecision:
			if snap.Decision == wizard.DecisionQualified {
				return finishQualified(cmd, application, w, job, input.quiz, in)
			}
			cmd.Println(errStyle.Render(fmt.Sprintf("\n✗ Your CV scored %d%%, below the required %d%%.", *snap.CVScore, snap.RequiredCVScore)))
			answer, err := prompt(cmd, in, "Try again with a different CV? [y/N]: ")
			if err != nil || !strings.EqualFold(answer, "y") {
				return quitOnEOF(err)
			}
			if err := w.Retry(); err != nil {
				return err
			}
		}
	}
}

// handleStepError reports a failed upload step. It returns non-nil when the
// command should stop.
func handleStepError(cmd *cobra.Command, err error) error {
	switch {
	case apperr.Is(err, apperr.KindAuth):
		return app.ErrSignInRequired
	case cmd.Context().Err() != nil:
		return cmd.Context().Err()
	case apperr.Is(err, apperr.KindValidation):
		cmd.Println(errStyle.Render("✗ " + apperr.Message(err)))
	default:
		cmd.Println(errStyle.Render("✗ " + apperr.Message(err)))
		cmd.Println("Please try again.")
	}
	return nil
}

func printScore(cmd *cobra.Command, snap wizard.Snapshot) {
	if snap.CVScore == nil {
		return
	}
	style := okStyle
	if *snap.CVScore < snap.RequiredCVScore {
		style = errStyle
	}
	cmd.Printf("%s %s (required %d%%)\n", labelStyle.Render("CV Score:"), style.Render(fmt.Sprintf("%d%%", *snap.CVScore)), snap.RequiredCVScore)
	if snap.Degraded {
		cmd.Println(warnStyle.Render("⚠ CV analyzer unavailable, this score is an estimate"))
	}
	if snap.Report != "" {
		cmd.Println(valueStyle.Render(snap.Report))
	}
}

func finishQualified(cmd *cobra.Command, application *app.App, w *wizard.Wizard, job *models.JobPosting, startQuiz bool, in *bufio.Reader) error {
	rec, err := w.StartQuiz(cmd.Context())
	if err != nil {
		return fmt.Errorf("record application: %w", err)
	}
	cmd.Println(okStyle.Render("\n✓ You qualify for the technical quiz!"))
	cmd.Printf("  You have %s to answer. The quiz submits itself when time runs out.\n",
		formatDuration(application.Config.Quiz.Duration))

	if !startQuiz {
		answer, err := prompt(cmd, in, "Start the quiz now? [y/N]: ")
		startQuiz = err == nil && strings.EqualFold(answer, "y")
	}
	if startQuiz {
		return runQuiz(cmd, application, handoff{Record: rec, Stored: true}, job.QuizThreshold(), in)
	}

	if application.Issuer != nil {
		token, err := application.Issuer.Issue(rec)
		if err != nil {
			return fmt.Errorf("issue handoff token: %w", err)
		}
		cmd.Printf("\nStart later with:\n  jobportal quiz %d --token %s\n", job.ID, token)
		return nil
	}
	cmd.Printf("\nStart later with:\n  jobportal quiz %d\n", job.ID)
	return nil
}

func prompt(cmd *cobra.Command, in *bufio.Reader, label string) (string, error) {
	cmd.Print(label)
	line, err := in.ReadString('\n')
	line = strings.TrimSpace(line)
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return line, nil
}

func quitOnEOF(err error) error {
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func formatDuration(seconds int) string {
	if seconds%60 == 0 {
		if seconds == 60 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", seconds/60)
	}
	return fmt.Sprintf("%d seconds", seconds)
}

func init() {
	rootCmd.AddCommand(applyCmd)

	applyCmd.Flags().String("cv", "", "Path to your CV (PDF, DOC or DOCX)")
	applyCmd.Flags().String("photo", "", "Path to a profile photo, used if your CV has none")
	applyCmd.Flags().Bool("quiz", false, "Start the quiz immediately if you qualify")
}
