package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/khrees2412/jobportal/internal/app"
	"github.com/khrees2412/jobportal/internal/apperr"
	"github.com/khrees2412/jobportal/pkg/models"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch interactive job browser",
	Long:  "Browse open jobs in the terminal and start an application from the list",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := getApp(cmd)
		if err != nil {
			return err
		}
		return runTUI(cmd, application)
	},
}

func runTUI(cmd *cobra.Command, application *app.App) error {
	ctx := cmd.Context()
	reader := bufio.NewReader(cmd.InOrStdin())
	search := ""

	for {
		postings, stale, err := application.Jobs.List(ctx, search)
		if err != nil {
			return fmt.Errorf("fetch jobs: %w", err)
		}

		cmd.Println(titleStyle.Render("Job Browser"))
		if stale {
			cmd.Println(warnStyle.Render("⚠ Portal unreachable, showing cached jobs"))
		}
		if search != "" {
			cmd.Printf("Filtered by %q\n", search)
		}
		cmd.Println("Enter a job number to view details, /text to search, or 'q' to quit")
		cmd.Println()

		if len(postings) == 0 {
			cmd.Println("No jobs found.")
		}
		for i, job := range postings {
			cmd.Printf("%d. %s %s\n", i+1, titleCase(job.Title), valueStyle.Render(fmt.Sprintf("(CV %d%%)", job.CVThreshold())))
		}

		input, err := prompt(cmd, reader, "\n> ")
		if err != nil {
			return quitOnEOF(err)
		}
		switch {
		case strings.EqualFold(input, "q"):
			return nil
		case strings.HasPrefix(input, "/"):
			search = strings.TrimSpace(input[1:])
			continue
		}

		jobNum, err := strconv.Atoi(input)
		if err != nil || jobNum < 1 || jobNum > len(postings) {
			cmd.Println("Invalid selection")
			continue
		}
		job := postings[jobNum-1]
		if err := displayJobDetails(cmd, application, &job, reader); err != nil {
			return err
		}
	}
}

func displayJobDetails(cmd *cobra.Command, application *app.App, job *models.JobPosting, reader *bufio.Reader) error {
	for {
		cmd.Println("\n" + strings.Repeat("=", 60))
		printJob(cmd, job)

		state, err := application.Store.LoadApplication(cmd.Context(), job.ID)
		if err == nil {
			cmd.Printf("\n%s %s\n", labelStyle.Render("Application Status:"), getStatusLabel(state.Status()))
		} else if !errors.Is(err, apperr.ErrNotFound) {
			application.Logger.Warn("failed to load application", map[string]interface{}{"job_id": job.ID, "error": err.Error()})
		}

		cmd.Println("\nOptions:")
		cmd.Println("  [a] Apply to this job")
		if state != nil && state.Status() == models.StatusAwaitingQuiz {
			cmd.Println("  [q] Take the quiz")
		}
		cmd.Println("  [b] Back to list")

		choice, err := prompt(cmd, reader, "\n> ")
		if err != nil {
			return quitOnEOF(err)
		}

		switch strings.ToLower(choice) {
		case "a":
			return runApply(cmd, application, job, applyInput{}, reader)
		case "q":
			if state == nil || state.Status() != models.StatusAwaitingQuiz {
				cmd.Println("Invalid choice")
				continue
			}
			h, err := resolveHandoff(cmd, application, job.ID, "")
			if err != nil {
				return err
			}
			h.Topic = job.Title
			return runQuiz(cmd, application, h, job.QuizThreshold(), reader)
		case "b":
			return nil
		default:
			cmd.Println("Invalid choice")
		}
	}
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}
