package cmd

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/khrees2412/jobportal/internal/apperr"
	"github.com/khrees2412/jobportal/pkg/models"
)

var statusOrder = []string{
	models.StatusAwaitingQuiz,
	models.StatusQuizPassed,
	models.StatusQuizFailed,
	models.StatusDisqualified,
}

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "View application status",
	Long:  "List your applications grouped by status, or show one application in detail",
	Example: `  jobportal status
  jobportal status --filter awaiting_quiz
  jobportal status 3`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := getApp(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		if len(args) == 1 {
			jobID, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			state, err := application.Store.LoadApplication(ctx, jobID)
			if errors.Is(err, apperr.ErrNotFound) {
				cmd.Printf("No application for job %d. Apply with 'jobportal apply %d'\n", jobID, jobID)
				return nil
			}
			if err != nil {
				return fmt.Errorf("load application: %w", err)
			}
			printApplication(cmd, state)
			return nil
		}

		filterStatus, _ := cmd.Flags().GetString("filter")
		if filterStatus != "" && !slices.Contains(statusOrder, filterStatus) {
			return fmt.Errorf("invalid status %q, must be one of %v", filterStatus, statusOrder)
		}

		states, err := application.Store.ListApplications(ctx)
		if err != nil {
			return fmt.Errorf("fetch applications: %w", err)
		}
		if len(states) == 0 {
			cmd.Println("No applications yet. Apply to jobs with 'jobportal apply <job-id>'")
			return nil
		}

		groups := map[string][]models.ApplicationState{}
		total := 0
		for _, s := range states {
			if filterStatus != "" && s.Status() != filterStatus {
				continue
			}
			groups[s.Status()] = append(groups[s.Status()], s)
			total++
		}
		if total == 0 {
			cmd.Printf("No applications with status '%s'\n", filterStatus)
			return nil
		}

		cmd.Println(titleStyle.Render("Your Applications"))
		for _, status := range statusOrder {
			group := groups[status]
			if len(group) == 0 {
				continue
			}
			cmd.Printf("\n%s (%d)\n", labelStyle.Render(getStatusLabel(status)), len(group))
			for _, s := range group {
				cmd.Printf("  • Job #%d  CV %d%%%s | Updated: %s\n",
					s.JobID, s.CVScore, quizSuffix(s), s.UpdatedAt.Format("Jan 2 15:04"))
			}
		}
		cmd.Printf("\n%s %d\n", labelStyle.Render("Total Applications:"), total)
		return nil
	},
}

var removeStatusCmd = &cobra.Command{
	Use:   "remove <job-id>",
	Short: "Forget the local record of an application",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := getApp(cmd)
		if err != nil {
			return err
		}
		jobID, err := parseJobID(args[0])
		if err != nil {
			return err
		}
		if err := application.Store.DeleteApplication(cmd.Context(), jobID); err != nil {
			return fmt.Errorf("remove application: %w", err)
		}
		cmd.Printf("✓ Application for job %d removed\n", jobID)
		return nil
	},
}

func printApplication(cmd *cobra.Command, s *models.ApplicationState) {
	cmd.Println(titleStyle.Render(fmt.Sprintf("Application for Job #%d", s.JobID)))
	cmd.Printf("%s %s\n", labelStyle.Render("Status:"), getStatusLabel(s.Status()))
	cmd.Printf("%s %d%%\n", labelStyle.Render("CV Score:"), s.CVScore)
	if s.Degraded {
		cmd.Println(warnStyle.Render("  (estimated while the analyzer was unavailable)"))
	}
	cmd.Printf("%s %v\n", labelStyle.Render("Profile Photo:"), s.HasProfilePhoto)
	if s.QuizScore != nil {
		cmd.Printf("%s %d%%\n", labelStyle.Render("Quiz Score:"), *s.QuizScore)
		cmd.Printf("%s %d\n", labelStyle.Render("Questions Answered:"), len(s.Answers))
	}
	cmd.Printf("%s %s\n", labelStyle.Render("Updated:"), s.UpdatedAt.Format("Jan 2, 2006 15:04"))
	if s.Status() == models.StatusAwaitingQuiz {
		cmd.Printf("\nTake the quiz with 'jobportal quiz %d'\n", s.JobID)
	}
}

func quizSuffix(s models.ApplicationState) string {
	if s.QuizScore == nil {
		return ""
	}
	return fmt.Sprintf(", quiz %d%%", *s.QuizScore)
}

func getStatusLabel(status string) string {
	labels := map[string]string{
		models.StatusAwaitingQuiz: "📝 Awaiting Quiz",
		models.StatusQuizPassed:   "🎉 Quiz Passed",
		models.StatusQuizFailed:   "❌ Quiz Failed",
		models.StatusDisqualified: "🚫 Disqualified",
	}
	if label, ok := labels[status]; ok {
		return label
	}
	return status
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.AddCommand(removeStatusCmd)

	statusCmd.Flags().String("filter", "", "Only show applications with this status (awaiting_quiz, quiz_passed, quiz_failed, disqualified)")
}
