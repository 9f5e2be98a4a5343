package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/khrees2412/jobportal/internal/apperr"
	"github.com/khrees2412/jobportal/internal/jobs"
	"github.com/khrees2412/jobportal/pkg/models"
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Browse and post job listings",
	Long:  "List, view, and post jobs in the portal's directory",
}

var listJobsCmd = &cobra.Command{
	Use:   "list",
	Short: "List open jobs",
	Example: `  jobportal job list
  jobportal job list --search backend`,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := getApp(cmd)
		if err != nil {
			return err
		}
		search, _ := cmd.Flags().GetString("search")

		postings, stale, err := application.Jobs.List(cmd.Context(), search)
		if err != nil {
			return fmt.Errorf("fetch jobs: %w", err)
		}
		if stale {
			cmd.Println(warnStyle.Render("⚠ Portal unreachable, showing cached jobs"))
		}
		if len(postings) == 0 {
			if search != "" {
				cmd.Printf("No jobs match %q\n", search)
			} else {
				cmd.Println("No jobs posted yet. Post one with 'jobportal job add'")
			}
			return nil
		}

		cmd.Println(titleStyle.Render("Open Jobs"))
		for _, job := range postings {
			cmd.Printf("\n%s %s\n", labelStyle.Render(fmt.Sprintf("#%d", job.ID)), titleCase(job.Title))
			cmd.Printf("   %s %d%%  %s %d%%\n",
				labelStyle.Render("CV:"), job.CVThreshold(),
				labelStyle.Render("Quiz:"), job.QuizThreshold())
			if !job.CreatedAt.IsZero() {
				cmd.Printf("   %s %s\n", labelStyle.Render("Posted:"), job.CreatedAt.Format("Jan 2, 2006"))
			}
		}
		return nil
	},
}

var showJobCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show details of a specific job",
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

		job, stale, err := application.Jobs.Get(cmd.Context(), jobID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return fmt.Errorf("job %d not found", jobID)
			}
			return fmt.Errorf("fetch job: %w", err)
		}
		if stale {
			cmd.Println(warnStyle.Render("⚠ Portal unreachable, showing cached job"))
		}
		printJob(cmd, job)
		return nil
	},
}

func printJob(cmd *cobra.Command, job *models.JobPosting) {
	cmd.Println(titleStyle.Render(titleCase(job.Title)))
	cmd.Printf("%s %d\n", labelStyle.Render("ID:"), job.ID)
	cmd.Printf("%s %d%%\n", labelStyle.Render("Required CV Score:"), job.CVThreshold())
	cmd.Printf("%s %d%%\n", labelStyle.Render("Required Quiz Score:"), job.QuizThreshold())
	if !job.CreatedAt.IsZero() {
		cmd.Printf("%s %s\n", labelStyle.Render("Posted:"), job.CreatedAt.Format("Jan 2, 2006"))
	}
	if job.Description != "" {
		cmd.Printf("\n%s\n%s\n", labelStyle.Render("Description:"), valueStyle.Render(job.Description))
	}
}

var addJobCmd = &cobra.Command{
	Use:   "add",
	Short: "Post a new job",
	Example: `  jobportal job add --title "Backend Engineer" --description "Go, PostgreSQL, Kubernetes"
  jobportal job add --title "Data Analyst" --description "SQL, Python" --cv-score 60 --quiz-score 65`,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := getApp(cmd)
		if err != nil {
			return err
		}
		title, _ := cmd.Flags().GetString("title")
		description, _ := cmd.Flags().GetString("description")
		cvScore, _ := cmd.Flags().GetInt("cv-score")
		quizScore, _ := cmd.Flags().GetInt("quiz-score")

		job, err := application.Jobs.Create(cmd.Context(), jobs.CreateRequest{
			Title:       strings.TrimSpace(title),
			Description: strings.TrimSpace(description),
			CVScore:     cvScore,
			QuizScore:   quizScore,
		})
		if err != nil {
			if apperr.Is(err, apperr.KindValidation) {
				return errors.New(apperr.Message(err))
			}
			return fmt.Errorf("post job: %w", err)
		}
		cmd.Printf("✓ Job posted: %s (ID: %d)\n", job.Title, job.ID)
		return nil
	},
}

// titleCase converts a string to title case using proper locale-aware capitalization
func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

func init() {
	rootCmd.AddCommand(jobCmd)
	jobCmd.AddCommand(listJobsCmd)
	jobCmd.AddCommand(showJobCmd)
	jobCmd.AddCommand(addJobCmd)

	listJobsCmd.Flags().String("search", "", "Filter by words in the title or description")

	addJobCmd.Flags().String("title", "", "Job title")
	addJobCmd.Flags().String("description", "", "Job description")
	addJobCmd.Flags().Int("cv-score", 0, "Minimum CV score (0 uses the portal default)")
	addJobCmd.Flags().Int("quiz-score", 0, "Minimum quiz score (0 uses the portal default)")
}
