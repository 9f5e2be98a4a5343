package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/khrees2412/jobportal/pkg/models"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "View application statistics",
	Long:  "Display how your applications fared through CV screening and the quiz",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := getApp(cmd)
		if err != nil {
			return err
		}
		states, err := application.Store.ListApplications(cmd.Context())
		if err != nil {
			return fmt.Errorf("fetch applications: %w", err)
		}
		if len(states) == 0 {
			cmd.Println("No applications yet. Apply to jobs with 'jobportal apply <job-id>'")
			return nil
		}

		stats := calculateStats(states)

		cmd.Println(titleStyle.Render("Application Statistics"))

		cmd.Printf("\n%s\n", labelStyle.Render("Overview"))
		cmd.Printf("  Total Applications: %d\n", stats.Total)
		cmd.Printf("  Qualified: %d\n", stats.Qualified)
		cmd.Printf("  Quizzes Taken: %d\n", stats.QuizzesTaken)
		cmd.Printf("  Quizzes Passed: %d\n", stats.QuizzesPassed)
		if stats.Estimated > 0 {
			cmd.Printf("  Estimated CV Scores: %d\n", stats.Estimated)
		}

		cmd.Printf("\n%s\n", labelStyle.Render("Rates"))
		cmd.Printf("  Qualification Rate: %.1f%%\n", percent(stats.Qualified, stats.Total))
		if stats.QuizzesTaken > 0 {
			cmd.Printf("  Quiz Pass Rate: %.1f%%\n", percent(stats.QuizzesPassed, stats.QuizzesTaken))
		}

		cmd.Printf("\n%s\n", labelStyle.Render("Averages"))
		cmd.Printf("  CV Score: %.1f%%\n", stats.AvgCVScore)
		if stats.QuizzesTaken > 0 {
			cmd.Printf("  Quiz Score: %.1f%%\n", stats.AvgQuizScore)
		}

		cmd.Printf("\n%s\n", labelStyle.Render("Status Breakdown"))
		for _, status := range statusOrder {
			if count := stats.StatusBreakdown[status]; count > 0 {
				cmd.Printf("  %s: %d (%.1f%%)\n", getStatusLabel(status), count, percent(count, stats.Total))
			}
		}
		return nil
	},
}

type Stats struct {
	Total           int
	Qualified       int
	QuizzesTaken    int
	QuizzesPassed   int
	Estimated       int
	AvgCVScore      float64
	AvgQuizScore    float64
	StatusBreakdown map[string]int
}

func calculateStats(states []models.ApplicationState) Stats {
	stats := Stats{
		Total:           len(states),
		StatusBreakdown: make(map[string]int),
	}

	var cvSum, quizSum int
	for _, s := range states {
		stats.StatusBreakdown[s.Status()]++
		cvSum += s.CVScore
		if s.Qualified {
			stats.Qualified++
		}
		if s.Degraded {
			stats.Estimated++
		}
		if s.QuizCompleted && s.QuizScore != nil {
			stats.QuizzesTaken++
			quizSum += *s.QuizScore
			if s.QuizPassed {
				stats.QuizzesPassed++
			}
		}
	}

	if stats.Total > 0 {
		stats.AvgCVScore = float64(cvSum) / float64(stats.Total)
	}
	if stats.QuizzesTaken > 0 {
		stats.AvgQuizScore = float64(quizSum) / float64(stats.QuizzesTaken)
	}
	return stats
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
