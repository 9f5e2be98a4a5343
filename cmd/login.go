package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/khrees2412/jobportal/internal/config"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Save your portal session cookie",
	Long: `Stores the session cookie sent with every portal request. Copy it from your
browser after signing in. If a command stopped because you were signed out,
login tells you how to pick up where you left off.`,
	Example: `  jobportal login --cookie 6f1c0a...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := getApp(cmd)
		if err != nil {
			return err
		}
		cookie, _ := cmd.Flags().GetString("cookie")
		if cookie == "" {
			return fmt.Errorf("--cookie is required")
		}

		if err := config.Set("session_cookie", cookie); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		cmd.Println("✓ Signed in")

		path, err := application.Store.TakeRedirect(cmd.Context())
		if err != nil {
			application.Logger.Warn("failed to read sign-in redirect", map[string]interface{}{"error": err.Error()})
			return nil
		}
		if hint := resumeHint(path); hint != "" {
			cmd.Println(hint)
		}
		return nil
	},
}

// resumeHint turns a saved sign-in redirect into the command that picks the
// interrupted flow back up.
func resumeHint(path string) string {
	var jobID int
	if _, err := fmt.Sscanf(path, "/apply/%d", &jobID); err == nil {
		return fmt.Sprintf("Continue your application with 'jobportal apply %d'", jobID)
	}
	if _, err := fmt.Sscanf(path, "/quiz/%d", &jobID); err == nil {
		return fmt.Sprintf("Continue your quiz with 'jobportal quiz %d'", jobID)
	}
	return ""
}

func init() {
	rootCmd.AddCommand(loginCmd)

	loginCmd.Flags().String("cookie", "", "Session cookie value")
}
