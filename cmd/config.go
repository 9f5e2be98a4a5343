package cmd

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/khrees2412/jobportal/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  "View and update configuration settings",
}

var showConfigCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Run: func(cmd *cobra.Command, args []string) {
		c := config.AppConfig
		cmd.Println(titleStyle.Render("Configuration"))
		cmd.Printf("%s %s\n", labelStyle.Render("Config File:"), config.GetConfigPath())
		cmd.Printf("%s %s\n", labelStyle.Render("Portal API:"), c.APIURL)
		cmd.Printf("%s %s\n", labelStyle.Render("Face API:"), c.FaceAPIURL)
		cmd.Printf("%s %s\n", labelStyle.Render("Quiz API:"), c.QuizAPIURL)
		cmd.Printf("%s %s\n", labelStyle.Render("Request Timeout:"), c.RequestTimeout)

		// never print the secrets themselves
		cmd.Printf("%s %s\n", labelStyle.Render("Session Cookie:"), configured(c.SessionCookie != ""))
		cmd.Printf("%s %s\n", labelStyle.Render("Handoff Secret:"), configured(c.Handoff.Secret != ""))

		cmd.Printf("%s %v (delay %s)\n", labelStyle.Render("CV Fallback:"), c.Fallback.Enabled, c.Fallback.Delay)
		cmd.Printf("%s %s\n", labelStyle.Render("Photo Hold:"), c.Wizard.PhotoHold)
		if c.Wizard.MaxFaceAttempts > 0 {
			cmd.Printf("%s %d\n", labelStyle.Render("Max Face Attempts:"), c.Wizard.MaxFaceAttempts)
		} else {
			cmd.Printf("%s unlimited\n", labelStyle.Render("Max Face Attempts:"))
		}
		cmd.Printf("%s %ds\n", labelStyle.Render("Quiz Duration:"), c.Quiz.Duration)
		cmd.Printf("%s %s\n", labelStyle.Render("Default Topic:"), c.Quiz.DefaultTopic)
		cmd.Printf("%s %d%%\n", labelStyle.Render("Quiz Pass Score:"), c.Quiz.PassScore)
		cmd.Printf("%s %s\n", labelStyle.Render("Presence Interval:"), c.Presence.Interval)
		cmd.Printf("%s %s\n", labelStyle.Render("Store:"), c.Store.Backend)
		if c.Store.Backend == "redis" {
			cmd.Printf("%s %s\n", labelStyle.Render("Redis:"), c.Store.RedisAddr)
		}
	},
}

func configured(ok bool) string {
	if ok {
		return "✓ Configured"
	}
	return "✗ Not configured"
}

var validConfigKeys = []string{
	"api_url", "face_api_url", "quiz_api_url",
	"session_cookie_name", "session_cookie", "request_timeout",
	"fallback.enabled", "fallback.delay",
	"wizard.photo_hold", "wizard.max_face_attempts",
	"quiz.duration", "quiz.default_topic", "quiz.pass_score",
	"presence.interval", "presence.confident_above",
	"handoff.secret", "handoff.ttl",
	"store.backend", "store.redis_addr", "store.redis_ttl",
	"log.level", "log.format",
}

var setConfigCmd = &cobra.Command{
	Use:   "set",
	Short: "Update a configuration value",
	Example: `  jobportal config set --key api_url --value https://portal.example.com
  jobportal config set --key fallback.enabled --value true
  jobportal config set --key handoff.secret --value "$(openssl rand -hex 32)"
  jobportal config set --key store.backend --value redis`,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, _ := cmd.Flags().GetString("key")
		value, _ := cmd.Flags().GetString("value")

		if key == "" || value == "" {
			cmd.Println("Both --key and --value are required")
			return nil
		}
		if !slices.Contains(validConfigKeys, key) {
			cmd.Printf("Invalid key. Must be one of: %v\n", validConfigKeys)
			return nil
		}

		if err := config.Set(key, value); err != nil {
			return fmt.Errorf("update config: %w", err)
		}
		cmd.Printf("✓ Configuration updated: %s\n", key)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(showConfigCmd)
	configCmd.AddCommand(setConfigCmd)

	setConfigCmd.Flags().String("key", "", "Configuration key")
	setConfigCmd.Flags().String("value", "", "Configuration value")
}
