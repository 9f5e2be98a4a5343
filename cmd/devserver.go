package cmd

import (
	"github.com/spf13/cobra"

	"github.com/khrees2412/jobportal/internal/devserver"
)

var devserverCmd = &cobra.Command{
	Use:   "devserver",
	Short: "Run a local emulator of the portal and AI services",
	Long: `Serves the job directory, CV analyzer, face verification and quiz
generator on one address. Point api_url, face_api_url and quiz_api_url at it
to use the CLI without the real backends.`,
	Example: `  jobportal devserver --addr :3001
  jobportal devserver --addr :3001 --require-cookie`,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := getApp(cmd)
		if err != nil {
			return err
		}
		addr, _ := cmd.Flags().GetString("addr")
		requireCookie, _ := cmd.Flags().GetBool("require-cookie")

		opts := devserver.Options{Logger: application.Logger}
		if requireCookie {
			opts.CookieName = application.Config.SessionCookieName
			opts.CookieValue = application.Config.SessionCookie
		}

		cmd.Printf("✓ Emulator listening on %s (Ctrl+C to stop)\n", addr)
		return devserver.New(opts).Run(cmd.Context(), addr)
	},
}

func init() {
	rootCmd.AddCommand(devserverCmd)

	devserverCmd.Flags().String("addr", ":3001", "Listen address")
	devserverCmd.Flags().Bool("require-cookie", false, "Reject requests without the configured session cookie")
}
