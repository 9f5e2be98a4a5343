package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/khrees2412/jobportal/internal/app"
	"github.com/khrees2412/jobportal/internal/metrics"
)

var rootCmd = &cobra.Command{
	Use:   "jobportal",
	Short: "Apply to jobs from the terminal: CV screening, face check and timed quiz",
	Long: `Jobportal is a CLI client for the job application portal.
It browses the job directory, screens your CV, verifies your profile photo,
runs the timed technical quiz and keeps a local record of every application.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		application, err := app.NewApp(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to initialize app: %w", err)
		}
		cmd.SetContext(app.SetAppInContext(cmd.Context(), application))
		current = application

		if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
			go func() {
				if err := metrics.Serve(cmd.Context(), addr); err != nil {
					application.Logger.Warn("metrics endpoint stopped", map[string]interface{}{"addr": addr, "error": err.Error()})
				}
			}()
		}
		return nil
	},
}

// current is the app built for this invocation, closed by Execute
var current *app.App

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if current != nil {
		current.Close()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, errStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

func getApp(cmd *cobra.Command) (*app.App, error) {
	application := app.GetAppFromContext(cmd.Context())
	if application == nil {
		return nil, fmt.Errorf("application not initialized")
	}
	return application, nil
}

func parseJobID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid job ID %q", app.ErrInvalidArgument, s)
	}
	return id, nil
}

func init() {
	rootCmd.PersistentFlags().String("metrics-addr", "", "serve Prometheus metrics on this address while the command runs (e.g. :9090)")
}
