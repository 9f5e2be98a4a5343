package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/khrees2412/jobportal/internal/apperr"
	"github.com/khrees2412/jobportal/internal/presence"
	"github.com/khrees2412/jobportal/internal/upload"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Continuously check that you are in front of the camera",
	Long: `Opens the camera, registers a reference face and checks your presence at a
fixed interval until interrupted. Frames come from Chrome's camera, or from
a directory of still images for testing. Stopping always releases the camera.`,
	Example: `  jobportal verify --reference ~/me.jpg
  jobportal verify --fake-device --duration 30s
  jobportal verify --frames-dir ./frames --reference ./frames/00.png`,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := getApp(cmd)
		if err != nil {
			return err
		}
		framesDir, _ := cmd.Flags().GetString("frames-dir")
		fakeDevice, _ := cmd.Flags().GetBool("fake-device")
		reference, _ := cmd.Flags().GetString("reference")
		duration, _ := cmd.Flags().GetDuration("duration")

		var src presence.FrameSource
		if framesDir != "" {
			src = presence.NewDirSource(framesDir)
		} else {
			src = presence.NewChromeCamera(application.Logger, fakeDevice)
		}

		cfg := application.Config.Presence
		monitor := presence.New(src, application.Faces, presence.Options{
			Interval:       cfg.Interval,
			ConfidentAbove: cfg.ConfidentAbove,
			Logger:         application.Logger,
			OnStatus: func(st presence.Status) {
				printPresence(cmd, st)
			},
		})
		defer func() {
			if err := monitor.Close(); err != nil {
				cmd.PrintErrln(errStyle.Render("✗ " + err.Error()))
			}
		}()

		ctx := cmd.Context()
		if duration > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, duration)
			defer cancel()
		}

		cmd.Println("📷 Initializing camera...")
		if err := monitor.Open(ctx); err != nil {
			return err
		}

		if reference != "" {
			file, err := upload.Load(reference)
			if err == nil {
				err = upload.ValidatePhoto(file)
			}
			if err != nil {
				return fmt.Errorf("reference photo: %s", apperr.Message(err))
			}
			_, err = monitor.UseReference(ctx, file.DataURL())
			if err != nil {
				return err
			}
		} else {
			cmd.Println("Look at the camera, capturing your reference face...")
			if _, err := monitor.CaptureReference(ctx); err != nil {
				return err
			}
		}
		cmd.Println(okStyle.Render("✓ Reference face set"))

		if err := monitor.Start(ctx); err != nil {
			return err
		}
		cmd.Printf("Checking every %s. Press Ctrl+C to stop.\n", cfg.Interval)
		<-ctx.Done()

		if err := monitor.Stop(); err != nil {
			return err
		}
		cmd.Printf("\n✓ Camera released after %d checks\n", monitor.Checks())
		return nil
	},
}

func printPresence(cmd *cobra.Command, st presence.Status) {
	p := st.Presence
	badge := levelStyle(st.Level).Render(fmt.Sprintf("● %s", st.Level))
	line := fmt.Sprintf("%s %s  %s %.0f%%", st.CheckedAt.Format(time.TimeOnly), badge, labelStyle.Render("confidence"), p.Confidence*100)
	if p.StabilityScore > 0 {
		line += fmt.Sprintf("  %s %.0f%%", labelStyle.Render("stability"), p.StabilityScore*100)
	}
	if p.EyesDetected != nil && !*p.EyesDetected {
		line += "  " + warnStyle.Render("eyes not detected")
	}
	if p.Message != "" {
		line += "  " + valueStyle.Render(p.Message)
	}
	cmd.Println(line)
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().String("frames-dir", "", "Read frames from JPG/PNG files in this directory instead of a camera")
	verifyCmd.Flags().Bool("fake-device", false, "Use Chrome's synthetic camera (no hardware needed)")
	verifyCmd.Flags().String("reference", "", "Reference photo; defaults to a frame captured from the camera")
	verifyCmd.Flags().Duration("duration", 0, "Stop after this long (default: until interrupted)")
}
