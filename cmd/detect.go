package cmd

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/khaledhikmat/vs-mood/mode"
	"github.com/khaledhikmat/vs-mood/pipeline"
	"github.com/khaledhikmat/vs-mood/service/lgr"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var detectOpts struct {
	source   string
	video    string
	fake     bool
	endpoint string
	control  string
}

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Run the sampling pipeline against a camera or a video file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := currentConfig()
		if detectOpts.source != "" {
			cfg.Video.Source = detectOpts.source
		}
		if detectOpts.video != "" {
			cfg.Video.Type = "file"
			cfg.Video.Source = detectOpts.video
		}
		if detectOpts.endpoint != "" {
			cfg.Pipeline.EndpointBaseURL = detectOpts.endpoint
		}
		if cmd.Flags().Changed("control") {
			cfg.Pipeline.ControlAddr = detectOpts.control
		}
		if detectOpts.fake {
			cfg.Video.Type = "fake"
			cfg.Inference.Type = "fake"
			cfg.Display.Type = "canvas"
		}

		svcs, err := detectorServices(cmd.Context(), configFrom(cfg))
		if err != nil {
			return err
		}
		defer svcs.DataSvc.Close()
		defer svcs.EmitterSvc.Close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		if cfg.Video.Type == "file" {
			go trackFile(ctx, cancel, svcs)
		}

		return mode.Detector(ctx, svcs)
	},
}

// trackFile shows progress through a finite video and stops the pipeline
// once every frame was sampled.
func trackFile(ctx context.Context, cancel context.CancelFunc, svcs pipeline.ServicesFactory) {
	// Frame count is known only after the pipeline opened the video
	var total int
	for total <= 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(200 * time.Millisecond):
			total = svcs.VideoSvc.FrameCount()
		}
	}

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Sampling"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)
	defer bar.Finish()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			read := svcs.VideoSvc.FramesRead()
			bar.Set(read)
			if read >= total {
				lgr.Logger.Info("video file exhausted", slog.Int("frames", total))
				cancel()
				return
			}
		}
	}
}

func init() {
	detectCmd.Flags().StringVar(&detectOpts.source, "source", "", "camera device id or stream URL")
	detectCmd.Flags().StringVar(&detectOpts.video, "video", "", "video file to sample instead of a camera")
	detectCmd.Flags().BoolVar(&detectOpts.fake, "fake", false, "use synthetic video and inference")
	detectCmd.Flags().StringVar(&detectOpts.endpoint, "endpoint", "", "collector base URL")
	detectCmd.Flags().StringVar(&detectOpts.control, "control", "", "address of the detector controls, empty to disable")
	rootCmd.AddCommand(detectCmd)
}
