package cmd

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/khaledhikmat/vs-mood/pipeline"
	"github.com/khaledhikmat/vs-mood/service/collector"
	"github.com/spf13/cobra"
)

var intervalDetector string

var intervalCmd = &cobra.Command{
	Use:   "interval",
	Short: "Read or change the upload interval",
	Long: `Read or change the upload interval. By default the collector is asked;
with --detector the running detector applies the change to its live throttle
after the collector acknowledged it.`,
}

// intervalTarget speaks the interval routes, which the collector and the
// detector controls both serve.
func intervalTarget() collector.IService {
	if intervalDetector != "" {
		return collector.NewHTTP(intervalDetector, cfgSvc.GetUploadTimeout())
	}
	return collector.NewHTTP(cfgSvc.GetEndpointBaseURL(), cfgSvc.GetUploadTimeout())
}

var intervalGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the upload interval in seconds",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		seconds, err := intervalTarget().GetInterval(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %gs\n", color.CyanString("interval"), seconds)
		return nil
	},
}

var intervalSetCmd = &cobra.Command{
	Use:   "set SECONDS",
	Short: "Change the upload interval",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		seconds, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid interval %q: %w", args[0], err)
		}

		store := pipeline.NewIntervalStore(intervalTarget(), cfgSvc.GetDefaultInterval())
		if err := store.Set(cmd.Context(), seconds); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", color.GreenString("interval set to"), store.Get())
		return nil
	},
}

func init() {
	intervalCmd.PersistentFlags().StringVar(&intervalDetector, "detector", "", "base URL of a running detector's controls, e.g. http://localhost:8001")
	intervalCmd.AddCommand(intervalGetCmd, intervalSetCmd)
	rootCmd.AddCommand(intervalCmd)
}
