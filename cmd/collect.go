package cmd

import (
	"github.com/khaledhikmat/vs-mood/mode"
	"github.com/spf13/cobra"
)

var collectListen string

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Serve the collector endpoints the detector uploads to",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := currentConfig()
		if collectListen != "" {
			cfg.Collector.ListenAddr = collectListen
		}

		svcs, err := collectorServices(cmd.Context(), configFrom(cfg))
		if err != nil {
			return err
		}
		defer svcs.DataSvc.Close()
		defer svcs.PublisherSvc.Close()

		return mode.Collector(cmd.Context(), svcs)
	},
}

func init() {
	collectCmd.Flags().StringVar(&collectListen, "listen", "", "listen address (default from configuration)")
	rootCmd.AddCommand(collectCmd)
}
