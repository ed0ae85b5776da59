package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/khaledhikmat/vs-mood/service/config"
	"github.com/khaledhikmat/vs-mood/service/lgr"
	"github.com/spf13/cobra"
)

// Version is the application version.
const Version = "0.1.0"

var (
	cfgFile string
	envFile string
	noColor bool

	// loaded once by the root command for every subcommand
	loadedCfg config.Config
	cfgSvc    config.IService
)

var rootCmd = &cobra.Command{
	Use:     "vs-mood",
	Short:   "Samples a camera, infers face attributes and uploads throttled snapshots",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Env files are optional outside dev
		if err := godotenv.Load(envFile); err != nil {
			if cmd.Flags().Changed("env") {
				return fmt.Errorf("error loading %s: %w", envFile, err)
			}
		}

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		loadedCfg = cfg
		cfgSvc = config.NewFromConfig(cfg)

		logParams := cfgSvc.GetLogParameters()
		lgr.Init(lgr.Options{
			Level:   logParams.Level,
			File:    logParams.File,
			NoColor: noColor,
		})
		lgr.Logger.Debug("configuration loaded",
			slog.String("config", cfgFile),
			slog.String("endpoint", cfgSvc.GetEndpointBaseURL()),
		)
		return nil
	},
	SilenceUsage: true,
}

// currentConfig returns a copy that flags may override.
func currentConfig() config.Config {
	return loadedCfg
}

func configFrom(cfg config.Config) config.IService {
	return config.NewFromConfig(cfg)
}

func Execute() {
	// Ctrl+C or SIGTERM cancel the command context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "YAML configuration file (default: built-in defaults)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file loaded before the configuration")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored console output")
}
