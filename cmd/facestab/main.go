// Command facestab runs tunnel face stability analyses from the command line.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"Facestab/internal/config"
	"Facestab/internal/logging"
)

var (
	configPath string
	logLevel   string
	noColor    bool

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "facestab",
	Short: "Tunnel face stability by log-spiral limit equilibrium",
	Long: `facestab computes the face support pressure needed to hold a soil wedge
in front of a tunnel face. It sweeps the wedge extent, solves the log-spiral
slip surface for each extent and reports the governing pressure.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		level := cfg.Logging.Level
		if logLevel != "" {
			level = logLevel
		}
		logger = logging.New(cmd.ErrOrStderr(), level, noColor || cfg.Logging.NoColor)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "facestab.yaml", "Config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable coloured log output")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(presetsCmd)
	rootCmd.AddCommand(tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
