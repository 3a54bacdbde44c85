package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aretw0/tendril/internal/config"
	"github.com/aretw0/tendril/internal/logging"
)

var (
	v      = config.New()
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "tendril",
	Short: "Tendril runs adaptive browser test cases",
	Long: `Tendril runs test cases whose steps branch and loop on conditions about
the live page: element presence and visibility, text, page state and variables.

Test cases are YAML, JSON or Markdown files with YAML front matter, read from --dir.
Settings come from tendril.yaml, TENDRIL_* environment variables and flags.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("config")
		loaded, err := config.Load(v, path)
		if err != nil {
			return err
		}
		level, err := logging.ParseLevel(loaded.LogLevel)
		if err != nil {
			return err
		}
		cfg = loaded
		logger = logging.NewWithWriter(os.Stderr, level, loaded.LogFormat == "json")
		slog.SetDefault(logger)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file (default ./tendril.yaml)")
	flags.String("dir", ".", "Directory containing the test cases")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("log-format", "text", "Log format: text or json")
	flags.Bool("natural", false, "Accept natural-language conditions")

	bind(v, "log_level", rootCmd, "log-level")
	bind(v, "log_format", rootCmd, "log-format")
	bind(v, "evaluation.natural", rootCmd, "natural")
}

// bind ties a config key to a persistent flag so explicit flags win over
// the file and the environment.
func bind(v *viper.Viper, key string, cmd *cobra.Command, flag string) {
	if err := v.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}
