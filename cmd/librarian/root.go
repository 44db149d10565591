package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/librarian/internal/config"
	logpkg "github.com/kailas-cloud/librarian/internal/logger"
	"github.com/kailas-cloud/librarian/internal/version"
)

var (
	envName    string
	configPath string
	noColor    bool

	// Populated by the root pre-run for every command except version.
	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "librarian",
	Short: "Conversational book recommendations over a curated catalog",
	Long: `Librarian answers free-text book requests in the user's language.

Every query passes a moderation gate, intent classification and an exact-match
guard before the catalog is searched, so the assistant never recommends a title
it does not hold in place of one the user asked for by name.`,
	Version:           version.Version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&envName, "env", config.GetEnv(), "environment name, selects config/<env>.yaml",
	)
	rootCmd.PersistentFlags().StringVar(
		&configPath, "config", "", "explicit config file (overrides --env lookup)",
	)
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(serveCmd, ingestCmd, askCmd, versionCmd)
}

func setup(_ *cobra.Command, _ []string) error {
	if noColor {
		color.NoColor = true
	}

	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load(envName)
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err = logpkg.NewLogger(envName, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	return nil
}
