// Package cmd contains the CLI commands for aidev.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/brianly1003/aidev/internal/app"
	"github.com/brianly1003/aidev/internal/config"
	"github.com/brianly1003/aidev/internal/logging"
)

var (
	// Version info (set from main)
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"

	// Global flags
	cfgFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "aidev",
	Short: "Command-line client for the AI developer assistant",
	Long: `aidev talks to the AI developer-assistant backend: chat with the model,
manage stored files, get refactoring and debugging help for code, drive
git and analyze projects.

Log in once with 'aidev login'. The session is saved under ~/.aidev and
shared by every aidev process.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets version information from the main package.
func SetVersionInfo(v, bt, gc string) {
	version = v
	buildTime = bt
	gitCommit = gc
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.aidev/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(versionCmd)
}

// versionCmd displays version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "aidev %s\n", version)
		fmt.Fprintf(out, "  Build time: %s\n", buildTime)
		fmt.Fprintf(out, "  Git commit: %s\n", gitCommit)
	},
}

func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// runWithApp loads the configuration, sets up logging and runs fn with a
// ready application. The context is cancelled on SIGINT or SIGTERM.
func runWithApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanup, err := logging.Setup(cfg.Logging, verbose)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, version)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer func() {
		if err := application.Close(); err != nil {
			log.Warn().Err(err).Msg("error during shutdown")
		}
	}()

	return fn(ctx, application)
}

// runLoggedIn is runWithApp for commands that need a session.
func runLoggedIn(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	return runWithApp(cmd, func(ctx context.Context, a *app.App) error {
		if _, err := a.RequireSession(); err != nil {
			return fmt.Errorf("%w: run 'aidev login' first", err)
		}
		return fn(ctx, a)
	})
}
