package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/brianly1003/aidev/internal/config"
)

var (
	configInitLocal bool
	configInitForce bool
)

// configCmd displays or manages configuration.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Display and manage configuration",
	Long: `Display and manage aidev configuration.

Without subcommands, shows the current effective configuration.

Examples:
  aidev config              # Show current config
  aidev config init         # Create config file with defaults
  aidev config path         # Show config file location
  aidev config get <key>    # Get a config value`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration as YAML",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

// configInitCmd creates a config file with defaults.
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config file with default settings",
	Long: `Create a config file with default settings.

By default, creates ~/.aidev/config.yaml.
Use --local to create ./config.yaml in the current directory.

Examples:
  aidev config init          # Create ~/.aidev/config.yaml
  aidev config init --local  # Create ./config.yaml
  aidev config init --force  # Overwrite existing file`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// configPathCmd shows config file location.
var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config file search paths",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

// configGetCmd gets a config value.
var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Long: `Get a configuration value by key.

Keys use dot notation to access nested values.

Examples:
  aidev config get api.base_url
  aidev config get session.backend
  aidev config get editor`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configGetCmd)

	configInitCmd.Flags().BoolVar(&configInitLocal, "local", false, "create config in current directory instead of ~/.aidev/")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite existing config file")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	data, err := config.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := config.DefaultConfigPath()
	if configInitLocal {
		configPath = "config.yaml"
	}

	if err := config.WriteFile(configPath, config.Default(), configInitForce); err != nil {
		if !configInitForce {
			return fmt.Errorf("%w\nUse --force to overwrite", err)
		}
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", configPath)
	fmt.Fprintln(cmd.OutOrStdout(), "Edit this file to customize aidev behavior.")
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	configDir, err := config.GetConfigDir()
	if err != nil {
		return fmt.Errorf("failed to get config dir: %w", err)
	}
	printConfigPaths(cmd.OutOrStdout(), configSearchPaths(configDir))
	fmt.Fprintf(cmd.OutOrStdout(), "\nConfig directory: %s\n", configDir)
	return nil
}

func configSearchPaths(configDir string) []string {
	if cfgFile != "" {
		return []string{cfgFile}
	}
	return []string{
		"./config.yaml",
		filepath.Join(configDir, "config.yaml"),
		"/etc/aidev/config.yaml",
	}
}

func printConfigPaths(out io.Writer, locations []string) {
	fmt.Fprintln(out, "Config search paths (in order):")
	for i, loc := range locations {
		exists := "not found"
		if _, err := os.Stat(loc); err == nil {
			exists = "exists"
		}
		fmt.Fprintf(out, "  %d. %s (%s)\n", i+1, loc, exists)
	}
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	value, err := getConfigValue(cfg, args[0])
	if err != nil {
		return err
	}

	if nested, ok := value.(map[string]interface{}); ok {
		data, err := yaml.Marshal(nested)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

// getConfigValue looks up a dotted key in the YAML form of cfg.
func getConfigValue(cfg *config.Config, key string) (interface{}, error) {
	data, err := config.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var tree map[string]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	var current interface{} = tree
	for _, part := range strings.Split(key, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("unknown config key: %s", key)
		}
		current, ok = m[part]
		if !ok {
			return nil, fmt.Errorf("unknown config key: %s", key)
		}
	}
	return current, nil
}
