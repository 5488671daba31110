package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"rolesync/pkg/auth"
	"rolesync/pkg/config"
	"rolesync/pkg/storage"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage rolesync configuration.

Configuration is merged from, highest priority first:
  - Command line flags
  - ROLESYNC_* environment variables (also read from .env)
  - Configuration file
  - Built-in defaults`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default values",
	Long: `Write every option with its default value to .rolesync.yaml, or to the
path given with --config.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  `Show the configuration after merging all sources. The GitHub token is masked.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the effective configuration",
	Long: `Load and validate the configuration, then check that the output
directories can be created.`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "overwrite an existing file")
}

const configHeader = `# rolesync configuration
#
# Every option can also be set through ROLESYNC_* environment variables,
# e.g. ROLESYNC_REPOSITORY, ROLESYNC_LOG_LEVEL or ROLESYNC_SCHEDULE.
# Durations use Go syntax: 300ms, 30s, 1h.

`

func runConfigInit(cmd *cobra.Command, _ []string) error {
	path := configFile
	if path == "" {
		path = ".rolesync.yaml"
	}
	p := newPrinter(cmd)

	if _, err := os.Stat(path); err == nil && !configForce {
		return &exitError{code: 1, err: fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)}
	}

	data, err := yaml.Marshal(config.DefaultConfig())
	if err != nil {
		return &exitError{code: 1, err: fmt.Errorf("failed to marshal config: %w", err)}
	}
	if err := storage.WriteFileAtomic(path, append([]byte(configHeader), data...), 0o644); err != nil {
		return &exitError{code: 1, err: err}
	}

	p.Success("Configuration file created: " + path)
	fmt.Fprintln(cmd.OutOrStdout(), "\nNext steps:")
	fmt.Fprintln(cmd.OutOrStdout(), "1. Edit the file if the defaults do not fit")
	fmt.Fprintln(cmd.OutOrStdout(), "2. Run 'rolesync config validate'")
	fmt.Fprintln(cmd.OutOrStdout(), "3. Run 'rolesync sync'")
	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, collectFlags(cmd))
	if err != nil {
		return &exitError{code: 1, err: err}
	}

	display := *cfg
	if display.Mirror.Token != "" {
		display.Mirror.Token = auth.MaskToken(display.Mirror.Token)
	}

	data, err := yaml.Marshal(&display)
	if err != nil {
		return &exitError{code: 1, err: fmt.Errorf("failed to format configuration: %w", err)}
	}

	p := newPrinter(cmd)
	p.Highlight("Current configuration")
	fmt.Fprintln(cmd.OutOrStdout())
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	if configFile != "" {
		p.Info("\nConfiguration file", configFile)
	}
	return nil
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	p := newPrinter(cmd)

	cfg, err := config.Load(configFile, collectFlags(cmd))
	if err != nil {
		p.Error("Configuration validation failed", err)
		return &exitError{code: 1}
	}

	var problems []error
	for _, dir := range []string{
		filepath.Dir(cfg.Paths.StateFile),
		filepath.Dir(cfg.Paths.MetadataFile),
		cfg.Paths.ImageDir,
		filepath.Dir(cfg.Paths.ManifestFile),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			problems = append(problems, fmt.Errorf("cannot create %s: %w", dir, err))
		}
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0o755); err != nil {
			problems = append(problems, fmt.Errorf("cannot create log directory: %w", err))
		}
	}
	if err := errors.Join(problems...); err != nil {
		p.Error("Configuration has errors", err)
		return &exitError{code: 1}
	}

	p.Success("Configuration is valid")
	p.Info("Repository", cfg.Mirror.Repository+"@"+cfg.Mirror.Branch)
	p.Info("Locales", fmt.Sprint(cfg.Hakush.Locales))
	p.Info("Images", cfg.Paths.ImageDir)
	p.Info("Manifest", cfg.Paths.ManifestFile)
	p.Info("Schedule", cfg.Watch.Schedule)
	return nil
}
