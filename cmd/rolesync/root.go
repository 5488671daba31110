package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"rolesync/pkg/auth"
	"rolesync/pkg/config"
	"rolesync/pkg/logger"
	"rolesync/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	noColor    bool
	quiet      bool
)

// rootCmd runs a sync when called without a subcommand
var rootCmd = &cobra.Command{
	Use:   "rolesync",
	Short: "Keep the Wuthering Waves character mirror up to date",
	Long: `rolesync refreshes a static mirror of Wuthering Waves character data.

A sync checks the upstream asset repository for changes and, when there are
any, rebuilds src/id2role.json from the hakush.in API, mirrors the character
portraits (falling back to hakush.in assets converted to PNG) and writes the
src/role.json manifest used by the front-end.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runSync,
}

// exitError carries a process exit code out of a command
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// Execute runs the root command and exits with its status
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintln(os.Stderr, ee.err)
		}
		os.Exit(ee.code)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .rolesync.yaml or $HOME/.config/rolesync/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only log errors and skip the summary")

	addSyncFlags(rootCmd)
	addTUIFlag(rootCmd)

	rootCmd.SetVersionTemplate(`rolesync {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// flagNames are the flags merged into the configuration when set
var flagNames = []string{
	"repository", "branch", "state-file", "image-dir", "metadata-file",
	"manifest-file", "max-retries", "schedule", "log-level",
}

// collectFlags returns the values of every changed flag in flagNames
func collectFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	for _, name := range flagNames {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if f.Value.Type() == "int" {
			if n, err := cmd.Flags().GetInt(name); err == nil {
				flags[name] = n
			}
			continue
		}
		flags[name] = f.Value.String()
	}
	if quiet || tuiEnabled(cmd) {
		flags["log-level"] = "error"
	}
	return flags
}

// loadConfig builds the configuration and initializes the global logger
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile, collectFlags(cmd))
	if err != nil {
		return nil, err
	}
	if noColor {
		cfg.Logging.NoColor = true
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if cfg.Mirror.Token == "" {
		cfg.Mirror.Token = storedToken()
	}
	return cfg, nil
}

// storedToken looks up the GitHub token in the credential stores
func storedToken() string {
	manager, err := auth.NewManager()
	if err != nil {
		logger.WithError(err).Debug("Credential stores unavailable")
		return ""
	}
	return manager.Token(auth.DefaultName)
}

func newPrinter(cmd *cobra.Command) *ui.Printer {
	out := cmd.OutOrStdout()
	color := !noColor
	if f, ok := out.(*os.File); ok {
		color = color && term.IsTerminal(int(f.Fd()))
	}
	return ui.NewPrinter(out, color)
}
