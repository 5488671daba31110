package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"rolesync/pkg/config"
	"rolesync/pkg/logger"
	"rolesync/pkg/state"
	"rolesync/pkg/syncer"
	"rolesync/pkg/ui/tui"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Check the mirror and refresh data, images and manifest",
	Long: `Run one sync.

When the upstream manifest timestamp matches the last synced one only the
check time is recorded. Otherwise the character data is rebuilt, missing or
changed portraits are downloaded and role.json is regenerated.

Exit status is 0 when the mirror was current or the sync completed, and 1
when character data could not be fetched or no image listing was available.`,
	Example: `  # Run with defaults
  rolesync sync

  # Sync another fork of the asset repository
  rolesync sync --repository someone/WutheringWaves_Assets --branch dev`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	addSyncFlags(syncCmd)
	addTUIFlag(syncCmd)
}

func addTUIFlag(cmd *cobra.Command) {
	cmd.Flags().Bool("tui", false, "show a live progress display (terminal only)")
}

// tuiEnabled reports whether the live display was requested and stdout is a
// terminal it can draw on
func tuiEnabled(cmd *cobra.Command) bool {
	f := cmd.Flags().Lookup("tui")
	if f == nil || f.Value.String() != "true" {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func addSyncFlags(cmd *cobra.Command) {
	cmd.Flags().String("repository", "", "upstream asset repository (owner/name)")
	cmd.Flags().String("branch", "", "upstream branch")
	cmd.Flags().String("state-file", "", "sync state file")
	cmd.Flags().String("image-dir", "", "portrait directory")
	cmd.Flags().String("metadata-file", "", "character data file")
	cmd.Flags().String("manifest-file", "", "output manifest")
	cmd.Flags().Int("max-retries", -1, "fallback download retries")
}

func runSync(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return &exitError{code: 1, err: err}
	}

	var report *syncer.Report
	if tuiEnabled(cmd) {
		report, err = syncWithTUI(cmd.Context(), cfg, logger.GetLogger())
	} else {
		if !quiet {
			newPrinter(cmd).Banner()
		}
		report, err = syncOnce(cmd.Context(), cfg, logger.GetLogger(), nil)
	}
	if report != nil && !quiet {
		newPrinter(cmd).Report(report)
	}
	if err != nil {
		return &exitError{code: 1, err: err}
	}
	if report.ExitCode != 0 {
		return &exitError{code: report.ExitCode}
	}
	return nil
}

// syncOnce loads the state, runs the syncer and returns its report. obs
// may be nil.
func syncOnce(ctx context.Context, cfg *config.Config, log logger.Logger, obs syncer.Observer) (*syncer.Report, error) {
	s, err := syncer.New(cfg, log)
	if err != nil {
		return nil, err
	}
	if obs != nil {
		s.WithObserver(obs)
	}

	store := state.NewStore(cfg.Paths.StateFile, log)
	_, report, err := s.Run(ctx, store.Load())
	if err != nil {
		return report, fmt.Errorf("sync aborted: %w", err)
	}
	return report, nil
}

// syncWithTUI runs the sync in the background while the live display owns
// the terminal
func syncWithTUI(ctx context.Context, cfg *config.Config, log logger.Logger) (*syncer.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	display := tui.New(cancel)
	type outcome struct {
		report *syncer.Report
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		report, err := syncOnce(ctx, cfg, log, display)
		display.Finish(report, err)
		done <- outcome{report, err}
	}()

	if err := display.Run(); err != nil {
		log.WithError(err).Warn("Live display failed, waiting for the sync to finish")
		cancel()
	}
	res := <-done
	return res.report, res.err
}
