package main

import (
	"github.com/spf13/cobra"

	"rolesync/pkg/httpclient"
	"rolesync/pkg/logger"
	"rolesync/pkg/mirror"
	"rolesync/pkg/state"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report whether the upstream mirror changed since the last sync",
	Long: `Compare the upstream manifest timestamp with the one recorded by the
last sync. Nothing is downloaded and the state file is not modified.

Exit status is 0 when the check succeeded (fresh or stale) and 1 when the
manifest could not be read.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().String("state-file", "", "sync state file")
	checkCmd.Flags().String("repository", "", "upstream asset repository (owner/name)")
	checkCmd.Flags().String("branch", "", "upstream branch")
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return &exitError{code: 1, err: err}
	}
	log := logger.GetLogger()

	client := httpclient.New(httpclient.Options{UserAgent: cfg.Download.UserAgent, Logger: log})
	checker := mirror.NewChecker(client, cfg.Mirror, cfg.Download.ListingTimeout, log)

	prev := state.NewStore(cfg.Paths.StateFile, log).Load()
	res := checker.Check(cmd.Context(), prev.LastUpdatedValue())

	p := newPrinter(cmd)
	p.Info("Status", res.Status.String())
	p.Info("Local", orNone(prev.LastUpdatedValue()))
	if res.Status == mirror.CheckFailed {
		p.Error("Check failed", res.Err)
		return &exitError{code: 1}
	}
	p.Info("Remote", res.RemoteTimestamp)
	if res.MissingTimestamp {
		p.Warning("Upstream manifest has no timestamp")
	}
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(never synced)"
	}
	return s
}
