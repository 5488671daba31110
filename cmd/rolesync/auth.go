package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"rolesync/pkg/auth"
	"rolesync/pkg/config"
	"rolesync/pkg/httpclient"
	"rolesync/pkg/logger"
)

var loginNoVerify bool

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the GitHub API token",
	Long: `Manage the optional GitHub token sent with contents API requests.

Tokens are stored in:
  - the system keychain (when available)
  - an encrypted file with PBKDF2 key derivation
and are also read from ROLESYNC_GITHUB_TOKEN or GITHUB_TOKEN.`,
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store a GitHub token",
	Long: `Prompt for a GitHub token (input is hidden), check it against the GitHub
API and store it. The token can also be piped on stdin.`,
	Example: `  rolesync auth login
  echo "$TOKEN" | rolesync auth login`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored GitHub token",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a GitHub token is available",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	authLoginCmd.Flags().BoolVar(&loginNoVerify, "no-verify", false, "store the token without calling the GitHub API")
}

func runLogin(cmd *cobra.Command, _ []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return &exitError{code: 1, err: fmt.Errorf("failed to initialize credential manager: %w", err)}
	}
	p := newPrinter(cmd)

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	if interactive {
		auth.WriteTokenGuide(cmd.OutOrStdout())
		fmt.Fprint(cmd.OutOrStdout(), "\nGitHub token: ")
	}
	token, err := readSecret(os.Stdin, interactive)
	if interactive {
		fmt.Fprintln(cmd.OutOrStdout())
	}
	if err != nil {
		return &exitError{code: 1, err: fmt.Errorf("failed to read token: %w", err)}
	}
	if token == "" {
		return &exitError{code: 1, err: errors.New("no token entered")}
	}

	if !loginNoVerify {
		if err := verifyToken(cmd.Context(), token); err != nil {
			p.Error("GitHub rejected the token", err)
			return &exitError{code: 1}
		}
	}

	if err := manager.Store(&auth.Credential{Name: auth.DefaultName, Token: token}); err != nil {
		return &exitError{code: 1, err: err}
	}
	p.Success("Token stored: " + auth.MaskToken(token))
	return nil
}

// readSecret reads one line, without echo when stdin is a terminal
func readSecret(in *os.File, interactive bool) (string, error) {
	if interactive {
		b, err := term.ReadPassword(int(in.Fd()))
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// verifyToken calls the rate limit endpoint, which needs no scopes
func verifyToken(ctx context.Context, token string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		cfg = config.DefaultConfig()
	}

	client := httpclient.New(httpclient.Options{
		UserAgent: cfg.Download.UserAgent,
		Token:     token,
		TokenHost: httpclient.HostOf(cfg.Mirror.APIBaseURL),
		Logger:    logger.NewNopLogger(),
	})
	var out struct {
		Rate struct {
			Limit int `json:"limit"`
		} `json:"rate"`
	}
	url := strings.TrimRight(cfg.Mirror.APIBaseURL, "/") + "/rate_limit"
	return client.GetJSON(ctx, url, cfg.Download.ListingTimeout, &out)
}

func runLogout(cmd *cobra.Command, _ []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return &exitError{code: 1, err: fmt.Errorf("failed to initialize credential manager: %w", err)}
	}
	p := newPrinter(cmd)

	if err := manager.Delete(auth.DefaultName); err != nil {
		if errors.Is(err, auth.ErrCredentialsNotFound) {
			p.Warning("No stored token")
			return nil
		}
		return &exitError{code: 1, err: err}
	}
	p.Success("Token removed")

	for _, key := range auth.TokenEnvVars {
		if os.Getenv(key) != "" {
			p.Warning(key + " is still set in the environment")
		}
	}
	return nil
}

func runStatus(cmd *cobra.Command, _ []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return &exitError{code: 1, err: fmt.Errorf("failed to initialize credential manager: %w", err)}
	}
	p := newPrinter(cmd)

	cred, err := manager.Retrieve(auth.DefaultName)
	if err != nil {
		p.Warning("No GitHub token; contents API requests are unauthenticated")
		return nil
	}
	masked := auth.Sanitize(cred)
	p.Info("Token", masked.Token)
	if !cred.LastModified.IsZero() {
		p.Info("Stored", cred.LastModified.Format("2006-01-02 15:04"))
	} else {
		p.Info("Source", "environment")
	}
	return nil
}
