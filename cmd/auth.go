package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/skybox-dev/skybox/internal/config"
	"github.com/skybox-dev/skybox/internal/errors"
	"github.com/skybox-dev/skybox/internal/secret"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage cloud credentials",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store and verify an API token",
	Long: `Stores the control plane API token in the OS keyring (or the
credentials file when no keyring is available) after verifying it
against the API.

The token is read from --token, or prompted for on a terminal, or read
from stdin.`,
	Args: cobra.NoArgs,
	RunE: runAuthLogin,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored API token",
	Args:  cobra.NoArgs,
	RunE:  runAuthLogout,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show credential status",
	Args:  cobra.NoArgs,
	RunE:  runAuthStatus,
}

var authToken string

func init() {
	authLoginCmd.Flags().StringVar(&authToken, "token", "", "API token (prompted for when omitted)")
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	rootCmd.AddCommand(authCmd)
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	token, err := readToken()
	if err != nil {
		return err
	}
	if token == "" {
		return errors.ValidationError("no token provided")
	}

	if err := sky.Secrets.Set(secret.Service, secret.TokenAccount, token); err != nil {
		return errors.ConfigError("failed to store token", err)
	}

	// Verify by hitting the control plane with the stored token.
	p, err := sky.Provider(config.ProviderRemote)
	if err != nil {
		return err
	}
	if err := p.EnsureReady(cmd.Context()); err != nil {
		_ = sky.Secrets.Delete(secret.Service, secret.TokenAccount)
		return err
	}

	logSuccess("Token verified and stored")
	if sky.Config.APIToken != "" {
		logWarning("SKYBOX_API_TOKEN is set in the environment and overrides the stored token")
	}
	return nil
}

func readToken() (string, error) {
	if authToken != "" {
		return strings.TrimSpace(authToken), nil
	}
	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Print("API token: ")
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return "", scanner.Err()
	}
	return strings.TrimSpace(scanner.Text()), nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	err := sky.Secrets.Delete(secret.Service, secret.TokenAccount)
	if errors.Is(err, secret.ErrNotFound) {
		logInfo("No stored credentials")
		return nil
	}
	if err != nil {
		return errors.ConfigError("failed to remove token", err)
	}
	logSuccess("Removed stored token")
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	token := sky.Config.APIToken
	source := "environment"
	if token == "" && sky.Secrets != nil {
		if v, err := sky.Secrets.Get(secret.Service, secret.TokenAccount); err == nil {
			token, source = v, "credential store"
		}
	}
	if token == "" {
		fmt.Println("Not authenticated. Run: skybox auth login")
		return nil
	}
	fmt.Printf("Authenticated via %s (token %s)\n", source, maskToken(token))
	fmt.Printf("Control plane: %s\n", sky.Config.CloudAPIURL)
	return nil
}

func maskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
