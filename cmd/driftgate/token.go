package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/driftgate/driftgate/internal/config"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the GitHub token in the OS keychain",
}

var tokenSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store a GitHub token in the OS keychain",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprint(os.Stderr, "GitHub token: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("read token: %w", err)
		}
		token := strings.TrimSpace(string(raw))
		if token == "" {
			return fmt.Errorf("empty token")
		}
		if err := config.NewKeyringManager().SaveGitHubToken(token); err != nil {
			return fmt.Errorf("store token: %w", err)
		}
		fmt.Println("Token stored.")
		return nil
	},
}

var tokenDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove the GitHub token from the OS keychain",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.NewKeyringManager().DeleteGitHubToken(); err != nil {
			return fmt.Errorf("delete token: %w", err)
		}
		fmt.Println("Token removed.")
		return nil
	},
}

func init() {
	tokenCmd.AddCommand(tokenSetCmd)
	tokenCmd.AddCommand(tokenDeleteCmd)
}
