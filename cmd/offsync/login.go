package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/mschirtzinger/offsync/internal/offline/auth"
	"github.com/mschirtzinger/offsync/internal/offline/remote"
	"github.com/mschirtzinger/offsync/internal/ui"
)

var loginCmd = &cobra.Command{
	Use:     "login",
	GroupID: "setup",
	Short:   "Store the API token",
	Long: `Store the bearer token used for the API.

The token is read from --token, from an interactive prompt when stdin is a
terminal, or from stdin otherwise. A running daemon notices the new token
and starts syncing immediately.`,
	Example: `  offsync login
  echo "$TOKEN" | offsync login
  offsync login --token "$TOKEN" --check`,
	RunE: func(cmd *cobra.Command, args []string) error {
		token, _ := cmd.Flags().GetString("token")
		check, _ := cmd.Flags().GetBool("check")

		if strings.TrimSpace(token) == "" {
			var err error
			token, err = promptToken()
			if err != nil {
				return err
			}
		}

		if check {
			if err := checkToken(cmd, token); err != nil {
				return err
			}
		}

		if err := cfg.EnsureDirs(); err != nil {
			return err
		}
		if err := auth.WriteTokenFile(cfg.TokenFile, token); err != nil {
			return err
		}
		fmt.Printf("%s Logged in; token stored at %s\n", ui.RenderPass("✓"), cfg.TokenFile)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:     "logout",
	GroupID: "setup",
	Short:   "Remove the stored API token",
	Long: `Remove the token file. Queued operations are kept and pushed after the
next login.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := auth.RemoveTokenFile(cfg.TokenFile); err != nil {
			return err
		}
		fmt.Printf("%s Logged out\n", ui.RenderPass("✓"))
		return nil
	},
}

func promptToken() (string, error) {
	if ui.IsTerminal(os.Stdin) {
		var token string
		err := huh.NewInput().
			Title("API token").
			Description("Paste the bearer token for " + cfg.API.BaseURL).
			EchoMode(huh.EchoModePassword).
			Value(&token).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errors.New("token is required")
				}
				return nil
			}).
			Run()
		if err != nil {
			return "", fmt.Errorf("failed to read token: %w", err)
		}
		return strings.TrimSpace(token), nil
	}
	return readToken(os.Stdin)
}

// readToken returns the first non-empty line of r.
func readToken(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			return line, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return "", errors.New("no token provided on stdin")
}

// checkToken lists records with token to confirm the API accepts it.
func checkToken(cmd *cobra.Command, token string) error {
	client, err := newClient(auth.NewTokenSource(token))
	if err != nil {
		return err
	}
	if _, err := client.Find(cmd.Context()); err != nil {
		if errors.Is(err, remote.ErrUnauthorized) {
			return fmt.Errorf("the API rejected the token: %w", err)
		}
		fmt.Printf("%s Could not verify the token (%v); storing it anyway\n", ui.RenderWarn("⚠"), err)
	}
	return nil
}

func init() {
	loginCmd.Flags().String("token", "", "token value (avoid on shared machines; prefer stdin)")
	loginCmd.Flags().Bool("check", false, "verify the token against the API before storing it")

	rootCmd.AddCommand(loginCmd, logoutCmd)
}
