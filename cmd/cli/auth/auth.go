package auth

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/crucial707/hci-undo/cmd/cli/client"
	"github.com/crucial707/hci-undo/cmd/cli/config"
	"github.com/spf13/cobra"
)

// InitAuth registers login and logout on the root command.
func InitAuth(rootCmd *cobra.Command) {
	rootCmd.AddCommand(loginCmd(), logoutCmd())
}

// loginCmd creates a command that logs in an admin and stores the JWT token locally.
func loginCmd() *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the HCI undo API",
		Long:  "Authenticate with the HCI undo API and store a JWT token for subsequent CLI commands.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" {
				return fmt.Errorf("username is required")
			}
			if password == "" {
				password = os.Getenv("HCI_UNDO_PASSWORD")
			}
			if password == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Password: ")
				line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				password = strings.TrimSpace(line)
			}

			var loginResp struct {
				Token string `json:"token"`
			}
			payload := map[string]string{"username": username, "password": password}
			if err := client.Do("POST", "/auth/login", "", payload, &loginResp); err != nil {
				return fmt.Errorf("failed to login: %w", err)
			}
			if loginResp.Token == "" {
				return fmt.Errorf("login succeeded but no token returned")
			}

			if err := config.SaveToken(loginResp.Token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Login successful. Token stored locally.")
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Username to authenticate as")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted, or read from HCI_UNDO_PASSWORD, when omitted)")

	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the locally saved token",
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := config.DeleteToken()
			if err != nil {
				return err
			}
			if !removed {
				fmt.Fprintln(cmd.OutOrStdout(), "No user logged in.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out successfully.")
			return nil
		},
	}
}
