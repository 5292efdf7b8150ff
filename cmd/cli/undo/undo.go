package undo

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/crucial707/hci-undo/cmd/cli/client"
	"github.com/crucial707/hci-undo/cmd/cli/config"
	"github.com/crucial707/hci-undo/cmd/cli/output"
	"github.com/spf13/cobra"
)

// action is one row of GET /undo-actions.
type action struct {
	ID         string    `json:"id"`
	Resource   string    `json:"resource"`
	ResourceID *string   `json:"resourceId"`
	Method     string    `json:"method"`
	ActorID    *string   `json:"actorId"`
	CreatedAt  time.Time `json:"createdAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Path       string    `json:"path"`
}

// InitUndo registers the undo command group on the root command.
func InitUndo(rootCmd *cobra.Command) {
	undoCmd := &cobra.Command{
		Use:   "undo",
		Short: "List and roll back recorded writes",
	}
	undoCmd.AddCommand(listCmd(), rollbackCmd())
	rootCmd.AddCommand(undoCmd)
}

// ==========================
// List
// ==========================
func listCmd() *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your most recent undoable writes",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := config.LoadToken()
			if err != nil {
				return err
			}
			path := "/undo-actions"
			if limit > 0 {
				path += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
			}

			var actions []action
			if err := client.Do("GET", path, token, nil, &actions); err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(actions)
			}
			if len(actions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to undo.")
				return nil
			}

			rows := make([][]interface{}, 0, len(actions))
			for _, a := range actions {
				rows = append(rows, []interface{}{
					a.ID, a.Method, a.Resource, orDash(a.ResourceID), orDash(a.ActorID),
					a.CreatedAt.Local().Format(time.DateTime), a.ExpiresAt.Local().Format(time.DateOnly),
				})
			}
			output.RenderTable(cmd.OutOrStdout(),
				[]string{"ID", "Method", "Resource", "Resource ID", "Actor", "Created", "Expires"}, rows)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of actions (server default 10, max 50)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print raw JSON")
	return cmd
}

// ==========================
// Rollback
// ==========================
func rollbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback <undo-id>",
		Short: "Reverse one recorded write",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := config.LoadToken()
			if err != nil {
				return err
			}
			var out struct {
				OK           bool   `json:"ok"`
				RolledBackID string `json:"rolledBackId"`
			}
			path := "/undo-actions/" + url.PathEscape(args[0]) + "/rollback"
			if err := client.Do("POST", path, token, nil, &out); err != nil {
				return fmt.Errorf("rollback %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rolled back %s.\n", out.RolledBackID)
			return nil
		},
	}
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
