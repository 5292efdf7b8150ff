package root

import (
	"github.com/spf13/cobra"
)

// Exported RootCmd
var RootCmd = &cobra.Command{
	Use:           "hci-undo",
	Short:         "HCI undo CLI",
	Long:          "Command line interface for listing and rolling back writes recorded by the HCI undo API",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// GetRoot returns the RootCmd.
func GetRoot() *cobra.Command {
	return RootCmd
}
