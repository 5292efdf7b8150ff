package main

import (
	"fmt"
	"os"

	"github.com/crucial707/hci-undo/cmd/cli/auth"
	"github.com/crucial707/hci-undo/cmd/cli/root"
	"github.com/crucial707/hci-undo/cmd/cli/undo"
)

func main() {
	rootCmd := root.GetRoot()
	auth.InitAuth(rootCmd)
	undo.InitUndo(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}
