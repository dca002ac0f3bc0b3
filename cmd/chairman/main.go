// chairman: autonomous DAO treasury agent.
//
// Polls Discord, Snapshot and the governance forum, reasons over what it
// finds with an LLM, and acts through a registry of typed connection
// actions. Safe transactions are never confirmed directly; they go to
// the notifier service for human approval.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	characterPath string
	logLevel      string
	logPretty     bool
)

func main() {
	root := &cobra.Command{
		Use:   "chairman",
		Short: "Autonomous DAO treasury agent",
	}
	root.PersistentFlags().StringVarP(&characterPath, "character", "c", "character.json", "path to the character file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&logPretty, "log-pretty", false, "human-readable log output")

	root.AddCommand(newRunCmd())
	root.AddCommand(newActionsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
