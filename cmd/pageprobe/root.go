package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for pageprobe.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pageprobe",
		Short: "Open a page in Chrome and report what it rendered",
		Long: `pageprobe drives Chrome through the DevTools protocol.

It navigates to a URL, waits until the network is idle, saves a screenshot
and prints the page title, the number of cookies and the viewport size.
Runs are stored in a local history database so that later runs of the same
URL can be compared.

Chrome is launched headless by default. Use --headful to watch the page.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs to stderr as JSON")

	cmd.AddCommand(NewProbeCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewDevicesCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
