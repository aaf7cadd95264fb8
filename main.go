package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "researchd",
		Short: "Multiplatform deep research service",
		Long: `researchd runs research sessions that search the web, extract findings from
Instagram, LinkedIn, YouTube, X and the open web in parallel, and synthesize a
markdown report. Progress is streamed to viewers over WebSocket.

  researchd serve                          # start the HTTP and WebSocket server
  researchd research "AI trends in 2025"   # start a session and stream it
  researchd watch <session_id>             # stream an existing session`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newResearchCommand())
	rootCmd.AddCommand(newWatchCommand())

	return rootCmd
}
