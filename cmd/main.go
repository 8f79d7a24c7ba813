package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "insights",
		Short:        "Real-time session insights: segmentation, transcription and enrichment",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newHistoryCmd(), newReplayCmd(), newTailCmd())
	return root
}
