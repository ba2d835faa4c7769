package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "config.yml"

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "ultimatelogger",
		Short:         "Buffered, filterable event log store with retention and webhooks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCommand())
	root.AddCommand(newCleanupCommand())
	root.AddCommand(newFilterCommand())

	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
