// Command sdcinject inspects the memory catalog the injector works from and
// runs the injector against a synthetic workload.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "sdcinject",
		Short:         "Silent data corruption injector",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newMapsCommand(), newRunCommand(), newSelftestCommand())
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
