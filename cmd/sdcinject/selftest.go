package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	sdc "github.com/kstenerud/go-sdc"
)

//go:noinline
func selftestProbe() int {
	return 0x5dc
}

func newSelftestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "selftest",
		Short: "Flip and restore a bit in this process's code and in a read-only page",
		Long: "Flips a bit twice in the code of a function and in a read-only data page, checking\n" +
			"that page protection is lifted and restored and that both words end up\n" +
			"unchanged.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return selftest(cmd.OutOrStdout())
		},
	}
}

func flipTwice(out io.Writer, catalog *sdc.Catalog, writer *sdc.Writer, label string, address uintptr) error {
	target, err := sdc.TargetAt(catalog, address, 3)
	if err != nil {
		return err
	}
	first, err := writer.Flip(target, nil)
	if err != nil {
		return err
	}
	second, err := writer.Flip(target, nil)
	if err != nil {
		return err
	}
	if first.NewValue != first.OldValue^target.Mask() || second.NewValue != first.OldValue {
		return fmt.Errorf("%s word %#x: %x -> %x -> %x", label, target.Address, first.OldValue, first.NewValue, second.NewValue)
	}
	fmt.Fprintf(out, "%s: %#x in %v ok (elevated: %v)\n", label, target.Address, &target.Segment, first.Elevated)
	return nil
}
