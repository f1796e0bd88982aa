package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/prometheus/procfs"
	"github.com/spf13/cobra"

	sdc "github.com/kstenerud/go-sdc"
)

type mapsOptions struct {
	segments  bool
	skip      []string
	procMount string
}

func newMapsCommand() *cobra.Command {
	opts := mapsOptions{}
	cmd := &cobra.Command{
		Use:   "maps [pid]",
		Short: "Print the memory catalog of a process (default: this one)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid := 0
			if len(args) == 1 {
				var err error
				if pid, err = strconv.Atoi(args[0]); err != nil {
					return fmt.Errorf("bad pid %q: %w", args[0], err)
				}
			}
			catalog := sdc.NewCatalog(sdc.WithSkipModules(opts.skip...), sdc.WithProcMount(opts.procMount))
			if err := catalog.Refresh(pid); err != nil {
				return err
			}
			printCatalog(cmd.OutOrStdout(), catalog, opts.segments)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&opts.segments, "segments", "s", false, "list every segment")
	cmd.Flags().StringSliceVar(&opts.skip, "skip", sdc.DefaultSkipModules, "module names to leave out")
	cmd.Flags().StringVar(&opts.procMount, "proc", procfs.DefaultMountPoint, "procfs mount point")
	return cmd
}

func printCatalog(w io.Writer, catalog *sdc.Catalog, withSegments bool) {
	if withSegments {
		segments := catalog.Segments()
		for i := range segments {
			seg := &segments[i]
			fmt.Fprintf(w, "segment: %x - %x   %v   (%s)\n", seg.Begin, seg.End, seg.Perms, seg.Name)
		}
	}
	totals := catalog.Totals()
	for _, line := range []struct {
		label string
		bytes uint64
	}{
		{"overall", totals.All},
		{"read", totals.Read},
		{"write", totals.Write},
		{"code", totals.Code},
		{"appdata", totals.AppData},
		{"heap", totals.Heap},
		{"stack", totals.Stack},
	} {
		fmt.Fprintf(w, "Total %-7s memory: %d bytes (%.2f MB)\n", line.label, line.bytes,
			float64(line.bytes)/(1024*1024))
	}
}
