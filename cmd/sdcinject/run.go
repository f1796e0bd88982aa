package main

import (
	"fmt"
	"io"
	"os"
	"time"
	"unsafe"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	sdc "github.com/kstenerud/go-sdc"
)

const patternMultiplier = 0x9E3779B97F4A7C15

type runOptions struct {
	delay    time.Duration
	category sdc.Category
	outFile  string
	debug    int
	words    int
	duration time.Duration
	interval time.Duration
}

func newRunCommand() *cobra.Command {
	opts := runOptions{category: sdc.DefaultCategory}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Attach the injector to this process and watch a workload for corruption",
		Long: "Fills a buffer with a known pattern, attaches the injector and checks the\n" +
			"buffer until the duration runs out. SDC_* variables apply; flags override them.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, warnings := runConfig(cmd.Flags(), os.LookupEnv, os.Getpid(), opts)
			for _, warning := range warnings {
				fmt.Fprintln(cmd.ErrOrStderr(), warning)
			}
			return runWorkload(cmd.OutOrStdout(), config, opts)
		},
	}
	bindRunFlags(cmd.Flags(), &opts)
	return cmd
}

func bindRunFlags(flags *pflag.FlagSet, opts *runOptions) {
	flags.DurationVar(&opts.delay, "delay", sdc.DefaultDelay, "time before the injection")
	flags.Var(&opts.category, "memtype", "memory category: all, data, code, appdata, heap or stack")
	flags.StringVar(&opts.outFile, "outfile", "", "log file, the first %d becomes the pid")
	flags.IntVar(&opts.debug, "debug", 0, "debug channel level, 0 to 3")
	flags.IntVar(&opts.words, "words", 1<<20, "size of the workload buffer in 64-bit words")
	flags.DurationVar(&opts.duration, "duration", 10*time.Second, "how long to watch the workload")
	flags.DurationVar(&opts.interval, "interval", 100*time.Millisecond, "how often to check the workload")
}

// runConfig starts from the SDC_* environment and applies the flags that were
// set on the command line.
func runConfig(flags *pflag.FlagSet, lookup sdc.Lookup, pid int, opts runOptions) (sdc.Config, []error) {
	config, _, warnings := sdc.Gate(lookup, pid)
	if flags.Changed("delay") {
		config.Delay = opts.delay
	}
	if flags.Changed("memtype") {
		config.Category = opts.category
	}
	if flags.Changed("outfile") {
		config.OutputPath = sdc.OutputPath(opts.outFile, pid)
	}
	if flags.Changed("debug") {
		config.Debug = opts.debug
	}
	return config, warnings
}

func runWorkload(out io.Writer, config sdc.Config, opts runOptions) error {
	data := make([]uint64, opts.words)
	for i := range data {
		data[i] = uint64(i) * patternMultiplier
	}

	injector := sdc.New(config, sdc.WithLogger(sdc.NewLogger(config.Debug)))
	if err := injector.Attach(); err != nil {
		return err
	}
	defer func() {
		_ = injector.Detach()
	}()
	fmt.Fprintf(out, "injecting into %v memory in %v, logging to %s\n",
		config.Category, config.Delay, config.OutputPath)

	ticker := time.NewTicker(opts.interval)
	defer ticker.Stop()
	deadline := time.After(opts.duration)
	done := injector.Done()
	corrupted := false
	for {
		select {
		case <-done:
			done = nil
			reportInjection(out, injector, data)
		case <-ticker.C:
			if corrupted {
				continue
			}
			for i, v := range data {
				if v != uint64(i)*patternMultiplier {
					fmt.Fprintf(out, "workload corrupted at word %d: %x, want %x\n", i, v, uint64(i)*patternMultiplier)
					corrupted = true
					break
				}
			}
		case <-deadline:
			if !corrupted {
				fmt.Fprintln(out, "workload intact")
			}
			return nil
		}
	}
}

func reportInjection(out io.Writer, injector *sdc.Injector, data []uint64) {
	if err := injector.Err(); err != nil {
		fmt.Fprintf(out, "injection aborted: %v\n", err)
		return
	}
	rec := injector.Record()
	if rec == nil {
		return
	}
	fmt.Fprintf(out, "flipped bit %d at %#x in %v: %x -> %x\n",
		rec.Bit, rec.Address, &rec.Segment, rec.OldValue, rec.NewValue)
	if len(data) == 0 {
		return
	}
	start := uintptr(unsafe.Pointer(&data[0]))
	end := start + uintptr(len(data))*8
	if rec.Address >= start && rec.Address < end {
		fmt.Fprintf(out, "the flip landed in the workload buffer at word %d\n", (rec.Address-start)/8)
	}
}
