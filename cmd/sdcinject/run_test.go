package main

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sdc "github.com/kstenerud/go-sdc"
)

func lookupFrom(pairs map[string]string) sdc.Lookup {
	return func(key string) (string, bool) {
		value, ok := pairs[key]
		return value, ok
	}
}

func parseRunFlags(t *testing.T, args ...string) (*pflag.FlagSet, runOptions) {
	t.Helper()
	opts := runOptions{category: sdc.DefaultCategory}
	flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	bindRunFlags(flags, &opts)
	require.NoError(t, flags.Parse(args))
	return flags, opts
}

func TestRunConfigFlagsOverrideEnvironment(t *testing.T) {
	flags, opts := parseRunFlags(t, "--delay", "250ms", "--memtype", "code", "--outfile", "/tmp/run-%d.log", "--debug", "2")

	config, warnings := runConfig(flags, lookupFrom(map[string]string{
		sdc.EnvDelay:   "30",
		sdc.EnvMemType: "heap",
		sdc.EnvDebug:   "1",
	}), 77, opts)

	assert.Empty(t, warnings)
	assert.Equal(t, 250*time.Millisecond, config.Delay)
	assert.Equal(t, sdc.CategoryCode, config.Category)
	assert.Equal(t, "/tmp/run-77.log", config.OutputPath)
	assert.Equal(t, 2, config.Debug)
}

func TestRunConfigKeepsEnvironmentForUnsetFlags(t *testing.T) {
	flags, opts := parseRunFlags(t, "--words", "16")

	config, warnings := runConfig(flags, lookupFrom(map[string]string{
		sdc.EnvDelay:   "30",
		sdc.EnvMemType: "heap",
		sdc.EnvOutFile: "env-%d.log",
	}), 77, opts)

	assert.Empty(t, warnings)
	assert.Equal(t, 16, opts.words)
	assert.Equal(t, 30*time.Second, config.Delay)
	assert.Equal(t, sdc.CategoryHeap, config.Category)
	assert.Equal(t, "env-77.log", config.OutputPath)
	assert.Equal(t, 0, config.Debug)
}

func TestRunConfigReportsBadEnvironment(t *testing.T) {
	flags, opts := parseRunFlags(t)

	config, warnings := runConfig(flags, lookupFrom(map[string]string{sdc.EnvMemType: "registers"}), 77, opts)

	require.Len(t, warnings, 1)
	assert.Equal(t, sdc.DefaultCategory, config.Category)
	assert.Equal(t, "./sdc-77.log", config.OutputPath)
}

func TestRunRejectsBadMemtypeFlag(t *testing.T) {
	opts := runOptions{category: sdc.DefaultCategory}
	flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	bindRunFlags(flags, &opts)
	assert.Error(t, flags.Parse([]string{"--memtype", "registers"}))
}
