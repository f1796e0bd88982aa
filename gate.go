package sdc

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	EnvDelay      = "SDC_DELAY"
	EnvMemType    = "SDC_MEMTYPE"
	EnvMPIRank    = "SDC_MPIRANK"
	EnvMPIOnly    = "SDC_MPIONLY"
	EnvOutFile    = "SDC_OUTFILE"
	EnvDebug      = "SDC_DEBUG"
	EnvSkipModule = "SDC_SKIPMODULE"
	EnvConfig     = "SDC_CONFIG"
)

// rankVariables are consulted in order to find this process's MPI rank.
var rankVariables = []string{
	"OMPI_COMM_WORLD_RANK",
	"OMPI_MCA_ns_nds_vpid",
	"PMI_RANK",
}

// Lookup fetches an option by name, like os.LookupEnv.
type Lookup func(key string) (string, bool)

// Overlay prefers values from lookup and falls back to defaults.
func Overlay(lookup Lookup, defaults map[string]string) Lookup {
	return func(key string) (string, bool) {
		if value, ok := lookup(key); ok {
			return value, true
		}
		value, ok := defaults[key]
		return value, ok
	}
}

// Gate decides whether the injector should run in this process and builds
// its configuration. Malformed values never stop activation: they are
// returned as warnings wrapping ErrConfigInvalid and the default is kept.
func Gate(lookup Lookup, pid int) (config Config, allowed bool, warnings []error) {
	config = DefaultConfig(pid)
	warn := func(key, value, reason string) {
		warnings = append(warnings, errors.Wrapf(ErrConfigInvalid, "%s=%q: %s", key, value, reason))
	}

	rank, haveRank := processRank(lookup)
	if haveRank {
		config.Rank = rank
	}

	if _, ok := lookup(EnvMPIOnly); ok && !haveRank {
		// Most likely mpirun or mpiexec itself.
		return
	}

	if value, ok := lookup(EnvMPIRank); ok {
		desired, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			warn(EnvMPIRank, value, "not an integer")
		} else if !haveRank || desired != rank {
			return
		}
	}

	if value, ok := lookup(EnvDelay); ok {
		seconds, err := strconv.ParseInt(strings.TrimSpace(value), 0, 64)
		if err != nil || seconds < 0 || seconds > maxDelaySeconds {
			warn(EnvDelay, value, "want 0 to 9999999 seconds")
		} else {
			config.Delay = time.Duration(seconds) * time.Second
		}
	}

	if value, ok := lookup(EnvMemType); ok {
		category, err := ParseCategory(strings.TrimSpace(value))
		if err != nil {
			warn(EnvMemType, value, "want all, data, code, appdata, heap or stack")
		} else {
			config.Category = category
		}
	}

	if value, ok := lookup(EnvOutFile); ok && value != "" {
		config.OutputPath = OutputPath(value, pid)
	}

	if value, ok := lookup(EnvDebug); ok {
		level, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || level < 0 || level > maxDebugLevel {
			warn(EnvDebug, value, "want 0 to 3")
		} else {
			config.Debug = level
		}
	}

	if value, ok := lookup(EnvSkipModule); ok {
		var names []string
		for _, name := range strings.Split(value, ",") {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
		config.SkipModules = names
	}

	allowed = true
	return
}

func processRank(lookup Lookup) (rank int, ok bool) {
	for _, key := range rankVariables {
		value, found := lookup(key)
		if !found {
			continue
		}
		rank, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			continue
		}
		return rank, true
	}
	return -1, false
}
