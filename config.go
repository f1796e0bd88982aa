package sdc

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/procfs"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"
)

const (
	DefaultDelay    = 3 * time.Second
	DefaultCategory = CategoryData
	maxDelaySeconds = 9999999
	maxDebugLevel   = 3
	pidPlaceholder  = "%d"
)

// Config is fixed once the injector is attached.
type Config struct {
	Delay    time.Duration
	Category Category
	// Rank is the MPI rank of this process, or -1 when unknown.
	Rank        int
	OutputPath  string
	Debug       int
	SkipModules []string
	ProcMount   string
}

func DefaultConfig(pid int) Config {
	return Config{
		Delay:       DefaultDelay,
		Category:    DefaultCategory,
		Rank:        -1,
		OutputPath:  OutputPath("", pid),
		SkipModules: DefaultSkipModules,
		ProcMount:   procfs.DefaultMountPoint,
	}
}

// OutputPath expands the first %d in pattern to pid. An empty pattern gives
// the default ./sdc-<pid>.log.
func OutputPath(pattern string, pid int) string {
	if pattern == "" {
		return fmt.Sprintf("./sdc-%d.log", pid)
	}
	return strings.Replace(pattern, pidPlaceholder, fmt.Sprint(pid), 1)
}

func (c Config) snapshot(totals Totals) Snapshot {
	return Snapshot{
		Delay:    int(c.Delay / time.Second),
		Rank:     c.Rank,
		Category: c.Category,
		Totals:   totals,
	}
}

// fileOptions mirrors the environment options in a YAML file. Values are
// kept as text so they go through the same validation as the environment.
type fileOptions struct {
	Delay       string   `yaml:"delay"`
	MemType     string   `yaml:"memtype"`
	MPIRank     string   `yaml:"mpirank"`
	MPIOnly     string   `yaml:"mpionly"`
	OutFile     string   `yaml:"outfile"`
	Debug       string   `yaml:"debug"`
	SkipModules []string `yaml:"skipmodules"`
}

// LoadOptionsFile reads a YAML options file into environment-style
// key/value pairs.
func LoadOptionsFile(fs afero.Fs, path string) (map[string]string, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Wrapf(ErrConfigInvalid, "reading %s: %v", path, err)
	}
	var file fileOptions
	if err = yaml.UnmarshalStrict(data, &file); err != nil {
		return nil, errors.Wrapf(ErrConfigInvalid, "parsing %s: %v", path, err)
	}

	options := make(map[string]string)
	set := func(key, value string) {
		if value != "" {
			options[key] = value
		}
	}
	set(EnvDelay, file.Delay)
	set(EnvMemType, file.MemType)
	set(EnvMPIRank, file.MPIRank)
	if file.MPIOnly != "" && file.MPIOnly != "false" && file.MPIOnly != "0" {
		options[EnvMPIOnly] = file.MPIOnly
	}
	set(EnvOutFile, file.OutFile)
	set(EnvDebug, file.Debug)
	set(EnvSkipModule, strings.Join(file.SkipModules, ","))
	return options, nil
}
