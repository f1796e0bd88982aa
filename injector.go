package sdc

import (
	"fmt"
	"os"
	"runtime/debug"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Injector runs one injection: wait, build the catalog, sample, flip, log.
// It runs on its own goroutine next to the host's code and never
// coordinates with it.
type Injector struct {
	config  Config
	clock   clock.Clock
	fs      afero.Fs
	logger  *zap.Logger
	sampler *Sampler
	writer  *Writer
	source  func(*Catalog) error

	state  atomic.Int32
	done   chan struct{}
	err    error
	record *Record
}

type Option func(*Injector)

func WithClock(clock clock.Clock) Option {
	return func(i *Injector) {
		i.clock = clock
	}
}

// WithFs sets the filesystem holding the injection log.
func WithFs(fs afero.Fs) Option {
	return func(i *Injector) {
		i.fs = fs
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(i *Injector) {
		i.logger = logger
	}
}

func WithSampler(sampler *Sampler) Option {
	return func(i *Injector) {
		i.sampler = sampler
	}
}

func WithWriter(writer *Writer) Option {
	return func(i *Injector) {
		i.writer = writer
	}
}

// WithCatalogSource replaces reading the calling process's memory map.
func WithCatalogSource(source func(*Catalog) error) Option {
	return func(i *Injector) {
		i.source = source
	}
}

func New(config Config, options ...Option) *Injector {
	i := &Injector{
		config: config,
		clock:  clock.New(),
		fs:     afero.NewOsFs(),
		logger: zap.NewNop(),
		done:   make(chan struct{}),
	}
	for _, option := range options {
		option(i)
	}
	if i.sampler == nil {
		i.sampler = NewSampler(WithSamplerLogger(i.logger))
	}
	if i.writer == nil {
		i.writer = NewWriter(WithWriterLogger(i.logger))
	}
	if i.source == nil {
		i.source = func(c *Catalog) error {
			return c.Refresh(0)
		}
	}
	return i
}

func (i *Injector) Config() Config {
	return i.config
}

func (i *Injector) State() State {
	return State(i.state.Load())
}

// Done is closed once the injector has terminated.
func (i *Injector) Done() <-chan struct{} {
	return i.done
}

// Wait blocks until the injector has terminated and returns the reason it
// aborted, if it did.
func (i *Injector) Wait() error {
	<-i.done
	return i.err
}

// Err is the abort reason. It is nil until the injector has terminated.
func (i *Injector) Err() error {
	select {
	case <-i.done:
		return i.err
	default:
		return nil
	}
}

// Record is the completed injection, or nil if none happened (yet).
func (i *Injector) Record() *Record {
	select {
	case <-i.done:
		return i.record
	default:
		return nil
	}
}

// Attach arms the injector. The delay starts now and can't be cancelled.
func (i *Injector) Attach() error {
	if !i.state.CompareAndSwap(int32(StateIdle), int32(StateArmed)) {
		return ErrAlreadyAttached
	}
	i.logger.Info("injector armed",
		zap.Duration("delay", i.config.Delay),
		zap.Stringer("category", i.config.Category),
		zap.String("output", i.config.OutputPath))
	go i.run()
	return nil
}

// Detach appends the normal termination marker to the log, if there is a
// log. The injection goroutine is left alone.
func (i *Injector) Detach() error {
	i.logger.Info("injector detached", zap.Stringer("state", i.State()))
	if i.State() == StateIdle {
		return nil
	}
	return i.journal(Totals{}).Finish()
}

func (i *Injector) journal(totals Totals) *FileJournal {
	return NewFileJournal(i.fs, i.config.OutputPath, i.config.snapshot(totals))
}

func (i *Injector) setState(state State) {
	i.state.Store(int32(state))
	i.logger.Debug("injector state", zap.Stringer("state", state))
}

func (i *Injector) run() {
	defer close(i.done)
	defer func() {
		if r := recover(); r != nil {
			i.abort(fmt.Errorf("injection panicked: %v", r))
		}
		i.setState(StateTerminated)
	}()
	// A bad address becomes a panic on this goroutine instead of killing the
	// host outright.
	debug.SetPanicOnFault(true)

	i.clock.Sleep(i.config.Delay)

	i.setState(StateSampling)
	record, err := i.inject()
	if err != nil {
		i.abort(err)
		return
	}
	i.record = &record
	i.setState(StateMutated)
}

func (i *Injector) abort(err error) {
	i.err = err
	i.setState(StateAborted)
	i.logger.Info("injection aborted", zap.Error(err))
}

func (i *Injector) inject() (record Record, err error) {
	catalog := NewCatalog(
		WithSkipModules(i.config.SkipModules...),
		WithProcMount(i.config.ProcMount),
		WithCatalogLogger(i.logger))
	defer catalog.Destroy()

	if err = i.source(catalog); err != nil {
		return
	}
	catalog.Dump(i.logger, i.config.Debug >= maxDebugLevel)

	target, err := i.sampler.Sample(catalog, i.config.Category)
	if err != nil {
		return
	}
	i.logger.Info("injecting error",
		zap.String("address", hexAddr(target.Address)),
		zap.Uint("bit", target.Bit),
		zap.Stringer("segment", &target.Segment))

	return i.writer.Flip(target, i.journal(catalog.Totals()))
}

var (
	defaultMutex    sync.Mutex
	defaultInjector *Injector
)

// AttachFromEnv configures an injector from the SDC_* environment (and the
// SDC_CONFIG file, if set) and attaches it, unless the process is filtered
// out. It returns nil without error in that case.
func AttachFromEnv() (*Injector, error) {
	defaultMutex.Lock()
	defer defaultMutex.Unlock()
	if defaultInjector != nil {
		return defaultInjector, ErrAlreadyAttached
	}

	fs := afero.NewOsFs()
	pid := os.Getpid()
	lookup := Lookup(os.LookupEnv)
	var fileErr error
	if path, ok := os.LookupEnv(EnvConfig); ok && path != "" {
		var fileOptions map[string]string
		if fileOptions, fileErr = LoadOptionsFile(fs, path); fileErr == nil {
			lookup = Overlay(lookup, fileOptions)
		}
	}

	config, allowed, warnings := Gate(lookup, pid)
	logger := NewLogger(config.Debug)
	if fileErr != nil {
		warnings = append(warnings, fileErr)
	}
	logConfigWarnings(logger, warnings)
	if !allowed {
		logger.Info("process filtered out, not injecting", zap.Int("rank", config.Rank))
		return nil, nil
	}

	injector := New(config, WithFs(fs), WithLogger(logger))
	if err := injector.Attach(); err != nil {
		logger.Warn("could not attach injector", zap.Error(err))
		return nil, errors.Wrap(err, "attaching injector")
	}
	defaultInjector = injector
	return injector, nil
}

// DetachDefault detaches the injector started by AttachFromEnv, if any.
func DetachDefault() error {
	defaultMutex.Lock()
	defer defaultMutex.Unlock()
	if defaultInjector == nil {
		return nil
	}
	err := defaultInjector.Detach()
	if err != nil {
		defaultInjector.logger.Warn("could not mark normal termination", zap.Error(err))
	}
	return err
}
