package sdc

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Writer flips a single bit in live memory, lifting the write protection of
// the containing page for the duration of the write when it has to.
type Writer struct {
	protector Protector
	memory    WordMemory
	symbols   SymbolResolver
	pageSize  uintptr
	logger    *zap.Logger
}

type WriterOption func(*Writer)

func WithProtector(protector Protector) WriterOption {
	return func(w *Writer) {
		w.protector = protector
	}
}

func WithWordMemory(memory WordMemory) WriterOption {
	return func(w *Writer) {
		w.memory = memory
	}
}

func WithSymbolResolver(resolver SymbolResolver) WriterOption {
	return func(w *Writer) {
		w.symbols = resolver
	}
}

func WithWriterPageSize(size uintptr) WriterOption {
	return func(w *Writer) {
		w.pageSize = size
	}
}

func WithWriterLogger(logger *zap.Logger) WriterOption {
	return func(w *Writer) {
		w.logger = logger
	}
}

func NewWriter(options ...WriterOption) *Writer {
	w := &Writer{
		protector: osProtector{},
		memory:    liveMemory{},
		pageSize:  uintptr(pageSize),
		logger:    zap.NewNop(),
	}
	for _, option := range options {
		option(w)
	}
	if w.symbols == nil {
		w.symbols = DefaultSymbolResolver()
	}
	return w
}

// Flip XORs the target bit into the target word. The journal's Intent is
// called with the old value before the write, Outcome with the new value
// after it. If the page can't be made writable, ErrPermissionElevation is
// returned and memory is left untouched.
func (w *Writer) Flip(target Target, journal Journal) (rec Record, err error) {
	if journal == nil {
		journal = nopJournal{}
	}
	seg := &target.Segment
	rec = Record{
		Category: target.Category,
		Address:  target.Address,
		Bit:      target.Bit,
		Mask:     target.Mask(),
		Segment:  target.Segment,
	}

	mutate := func() {
		rec.OldValue = w.memory.Load(target.Address)
		if seg.Perms.Has(PermExecute) {
			if sym, ok := w.symbols.Resolve(target.Address, seg); ok {
				rec.Symbol = &sym
			}
			rec.Instruction = w.describeCode(target.Address, seg)
		}
		if journalErr := journal.Intent(&rec); journalErr != nil {
			w.logger.Warn("could not record injection intent", zap.Error(journalErr))
		}
		w.logger.Debug("flipping bit",
			zap.String("address", hexAddr(target.Address)),
			zap.Uint("bit", target.Bit))
		w.memory.Store(target.Address, rec.OldValue^rec.Mask)
	}

	if seg.Perms.Has(PermWrite) {
		mutate()
	} else {
		err = applyToProtectedMemory(w.protector, w.pageSize, target.Address, wordSize,
			seg.Perms&permRWX, mutate, func(restoreErr error) {
				if restoreErr != nil {
					w.logger.Warn("could not restore page protection",
						zap.String("address", hexAddr(target.Address)),
						zap.Error(restoreErr))
				}
			})
		if err != nil {
			err = errors.Wrapf(ErrPermissionElevation, "page of %#x: %v", target.Address, err)
			return
		}
		rec.Elevated = true
	}

	rec.NewValue = w.memory.Load(target.Address)
	if journalErr := journal.Outcome(&rec); journalErr != nil {
		w.logger.Warn("could not record injection outcome", zap.Error(journalErr))
	}
	return
}

func (w *Writer) describeCode(address uintptr, seg *Segment) (text string) {
	if !seg.Perms.Has(PermRead) || maxInstructionLength == 0 {
		return
	}
	if _, live := w.memory.(liveMemory); !live {
		return
	}
	length := uintptr(maxInstructionLength)
	if address+length > seg.End {
		length = seg.End - address
	}
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()
	code := make([]byte, length)
	copy(code, SliceAtAddress(address, int(length)))
	return decodeInstruction(code, address)
}
