package sdc

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	wordSize      = 8
	wordAlignMask = wordSize - 1
	wordBits      = 64
)

// Target is a resolved injection point.
type Target struct {
	Category Category
	// Offset is the word-aligned offset drawn across the whole category.
	Offset  uint64
	Address uintptr
	Bit     uint
	Segment Segment
}

// Mask is the XOR mask that flips the target bit.
func (t Target) Mask() uint64 {
	return uint64(1) << t.Bit
}

// Sampler picks a uniformly distributed word and bit inside a category.
type Sampler struct {
	random Random
	logger *zap.Logger
}

type SamplerOption func(*Sampler)

func WithRandom(random Random) SamplerOption {
	return func(s *Sampler) {
		s.random = random
	}
}

func WithSamplerLogger(logger *zap.Logger) SamplerOption {
	return func(s *Sampler) {
		s.logger = logger
	}
}

func NewSampler(options ...SamplerOption) *Sampler {
	s := &Sampler{logger: zap.NewNop()}
	for _, option := range options {
		option(s)
	}
	if s.random == nil {
		s.random = newRandom()
	}
	return s
}

// Sample draws a target from the catalog. It fails with ErrCategoryEmpty if
// nothing in the catalog belongs to the category.
func (s *Sampler) Sample(catalog *Catalog, category Category) (Target, error) {
	total := catalog.Total(category)
	if total == 0 {
		return Target{}, errors.Wrapf(ErrCategoryEmpty, "%v", category)
	}
	offset := s.random.Uint64N(total) &^ wordAlignMask
	bit := uint(s.random.IntN(wordBits))
	s.logger.Debug("drew injection offset",
		zap.Stringer("category", category),
		zap.Uint64("offset", offset),
		zap.Uint64("total", total),
		zap.Uint("bit", bit))
	return resolveTarget(catalog, category, offset, bit)
}

func resolveTarget(catalog *Catalog, category Category, offset uint64, bit uint) (Target, error) {
	seg, within, ok := catalog.Locate(category, offset)
	if !ok {
		return Target{}, errors.Wrapf(ErrCategoryEmpty, "no %v segment holds offset %#x", category, offset)
	}
	address := (seg.Begin + uintptr(within)) &^ wordAlignMask
	if address < seg.Begin {
		address = (seg.Begin + wordAlignMask) &^ wordAlignMask
	}
	if address+wordSize > seg.End {
		return Target{}, errors.Wrapf(ErrCategoryEmpty, "no whole word at %#x in %v", address, seg)
	}
	return Target{
		Category: category,
		Offset:   offset,
		Address:  address,
		Bit:      bit,
		Segment:  *seg,
	}, nil
}
