package sdc

import (
	"runtime"
)

// Symbol is the nearest symbol at or below a code address.
type Symbol struct {
	Name string
	Base uintptr
}

// SymbolResolver maps a code address inside seg to a symbol. Resolution is
// best-effort: ok is false when nothing is known about the address.
type SymbolResolver interface {
	Resolve(address uintptr, seg *Segment) (sym Symbol, ok bool)
}

// ResolverChain asks each resolver in turn.
type ResolverChain []SymbolResolver

func (chain ResolverChain) Resolve(address uintptr, seg *Segment) (Symbol, bool) {
	for _, resolver := range chain {
		if sym, ok := resolver.Resolve(address, seg); ok {
			return sym, true
		}
	}
	return Symbol{}, false
}

// DefaultSymbolResolver looks in the Go runtime's function table first, then
// in the ELF file backing the segment.
func DefaultSymbolResolver() SymbolResolver {
	return ResolverChain{runtimeResolver{}, newELFResolver()}
}

type runtimeResolver struct{}

func (runtimeResolver) Resolve(address uintptr, _ *Segment) (Symbol, bool) {
	f := runtime.FuncForPC(address)
	if f == nil {
		return Symbol{}, false
	}
	return Symbol{Name: f.Name(), Base: f.Entry()}, true
}
