package sdc

import (
	"debug/elf"
	"debug/gosym"
	"fmt"
	"sort"
	"strings"
)

type elfImage struct {
	symbols []elf.Symbol
	table   *gosym.Table
	loads   []elf.ProgHeader
}

// elfResolver reads symbols from the file a segment maps. Files are parsed
// once and cached, including failures.
type elfResolver struct {
	images map[string]*elfImage
}

func newELFResolver() *elfResolver {
	return &elfResolver{images: make(map[string]*elfImage)}
}

func (r *elfResolver) Resolve(address uintptr, seg *Segment) (Symbol, bool) {
	if !strings.HasPrefix(seg.Name, "/") {
		return Symbol{}, false
	}
	image, ok := r.images[seg.Name]
	if !ok {
		image, _ = loadELFImage(seg.Name)
		r.images[seg.Name] = image
	}
	if image == nil {
		return Symbol{}, false
	}
	return image.resolve(address, seg)
}

func loadELFImage(path string) (image *elfImage, err error) {
	exe, err := elf.Open(path)
	if err != nil {
		return
	}
	defer exe.Close()

	image = &elfImage{}
	for _, prog := range exe.Progs {
		if prog.Type == elf.PT_LOAD {
			image.loads = append(image.loads, prog.ProgHeader)
		}
	}

	for _, read := range []func() ([]elf.Symbol, error){exe.Symbols, exe.DynamicSymbols} {
		symbols, _ := read()
		for _, sym := range symbols {
			if elf.ST_TYPE(sym.Info) == elf.STT_FUNC && sym.Value != 0 && sym.Name != "" {
				image.symbols = append(image.symbols, sym)
			}
		}
	}
	sort.Slice(image.symbols, func(i, j int) bool {
		return image.symbols[i].Value < image.symbols[j].Value
	})

	if len(image.symbols) == 0 {
		// Stripped Go binaries still carry their pc-line table.
		image.table, _ = readSymbols(exe)
	}
	return
}

// loadBias is the difference between runtime and file virtual addresses for
// the load segment that seg maps.
func (image *elfImage) loadBias(seg *Segment) (bias uint64, ok bool) {
	for _, prog := range image.loads {
		if seg.Offset >= prog.Off && seg.Offset < prog.Off+prog.Filesz {
			fileVaddr := prog.Vaddr + (seg.Offset - prog.Off)
			return uint64(seg.Begin) - fileVaddr, true
		}
	}
	return
}

func (image *elfImage) resolve(address uintptr, seg *Segment) (Symbol, bool) {
	bias, ok := image.loadBias(seg)
	if !ok {
		return Symbol{}, false
	}
	fileAddr := uint64(address) - bias

	if image.table != nil {
		if fn := image.table.PCToFunc(fileAddr); fn != nil {
			return Symbol{Name: fn.Name, Base: uintptr(fn.Entry + bias)}, true
		}
		return Symbol{}, false
	}

	i := sort.Search(len(image.symbols), func(i int) bool {
		return image.symbols[i].Value > fileAddr
	})
	if i == 0 {
		return Symbol{}, false
	}
	sym := image.symbols[i-1]
	return Symbol{Name: sym.Name, Base: uintptr(sym.Value + bias)}, true
}

func readSymbols(exe *elf.File) (symTable *gosym.Table, err error) {
	sect := exe.Section(".text")
	if sect == nil {
		err = fmt.Errorf("Unable to find ELF .text section")
		return
	}
	textStart := sect.Addr

	sect = exe.Section(".gopclntab")
	if sect == nil {
		err = fmt.Errorf("Unable to find ELF .gopclntab section")
		return
	}
	lineTableData, err := sect.Data()
	if err != nil {
		return
	}

	lineTable := gosym.NewLineTable(lineTableData, textStart)
	return gosym.NewTable([]byte{}, lineTable)
}
