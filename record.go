package sdc

import (
	"fmt"
	"io"
)

// Record describes one injection. It is written once and never changed.
type Record struct {
	Category Category
	Address  uintptr
	Bit      uint
	Mask     uint64
	OldValue uint64
	NewValue uint64
	Segment  Segment
	// Symbol and Instruction are only filled in for executable segments.
	Symbol      *Symbol
	Instruction string
	// Elevated is set when the page had to be made writable for the flip.
	Elevated bool
}

// Snapshot is the configuration and catalog state logged with a record.
type Snapshot struct {
	Delay    int
	Rank     int
	Category Category
	Totals   Totals
}

func writeIntent(w io.Writer, snap Snapshot, rec *Record) (err error) {
	p := &errWriter{w: w}
	p.printf("SDC Configuration:\nDelay %d\n", snap.Delay)
	p.printf("MPI Rank: %d\n", snap.Rank)
	p.printf("Memory Type: %v\n", snap.Category)
	p.printf("Total (Write) Memory: %d %d\n", snap.Totals.All, snap.Totals.Write)
	p.printf("Category Memory: %d\n", snap.Totals.For(snap.Category))
	p.printf("Injected error info:\nAddress: %#x\n", rec.Address)
	p.printf("Bit number: %d\nBit mask: %x\n", rec.Bit, rec.Mask)
	p.printf("Map: %x - %x %v\nName: %s", rec.Segment.Begin, rec.Segment.End, rec.Segment.Perms, rec.Segment.Name)
	if rec.Symbol != nil {
		p.printf(" (%s,%#x)", rec.Symbol.Name, rec.Symbol.Base)
	}
	p.printf("\n")
	if rec.Instruction != "" {
		p.printf("Instruction: %s\n", rec.Instruction)
	}
	p.printf("Current value: %x\n", rec.OldValue)
	return p.err
}

func writeOutcome(w io.Writer, rec *Record) error {
	_, err := fmt.Fprintf(w, "New value: %x\n", rec.NewValue)
	return err
}

type errWriter struct {
	w   io.Writer
	err error
}

func (p *errWriter) printf(format string, args ...interface{}) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
