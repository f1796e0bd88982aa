package sdc

import (
	"fmt"
	"reflect"
)

// FunctionAddress returns the entry address of a function's code.
func FunctionAddress(function interface{}) (address uintptr, err error) {
	rv := reflect.ValueOf(function)
	if rv.Kind() != reflect.Func || rv.IsNil() {
		err = fmt.Errorf("%T is not a function", function)
		return
	}
	address = rv.Pointer()
	return
}

// TargetAt builds a target for a specific word, for callers that choose the
// address themselves instead of sampling it. The address must lie in a
// catalog segment.
func TargetAt(catalog *Catalog, address uintptr, bit uint) (target Target, err error) {
	if bit >= wordBits {
		err = fmt.Errorf("bit %d out of range", bit)
		return
	}
	address &^= wordAlignMask
	seg := catalog.SegmentFor(address)
	if seg == nil || address+wordSize > seg.End {
		err = fmt.Errorf("no segment holds word %#x", address)
		return
	}
	target = Target{
		Category: CategoryAll,
		Address:  address,
		Bit:      bit,
		Segment:  *seg,
	}
	return
}
