package sdc

import (
	"fmt"
)

const (
	anonymousName = "none"
	heapName      = "[heap]"
	stackName     = "[stack]"
)

// Segment is one contiguous mapping of the address space. Begin and End
// are the refined bounds; DeclaredSize and ResidentSize are what the kernel
// reported, in bytes.
type Segment struct {
	Begin        uintptr
	End          uintptr
	Perms        Permissions
	Offset       uint64
	Name         string
	DeclaredSize uint64
	ResidentSize uint64
}

func (s *Segment) Size() uint64 {
	return uint64(s.End - s.Begin)
}

func (s *Segment) Contains(address uintptr) bool {
	return address >= s.Begin && address < s.End
}

func (s *Segment) String() string {
	return fmt.Sprintf("%x - %x %v %s", s.Begin, s.End, s.Perms, s.Name)
}
