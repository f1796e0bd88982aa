package sdc

import (
	"unsafe"
)

// Permissions is the access mode of a mapping, as reported by the kernel.
type Permissions uint8

const (
	PermNone    Permissions = 0
	PermRead    Permissions = 0x1
	PermWrite   Permissions = 0x2
	PermExecute Permissions = 0x4
	PermPrivate Permissions = 0x10
	PermShared  Permissions = 0x20

	permRWX = PermRead | PermWrite | PermExecute
)

// ParsePermissions decodes a 4 character permission field such as "r-xp".
func ParsePermissions(field string) (perms Permissions, ok bool) {
	if len(field) != 4 {
		return
	}
	if field[0] == 'r' {
		perms |= PermRead
	}
	if field[1] == 'w' {
		perms |= PermWrite
	}
	if field[2] == 'x' {
		perms |= PermExecute
	}
	switch field[3] {
	case 's':
		perms |= PermShared
	case 'p':
		perms |= PermPrivate
	}
	return perms, true
}

func (p Permissions) Has(other Permissions) bool {
	return p&other == other
}

// Accessible reports whether any of read, write or execute is granted.
func (p Permissions) Accessible() bool {
	return p&permRWX != 0
}

func (p Permissions) String() string {
	b := []byte("----")
	if p.Has(PermRead) {
		b[0] = 'r'
	}
	if p.Has(PermWrite) {
		b[1] = 'w'
	}
	if p.Has(PermExecute) {
		b[2] = 'x'
	}
	if p.Has(PermShared) {
		b[3] = 's'
	} else if p.Has(PermPrivate) {
		b[3] = 'p'
	}
	return string(b)
}

// Protector changes the protection of whole pages.
type Protector interface {
	Protect(page uintptr, length uintptr, perms Permissions) error
}

type osProtector struct{}

func (osProtector) Protect(page uintptr, length uintptr, perms Permissions) error {
	return setMemoryProtection(page, length, perms)
}

// Unprotect the pages covering a region, perform an operation, and then
// restore the old protection. The old protection has to be supplied since
// it can't be queried from the OS. The restore also runs when the operation
// panics, and its result is handed to restored.
func applyToProtectedMemory(protector Protector, pageSize uintptr, address uintptr, length uintptr,
	oldPerms Permissions, operation func(), restored func(error)) (err error) {

	mask := ^(pageSize - 1)
	page := address & mask
	span := ((address + length + pageSize - 1) & mask) - page
	if err = protector.Protect(page, span, oldPerms|PermWrite); err != nil {
		return
	}
	defer func() {
		restored(protector.Protect(page, span, oldPerms))
	}()

	operation()
	return
}

// WordMemory loads and stores 64-bit words at raw addresses.
type WordMemory interface {
	Load(address uintptr) uint64
	Store(address uintptr, value uint64)
}

type liveMemory struct{}

func (liveMemory) Load(address uintptr) uint64 {
	return *wordAtAddress(address)
}

func (liveMemory) Store(address uintptr, value uint64) {
	*wordAtAddress(address) = value
}

func wordAtAddress(address uintptr) *uint64 {
	return (*uint64)(unsafe.Pointer(address))
}

// SliceAtAddress returns a byte slice backed by the memory at address.
func SliceAtAddress(address uintptr, length int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(address)), length)
}

// GetSliceAddr returns the address of a slice's backing array.
func GetSliceAddr(slice []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(slice)))
}
