//go:build !windows

package sdc

import (
	"golang.org/x/sys/unix"
)

var pageSize = unix.Getpagesize()
var pageBeginMask = ^uintptr(pageSize - 1)

// PageSize is the system page size.
func PageSize() int {
	return pageSize
}

func protToOS(perms Permissions) (prot int) {
	if perms.Has(PermRead) {
		prot |= unix.PROT_READ
	}
	if perms.Has(PermWrite) {
		prot |= unix.PROT_WRITE
	}
	if perms.Has(PermExecute) {
		prot |= unix.PROT_EXEC
	}
	return
}

func setMemoryProtection(address uintptr, length uintptr, perms Permissions) (err error) {
	end := address + length
	for pageStart := address & pageBeginMask; pageStart < end; pageStart += uintptr(pageSize) {
		page := SliceAtAddress(pageStart, pageSize)
		if err = unix.Mprotect(page, protToOS(perms)); err != nil {
			return
		}
	}
	return
}
