package sdc

import (
	"os"

	"golang.org/x/sys/windows"
)

var pageSize = os.Getpagesize()
var pageBeginMask = ^uintptr(pageSize - 1)

// PageSize is the system page size.
func PageSize() int {
	return pageSize
}

// https://docs.microsoft.com/en-us/windows/win32/memory/memory-protection-constants
func protToOS(perms Permissions) uint32 {
	switch perms & permRWX {
	case PermRead:
		return windows.PAGE_READONLY
	case PermRead | PermWrite, PermWrite:
		return windows.PAGE_READWRITE
	case PermExecute:
		return windows.PAGE_EXECUTE
	case PermRead | PermExecute:
		return windows.PAGE_EXECUTE_READ
	case PermRead | PermWrite | PermExecute, PermWrite | PermExecute:
		return windows.PAGE_EXECUTE_READWRITE
	}
	return windows.PAGE_NOACCESS
}

func setMemoryProtection(address uintptr, length uintptr, perms Permissions) error {
	var oldProtection uint32
	return windows.VirtualProtect(address, length, protToOS(perms), &oldProtection)
}
