//go:build !windows

package main

import (
	"fmt"
	"io"

	"golang.org/x/sys/unix"

	sdc "github.com/kstenerud/go-sdc"
)

func selftest(out io.Writer) (err error) {
	page, err := unix.Mmap(-1, 0, sdc.PageSize(), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return
	}
	defer func() {
		if unmapErr := unix.Munmap(page); err == nil {
			err = unmapErr
		}
	}()
	copy(page, "read-only data page")
	if err = unix.Mprotect(page, unix.PROT_READ); err != nil {
		return
	}

	catalog := sdc.NewCatalog()
	if err = catalog.Refresh(0); err != nil {
		return
	}
	writer := sdc.NewWriter()

	code, err := sdc.FunctionAddress(selftestProbe)
	if err != nil {
		return
	}
	if err = flipTwice(out, catalog, writer, "code", code); err != nil {
		return
	}
	if got := selftestProbe(); got != 0x5dc {
		return fmt.Errorf("probe returned %#x after restoring its code", got)
	}

	if err = flipTwice(out, catalog, writer, "data", sdc.GetSliceAddr(page)); err != nil {
		return
	}
	if string(page[:19]) != "read-only data page" {
		return fmt.Errorf("data page reads %q after restoring it", page[:19])
	}
	return
}
