//go:build !linux

package sdc

import (
	"runtime"

	"github.com/pkg/errors"
)

// Refresh is only supported where the kernel exposes /proc/<pid>/smaps.
func (c *Catalog) Refresh(pid int) error {
	return errors.Wrapf(ErrMapsUnavailable, "no memory map source on %s", runtime.GOOS)
}
