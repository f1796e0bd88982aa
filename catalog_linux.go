package sdc

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	"github.com/prometheus/procfs"
	"go.uber.org/zap"
)

// Refresh rebuilds the catalog from /proc/<pid>/smaps. A pid of 0 means the
// calling process. Kernels without smaps fall back to the plain maps file,
// in which case segments are not refined.
func (c *Catalog) Refresh(pid int) error {
	fs, err := procfs.NewFS(c.procMount)
	if err != nil {
		return errors.Wrapf(ErrMapsUnavailable, "%v", err)
	}

	var proc procfs.Proc
	if pid <= 0 {
		proc, err = fs.Self()
	} else {
		proc, err = fs.Proc(pid)
	}
	if err != nil {
		return errors.Wrapf(ErrMapsUnavailable, "%v", err)
	}

	path := filepath.Join(c.procMount, strconv.Itoa(proc.PID), "smaps")
	f, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return errors.Wrapf(ErrMapsUnavailable, "%v", err)
		}
		c.logger.Debug("no smaps, falling back to maps", zap.Int("pid", proc.PID))
		maps, mapsErr := proc.ProcMaps()
		if mapsErr != nil {
			return errors.Wrapf(ErrMapsUnavailable, "%v", mapsErr)
		}
		c.loadMaps(maps)
		return nil
	}
	defer f.Close()

	if err = c.Load(f); err != nil {
		return errors.Wrapf(ErrMapsUnavailable, "reading %s: %v", path, err)
	}
	return nil
}

// loadMaps replaces the catalog with plain maps entries, which carry no
// residency information.
func (c *Catalog) loadMaps(maps []*procfs.ProcMap) {
	c.Destroy()
	for _, m := range maps {
		name := m.Pathname
		if name == "" {
			name = anonymousName
		}
		if c.isSkipped(name) || m.EndAddr <= m.StartAddr {
			continue
		}
		seg := Segment{
			Begin:  m.StartAddr,
			End:    m.EndAddr,
			Offset: uint64(m.Offset),
			Name:   name,
		}
		if m.Perms != nil {
			seg.Perms = permissionsFromProcfs(m.Perms)
		}
		seg.DeclaredSize = seg.Size()
		seg.ResidentSize = seg.Size()
		c.add(seg)
	}
	c.recount()
}

func permissionsFromProcfs(p *procfs.ProcMapPermissions) (perms Permissions) {
	if p.Read {
		perms |= PermRead
	}
	if p.Write {
		perms |= PermWrite
	}
	if p.Execute {
		perms |= PermExecute
	}
	if p.Shared {
		perms |= PermShared
	}
	if p.Private {
		perms |= PermPrivate
	}
	return
}
