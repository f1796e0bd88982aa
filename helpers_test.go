package sdc

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const testPageSize = 4096

// sampleSmaps is a trimmed smaps report covering every refinement rule.
const sampleSmaps = `55d0c0a00000-55d0c0a02000 r--p 00000000 08:01 1234                       /usr/bin/app
Size:                  8 kB
KernelPageSize:        4 kB
MMUPageSize:           4 kB
Rss:                   8 kB
VmFlags: rd mr mw me dw sd
55d0c0a02000-55d0c0a06000 r-xp 00002000 08:01 1234                       /usr/bin/app
Size:                 16 kB
KernelPageSize:        4 kB
MMUPageSize:           4 kB
Rss:                   4 kB
VmFlags: rd ex mr mw me dw sd
55d0c0a06000-55d0c0a08000 rw-p 00006000 08:01 1234                       /usr/bin/app
Size:                  8 kB
Rss:                   8 kB
55d0c1000000-55d0c1100000 rw-p 00000000 00:00 0                          [heap]
Size:               1024 kB
Rss:                 256 kB
7f0000000000-7f0000100000 rw-s 00000000 00:05 99                         /dev/shm/pool
Size:               1024 kB
Rss:                 128 kB
7f0000100000-7f0000110000 rw-p 00000000 00:00 0
Size:                 64 kB
Rss:                  32 kB
7f0000200000-7f0000201000 ---p 00000000 00:00 0
Size:                  4 kB
Rss:                   0 kB
7f0000300000-7f0000302000 r-xp 00000000 08:01 555                        /opt/lib/libsdc.so
Size:                  8 kB
Rss:                   8 kB
7f0000302000-7f0000304000 rw-p 00002000 08:01 555                        /opt/lib/libsdc.so
Size:                  8 kB
Rss:                   8 kB
7f0000400000-7f0000402000 r-xp 00000000 08:01 777                        /usr/lib/libc.so.6
Size:                  8 kB
Rss:                   8 kB
7f0000402000-7f0000404000 rw-p 00002000 08:01 777                        /usr/lib/libc.so.6
Size:                  8 kB
Rss:                   8 kB
7ffc00000000-7ffc00021000 rw-p 00000000 00:00 0                          [stack]
Size:                132 kB
Rss:                  16 kB
`

// twoSegmentSmaps holds two writable segments of the application image,
// 4096 and 8192 bytes long.
const twoSegmentSmaps = `00400000-00401000 rw-p 00000000 08:01 42 /bin/app
Size: 4 kB
Rss: 4 kB
00600000-00602000 rw-p 00001000 08:01 42 /bin/app
Size: 8 kB
Rss: 8 kB
`

func loadCatalog(t *testing.T, smaps string) *Catalog {
	t.Helper()
	catalog := NewCatalog(WithCatalogPageSize(testPageSize))
	require.NoError(t, catalog.Load(strings.NewReader(smaps)))
	return catalog
}

type fixedRandom struct {
	offset uint64
	bit    int
}

func (r fixedRandom) Uint64N(n uint64) uint64 {
	return r.offset % n
}

func (r fixedRandom) IntN(n int) int {
	return r.bit % n
}

type fakeMemory map[uintptr]uint64

func (m fakeMemory) Load(address uintptr) uint64 {
	return m[address]
}

func (m fakeMemory) Store(address uintptr, value uint64) {
	m[address] = value
}

type protectCall struct {
	page   uintptr
	length uintptr
	perms  Permissions
}

type fakeProtector struct {
	calls []protectCall
	fail  bool
	// failRestore fails every call after the first.
	failRestore bool
}

func (p *fakeProtector) Protect(page uintptr, length uintptr, perms Permissions) error {
	p.calls = append(p.calls, protectCall{page, length, perms})
	if p.fail || (p.failRestore && len(p.calls) > 1) {
		return errors.New("mprotect: permission denied")
	}
	return nil
}

type recordingJournal struct {
	intents  []Record
	outcomes []Record
}

func (j *recordingJournal) Intent(rec *Record) error {
	j.intents = append(j.intents, *rec)
	return nil
}

func (j *recordingJournal) Outcome(rec *Record) error {
	j.outcomes = append(j.outcomes, *rec)
	return nil
}

func sumMatching(catalog *Catalog, category Category) (total uint64) {
	segments := catalog.Segments()
	for i := range segments {
		if catalog.Matches(category, &segments[i]) {
			total += segments[i].Size()
		}
	}
	return
}
