package sdc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoadSkipsOwnModule(t *testing.T) {
	catalog := loadCatalog(t, sampleSmaps)

	require.Len(t, catalog.Segments(), 10)
	for _, seg := range catalog.Segments() {
		assert.NotContains(t, seg.Name, "libsdc.so")
	}
	assert.Nil(t, catalog.SegmentFor(0x7f0000300000))
	assert.Nil(t, catalog.SegmentFor(0x7f0000302000))
}

func TestLoadTotals(t *testing.T) {
	catalog := loadCatalog(t, sampleSmaps)
	totals := catalog.Totals()

	assert.Equal(t, uint64(524288), totals.All)
	assert.Equal(t, uint64(524288), totals.Read)
	assert.Equal(t, uint64(491520), totals.Write)
	assert.Equal(t, uint64(24576), totals.Code)
	assert.Equal(t, uint64(8192), totals.AppData)
	assert.Equal(t, uint64(262144), totals.Heap)
	assert.Equal(t, uint64(16384), totals.Stack)
	assert.Equal(t, "/usr/bin/app", catalog.AppName())
}

func TestTotalsMatchPredicates(t *testing.T) {
	for _, smaps := range []string{sampleSmaps, twoSegmentSmaps, ""} {
		catalog := loadCatalog(t, smaps)
		for _, category := range Categories {
			assert.Equal(t, sumMatching(catalog, category), catalog.Total(category), "%v", category)
		}
	}
}

func TestLoadRefinesResidentSize(t *testing.T) {
	catalog := loadCatalog(t, sampleSmaps)

	cases := []struct {
		name  string
		at    uintptr
		begin uintptr
		end   uintptr
	}{
		{"stack keeps its top", 0x7ffc00020000, 0x7ffc0001d000, 0x7ffc00021000},
		{"heap keeps its bottom", 0x55d0c1000000, 0x55d0c1000000, 0x55d0c1040000},
		{"code is left alone", 0x55d0c0a02000, 0x55d0c0a02000, 0x55d0c0a06000},
		{"sparse shared pool shrinks", 0x7f0000000000, 0x7f0000000000, 0x7f0000020000},
		{"half resident anonymous stays", 0x7f0000100000, 0x7f0000100000, 0x7f0000110000},
	}
	for _, c := range cases {
		seg := catalog.SegmentFor(c.at)
		require.NotNil(t, seg, c.name)
		assert.Equal(t, c.begin, seg.Begin, c.name)
		assert.Equal(t, c.end, seg.End, c.name)
	}

	stack := catalog.SegmentFor(0x7ffc00020000)
	assert.Equal(t, uint64(132*1024), stack.DeclaredSize)
	assert.Equal(t, uint64(16*1024), stack.ResidentSize)
}

func TestRefineNeverInverts(t *testing.T) {
	smaps := `7ffc00000000-7ffc00021000 rw-p 00000000 00:00 0 [stack]
Size: 132 kB
Rss: 0 kB
55d0c1000000-55d0c1100000 rw-p 00000000 00:00 0 [heap]
Size: 1024 kB
Rss: 0 kB
7f0000000000-7f0000100000 rw-s 00000000 00:05 99 /dev/shm/pool
Size: 1024 kB
Rss: 0 kB
`
	catalog := loadCatalog(t, smaps)
	require.Len(t, catalog.Segments(), 3)
	for _, seg := range catalog.Segments() {
		assert.Less(t, seg.Begin, seg.End, seg.Name)
		assert.Equal(t, uint64(testPageSize), seg.Size(), seg.Name)
	}
}

func TestInaccessibleSegmentIsKeptButNotCounted(t *testing.T) {
	catalog := loadCatalog(t, sampleSmaps)

	guard := catalog.SegmentFor(0x7f0000200000)
	require.NotNil(t, guard)
	assert.Equal(t, "---p", guard.Perms.String())
	assert.Equal(t, anonymousName, guard.Name)
	for _, category := range Categories {
		assert.False(t, catalog.Matches(category, guard), "%v", category)
	}
}

func TestLoadSkipsMalformedLines(t *testing.T) {
	smaps := `not a header at all
zzzz-00401000 rw-p 00000000 08:01 42 /bin/bad
00400000-00401000 rw 00000000 08:01 42 /bin/bad
00400000-00401000 rw-p
Size: 4 kB
00500000-00400000 rw-p 00000000 08:01 42 /bin/bad
00600000-00602000 rw-p 00001000 08:01 42 /bin/app
Size: 8 kB
Rss: 8 kB
`
	catalog := loadCatalog(t, smaps)
	require.Len(t, catalog.Segments(), 1)
	assert.Equal(t, "/bin/app", catalog.Segments()[0].Name)
	assert.Equal(t, uint64(8192), catalog.Totals().All)
}

func TestLoadWithoutSizeLines(t *testing.T) {
	smaps := `00400000-00404000 rw-p 00000000 08:01 42 /bin/app
00600000-00602000 r-xp 00001000 08:01 42 /bin/app
`
	catalog := loadCatalog(t, smaps)
	require.Len(t, catalog.Segments(), 2)
	assert.Equal(t, uint64(0x4000), catalog.Segments()[0].Size())
	assert.Equal(t, uint64(0x4000), catalog.Segments()[0].DeclaredSize)
	assert.Equal(t, uint64(0x6000), catalog.Totals().All)
}

func TestLoadReplacesPreviousCatalog(t *testing.T) {
	catalog := loadCatalog(t, sampleSmaps)
	require.NoError(t, catalog.Load(strings.NewReader(twoSegmentSmaps)))

	require.Len(t, catalog.Segments(), 2)
	assert.Equal(t, "/bin/app", catalog.AppName())
	assert.Equal(t, uint64(12288), catalog.Totals().All)
	assert.Zero(t, catalog.Totals().Heap)

	catalog.Destroy()
	assert.Empty(t, catalog.Segments())
	assert.Equal(t, Totals{}, catalog.Totals())
}

func TestCustomSkipModules(t *testing.T) {
	catalog := NewCatalog(WithCatalogPageSize(testPageSize), WithSkipModules("libc.so"))
	require.NoError(t, catalog.Load(strings.NewReader(sampleSmaps)))

	assert.Nil(t, catalog.SegmentFor(0x7f0000400000))
	assert.NotNil(t, catalog.SegmentFor(0x7f0000300000))
}

func TestLocateWalksCategorySegments(t *testing.T) {
	catalog := loadCatalog(t, twoSegmentSmaps)

	seg, within, ok := catalog.Locate(CategoryAppData, 5000)
	require.True(t, ok)
	assert.Equal(t, uintptr(0x600000), seg.Begin)
	assert.Equal(t, uint64(904), within)

	seg, within, ok = catalog.Locate(CategoryAppData, 4095)
	require.True(t, ok)
	assert.Equal(t, uintptr(0x400000), seg.Begin)
	assert.Equal(t, uint64(4095), within)

	_, _, ok = catalog.Locate(CategoryAppData, 12288)
	assert.False(t, ok)
	_, _, ok = catalog.Locate(CategoryHeap, 0)
	assert.False(t, ok)
}

func TestParsePermissions(t *testing.T) {
	cases := []struct {
		field string
		perms Permissions
		ok    bool
	}{
		{"r-xp", PermRead | PermExecute | PermPrivate, true},
		{"rw-s", PermRead | PermWrite | PermShared, true},
		{"---p", PermPrivate, true},
		{"rwx", PermNone, false},
		{"rwxpp", PermNone, false},
	}
	for _, c := range cases {
		perms, ok := ParsePermissions(c.field)
		assert.Equal(t, c.ok, ok, c.field)
		assert.Equal(t, c.perms, perms, c.field)
		if ok {
			assert.Equal(t, c.field, perms.String())
		}
	}
}

func TestDumpListsSegmentsAndTotals(t *testing.T) {
	catalog := loadCatalog(t, sampleSmaps)
	core, logs := observer.New(zap.InfoLevel)

	catalog.Dump(zap.New(core), true)

	segments := logs.FilterMessage("segment").All()
	require.Len(t, segments, len(catalog.Segments()))
	first := segments[0].ContextMap()
	assert.Equal(t, "0x55d0c0a00000", first["begin"])
	assert.Equal(t, "0x55d0c0a02000", first["end"])
	assert.Equal(t, "r--p", first["perms"])
	assert.Equal(t, "/usr/bin/app", first["name"])

	totals := logs.FilterMessage("memory totals").All()
	require.Len(t, totals, 1)
	fields := totals[0].ContextMap()
	assert.Equal(t, uint64(524288), fields["all"])
	assert.Equal(t, uint64(491520), fields["write"])
	assert.Equal(t, uint64(16384), fields["stack"])
	assert.Equal(t, len(catalog.Segments())+1, logs.Len())
}

func TestDumpTotalsOnly(t *testing.T) {
	catalog := loadCatalog(t, twoSegmentSmaps)
	core, logs := observer.New(zap.InfoLevel)

	catalog.Dump(zap.New(core), false)

	assert.Equal(t, 0, logs.FilterMessage("segment").Len())
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, uint64(12288), logs.All()[0].ContextMap()["appdata"])
}
