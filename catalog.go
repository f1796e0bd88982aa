package sdc

import (
	"bufio"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/prometheus/procfs"
	"go.uber.org/zap"
)

// DefaultSkipModules hides the preload library from its own catalog.
var DefaultSkipModules = []string{"libsdc.so"}

// Totals holds the byte count of every aggregate the catalog tracks.
type Totals struct {
	All     uint64
	Read    uint64
	Write   uint64
	Code    uint64
	AppData uint64
	Heap    uint64
	Stack   uint64
}

// For returns the total that matches a category.
func (t Totals) For(category Category) uint64 {
	switch category {
	case CategoryAll:
		return t.All
	case CategoryData:
		return t.Write
	case CategoryCode:
		return t.Code
	case CategoryAppData:
		return t.AppData
	case CategoryHeap:
		return t.Heap
	case CategoryStack:
		return t.Stack
	}
	return 0
}

// Catalog is an in-memory model of a process's memory map. It is rebuilt
// wholesale on every Refresh or Load and is not safe for concurrent use.
type Catalog struct {
	segments    []Segment
	totals      Totals
	appName     string
	skipModules []string
	pageSize    uint64
	procMount   string
	logger      *zap.Logger
}

type CatalogOption func(*Catalog)

// WithSkipModules sets the module names that never enter the catalog.
func WithSkipModules(names ...string) CatalogOption {
	return func(c *Catalog) {
		c.skipModules = names
	}
}

// WithCatalogPageSize overrides the page size used to clamp refined segments.
func WithCatalogPageSize(size uint64) CatalogOption {
	return func(c *Catalog) {
		c.pageSize = size
	}
}

// WithProcMount reads process information from a procfs mounted elsewhere.
func WithProcMount(mountPoint string) CatalogOption {
	return func(c *Catalog) {
		c.procMount = mountPoint
	}
}

func WithCatalogLogger(logger *zap.Logger) CatalogOption {
	return func(c *Catalog) {
		c.logger = logger
	}
}

func NewCatalog(options ...CatalogOption) *Catalog {
	c := &Catalog{
		skipModules: DefaultSkipModules,
		pageSize:    uint64(pageSize),
		procMount:   procfs.DefaultMountPoint,
		logger:      zap.NewNop(),
	}
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *Catalog) Segments() []Segment {
	return c.segments
}

func (c *Catalog) Totals() Totals {
	return c.totals
}

func (c *Catalog) Total(category Category) uint64 {
	return c.totals.For(category)
}

// AppName is the name taken to be the main application image: the first
// named mapping in the report.
func (c *Catalog) AppName() string {
	return c.appName
}

// Destroy drops every segment and zeroes the totals.
func (c *Catalog) Destroy() {
	c.segments = nil
	c.totals = Totals{}
	c.appName = ""
}

// Matches reports whether a segment belongs to a category. The same
// predicate drives the totals and the sampler walk.
func (c *Catalog) Matches(category Category, seg *Segment) bool {
	if !seg.Perms.Accessible() {
		return false
	}
	writable := seg.Perms.Has(PermWrite)
	switch category {
	case CategoryAll:
		return true
	case CategoryData:
		return writable
	case CategoryCode:
		return seg.Perms.Has(PermExecute)
	case CategoryAppData:
		return writable && c.appName != "" && seg.Name == c.appName
	case CategoryHeap:
		return writable && seg.Name == heapName
	case CategoryStack:
		return writable && seg.Name == stackName
	}
	return false
}

// Locate maps an offset into the concatenation of all segments of a
// category onto the segment holding it and the offset inside that segment.
func (c *Catalog) Locate(category Category, offset uint64) (seg *Segment, within uint64, ok bool) {
	var preceding uint64
	for i := range c.segments {
		candidate := &c.segments[i]
		if !c.Matches(category, candidate) {
			continue
		}
		size := candidate.Size()
		if offset < preceding+size {
			return candidate, offset - preceding, true
		}
		preceding += size
	}
	return nil, 0, false
}

// SegmentFor returns the segment holding address, or nil.
func (c *Catalog) SegmentFor(address uintptr) *Segment {
	i := sort.Search(len(c.segments), func(i int) bool {
		return c.segments[i].End > address
	})
	if i < len(c.segments) && c.segments[i].Contains(address) {
		return &c.segments[i]
	}
	return nil
}

func (c *Catalog) recount() {
	c.totals = Totals{}
	for i := range c.segments {
		seg := &c.segments[i]
		if !seg.Perms.Accessible() {
			continue
		}
		size := seg.Size()
		c.totals.All += size
		if seg.Perms.Has(PermRead) {
			c.totals.Read += size
		}
		if c.Matches(CategoryData, seg) {
			c.totals.Write += size
		}
		if c.Matches(CategoryCode, seg) {
			c.totals.Code += size
		}
		if c.Matches(CategoryAppData, seg) {
			c.totals.AppData += size
		}
		if c.Matches(CategoryHeap, seg) {
			c.totals.Heap += size
		}
		if c.Matches(CategoryStack, seg) {
			c.totals.Stack += size
		}
	}
}

func (c *Catalog) isSkipped(name string) bool {
	for _, skip := range c.skipModules {
		if skip != "" && strings.Contains(name, skip) {
			return true
		}
	}
	return false
}

func (c *Catalog) add(seg Segment) {
	if c.appName == "" && seg.Name != anonymousName && seg.Perms.Accessible() {
		c.appName = seg.Name
	}
	c.segments = append(c.segments, seg)
}

// Load replaces the catalog with the regions of an smaps report.
// Based on the format of /proc/[pid]/smaps from
// https://man7.org/linux/man-pages/man5/proc.5.html
func (c *Catalog) Load(r io.Reader) error {
	c.Destroy()

	var (
		current    Segment
		pending    bool
		skipping   bool
		declaredKB uint64
		residentKB uint64
		haveSizes  int
	)
	flush := func() {
		if !pending {
			return
		}
		if haveSizes == 2 {
			current.DeclaredSize = declaredKB * 1024
			current.ResidentSize = residentKB * 1024
			c.refine(&current, declaredKB, residentKB)
		} else {
			current.DeclaredSize = current.Size()
			current.ResidentSize = current.Size()
		}
		c.add(current)
		pending = false
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if begin, end, isHeader := parseAddressRange(fields[0]); isHeader {
			flush()
			c.logger.Debug("maps line", zap.String("line", line))
			seg, ok := parseHeader(begin, end, fields)
			if !ok {
				skipping = true
				continue
			}
			if c.isSkipped(seg.Name) {
				c.logger.Debug("skipping module", zap.String("name", seg.Name))
				skipping = true
				continue
			}
			current, pending, skipping = seg, true, false
			declaredKB, residentKB, haveSizes = 0, 0, 0
			continue
		}
		if skipping || !pending {
			continue
		}
		switch fields[0] {
		case "Size:":
			if v, ok := parseKB(fields); ok {
				declaredKB = v
				haveSizes++
			}
		case "Rss:":
			if v, ok := parseKB(fields); ok {
				residentKB = v
				haveSizes++
			}
		}
	}
	flush()
	c.recount()
	return scanner.Err()
}

// refine shrinks a segment towards its resident portion. Stacks keep their
// top, heaps keep their bottom, code is left alone, and anything else is
// only shrunk when less than a quarter of it is resident.
func (c *Catalog) refine(seg *Segment, declaredKB, residentKB uint64) {
	if residentKB >= declaredKB {
		return
	}
	size := seg.Size()
	keep := residentKB * 1024
	minimum := c.pageSize
	if minimum == 0 || minimum > size {
		minimum = size
	}
	if keep < minimum {
		keep = minimum
	}
	if keep > size {
		keep = size
	}

	switch {
	case strings.Contains(seg.Name, stackName):
		seg.Begin = seg.End - uintptr(keep)
	case seg.Perms.Has(PermExecute):
	case strings.Contains(seg.Name, heapName):
		seg.End = seg.Begin + uintptr(keep)
	case residentKB < declaredKB/4:
		seg.End = seg.Begin + uintptr(keep)
	}
}

func parseAddressRange(field string) (begin, end uintptr, ok bool) {
	dash := strings.IndexByte(field, '-')
	if dash <= 0 {
		return
	}
	b, err := strconv.ParseUint(field[:dash], 16, 64)
	if err != nil {
		return
	}
	e, err := strconv.ParseUint(field[dash+1:], 16, 64)
	if err != nil {
		return
	}
	return uintptr(b), uintptr(e), true
}

// parseHeader decodes "begin-end perms offset dev inode [name]". Only the
// range, permissions and offset are required.
func parseHeader(begin, end uintptr, fields []string) (seg Segment, ok bool) {
	if len(fields) < 3 || begin >= end {
		return
	}
	perms, ok := ParsePermissions(fields[1])
	if !ok {
		return
	}
	offset, err := strconv.ParseUint(fields[2], 16, 64)
	if err != nil {
		return seg, false
	}
	name := anonymousName
	if len(fields) > 5 {
		name = strings.Join(fields[5:], " ")
	}
	return Segment{
		Begin:  begin,
		End:    end,
		Perms:  perms,
		Offset: offset,
		Name:   name,
	}, true
}

func parseKB(fields []string) (uint64, bool) {
	if len(fields) < 2 {
		return 0, false
	}
	v, err := strconv.ParseUint(fields[1], 10, 64)
	return v, err == nil
}

// Dump writes the catalog to the logger. Segments are only listed when
// withSegments is set.
func (c *Catalog) Dump(logger *zap.Logger, withSegments bool) {
	if withSegments {
		for i := range c.segments {
			seg := &c.segments[i]
			logger.Info("segment",
				zap.String("begin", hexAddr(seg.Begin)),
				zap.String("end", hexAddr(seg.End)),
				zap.Stringer("perms", seg.Perms),
				zap.String("name", seg.Name))
		}
	}
	logger.Info("memory totals",
		zap.Uint64("all", c.totals.All),
		zap.Uint64("read", c.totals.Read),
		zap.Uint64("write", c.totals.Write),
		zap.Uint64("code", c.totals.Code),
		zap.Uint64("appdata", c.totals.AppData),
		zap.Uint64("heap", c.totals.Heap),
		zap.Uint64("stack", c.totals.Stack))
}

func hexAddr(address uintptr) string {
	return "0x" + strconv.FormatUint(uint64(address), 16)
}
