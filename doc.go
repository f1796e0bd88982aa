// Package sdc injects a silent data corruption into the running process:
// after a delay it picks one 64-bit word from a chosen category of the
// process's mapped memory and flips one bit of it.
//
// The memory map is read from /proc/<pid>/smaps. Segments are trimmed to
// their resident portion where the kernel reports less resident memory than
// was mapped, so that sparse regions don't soak up most of the draws. Words
// on read-only or executable pages are written by lifting the page's
// protection for the duration of the write.
//
// There is exactly one injection per attached Injector. What the corrupted
// word was used for is not considered: the injector can and will corrupt
// the Go runtime, the injector itself, or anything else mapped in the
// selected category. The host process crashing is a legitimate outcome.
//
// YOU HAVE BEEN WARNED!
package sdc
