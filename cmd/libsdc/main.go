// Command libsdc is the injector packaged as a preload library:
//
//	go build -buildmode=c-shared -o libsdc.so ./cmd/libsdc
//	LD_PRELOAD=./libsdc.so SDC_DELAY=10 SDC_MEMTYPE=heap ./app
//
// The injector is attached when the library is loaded and detached by a
// destructor when the process exits normally. Problems are only reported on
// the SDC_DEBUG channel; the host never sees them.
package main

import "C"

import (
	sdc "github.com/kstenerud/go-sdc"
)

func init() {
	_, _ = sdc.AttachFromEnv()
}

//export sdcDetach
func sdcDetach() {
	_ = sdc.DetachDefault()
}

func main() {}
