package sdc

import (
	"golang.org/x/arch/x86/x86asm"
)

const maxInstructionLength = 15

func decodeInstruction(code []byte, address uintptr) string {
	inst, err := x86asm.Decode(code, 64)
	if err != nil {
		return ""
	}
	return x86asm.GNUSyntax(inst, uint64(address), nil)
}
