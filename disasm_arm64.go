package sdc

import (
	"golang.org/x/arch/arm64/arm64asm"
)

const maxInstructionLength = 4

func decodeInstruction(code []byte, _ uintptr) string {
	inst, err := arm64asm.Decode(code)
	if err != nil {
		return ""
	}
	return arm64asm.GNUSyntax(inst)
}
