//go:build !amd64 && !arm64

package sdc

const maxInstructionLength = 0

func decodeInstruction(code []byte, address uintptr) string {
	return ""
}
