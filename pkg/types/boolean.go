package types

import (
	"fmt"
	"strings"
)

// ParseBit parses a BIT literal. Accepted forms are true/false, 1/0 and
// yes/no, case-insensitive.
func ParseBit(literal string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(literal)) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bit literal %q", literal)
	}
}

// PutBit writes v as one byte.
func PutBit(dst []byte, v bool) {
	if v {
		dst[0] = 1
		return
	}
	dst[0] = 0
}

// Bit reads a BIT value. Any non-zero byte is true.
func Bit(src []byte) bool {
	return src[0] != 0
}
