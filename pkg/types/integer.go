package types

import (
	"encoding/binary"
	"strconv"
	"strings"
)

// ParseInt parses an INT literal.
func ParseInt(literal string) (int32, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(literal), 10, 32)
	if err != nil {
		return 0, err
	}
	return int32(v), nil
}

// PutInt writes v into the first IntSize bytes of dst.
func PutInt(dst []byte, v int32) {
	binary.LittleEndian.PutUint32(dst, uint32(v)) // #nosec G115
}

// Int reads an INT value from the first IntSize bytes of src.
func Int(src []byte) int32 {
	return int32(binary.LittleEndian.Uint32(src)) // #nosec G115
}
