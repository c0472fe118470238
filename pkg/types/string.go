package types

import "encoding/binary"

// LengthPrefixSize is the size of the length prefix of variable-length values.
const LengthPrefixSize = 4

// PutLength writes a variable-length prefix.
func PutLength(dst []byte, n uint32) {
	binary.LittleEndian.PutUint32(dst, n)
}

// Length reads a variable-length prefix.
func Length(src []byte) uint32 {
	return binary.LittleEndian.Uint32(src)
}
