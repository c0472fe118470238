package types

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseDecimal parses a DECIMAL literal. NaN and infinities are rejected.
func ParseDecimal(literal string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(literal), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid decimal literal %q", literal)
	}
	return v, nil
}

// PutDecimal writes v as IEEE-754 double bits.
func PutDecimal(dst []byte, v float64) {
	binary.LittleEndian.PutUint64(dst, math.Float64bits(v))
}

// Decimal reads a DECIMAL value.
func Decimal(src []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(src))
}

// FormatDecimal renders v with the shortest representation that round-trips.
func FormatDecimal(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
