package types

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"
)

// DATETIME values are stored as Unix nanoseconds, which bounds them to
// MinDateTime..MaxDateTime.
var (
	MinDateTime = time.Unix(0, math.MinInt64).UTC()
	MaxDateTime = time.Unix(0, math.MaxInt64).UTC()
)

// DateTimeLayouts are the literal layouts accepted by ParseDateTime, tried in order.
var DateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseDateTime parses a DATETIME literal. Values without a zone are UTC.
func ParseDateTime(literal string) (time.Time, error) {
	s := strings.TrimSpace(literal)
	for _, layout := range DateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), CheckDateTime(t)
		}
	}
	return time.Time{}, fmt.Errorf("invalid datetime literal %q", literal)
}

// CheckDateTime fails when v cannot be stored as Unix nanoseconds.
func CheckDateTime(v time.Time) error {
	if v.Before(MinDateTime) || v.After(MaxDateTime) {
		return fmt.Errorf("datetime %s is outside %s..%s",
			v.UTC().Format(time.RFC3339), MinDateTime.Format(time.RFC3339Nano), MaxDateTime.Format(time.RFC3339Nano))
	}
	return nil
}

// PutDateTime writes v as Unix nanoseconds (UTC). v must pass CheckDateTime.
func PutDateTime(dst []byte, v time.Time) {
	binary.LittleEndian.PutUint64(dst, uint64(v.UTC().UnixNano())) // #nosec G115
}

// DateTime reads a DATETIME value in UTC.
func DateTime(src []byte) time.Time {
	return time.Unix(0, int64(binary.LittleEndian.Uint64(src))).UTC() // #nosec G115
}

// FormatDateTime renders v in RFC 3339 with nanoseconds.
func FormatDateTime(v time.Time) string {
	return v.UTC().Format(time.RFC3339Nano)
}
