package primitives

import (
	"fmt"

	"github.com/google/uuid"
)

// DatabaseID identifies a database. It is stored on disk as a 16-byte GUID.
type DatabaseID = uuid.UUID

// SchemaID identifies a schema namespace. It is stored on disk as a 16-byte GUID.
type SchemaID = uuid.UUID

// TableID identifies a table within a database.
type TableID uint32

// PageID identifies a page within a table.
type PageID uint32

// RowID identifies a row within a table. Row id 0 is never assigned; a
// zero id on a page marks the end of the row data.
type RowID uint32

// Offset is a byte offset within a page.
type Offset uint32

// ColumnOrdinal is the declaration position of a column within its table.
type ColumnOrdinal uint32

// LSN is the byte offset of a transaction entry in its log file.
type LSN uint64

// HashCode represents a hash value used for fast comparisons or lookups.
type HashCode uint64

// Sentinel values for invalid/unset identifiers. Offset 0 lies inside the
// page header, so no row is ever stored there.
const (
	InvalidRowID  RowID  = 0
	InvalidOffset Offset = 0
)

// IsValid reports whether the row id can identify a stored row.
func (r RowID) IsValid() bool {
	return r != InvalidRowID
}

func (r RowID) String() string {
	return fmt.Sprintf("RowID(%d)", uint32(r))
}

func (p PageID) String() string {
	return fmt.Sprintf("PageID(%d)", uint32(p))
}

func (t TableID) String() string {
	return fmt.Sprintf("TableID(%d)", uint32(t))
}
