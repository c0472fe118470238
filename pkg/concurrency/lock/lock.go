package lock

import (
	"bytes"
	"cmp"
	"fmt"
	"slices"
	"time"

	"pagedb/pkg/primitives"
)

type LockType int

const (
	SharedLock LockType = iota
	ExclusiveLock
)

func (t LockType) String() string {
	switch t {
	case SharedLock:
		return "shared"
	case ExclusiveLock:
		return "exclusive"
	default:
		return fmt.Sprintf("LockType(%d)", int(t))
	}
}

// Level is the granularity of a locked object.
type Level int

const (
	DatabaseLevel Level = iota
	TableLevel
	PageLevel
	RowLevel
)

func (l Level) String() string {
	switch l {
	case DatabaseLevel:
		return "database"
	case TableLevel:
		return "table"
	case PageLevel:
		return "page"
	case RowLevel:
		return "row"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// LockObjectRequest asks for a lock on one object. Only the address fields
// down to Level are significant. OrderNumber is the position the planner
// assigned to the request; it takes precedence over the address when
// sorting.
type LockObjectRequest struct {
	Address     primitives.SQLAddress
	Level       Level
	Type        LockType
	OrderNumber uint32
}

// NewTableRequest requests a lock on a whole table.
func NewTableRequest(db primitives.DatabaseID, table primitives.TableID, lockType LockType, order uint32) LockObjectRequest {
	return LockObjectRequest{
		Address:     primitives.SQLAddress{DatabaseID: db, TableID: table},
		Level:       TableLevel,
		Type:        lockType,
		OrderNumber: order,
	}
}

// NewPageRequest requests a lock on one page.
func NewPageRequest(addr primitives.PageAddress, lockType LockType, order uint32) LockObjectRequest {
	return LockObjectRequest{
		Address:     primitives.SQLAddress{DatabaseID: addr.DatabaseID, TableID: addr.TableID, PageID: addr.PageID},
		Level:       PageLevel,
		Type:        lockType,
		OrderNumber: order,
	}
}

// NewRowRequest requests a lock on one row.
func NewRowRequest(addr primitives.RowAddress, lockType LockType, order uint32) LockObjectRequest {
	return LockObjectRequest{
		Address: primitives.SQLAddress{
			DatabaseID: addr.DatabaseID,
			TableID:    addr.TableID,
			PageID:     addr.PageID,
			RowID:      addr.RowID,
		},
		Level:       RowLevel,
		Type:        lockType,
		OrderNumber: order,
	}
}

// Object returns the address of the locked object with every field below
// the request's level cleared.
func (r LockObjectRequest) Object() primitives.SQLAddress {
	a := primitives.SQLAddress{DatabaseID: r.Address.DatabaseID}
	if r.Level >= TableLevel {
		a.TableID = r.Address.TableID
	}
	if r.Level >= PageLevel {
		a.PageID = r.Address.PageID
	}
	if r.Level >= RowLevel {
		a.RowID = r.Address.RowID
	}
	return a
}

// Contains reports whether the object of r is, or encloses, the object of
// other.
func (r LockObjectRequest) Contains(other LockObjectRequest) bool {
	if r.Level > other.Level {
		return false
	}
	outer, inner := r.Object(), other.Object()
	switch r.Level {
	case DatabaseLevel:
		return outer.DatabaseID == inner.DatabaseID
	case TableLevel:
		return outer.DatabaseID == inner.DatabaseID && outer.TableID == inner.TableID
	case PageLevel:
		return outer.ToPageAddress() == inner.ToPageAddress()
	default:
		return outer == inner
	}
}

// Conflicts reports whether r and other cannot be held at the same time by
// different callers.
func (r LockObjectRequest) Conflicts(other LockObjectRequest) bool {
	if r.Type == SharedLock && other.Type == SharedLock {
		return false
	}
	return r.Contains(other) || other.Contains(r)
}

func (r LockObjectRequest) String() string {
	o := r.Object()
	return fmt.Sprintf("%s lock on %s(db=%s, table=%d, page=%d, row=%d) #%d",
		r.Type, r.Level, o.DatabaseID, o.TableID, o.PageID, o.RowID, r.OrderNumber)
}

// SortForAcquisition returns the requests in the order they must be
// acquired: by order number, then coarser objects before finer ones, then
// by address. Requests for the same object are merged into one, keeping
// the lowest order number and the strongest lock type.
func SortForAcquisition(requests []LockObjectRequest) []LockObjectRequest {
	merged := make(map[objectKey]LockObjectRequest, len(requests))
	for _, r := range requests {
		k := objectKey{level: r.Level, addr: r.Object()}
		cur, ok := merged[k]
		if !ok {
			r.Address = k.addr
			merged[k] = r
			continue
		}
		cur.OrderNumber = min(cur.OrderNumber, r.OrderNumber)
		cur.Type = max(cur.Type, r.Type)
		merged[k] = cur
	}

	out := make([]LockObjectRequest, 0, len(merged))
	for _, r := range merged {
		out = append(out, r)
	}
	slices.SortFunc(out, compareRequests)
	return out
}

type objectKey struct {
	level Level
	addr  primitives.SQLAddress
}

func compareRequests(a, b LockObjectRequest) int {
	if c := cmp.Compare(a.OrderNumber, b.OrderNumber); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Level, b.Level); c != 0 {
		return c
	}
	x, y := a.Address, b.Address
	if c := bytes.Compare(x.DatabaseID[:], y.DatabaseID[:]); c != 0 {
		return c
	}
	if c := cmp.Compare(x.TableID, y.TableID); c != 0 {
		return c
	}
	if c := cmp.Compare(x.PageID, y.PageID); c != 0 {
		return c
	}
	return cmp.Compare(x.RowID, y.RowID)
}

// Timeouts bounds how long a caller waits to acquire a lock.
type Timeouts struct {
	Read  time.Duration
	Write time.Duration
}

// For returns the timeout that applies to a lock of the given type.
func (t Timeouts) For(lockType LockType) time.Duration {
	if lockType == ExclusiveLock {
		return t.Write
	}
	return t.Read
}
