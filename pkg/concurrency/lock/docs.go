// Package lock describes the locks a caller must hold before it mutates
// pages and rows.
//
// The storage engine never takes locks itself. The planner produces
// [LockObjectRequest] descriptors, one per object a statement touches, and
// the executor acquires them in the order given by [SortForAcquisition].
// Every caller that sorts the same set of requests gets the same order,
// which keeps two statements from waiting on each other.
//
// Two lock modes are supported:
//
//   - [SharedLock] is required to read and is compatible with other shared locks.
//   - [ExclusiveLock] is required to write and conflicts with every other lock.
//
// Objects nest: a database contains its tables, a table its pages, a page
// its rows. A lock on an object also covers everything inside it, so two
// requests conflict when one object contains the other and at least one of
// them is exclusive.
//
// How long an executor waits for a lock is bounded by [Timeouts], loaded
// from the lock section of the configuration.
package lock
