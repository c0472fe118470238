// Package storage is the root of pagedb's page storage layer.
//
// Rows live on fixed-size 8 KB pages that are read and written as atomic
// units. A PageStore persists page buffers keyed by PageAddress; the
// sub-packages provide the pieces around it.
//
// # Sub-packages
//
//   - [pagedb/pkg/storage/page]        – Page header layout, row append,
//     in-place update, forwarding and value scans over one 8 KB buffer.
//   - [pagedb/pkg/storage/pagefile]    – PageStore backed by one OS file per
//     table, page N at offset N*8192.
//   - [pagedb/pkg/storage/sqlitestore] – PageStore backed by a SQLite
//     database, one blob per page.
//   - [pagedb/pkg/storage/heap]        – Table-level row operations over a
//     PageStore: insert with page allocation, update with relocation to
//     another page when a row outgrows its page.
//
// # Page layout
//
// Each page starts with a 9-byte page preamble (id, type, deleted flag)
// and a 32-byte data-page preamble (bytes used, row count, database id,
// table id, data page type). Rows are appended from offset 41 and are
// never moved; see package page for the forwarding rules.
package storage
