package logging

import (
	"log/slog"

	"github.com/google/uuid"

	"pagedb/pkg/primitives"
)

// WithPage creates a logger with page context.
// Use this for page mutations and page store I/O.
//
// Example:
//
//	log := logging.WithPage(addr)
//	log.Debug("row added", "row_id", id, "offset", off)
func WithPage(addr primitives.PageAddress) *slog.Logger {
	return GetLogger().With(
		"database_id", addr.DatabaseID.String(),
		"table_id", uint32(addr.TableID),
		"page_id", uint32(addr.PageID),
	)
}

// WithTable creates a logger with table context.
// Use this for schema operations.
//
// Example:
//
//	log := logging.WithTable(dbID, tableID)
//	log.Info("schema sorted", "columns", n)
func WithTable(db primitives.DatabaseID, table primitives.TableID) *slog.Logger {
	return GetLogger().With("database_id", db.String(), "table_id", uint32(table))
}

// WithBatch creates a logger with transaction batch context.
// Useful for log writing and recovery.
//
// Example:
//
//	log := logging.WithBatch(batchID)
//	log.Warn("batch incomplete", "entries", n)
func WithBatch(batchID uuid.UUID) *slog.Logger {
	return GetLogger().With("batch_id", batchID.String())
}

// WithComponent creates a logger with component/subsystem context.
//
// Example:
//
//	log := logging.WithComponent("pagefile")
//	log.Info("component initialized")
func WithComponent(component string) *slog.Logger {
	return GetLogger().With("component", component)
}

// WithError creates a logger with error context.
//
// Example:
//
//	log := logging.WithError(err)
//	log.Error("operation failed", "operation", "insert")
func WithError(err error) *slog.Logger {
	return GetLogger().With("error", err.Error())
}
