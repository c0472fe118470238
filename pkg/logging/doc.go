// Package logging provides a process-wide structured logger for pagedb.
//
// The package wraps [log/slog] and exposes a single global logger instance
// that is initialized once and then retrieved via GetLogger. All subsystems
// obtain a logger through this package rather than constructing their own
// slog.Logger values, so that log level and output destination are
// controlled from a single place.
//
// # Initialisation
//
// Call Init (or InitDefault for sensible defaults) once at program startup:
//
//	if err := logging.Init(logging.Config{Level: logging.LevelDebug}); err != nil {
//	    log.Fatal(err)
//	}
//
// # Context helpers
//
// Several helpers return child loggers pre-populated with structured fields:
//
//	log := logging.WithPage(addr)       // adds database_id, table_id, page_id
//	log := logging.WithBatch(batchID)   // adds batch_id
//	log := logging.WithComponent("wal") // adds component
package logging
