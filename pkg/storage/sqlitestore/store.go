// Package sqlitestore is a page store that keeps page buffers as blobs in a
// SQLite database.
package sqlitestore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"

	dberr "pagedb/pkg/error"
	"pagedb/pkg/logging"
	"pagedb/pkg/primitives"
	"pagedb/pkg/storage/page"
)

//go:embed schema.sql
var schemaSQL string

const storeComponent = "SQLiteStore"

// Store implements storage.PageStore on SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates or opens a SQLite database at path and applies the schema.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//
// A single connection is used, so page allocation never races.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to execute schema: %w", err)
	}

	return &Store{db: db, logger: logging.WithComponent(storeComponent).With("path", path)}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ReadPage implements storage.PageStore.
func (s *Store) ReadPage(ctx context.Context, addr primitives.PageAddress) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT data FROM pages
		WHERE database_id = ? AND table_id = ? AND page_id = ?
	`, addr.DatabaseID[:], uint32(addr.TableID), uint32(addr.PageID)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(addr, "ReadPage")
	}
	if err != nil {
		return nil, dberr.Wrap(err, dberr.CodeIOFailure, "ReadPage", storeComponent)
	}
	if len(data) != page.PageSize {
		return nil, dberr.Newf(dberr.ErrCategoryFormat, dberr.CodeCorruptData,
			"page %s holds %d bytes", addr, len(data)).In("ReadPage", storeComponent)
	}
	return data, nil
}

// WritePage implements storage.PageStore.
func (s *Store) WritePage(ctx context.Context, addr primitives.PageAddress, data []byte) error {
	if len(data) != page.PageSize {
		return dberr.Newf(dberr.ErrCategoryValidation, dberr.CodeInvalidArgument,
			"invalid page data size: expected %d, got %d", page.PageSize, len(data)).
			In("WritePage", storeComponent)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE pages SET data = ?
		WHERE database_id = ? AND table_id = ? AND page_id = ?
	`, data, addr.DatabaseID[:], uint32(addr.TableID), uint32(addr.PageID))
	if err != nil {
		return dberr.Wrap(err, dberr.CodeIOFailure, "WritePage", storeComponent)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return dberr.Wrap(err, dberr.CodeIOFailure, "WritePage", storeComponent)
	}
	if n == 0 {
		return notFound(addr, "WritePage")
	}

	s.logger.Debug("page written", "table_id", uint32(addr.TableID), "page_id", uint32(addr.PageID))
	return nil
}

// AllocatePage implements storage.PageStore. The new page is stored
// zero-filled until it is first written.
func (s *Store) AllocatePage(ctx context.Context, db primitives.DatabaseID, table primitives.TableID) (primitives.PageID, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, dberr.Wrap(err, dberr.CodeIOFailure, "AllocatePage", storeComponent)
	}
	defer func() { _ = tx.Rollback() }()

	var next uint32
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(page_id) + 1, 0) FROM pages
		WHERE database_id = ? AND table_id = ?
	`, db[:], uint32(table)).Scan(&next)
	if err != nil {
		return 0, dberr.Wrap(err, dberr.CodeIOFailure, "AllocatePage", storeComponent)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO pages (database_id, table_id, page_id, data) VALUES (?, ?, ?, ?)
	`, db[:], uint32(table), next, make([]byte, page.PageSize))
	if err != nil {
		return 0, dberr.Wrap(err, dberr.CodeIOFailure, "AllocatePage", storeComponent)
	}

	if err := tx.Commit(); err != nil {
		return 0, dberr.Wrap(err, dberr.CodeIOFailure, "AllocatePage", storeComponent)
	}

	s.logger.Debug("page allocated", "table_id", uint32(table), "page_id", next)
	return primitives.PageID(next), nil
}

// NumPages implements storage.PageStore.
func (s *Store) NumPages(ctx context.Context, db primitives.DatabaseID, table primitives.TableID) (uint32, error) {
	var n uint32
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM pages WHERE database_id = ? AND table_id = ?
	`, db[:], uint32(table)).Scan(&n)
	if err != nil {
		return 0, dberr.Wrap(err, dberr.CodeIOFailure, "NumPages", storeComponent)
	}
	return n, nil
}

func notFound(addr primitives.PageAddress, op string) error {
	return dberr.Newf(dberr.ErrCategoryValidation, dberr.CodePageNotFound,
		"page %s was never allocated", addr).In(op, storeComponent)
}
