package pagefile

import (
	"context"
	"log/slog"
	"sync"

	dberr "pagedb/pkg/error"
	"pagedb/pkg/logging"
	"pagedb/pkg/primitives"
)

type tableKey struct {
	db    primitives.DatabaseID
	table primitives.TableID
}

// Store is a page store that keeps one File per table under a data
// directory: <dir>/<database id>/table_<table id>.pages.
type Store struct {
	dir    primitives.Filepath
	mutex  sync.Mutex
	files  map[tableKey]*File
	logger *slog.Logger
}

// Open creates a store rooted at dir. Table files are opened lazily.
func Open(dir primitives.Filepath) (*Store, error) {
	if dir.IsEmpty() {
		return nil, dberr.New(dberr.ErrCategoryValidation, dberr.CodeInvalidArgument,
			"data directory cannot be empty").In("Open", fileComponent)
	}
	return &Store{
		dir:    dir,
		files:  make(map[tableKey]*File),
		logger: logging.WithComponent(fileComponent).With("dir", dir.String()),
	}, nil
}

// ReadPage implements storage.PageStore.
func (s *Store) ReadPage(ctx context.Context, addr primitives.PageAddress) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := s.file(addr.DatabaseID, addr.TableID, false)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, dberr.Newf(dberr.ErrCategoryValidation, dberr.CodePageNotFound,
			"no pages stored for %s", addr).In("ReadPage", fileComponent)
	}
	return f.ReadPageData(addr.PageID)
}

// WritePage implements storage.PageStore.
func (s *Store) WritePage(ctx context.Context, addr primitives.PageAddress, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := s.file(addr.DatabaseID, addr.TableID, true)
	if err != nil {
		return err
	}

	n, err := f.NumPages()
	if err != nil {
		return err
	}
	if uint32(addr.PageID) >= n {
		return dberr.Newf(dberr.ErrCategoryValidation, dberr.CodePageNotFound,
			"page %s was never allocated", addr).In("WritePage", fileComponent)
	}

	if err := f.WritePageData(addr.PageID, data); err != nil {
		return err
	}
	s.logger.Debug("page written", "table_id", uint32(addr.TableID), "page_id", uint32(addr.PageID))
	return nil
}

// AllocatePage implements storage.PageStore.
func (s *Store) AllocatePage(ctx context.Context, db primitives.DatabaseID, table primitives.TableID) (primitives.PageID, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f, err := s.file(db, table, true)
	if err != nil {
		return 0, err
	}

	id, err := f.AllocateNewPage()
	if err != nil {
		return 0, err
	}
	s.logger.Debug("page allocated", "table_id", uint32(table), "page_id", uint32(id))
	return id, nil
}

// NumPages implements storage.PageStore.
func (s *Store) NumPages(ctx context.Context, db primitives.DatabaseID, table primitives.TableID) (uint32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f, err := s.file(db, table, false)
	if err != nil || f == nil {
		return 0, err
	}
	return f.NumPages()
}

// Close closes every open table file and returns the first error.
func (s *Store) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var first error
	for key, f := range s.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
		delete(s.files, key)
	}
	return first
}

// file returns the open File of a table. Without create, a table with no
// file on disk yields (nil, nil).
func (s *Store) file(db primitives.DatabaseID, table primitives.TableID, create bool) (*File, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	key := tableKey{db: db, table: table}
	if f, ok := s.files[key]; ok {
		return f, nil
	}

	path := s.dir.TableFile(db, table)
	if !create && !path.Exists() {
		return nil, nil
	}

	f, err := NewFile(path)
	if err != nil {
		return nil, err
	}
	s.files[key] = f
	return f, nil
}
