package pagefile

import (
	"fmt"
	"os"
	"sync"

	dberr "pagedb/pkg/error"
	"pagedb/pkg/primitives"
	"pagedb/pkg/storage/page"
)

const fileComponent = "PageFile"

// File holds the pages of one table in one OS file. Page N lives at byte
// offset N*page.PageSize.
//
// Thread-safety: All public methods use read/write locks to ensure safe
// concurrent access.
type File struct {
	file     *os.File
	mutex    sync.RWMutex
	filePath primitives.Filepath
}

// NewFile opens (creating if needed) the page file at filePath.
func NewFile(filePath primitives.Filepath) (*File, error) {
	if filePath.IsEmpty() {
		return nil, fmt.Errorf("filePath cannot be empty")
	}

	if err := filePath.MkdirAll(0o750); err != nil {
		return nil, dberr.Wrap(err, dberr.CodeIOFailure, "NewFile", fileComponent)
	}

	file, err := os.OpenFile(filePath.String(), os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, dberr.Wrap(err, dberr.CodeIOFailure, "NewFile", fileComponent).
			WithDetail("path %s", filePath)
	}

	return &File{file: file, filePath: filePath}, nil
}

// FilePath returns the path the file was opened with.
func (f *File) FilePath() primitives.Filepath {
	return f.filePath
}

// NumPages returns the total number of pages in this file. A trailing
// partial page counts as a page.
func (f *File) NumPages() (uint32, error) {
	f.mutex.RLock()
	defer f.mutex.RUnlock()
	return f.numPages()
}

func (f *File) numPages() (uint32, error) {
	if f.file == nil {
		return 0, errClosed("NumPages")
	}

	info, err := f.file.Stat()
	if err != nil {
		return 0, dberr.Wrap(err, dberr.CodeIOFailure, "NumPages", fileComponent)
	}

	n := info.Size() / page.PageSize
	if info.Size()%page.PageSize != 0 {
		n++
	}
	return uint32(n), nil // #nosec G115
}

// ReadPageData reads exactly page.PageSize bytes of page id.
func (f *File) ReadPageData(id primitives.PageID) ([]byte, error) {
	f.mutex.RLock()
	defer f.mutex.RUnlock()

	n, err := f.numPages()
	if err != nil {
		return nil, err
	}
	if uint32(id) >= n {
		return nil, dberr.Newf(dberr.ErrCategoryValidation, dberr.CodePageNotFound,
			"page %d does not exist, file has %d pages", id, n).In("ReadPageData", fileComponent)
	}

	data := make([]byte, page.PageSize)
	if _, err := f.file.ReadAt(data, int64(id)*page.PageSize); err != nil {
		return nil, dberr.Wrap(err, dberr.CodeIOFailure, "ReadPageData", fileComponent).
			WithDetail("page %d of %s", id, f.filePath)
	}
	return data, nil
}

// WritePageData writes data as page id and syncs the file.
func (f *File) WritePageData(id primitives.PageID, data []byte) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.file == nil {
		return errClosed("WritePageData")
	}
	if len(data) != page.PageSize {
		return dberr.Newf(dberr.ErrCategoryValidation, dberr.CodeInvalidArgument,
			"invalid page data size: expected %d, got %d", page.PageSize, len(data)).
			In("WritePageData", fileComponent)
	}

	if _, err := f.file.WriteAt(data, int64(id)*page.PageSize); err != nil {
		return dberr.Wrap(err, dberr.CodeIOFailure, "WritePageData", fileComponent)
	}
	if err := f.file.Sync(); err != nil {
		return dberr.Wrap(err, dberr.CodeIOFailure, "WritePageData", fileComponent)
	}
	return nil
}

// AllocateNewPage reserves the next page id by extending the file with a
// zero-filled page while holding the write lock, so concurrent callers
// never receive the same id.
func (f *File) AllocateNewPage() (primitives.PageID, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	n, err := f.numPages()
	if err != nil {
		return 0, err
	}

	zero := make([]byte, page.PageSize)
	if _, err := f.file.WriteAt(zero, int64(n)*page.PageSize); err != nil {
		return 0, dberr.Wrap(err, dberr.CodeIOFailure, "AllocateNewPage", fileComponent)
	}
	if err := f.file.Sync(); err != nil {
		return 0, dberr.Wrap(err, dberr.CodeIOFailure, "AllocateNewPage", fileComponent)
	}
	return primitives.PageID(n), nil
}

// Close closes the underlying file handle. Later calls fail.
func (f *File) Close() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}

func errClosed(op string) error {
	return dberr.New(dberr.ErrCategorySystem, dberr.CodeInvalidState, "file is closed").In(op, fileComponent)
}
