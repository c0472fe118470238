package heap

import (
	"context"
	"log/slog"
	"sync"

	"pagedb/pkg/catalog/schema"
	dberr "pagedb/pkg/error"
	"pagedb/pkg/logging"
	"pagedb/pkg/primitives"
	"pagedb/pkg/storage"
	"pagedb/pkg/storage/page"
	"pagedb/pkg/tuple"
)

const heapComponent = "HeapFile"

// HeapFile is the unordered collection of pages that stores the rows of one
// table in a page store. It decides which page a row goes to and moves a
// row to another page when an update no longer fits where it is.
//
// Storage Layout:
//   - Each page is exactly page.PageSize bytes
//   - Pages are numbered sequentially starting from 0
//   - New rows go to the last page; a new page is allocated when it is full
//
// Thread-safety: mutations are serialized by a mutex so a read-modify-write
// of a page is never interleaved with another one from the same HeapFile.
type HeapFile struct {
	store  storage.PageStore
	schema *schema.TableSchema
	kind   page.DataPageType
	mutex  sync.Mutex
	logger *slog.Logger
}

// NewHeapFile creates a heap file for the rows of ts in store.
func NewHeapFile(store storage.PageStore, ts *schema.TableSchema, kind page.DataPageType) *HeapFile {
	return &HeapFile{
		store:  store,
		schema: ts,
		kind:   kind,
		logger: logging.WithTable(ts.DatabaseID, ts.TableID).With("component", heapComponent),
	}
}

// Schema returns the table schema of the file.
func (hf *HeapFile) Schema() *schema.TableSchema {
	return hf.schema
}

// InsertRow stores a new row and returns where it was written.
func (hf *HeapFile) InsertRow(ctx context.Context, row *tuple.Row) (primitives.RowAddress, error) {
	hf.mutex.Lock()
	defer hf.mutex.Unlock()
	return hf.insert(ctx, row, nil)
}

// UpdateRow writes a new version of the row at addr. The page holding the
// row tries an in-place update or a same-page forward first; when the page
// is full the row is inserted on another page, and every page the row has
// lived on is forwarded straight to the new copy. The returned address is
// the new copy.
func (hf *HeapFile) UpdateRow(ctx context.Context, addr primitives.RowAddress, row *tuple.Row) (primitives.RowAddress, error) {
	hf.mutex.Lock()
	defer hf.mutex.Unlock()

	chain, err := hf.locate(ctx, addr)
	if err != nil {
		return primitives.RowAddress{}, err
	}
	p := chain[len(chain)-1]

	off, err := p.TryUpdateRowData(row)
	switch {
	case err == nil:
		if err := storage.SavePage(ctx, hf.store, p); err != nil {
			return primitives.RowAddress{}, err
		}
		return hf.address(p.ID(), row.ID(), off), nil
	case !dberr.Is(err, dberr.CodeNotEnoughRoom):
		return primitives.RowAddress{}, err
	}

	moved, err := hf.insert(ctx, row, p)
	if err != nil {
		return primitives.RowAddress{}, err
	}
	for _, prev := range chain {
		if err := prev.ForwardRow(row.ID(), moved.RowOffset, moved.PageID); err != nil {
			return primitives.RowAddress{}, err
		}
		if err := storage.SavePage(ctx, hf.store, prev); err != nil {
			return primitives.RowAddress{}, err
		}
	}

	hf.logger.Debug("row relocated", "row_id", uint32(row.ID()),
		"from_page", uint32(p.ID()), "to_page", uint32(moved.PageID), "repointed", len(chain))
	return moved, nil
}

// DeleteRow logically deletes the row at addr.
func (hf *HeapFile) DeleteRow(ctx context.Context, addr primitives.RowAddress) error {
	hf.mutex.Lock()
	defer hf.mutex.Unlock()

	chain, err := hf.locate(ctx, addr)
	if err != nil {
		return err
	}
	p := chain[len(chain)-1]
	if err := p.DeleteRow(addr.RowID); err != nil {
		return err
	}
	return storage.SavePage(ctx, hf.store, p)
}

// GetRow returns the newest version of the row at addr.
func (hf *HeapFile) GetRow(ctx context.Context, addr primitives.RowAddress) (*tuple.Row, error) {
	return storage.FetchRow(ctx, hf.store, hf.schema, addr)
}

// NumPages returns the number of pages of the table.
func (hf *HeapFile) NumPages(ctx context.Context) (uint32, error) {
	return hf.store.NumPages(ctx, hf.schema.DatabaseID, hf.schema.TableID)
}

// insert adds row to the last page that has room and does not already know
// the row id, allocating a page when none does. skip, when set, is the page
// the row is leaving.
func (hf *HeapFile) insert(ctx context.Context, row *tuple.Row, skip *page.Page) (primitives.RowAddress, error) {
	size := row.Size()
	if size+page.RowDataStartOffset > page.PageSize {
		return primitives.RowAddress{}, dberr.Newf(dberr.ErrCategoryCapacity, dberr.CodeNotEnoughRoom,
			"row %d is %d bytes, larger than an empty page", row.ID(), size).In("InsertRow", heapComponent)
	}

	n, err := hf.NumPages(ctx)
	if err != nil {
		return primitives.RowAddress{}, err
	}

	if n > 0 {
		last := primitives.PageID(n - 1)
		if skip == nil || skip.ID() != last {
			p, err := storage.LoadPage(ctx, hf.store, hf.schema, last)
			if err != nil {
				return primitives.RowAddress{}, err
			}
			if !p.IsFull(size) && len(p.GetRowOffsets(row.ID())) == 0 {
				return hf.addTo(ctx, p, row)
			}
		}
	}

	id, err := hf.store.AllocatePage(ctx, hf.schema.DatabaseID, hf.schema.TableID)
	if err != nil {
		return primitives.RowAddress{}, err
	}
	hf.logger.Debug("page allocated", "page_id", uint32(id))
	return hf.addTo(ctx, page.NewPage(id, hf.schema, hf.kind), row)
}

func (hf *HeapFile) addTo(ctx context.Context, p *page.Page, row *tuple.Row) (primitives.RowAddress, error) {
	off, err := p.AddRow(row)
	if err != nil {
		return primitives.RowAddress{}, err
	}
	if err := storage.SavePage(ctx, hf.store, p); err != nil {
		return primitives.RowAddress{}, err
	}
	return hf.address(p.ID(), row.ID(), off), nil
}

// locate loads every page the row has lived on, starting at addr and
// following moves to other pages. The last page holds the current copy.
func (hf *HeapFile) locate(ctx context.Context, addr primitives.RowAddress) ([]*page.Page, error) {
	var chain []*page.Page
	pageID := addr.PageID
	for hop := 0; hop <= page.MaxForwardHops; hop++ {
		p, err := storage.LoadPage(ctx, hf.store, hf.schema, pageID)
		if err != nil {
			return nil, err
		}
		row, err := p.GetRow(addr.RowID)
		if err != nil {
			return nil, err
		}
		chain = append(chain, p)
		if !row.IsForwarded() {
			return chain, nil
		}
		pageID = row.Preamble.ForwardedPageID
	}
	return nil, dberr.Newf(dberr.ErrCategoryFormat, dberr.CodeForwardLoop,
		"row %d moved across more than %d pages", addr.RowID, page.MaxForwardHops).In("locate", heapComponent)
}

func (hf *HeapFile) address(pageID primitives.PageID, id primitives.RowID, off primitives.Offset) primitives.RowAddress {
	return primitives.RowAddress{
		DatabaseID: hf.schema.DatabaseID,
		TableID:    hf.schema.TableID,
		PageID:     pageID,
		RowID:      id,
		RowOffset:  off,
	}
}
