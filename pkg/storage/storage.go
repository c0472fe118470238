package storage

import (
	"context"

	"pagedb/pkg/catalog/schema"
	dberr "pagedb/pkg/error"
	"pagedb/pkg/primitives"
	"pagedb/pkg/storage/page"
	"pagedb/pkg/tuple"
)

// PageStore persists page buffers. Implementations are safe for concurrent
// use; a page buffer is always exactly page.PageSize bytes.
type PageStore interface {
	// ReadPage returns a copy of the stored buffer. A page that was never
	// allocated fails with PAGE_NOT_FOUND.
	ReadPage(ctx context.Context, addr primitives.PageAddress) ([]byte, error)

	// WritePage stores data as the buffer of an allocated page.
	WritePage(ctx context.Context, addr primitives.PageAddress, data []byte) error

	// AllocatePage reserves the next page id of a table.
	AllocatePage(ctx context.Context, db primitives.DatabaseID, table primitives.TableID) (primitives.PageID, error)

	// NumPages returns how many pages a table has. Page ids run from 0 to
	// NumPages-1.
	NumPages(ctx context.Context, db primitives.DatabaseID, table primitives.TableID) (uint32, error)

	Close() error
}

// LoadPage reads and decodes one page of ts.
func LoadPage(ctx context.Context, store PageStore, ts *schema.TableSchema, id primitives.PageID) (*page.Page, error) {
	addr := primitives.PageAddress{DatabaseID: ts.DatabaseID, TableID: ts.TableID, PageID: id}
	data, err := store.ReadPage(ctx, addr)
	if err != nil {
		return nil, err
	}
	return page.Load(data, ts)
}

// SavePage writes p back to the store and marks it clean.
func SavePage(ctx context.Context, store PageStore, p *page.Page) error {
	if err := store.WritePage(ctx, p.Address(), p.Data()); err != nil {
		return err
	}
	p.MarkClean()
	return nil
}

// FetchRow returns the newest version of the row at addr, following
// forwards to other pages. Same-page forwards are followed by the page
// itself.
func FetchRow(ctx context.Context, store PageStore, ts *schema.TableSchema, addr primitives.RowAddress) (*tuple.Row, error) {
	for hop := 0; ; hop++ {
		p, err := LoadPage(ctx, store, ts, addr.PageID)
		if err != nil {
			return nil, err
		}

		var row *tuple.Row
		if hop == 0 {
			row, err = p.GetRowByAddress(addr)
		} else {
			row, err = p.GetRow(addr.RowID)
		}
		if err != nil {
			return nil, err
		}

		if !row.IsForwarded() {
			return row, nil
		}
		if hop == page.MaxForwardHops {
			return nil, dberr.Newf(dberr.ErrCategoryFormat, dberr.CodeForwardLoop,
				"row %d moved across more than %d pages", addr.RowID, page.MaxForwardHops).
				In("FetchRow", "PageStore")
		}
		addr.PageID = row.Preamble.ForwardedPageID
		addr.RowOffset = row.Preamble.ForwardOffset
	}
}
