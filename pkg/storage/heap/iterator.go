package heap

import (
	"context"
	"fmt"

	"pagedb/pkg/primitives"
	"pagedb/pkg/storage"
	"pagedb/pkg/tuple"
)

// RowIterator walks the live rows of a heap file page by page. Only one
// page is decoded at a time.
type RowIterator struct {
	ctx      context.Context
	file     *HeapFile
	numPages uint32
	nextPage uint32
	rows     []*tuple.Row
	index    int
}

// Iterator creates an iterator over the live rows of hf.
func (hf *HeapFile) Iterator(ctx context.Context) *RowIterator {
	return &RowIterator{ctx: ctx, file: hf, index: -1}
}

// Open initializes the iterator
func (it *RowIterator) Open() error {
	n, err := it.file.NumPages(it.ctx)
	if err != nil {
		return err
	}
	it.numPages = n
	it.nextPage = 0
	it.rows = nil
	it.index = -1
	return nil
}

// HasNext returns true if there are more rows, loading pages as needed
func (it *RowIterator) HasNext() (bool, error) {
	for it.index+1 >= len(it.rows) {
		if it.nextPage >= it.numPages {
			return false, nil
		}
		p, err := storage.LoadPage(it.ctx, it.file.store, it.file.schema, primitives.PageID(it.nextPage))
		if err != nil {
			return false, err
		}
		it.nextPage++

		rows, err := p.Rows()
		if err != nil {
			return false, err
		}
		it.rows = rows
		it.index = -1
	}
	return true, nil
}

// Next returns the next row
func (it *RowIterator) Next() (*tuple.Row, error) {
	hasNext, err := it.HasNext()
	if err != nil {
		return nil, err
	}
	if !hasNext {
		return nil, fmt.Errorf("no more rows")
	}

	it.index++
	return it.rows[it.index], nil
}

// Rewind resets the iterator
func (it *RowIterator) Rewind() error {
	return it.Open()
}

// Close releases iterator resources
func (it *RowIterator) Close() error {
	it.rows = nil
	it.index = -1
	return nil
}
