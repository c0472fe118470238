package storage

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"pagedb/pkg/catalog/schema"
	dberr "pagedb/pkg/error"
	"pagedb/pkg/primitives"
	"pagedb/pkg/tuple"
)

// DefaultScanWorkers bounds the pages scanned concurrently when the caller
// passes a non-positive worker count.
const DefaultScanWorkers = 4

// CountRowsWithValue counts the live rows of ts holding value across every
// page of the table. Pages are loaded and scanned concurrently, at most
// workers at a time; the first error cancels the remaining scans.
func CountRowsWithValue(ctx context.Context, store PageStore, ts *schema.TableSchema, value tuple.RowValue, workers int) (int, error) {
	ids, err := PageIDs(ctx, store, ts)
	if err != nil {
		return 0, err
	}

	var total atomic.Int64
	err = forEachPage(ctx, ids, workers, func(ctx context.Context, id primitives.PageID) error {
		p, err := LoadPage(ctx, store, ts, id)
		if err != nil {
			return err
		}
		n, err := p.GetCountOfRowsWithValue(value)
		if err != nil {
			return err
		}
		total.Add(int64(n))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(total.Load()), nil
}

// FindRowAddresses returns the addresses of the live rows of ts holding
// every one of values, ordered by page and then by offset.
func FindRowAddresses(ctx context.Context, store PageStore, ts *schema.TableSchema, values []tuple.RowValue, workers int) ([]primitives.RowAddress, error) {
	if len(values) == 0 {
		return nil, dberr.New(dberr.ErrCategoryValidation, dberr.CodeInvalidArgument,
			"at least one value to match is required").In("FindRowAddresses", "PageStore")
	}
	ids, err := PageIDs(ctx, store, ts)
	if err != nil {
		return nil, err
	}

	perPage := make([][]primitives.RowAddress, len(ids))
	err = forEachPageIndex(ctx, ids, workers, func(ctx context.Context, i int, id primitives.PageID) error {
		p, err := LoadPage(ctx, store, ts, id)
		if err != nil {
			return err
		}
		perPage[i], err = p.GetRowAddressesWithAllValues(values)
		return err
	})
	if err != nil {
		return nil, err
	}

	var out []primitives.RowAddress
	for _, addrs := range perPage {
		out = append(out, addrs...)
	}
	return out, nil
}

// PageIDs lists the page ids of ts in the store.
func PageIDs(ctx context.Context, store PageStore, ts *schema.TableSchema) ([]primitives.PageID, error) {
	// decoders sort the schema in place; do it once before pages are
	// scanned concurrently so their sorts find nothing to move
	ts.SortBinaryOrder()

	n, err := store.NumPages(ctx, ts.DatabaseID, ts.TableID)
	if err != nil {
		return nil, err
	}
	ids := make([]primitives.PageID, n)
	for i := range ids {
		ids[i] = primitives.PageID(i) // #nosec G115
	}
	return ids, nil
}

func forEachPage(ctx context.Context, ids []primitives.PageID, workers int, fn func(context.Context, primitives.PageID) error) error {
	return forEachPageIndex(ctx, ids, workers, func(ctx context.Context, _ int, id primitives.PageID) error {
		return fn(ctx, id)
	})
}

func forEachPageIndex(ctx context.Context, ids []primitives.PageID, workers int, fn func(context.Context, int, primitives.PageID) error) error {
	if workers <= 0 {
		workers = DefaultScanWorkers
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, id := range ids {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(ctx, i, id)
		})
	}
	return g.Wait()
}
