package memory

import (
	"context"
	"log/slog"

	"pagedb/pkg/logging"
	"pagedb/pkg/primitives"
	"pagedb/pkg/storage"
)

const cacheComponent = "PageCache"

// CachedStore is a write-through page store: reads are served from the
// cache when possible, writes go to the underlying store first and are
// cached only once it accepted them.
type CachedStore struct {
	store  storage.PageStore
	cache  *LRUPageCache
	logger *slog.Logger
}

// NewCachedStore puts a cache of maxPages buffers in front of store.
func NewCachedStore(store storage.PageStore, maxPages int) *CachedStore {
	return &CachedStore{
		store:  store,
		cache:  NewLRUPageCache(maxPages),
		logger: logging.WithComponent(cacheComponent),
	}
}

// ReadPage implements storage.PageStore.
func (s *CachedStore) ReadPage(ctx context.Context, addr primitives.PageAddress) ([]byte, error) {
	if data, ok := s.cache.Get(addr); ok {
		return data, nil
	}
	data, err := s.store.ReadPage(ctx, addr)
	if err != nil {
		return nil, err
	}
	s.put(addr, data)
	return data, nil
}

// WritePage implements storage.PageStore. A failed write drops the cached
// copy so the next read goes to the store.
func (s *CachedStore) WritePage(ctx context.Context, addr primitives.PageAddress, data []byte) error {
	if err := s.store.WritePage(ctx, addr, data); err != nil {
		s.cache.Remove(addr)
		return err
	}
	s.put(addr, data)
	return nil
}

// AllocatePage implements storage.PageStore.
func (s *CachedStore) AllocatePage(ctx context.Context, db primitives.DatabaseID, table primitives.TableID) (primitives.PageID, error) {
	return s.store.AllocatePage(ctx, db, table)
}

// NumPages implements storage.PageStore.
func (s *CachedStore) NumPages(ctx context.Context, db primitives.DatabaseID, table primitives.TableID) (uint32, error) {
	return s.store.NumPages(ctx, db, table)
}

// Close drops the cache and closes the underlying store.
func (s *CachedStore) Close() error {
	st := s.cache.Stats()
	s.logger.Debug("closing page cache",
		"size", st.Size, "hits", st.Hits, "misses", st.Misses, "evictions", st.Evictions)
	s.cache.Clear()
	return s.store.Close()
}

// Stats returns the cache counters.
func (s *CachedStore) Stats() Stats {
	return s.cache.Stats()
}

func (s *CachedStore) put(addr primitives.PageAddress, data []byte) {
	if evicted, ok := s.cache.Put(addr, data); ok {
		s.logger.Debug("evicted page", "page", evicted.String())
	}
}
