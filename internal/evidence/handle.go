package evidence

import "sync"

// Handle is a swappable reference to a Searcher. Each index stays append-only
// for its lifetime; asset reloads build a fresh index and swap it in whole,
// so readers never observe a partially loaded corpus.
type Handle struct {
	mu sync.RWMutex
	ix Searcher
}

// NewHandle wraps ix.
func NewHandle(ix Searcher) *Handle {
	return &Handle{ix: ix}
}

// Get returns the current index.
func (h *Handle) Get() Searcher {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ix
}

// Swap replaces the current index.
func (h *Handle) Swap(ix Searcher) {
	h.mu.Lock()
	h.ix = ix
	h.mu.Unlock()
}
