package engine

import (
	"sync"

	"github.com/google/uuid"
)

// auctionLocks serializes all mutating work per auction id. Different
// auctions proceed fully in parallel; for a single auction, bid commits,
// cascade rearms and closing callbacks are totally ordered by its mutex.
type auctionLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newAuctionLocks() *auctionLocks {
	return &auctionLocks{locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (l *auctionLocks) get(id uuid.UUID) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	return m
}

// drop prunes the entry for a closed auction. Late callers get a fresh
// mutex, which is harmless: every operation re-checks auction status in the
// store and fails closed.
func (l *auctionLocks) drop(id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.locks, id)
}
