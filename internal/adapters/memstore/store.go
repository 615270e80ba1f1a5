package memstore

import (
	"context"
	"sync"

	"openlot-auction-service/internal/domain/auction"
	"openlot-auction-service/internal/domain/bid"
	"openlot-auction-service/internal/domain/shared"

	"github.com/google/uuid"
)

// Store is an in-memory implementation of the auction and user stores.
// It backs tests and single-node development runs. All mutating methods
// perform their check-then-update under one lock, which gives the same
// atomicity the SQL store gets from its transactions. Reads return copies;
// callers never see the store's own mutable records.
type Store struct {
	mu           sync.RWMutex
	auctions     map[uuid.UUID]*auction.Auction
	bids         map[uuid.UUID][]*bid.Bid
	participants map[uuid.UUID]map[uuid.UUID]bool
	users        map[uuid.UUID]*shared.User
}

// New creates an empty in-memory store
func New() *Store {
	return &Store{
		auctions:     make(map[uuid.UUID]*auction.Auction),
		bids:         make(map[uuid.UUID][]*bid.Bid),
		participants: make(map[uuid.UUID]map[uuid.UUID]bool),
		users:        make(map[uuid.UUID]*shared.User),
	}
}

// CreateAuction persists a new auction
func (s *Store) CreateAuction(ctx context.Context, a *auction.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *a
	s.auctions[a.ID] = &cp
	s.participants[a.ID] = make(map[uuid.UUID]bool)
	return nil
}

// GetAuction retrieves an auction by ID
func (s *Store) GetAuction(ctx context.Context, id uuid.UUID) (*auction.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.auctions[id]
	if !ok {
		return nil, shared.ErrAuctionNotFound
	}
	return cloneAuction(a), nil
}

// ListActive retrieves all auctions still accepting bids
func (s *Store) ListActive(ctx context.Context) ([]*auction.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []*auction.Auction
	for _, a := range s.auctions {
		if a.IsActive() {
			active = append(active, cloneAuction(a))
		}
	}
	return active, nil
}

// AppendBidIfHighest atomically validates and commits a bid
func (s *Store) AppendBidIfHighest(ctx context.Context, auctionID, bidderID uuid.UUID, amount float64) (*bid.Bid, *auction.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[auctionID]
	if !ok {
		return nil, nil, shared.ErrAuctionNotFound
	}
	if !a.IsActive() {
		return nil, nil, shared.ErrAuctionClosed
	}
	if !s.participants[auctionID][bidderID] {
		return nil, nil, shared.ErrNotRegistered
	}
	if amount < a.StartingPrice {
		return nil, nil, shared.ErrBidTooLow
	}
	if a.HasBids() && amount <= a.CurrentPrice {
		return nil, nil, shared.ErrBidTooLow
	}

	b := bid.New(auctionID, bidderID, amount)
	s.bids[auctionID] = append(s.bids[auctionID], b)
	a.RecordBid(bidderID, amount)

	cp := *b
	return &cp, cloneAuction(a), nil
}

// GetHighestBid retrieves the highest accepted bid for an auction
func (s *Store) GetHighestBid(ctx context.Context, auctionID uuid.UUID) (*bid.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.auctions[auctionID]; !ok {
		return nil, shared.ErrAuctionNotFound
	}

	bids := s.bids[auctionID]
	if len(bids) == 0 {
		return nil, shared.ErrNoBidsFound
	}
	// Accepted amounts are strictly increasing, the last bid is the highest.
	cp := *bids[len(bids)-1]
	return &cp, nil
}

// GetBids retrieves all accepted bids for an auction, highest first
func (s *Store) GetBids(ctx context.Context, auctionID uuid.UUID) ([]*bid.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.auctions[auctionID]; !ok {
		return nil, shared.ErrAuctionNotFound
	}

	bids := s.bids[auctionID]
	out := make([]*bid.Bid, 0, len(bids))
	for i := len(bids) - 1; i >= 0; i-- {
		cp := *bids[i]
		out = append(out, &cp)
	}
	return out, nil
}

// CloseAuction marks an active auction closed. The transition is one-way.
func (s *Store) CloseAuction(ctx context.Context, auctionID uuid.UUID, finalPrice float64, winnerID *uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[auctionID]
	if !ok {
		return shared.ErrAuctionNotFound
	}
	if a.IsClosed() {
		return shared.ErrAuctionClosed
	}

	a.CurrentPrice = finalPrice
	a.HighestBidderID = winnerID
	a.Close()
	return nil
}

// Join registers a bidder as a participant of an active auction
func (s *Store) Join(ctx context.Context, auctionID, bidderID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[auctionID]
	if !ok {
		return shared.ErrAuctionNotFound
	}
	if !a.IsActive() {
		return shared.ErrAuctionClosed
	}
	if s.participants[auctionID][bidderID] {
		return shared.ErrAlreadyJoined
	}

	s.participants[auctionID][bidderID] = true
	return nil
}

// Withdraw removes a bidder from the participant set unless they hold the
// highest bid on an active auction. Removing a non-member is a no-op.
func (s *Store) Withdraw(ctx context.Context, auctionID, bidderID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[auctionID]
	if !ok {
		return shared.ErrAuctionNotFound
	}
	if a.IsActive() && a.HighestBidderID != nil && *a.HighestBidderID == bidderID {
		return shared.ErrIsHighestBidder
	}

	delete(s.participants[auctionID], bidderID)
	return nil
}

// Participants returns the bidder identities joined to an auction
func (s *Store) Participants(ctx context.Context, auctionID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := s.participants[auctionID]
	out := make([]uuid.UUID, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out, nil
}

// AuctionsWonByHighestBidder returns active auctions where the user holds
// the highest bid
func (s *Store) AuctionsWonByHighestBidder(ctx context.Context, bidderID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []uuid.UUID
	for _, a := range s.auctions {
		if a.IsActive() && a.HighestBidderID != nil && *a.HighestBidderID == bidderID {
			ids = append(ids, a.ID)
		}
	}
	return ids, nil
}

// Create creates a new user
func (s *Store) Create(ctx context.Context, user *shared.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return shared.ErrUserExists
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

// GetByID retrieves a user by ID
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*shared.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, shared.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func cloneAuction(a *auction.Auction) *auction.Auction {
	cp := *a
	if a.HighestBidderID != nil {
		b := *a.HighestBidderID
		cp.HighestBidderID = &b
	}
	if a.EndTime != nil {
		t := *a.EndTime
		cp.EndTime = &t
	}
	return &cp
}
