package outbound

import (
	"context"

	"openlot-auction-service/internal/domain/auction"
	"openlot-auction-service/internal/domain/bid"
	"openlot-auction-service/internal/domain/shared"

	"github.com/google/uuid"
)

// AuctionStore is the durable source of truth for auctions, bids and
// participants. Implementations must make AppendBidIfHighest and
// CloseAuction atomic per auction id: no price/bidder mutation may be
// computed from a stale read.
type AuctionStore interface {
	// CreateAuction persists a new active auction
	CreateAuction(ctx context.Context, a *auction.Auction) error

	// GetAuction retrieves an auction by ID
	GetAuction(ctx context.Context, id uuid.UUID) (*auction.Auction, error)

	// ListActive retrieves all auctions still accepting bids
	ListActive(ctx context.Context) ([]*auction.Auction, error)

	// AppendBidIfHighest atomically checks the auction is active, the bidder
	// has joined, and amount beats both the current highest bid and the
	// starting price; on success it appends the bid and updates the
	// auction's current price and highest bidder, returning the updated
	// auction snapshot. Fails with shared.ErrAuctionClosed,
	// shared.ErrNotRegistered or shared.ErrBidTooLow.
	AppendBidIfHighest(ctx context.Context, auctionID, bidderID uuid.UUID, amount float64) (*bid.Bid, *auction.Auction, error)

	// GetHighestBid retrieves the highest accepted bid for an auction,
	// or shared.ErrNoBidsFound
	GetHighestBid(ctx context.Context, auctionID uuid.UUID) (*bid.Bid, error)

	// GetBids retrieves all accepted bids for an auction, highest first
	GetBids(ctx context.Context, auctionID uuid.UUID) ([]*bid.Bid, error)

	// CloseAuction marks an active auction closed at the given final price
	// and winner. The transition is one-way; closing an already closed
	// auction fails with shared.ErrAuctionClosed.
	CloseAuction(ctx context.Context, auctionID uuid.UUID, finalPrice float64, winnerID *uuid.UUID) error

	// Join registers a bidder as a participant of an active auction
	Join(ctx context.Context, auctionID, bidderID uuid.UUID) error

	// Withdraw removes a bidder from the participant set unless they hold
	// the highest bid on an active auction (shared.ErrIsHighestBidder)
	Withdraw(ctx context.Context, auctionID, bidderID uuid.UUID) error

	// Participants returns the bidder identities joined to an auction;
	// the seller is not included
	Participants(ctx context.Context, auctionID uuid.UUID) ([]uuid.UUID, error)

	// AuctionsWonByHighestBidder returns the ids of active auctions on
	// which the given user currently holds the highest bid
	AuctionsWonByHighestBidder(ctx context.Context, bidderID uuid.UUID) ([]uuid.UUID, error)
}

// UserStore defines the interface for user identity operations
type UserStore interface {
	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id uuid.UUID) (*shared.User, error)

	// Create creates a new user
	Create(ctx context.Context, user *shared.User) error
}
