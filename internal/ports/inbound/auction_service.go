package inbound

import (
	"context"

	"openlot-auction-service/internal/domain/auction"
	"openlot-auction-service/internal/domain/bid"

	"github.com/google/uuid"
)

// AuctionService defines the interface for auction lifecycle operations
type AuctionService interface {
	// CreateAuction creates a new active auction and arms its close timer
	// when the kind is fixed-deadline
	CreateAuction(ctx context.Context, req CreateAuctionRequest) (*auction.Auction, error)

	// GetAuction retrieves an auction by ID
	GetAuction(ctx context.Context, auctionID uuid.UUID) (*auction.Auction, error)

	// ListActive retrieves all auctions still accepting bids
	ListActive(ctx context.Context) ([]*auction.Auction, error)

	// Join registers a bidder as a participant of an auction
	Join(ctx context.Context, auctionID, bidderID uuid.UUID) error
}

// BidService defines the interface for bid operations
type BidService interface {
	// PlaceBid places a new bid on an auction
	PlaceBid(ctx context.Context, req PlaceBidRequest) (*bid.Bid, error)

	// Withdraw removes a bidder from an auction's participant set
	Withdraw(ctx context.Context, auctionID, bidderID uuid.UUID) error

	// WithdrawAll removes a bidder from every auction they can leave,
	// returning the ids of active auctions they could not leave because
	// they hold the highest bid
	WithdrawAll(ctx context.Context, bidderID uuid.UUID) ([]uuid.UUID, error)

	// GetHighestBid retrieves the highest bid for an auction
	GetHighestBid(ctx context.Context, auctionID uuid.UUID) (*bid.Bid, error)

	// GetBids retrieves all bids for an auction
	GetBids(ctx context.Context, auctionID uuid.UUID) ([]*bid.Bid, error)
}

// request to create an auction
type CreateAuctionRequest struct {
	SellerID        uuid.UUID    `json:"seller_id"`
	ItemName        string       `json:"item_name"`
	ItemDescription string       `json:"item_description"`
	StartingPrice   float64      `json:"starting_price"`
	Kind            auction.Kind `json:"kind"`
	EndTime         string       `json:"end_time,omitempty"`
}

// request to place a bid
type PlaceBidRequest struct {
	AuctionID uuid.UUID `json:"auction_id"`
	BidderID  uuid.UUID `json:"bidder_id"`
	Amount    float64   `json:"amount"`
}
