package bid

import (
	"time"

	"github.com/google/uuid"
)

// Bid represents an accepted bid on an auction. Bids are append-only;
// only accepted bids are ever stored, and they are the sole driver of the
// auction's current price and highest bidder.
type Bid struct {
	ID        uuid.UUID `json:"id"`
	AuctionID uuid.UUID `json:"auction_id"`
	BidderID  uuid.UUID `json:"bidder_id"`
	Amount    float64   `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// New builds a bid record for an auction at the moment of acceptance.
func New(auctionID, bidderID uuid.UUID, amount float64) *Bid {
	return &Bid{
		ID:        uuid.New(),
		AuctionID: auctionID,
		BidderID:  bidderID,
		Amount:    amount,
		CreatedAt: time.Now(),
	}
}
