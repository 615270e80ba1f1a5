package auction

import (
	"time"

	"github.com/google/uuid"
)

// Kind determines how an auction terminates
type Kind string

const (
	// KindFixedDeadline closes at a predetermined end time regardless of bidding
	KindFixedDeadline Kind = "fixed_deadline"
	// KindOpenEnded closes after a quiet period with no new bids
	KindOpenEnded Kind = "open_ended"
)

// Status represents the current status of an auction
type Status string

const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

// Auction represents a live auction for a single item. Item metadata,
// starting price, seller and kind are immutable after creation; only
// CurrentPrice, HighestBidderID and Status mutate while the auction runs.
type Auction struct {
	ID              uuid.UUID  `json:"id"`
	ItemName        string     `json:"item_name"`
	ItemDescription string     `json:"item_description"`
	SellerID        uuid.UUID  `json:"seller_id"`
	Kind            Kind       `json:"kind"`
	StartingPrice   float64    `json:"starting_price"`
	CurrentPrice    float64    `json:"current_price"`
	HighestBidderID *uuid.UUID `json:"highest_bidder_id,omitempty"`
	Status          Status     `json:"status"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// IsActive returns true if the auction is still accepting bids
func (a *Auction) IsActive() bool {
	return a.Status == StatusActive
}

// IsClosed returns true if the auction has closed
func (a *Auction) IsClosed() bool {
	return a.Status == StatusClosed
}

// HasBids returns true if at least one bid has been accepted
func (a *Auction) HasBids() bool {
	return a.HighestBidderID != nil
}

// RecordBid applies an accepted bid to the running price and highest bidder.
// Amount validation belongs to the store's atomic append, not here.
func (a *Auction) RecordBid(bidderID uuid.UUID, amount float64) {
	a.CurrentPrice = amount
	a.HighestBidderID = &bidderID
	a.UpdatedAt = time.Now()
}

// Close marks the auction as closed. Closed is terminal.
func (a *Auction) Close() {
	a.Status = StatusClosed
	a.UpdatedAt = time.Now()
}
