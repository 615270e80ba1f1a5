package shared

import "github.com/google/uuid"

// AuctionCloseResult represents the outcome of closing an auction.
// WinnerID is nil when the auction closed with no bids.
type AuctionCloseResult struct {
	AuctionID  uuid.UUID
	WinnerID   *uuid.UUID
	FinalPrice float64
	Status     string
}
