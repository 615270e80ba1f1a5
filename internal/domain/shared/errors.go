package shared

import "errors"

// Domain-specific errors
var (
	// Auction errors
	ErrAuctionNotFound      = errors.New("auction not found")
	ErrAuctionClosed        = errors.New("auction is closed")
	ErrInvalidStartingPrice = errors.New("starting price must be greater than 0")
	ErrInvalidEndTime       = errors.New("end time must be in the future")
	ErrEndTimeRequired      = errors.New("end time is required for fixed-deadline auctions")

	// Bid errors
	ErrBidTooLow     = errors.New("bid amount must be higher than the current highest bid")
	ErrBidInvalid    = errors.New("bid amount must be greater than 0")
	ErrNoBidsFound   = errors.New("no bids found")
	ErrNotRegistered = errors.New("bidder has not joined this auction")

	// Participant errors
	ErrAlreadyJoined   = errors.New("already joined this auction")
	ErrIsHighestBidder = errors.New("cannot withdraw while holding the highest bid")
	ErrSellerCannotBid = errors.New("seller cannot bid on their own auction")

	// User errors
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")

	// Validation errors
	ErrInvalidRequest = errors.New("invalid request")

	// Store errors
	ErrStoreUnavailable = errors.New("auction store unavailable")

	// WebSocket message validation errors
	ErrMessageTypeRequired   = errors.New("message type is required")
	ErrAuctionIDRequired     = errors.New("auction_id is required")
	ErrInvalidAmount         = errors.New("valid amount is required")
	ErrItemNameRequired      = errors.New("item_name is required")
	ErrKindRequired          = errors.New("valid auction kind is required")
	ErrStartingPriceRequired = errors.New("starting_price is required")
	ErrUnknownMessageType    = errors.New("unknown message type")

	// Broadcasting errors
	ErrBroadcastFailed = errors.New("broadcast failed")
)
