package app

import (
	"context"
	"errors"

	"openlot-auction-service/internal/domain/bid"
	"openlot-auction-service/internal/domain/shared"
	"openlot-auction-service/internal/engine"
	"openlot-auction-service/internal/ports/inbound"
	"openlot-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BidService implements the bid use cases. Every mutation of one auction's
// state runs under the lifecycle controller's guard for that auction id, so
// the {commit, cascade rearm, broadcast} sequence is applied as one unit
// before any other bid or timer callback for the same auction proceeds.
type BidService struct {
	store     outbound.AuctionStore
	users     outbound.UserStore
	lifecycle *engine.Controller
	notifier  *engine.Notifier
	logger    zerolog.Logger
}

type BidServiceParams struct {
	Store     outbound.AuctionStore
	Users     outbound.UserStore
	Lifecycle *engine.Controller
	Notifier  *engine.Notifier
	Logger    zerolog.Logger
}

// NewBidService creates a new bid service
func NewBidService(params BidServiceParams) *BidService {
	return &BidService{
		store:     params.Store,
		users:     params.Users,
		lifecycle: params.Lifecycle,
		notifier:  params.Notifier,
		logger:    params.Logger.With().Str("component", "bid_service").Logger(),
	}
}

// PlaceBid places a new bid on an auction
func (s *BidService) PlaceBid(ctx context.Context, req inbound.PlaceBidRequest) (*bid.Bid, error) {
	s.logger.Info().
		Str("auction_id", req.AuctionID.String()).
		Str("bidder_id", req.BidderID.String()).
		Float64("amount", req.Amount).
		Msg("Attempting to place bid")

	if req.Amount <= 0 {
		s.logger.Warn().Float64("amount", req.Amount).Msg("Invalid bid amount (must be > 0)")
		return nil, shared.ErrBidInvalid
	}

	if _, err := s.users.GetByID(ctx, req.BidderID); err != nil {
		s.logger.Error().Err(err).Str("bidder_id", req.BidderID.String()).Msg("Bidder not found")
		return nil, shared.ErrUserNotFound
	}

	unlock := s.lifecycle.Guard(req.AuctionID)
	defer unlock()

	newBid, auc, err := s.store.AppendBidIfHighest(ctx, req.AuctionID, req.BidderID, req.Amount)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("auction_id", req.AuctionID.String()).
			Float64("amount", req.Amount).
			Msg("Bid rejected")
		return nil, err
	}

	// Still inside the guarded section: a cascade timer firing right now
	// waits until the rearm below lands, so it can never finalize against
	// the pre-bid price.
	s.lifecycle.BidAccepted(auc)
	s.notifier.BidAccepted(ctx, auc, newBid)

	s.logger.Info().
		Str("bid_id", newBid.ID.String()).
		Str("auction_id", newBid.AuctionID.String()).
		Float64("amount", newBid.Amount).
		Msg("Bid placed successfully")

	return newBid, nil
}

// Withdraw removes a bidder from an auction's participant set. It fails
// with shared.ErrIsHighestBidder while the bidder holds the highest bid on
// an active auction; withdrawing when not a participant is a no-op.
func (s *BidService) Withdraw(ctx context.Context, auctionID, bidderID uuid.UUID) error {
	unlock := s.lifecycle.Guard(auctionID)
	defer unlock()

	if err := s.store.Withdraw(ctx, auctionID, bidderID); err != nil {
		s.logger.Warn().
			Err(err).
			Str("auction_id", auctionID.String()).
			Str("bidder_id", bidderID.String()).
			Msg("Withdraw rejected")
		return err
	}

	s.logger.Info().
		Str("auction_id", auctionID.String()).
		Str("bidder_id", bidderID.String()).
		Msg("Bidder withdrawn from auction")
	return nil
}

// WithdrawAll removes a bidder from every active auction they can leave and
// returns the ids of auctions where they hold the highest bid and must stay.
func (s *BidService) WithdrawAll(ctx context.Context, bidderID uuid.UUID) ([]uuid.UUID, error) {
	active, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	var blocked []uuid.UUID
	for _, a := range active {
		if err := s.Withdraw(ctx, a.ID, bidderID); err != nil {
			if errors.Is(err, shared.ErrIsHighestBidder) {
				blocked = append(blocked, a.ID)
				continue
			}
			return blocked, err
		}
	}
	return blocked, nil
}

// GetHighestBid retrieves the highest bid for an auction
func (s *BidService) GetHighestBid(ctx context.Context, auctionID uuid.UUID) (*bid.Bid, error) {
	return s.store.GetHighestBid(ctx, auctionID)
}

// GetBids retrieves all bids for an auction
func (s *BidService) GetBids(ctx context.Context, auctionID uuid.UUID) ([]*bid.Bid, error) {
	return s.store.GetBids(ctx, auctionID)
}
