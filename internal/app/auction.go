package app

import (
	"context"
	"time"

	"openlot-auction-service/internal/domain/auction"
	"openlot-auction-service/internal/domain/shared"
	"openlot-auction-service/internal/engine"
	"openlot-auction-service/internal/ports/inbound"
	"openlot-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AuctionService implements the auction use cases
type AuctionService struct {
	store     outbound.AuctionStore
	users     outbound.UserStore
	lifecycle *engine.Controller
	notifier  *engine.Notifier
	logger    zerolog.Logger
}

type AuctionServiceParams struct {
	Store     outbound.AuctionStore
	Users     outbound.UserStore
	Lifecycle *engine.Controller
	Notifier  *engine.Notifier
	Logger    zerolog.Logger
}

// NewAuctionService creates a new auction service
func NewAuctionService(params AuctionServiceParams) *AuctionService {
	return &AuctionService{
		store:     params.Store,
		users:     params.Users,
		lifecycle: params.Lifecycle,
		notifier:  params.Notifier,
		logger:    params.Logger.With().Str("component", "auction_service").Logger(),
	}
}

// CreateAuction creates a new active auction and hands it to the lifecycle
// controller, which arms the deadline timer for fixed-deadline auctions.
func (s *AuctionService) CreateAuction(ctx context.Context, req inbound.CreateAuctionRequest) (*auction.Auction, error) {
	s.logger.Info().
		Str("seller_id", req.SellerID.String()).
		Str("item_name", req.ItemName).
		Str("kind", string(req.Kind)).
		Float64("starting_price", req.StartingPrice).
		Msg("Attempting to create auction")

	if req.ItemName == "" {
		return nil, shared.ErrInvalidRequest
	}
	if req.StartingPrice <= 0 {
		s.logger.Warn().Float64("starting_price", req.StartingPrice).Msg("Starting price must be greater than 0")
		return nil, shared.ErrInvalidStartingPrice
	}
	if req.Kind != auction.KindFixedDeadline && req.Kind != auction.KindOpenEnded {
		return nil, shared.ErrInvalidRequest
	}

	seller, err := s.users.GetByID(ctx, req.SellerID)
	if err != nil {
		s.logger.Error().Err(err).Str("seller_id", req.SellerID.String()).Msg("Seller not found")
		return nil, shared.ErrUserNotFound
	}

	now := time.Now()
	var endTime *time.Time
	if req.Kind == auction.KindFixedDeadline {
		if req.EndTime == "" {
			return nil, shared.ErrEndTimeRequired
		}
		parsed, err := time.Parse(time.RFC3339, req.EndTime)
		if err != nil {
			s.logger.Error().Err(err).Str("end_time", req.EndTime).Msg("Invalid end time format")
			return nil, shared.ErrInvalidEndTime
		}
		if !parsed.After(now) {
			s.logger.Warn().Time("end_time", parsed).Msg("End time must be in the future")
			return nil, shared.ErrInvalidEndTime
		}
		endTime = &parsed
	}

	a := &auction.Auction{
		ID:              uuid.New(),
		ItemName:        req.ItemName,
		ItemDescription: req.ItemDescription,
		SellerID:        seller.ID,
		Kind:            req.Kind,
		StartingPrice:   req.StartingPrice,
		CurrentPrice:    req.StartingPrice,
		Status:          auction.StatusActive,
		EndTime:         endTime,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.store.CreateAuction(ctx, a); err != nil {
		s.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to save auction")
		return nil, err
	}

	s.lifecycle.Track(a)
	s.notifier.AuctionCreated(ctx, a)

	s.logger.Info().
		Str("auction_id", a.ID.String()).
		Str("kind", string(a.Kind)).
		Msg("Auction created successfully")

	return a, nil
}

// GetAuction retrieves an auction by ID
func (s *AuctionService) GetAuction(ctx context.Context, auctionID uuid.UUID) (*auction.Auction, error) {
	a, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		s.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to retrieve auction")
		return nil, err
	}
	return a, nil
}

// ListActive retrieves all auctions still accepting bids
func (s *AuctionService) ListActive(ctx context.Context) ([]*auction.Auction, error) {
	return s.store.ListActive(ctx)
}

// Join registers a bidder as a participant of an auction. Sellers are
// implicit participants of their own auctions and may not join as bidders.
func (s *AuctionService) Join(ctx context.Context, auctionID, bidderID uuid.UUID) error {
	if _, err := s.users.GetByID(ctx, bidderID); err != nil {
		return shared.ErrUserNotFound
	}

	unlock := s.lifecycle.Guard(auctionID)
	defer unlock()

	a, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		return err
	}
	if a.SellerID == bidderID {
		return shared.ErrSellerCannotBid
	}

	if err := s.store.Join(ctx, auctionID, bidderID); err != nil {
		s.logger.Warn().
			Err(err).
			Str("auction_id", auctionID.String()).
			Str("bidder_id", bidderID.String()).
			Msg("Join rejected")
		return err
	}

	s.logger.Info().
		Str("auction_id", auctionID.String()).
		Str("bidder_id", bidderID.String()).
		Msg("Bidder joined auction")
	return nil
}
