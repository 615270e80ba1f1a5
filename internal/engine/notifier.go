package engine

import (
	"context"
	"time"

	"openlot-auction-service/internal/domain/auction"
	"openlot-auction-service/internal/domain/bid"
	"openlot-auction-service/internal/domain/shared"
	"openlot-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Notifier fans lifecycle and bid events out to every participant of an
// auction plus its seller. It owns what to send and to whom; actual
// delivery (and dropping events for disconnected users) belongs to the
// broadcaster. Exactly one broadcast is issued per lifecycle transition.
type Notifier struct {
	store       outbound.AuctionStore
	users       outbound.UserStore
	broadcaster outbound.Broadcaster
	logger      zerolog.Logger
}

type NotifierParams struct {
	Store       outbound.AuctionStore
	Users       outbound.UserStore
	Broadcaster outbound.Broadcaster
	Logger      zerolog.Logger
}

// NewNotifier creates a new notifier
func NewNotifier(params NotifierParams) *Notifier {
	return &Notifier{
		store:       params.Store,
		users:       params.Users,
		broadcaster: params.Broadcaster,
		logger:      params.Logger.With().Str("component", "notifier").Logger(),
	}
}

// AuctionCreated announces a newly advertised auction to its seller
func (n *Notifier) AuctionCreated(ctx context.Context, a *auction.Auction) {
	event := outbound.Event{
		Type:      outbound.EventTypeAuctionCreated,
		AuctionID: a.ID,
		Data: map[string]interface{}{
			"item_name":      a.ItemName,
			"starting_price": a.StartingPrice,
			"kind":           string(a.Kind),
		},
		Timestamp: time.Now().Unix(),
	}
	n.deliver(ctx, a, event)
}

// BidAccepted announces an accepted bid with the new amount and bidder
func (n *Notifier) BidAccepted(ctx context.Context, a *auction.Auction, b *bid.Bid) {
	event := outbound.Event{
		Type:      outbound.EventTypeBidAccepted,
		AuctionID: a.ID,
		Data: map[string]interface{}{
			"item_name": a.ItemName,
			"amount":    b.Amount,
			"bidder_id": b.BidderID.String(),
		},
		Timestamp: b.CreatedAt.Unix(),
	}
	n.deliver(ctx, a, event)
}

// GoingOnce announces the first auctioneer call with the current amount
func (n *Notifier) GoingOnce(ctx context.Context, a *auction.Auction) {
	n.deliver(ctx, a, n.callEvent(outbound.EventTypeGoingOnce, a))
}

// GoingTwice announces the second auctioneer call with the current amount
func (n *Notifier) GoingTwice(ctx context.Context, a *auction.Auction) {
	n.deliver(ctx, a, n.callEvent(outbound.EventTypeGoingTwice, a))
}

// Sold announces the closing of an auction. When the auction closed with a
// winner, the event carries the winner's identity and contact details.
func (n *Notifier) Sold(ctx context.Context, a *auction.Auction, result *shared.AuctionCloseResult) {
	data := map[string]interface{}{
		"item_name":   a.ItemName,
		"final_price": result.FinalPrice,
	}
	if result.WinnerID != nil {
		data["winner_id"] = result.WinnerID.String()
		if winner, err := n.users.GetByID(ctx, *result.WinnerID); err == nil {
			data["winner_name"] = winner.Name
			data["winner_contact"] = winner.Contact
		}
	} else {
		data["no_bidders"] = true
	}

	event := outbound.Event{
		Type:      outbound.EventTypeSold,
		AuctionID: a.ID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	n.deliver(ctx, a, event)
}

func (n *Notifier) callEvent(t outbound.EventType, a *auction.Auction) outbound.Event {
	return outbound.Event{
		Type:      t,
		AuctionID: a.ID,
		Data: map[string]interface{}{
			"item_name": a.ItemName,
			"amount":    a.CurrentPrice,
		},
		Timestamp: time.Now().Unix(),
	}
}

// deliver resolves the recipient set and publishes the event once per user.
// A failed publish is logged and skipped; one slow or gone recipient never
// blocks the others.
func (n *Notifier) deliver(ctx context.Context, a *auction.Auction, event outbound.Event) {
	recipients, err := n.store.Participants(ctx, a.ID)
	if err != nil {
		n.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to resolve participants")
		recipients = nil
	}

	seen := make(map[uuid.UUID]bool, len(recipients)+1)
	for _, userID := range append(recipients, a.SellerID) {
		if seen[userID] {
			continue
		}
		seen[userID] = true

		if err := n.broadcaster.Publish(ctx, userID, event); err != nil {
			n.logger.Warn().
				Err(err).
				Str("auction_id", a.ID.String()).
				Str("user_id", userID.String()).
				Str("event_type", string(event.Type)).
				Msg("Failed to publish event to user")
		}
	}

	n.logger.Info().
		Str("auction_id", a.ID.String()).
		Str("event_type", string(event.Type)).
		Int("recipients", len(seen)).
		Msg("Event broadcast")
}
