package app

import (
	"context"
	"testing"
	"time"

	"openlot-auction-service/internal/adapters/memstore"
	"openlot-auction-service/internal/domain/auction"
	"openlot-auction-service/internal/domain/shared"
	"openlot-auction-service/internal/engine"
	"openlot-auction-service/internal/ports/inbound"
	"openlot-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// nopBroadcaster satisfies outbound.Broadcaster; delivery is covered by the
// engine and adapter tests.
type nopBroadcaster struct{}

func (nopBroadcaster) Subscribe(ctx context.Context, userID uuid.UUID, clientID string, eventChan chan outbound.Event) error {
	return nil
}

func (nopBroadcaster) Unsubscribe(ctx context.Context, userID uuid.UUID, clientID string) error {
	return nil
}

func (nopBroadcaster) Publish(ctx context.Context, userID uuid.UUID, event outbound.Event) error {
	return nil
}

type services struct {
	store    *memstore.Store
	ctrl     *engine.Controller
	auctions *AuctionService
	bids     *BidService
}

// newServices wires the services against the in-memory store with cascade
// delays long enough that no timer fires during a unit test.
func newServices(t *testing.T) *services {
	t.Helper()

	store := memstore.New()
	timers := engine.NewTimerManager(zerolog.Nop())
	notifier := engine.NewNotifier(engine.NotifierParams{
		Store:       store,
		Users:       store,
		Broadcaster: nopBroadcaster{},
		Logger:      zerolog.Nop(),
	})
	ctrl := engine.NewController(engine.ControllerParams{
		Store:    store,
		Timers:   timers,
		Notifier: notifier,
		Config: engine.CascadeConfig{
			GoingOnceDelay:  time.Hour,
			GoingTwiceDelay: time.Hour,
			FinalizeDelay:   time.Hour,
		},
		Logger: zerolog.Nop(),
	})
	t.Cleanup(ctrl.Stop)

	return &services{
		store: store,
		ctrl:  ctrl,
		auctions: NewAuctionService(AuctionServiceParams{
			Store:     store,
			Users:     store,
			Lifecycle: ctrl,
			Notifier:  notifier,
			Logger:    zerolog.Nop(),
		}),
		bids: NewBidService(BidServiceParams{
			Store:     store,
			Users:     store,
			Lifecycle: ctrl,
			Notifier:  notifier,
			Logger:    zerolog.Nop(),
		}),
	}
}

func (s *services) newUser(t *testing.T, name string) *shared.User {
	t.Helper()

	u := &shared.User{ID: uuid.New(), Name: name, Contact: name + "@example.com"}
	require.NoError(t, s.store.Create(context.Background(), u))
	return u
}

func (s *services) newOpenEndedAuction(t *testing.T, seller *shared.User, startingPrice float64) *auction.Auction {
	t.Helper()

	a, err := s.auctions.CreateAuction(context.Background(), inbound.CreateAuctionRequest{
		SellerID:      seller.ID,
		ItemName:      "antique clock",
		StartingPrice: startingPrice,
		Kind:          auction.KindOpenEnded,
	})
	require.NoError(t, err)
	return a
}
