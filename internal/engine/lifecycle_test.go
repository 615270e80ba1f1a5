package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"openlot-auction-service/internal/adapters/memstore"
	"openlot-auction-service/internal/domain/auction"
	"openlot-auction-service/internal/domain/shared"
	"openlot-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type publishedEvent struct {
	userID uuid.UUID
	event  outbound.Event
}

// recordingBroadcaster captures every publish for assertions
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (r *recordingBroadcaster) Subscribe(ctx context.Context, userID uuid.UUID, clientID string, eventChan chan outbound.Event) error {
	return nil
}

func (r *recordingBroadcaster) Unsubscribe(ctx context.Context, userID uuid.UUID, clientID string) error {
	return nil
}

func (r *recordingBroadcaster) Publish(ctx context.Context, userID uuid.UUID, event outbound.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, publishedEvent{userID: userID, event: event})
	return nil
}

// eventsFor returns the events one user received, in publish order
func (r *recordingBroadcaster) eventsFor(userID uuid.UUID) []outbound.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []outbound.Event
	for _, pe := range r.events {
		if pe.userID == userID {
			out = append(out, pe.event)
		}
	}
	return out
}

func (r *recordingBroadcaster) countFor(userID uuid.UUID, t outbound.EventType) int {
	n := 0
	for _, e := range r.eventsFor(userID) {
		if e.Type == t {
			n++
		}
	}
	return n
}

type fixture struct {
	store  *memstore.Store
	timers *TimerManager
	ctrl   *Controller
	rb     *recordingBroadcaster
	seller *shared.User
	bidder *shared.User
}

func newFixture(t *testing.T, cfg CascadeConfig) *fixture {
	t.Helper()

	store := memstore.New()
	rb := &recordingBroadcaster{}
	timers := NewTimerManager(zerolog.Nop())
	notifier := NewNotifier(NotifierParams{
		Store:       store,
		Users:       store,
		Broadcaster: rb,
		Logger:      zerolog.Nop(),
	})
	ctrl := NewController(ControllerParams{
		Store:    store,
		Timers:   timers,
		Notifier: notifier,
		Config:   cfg,
		Logger:   zerolog.Nop(),
	})
	t.Cleanup(ctrl.Stop)

	f := &fixture{
		store:  store,
		timers: timers,
		ctrl:   ctrl,
		rb:     rb,
		seller: &shared.User{ID: uuid.New(), Name: "seller", Contact: "seller@example.com"},
		bidder: &shared.User{ID: uuid.New(), Name: "bidder", Contact: "bidder@example.com"},
	}
	require.NoError(t, store.Create(context.Background(), f.seller))
	require.NoError(t, store.Create(context.Background(), f.bidder))
	return f
}

func (f *fixture) createAuction(t *testing.T, kind auction.Kind, endTime *time.Time) *auction.Auction {
	t.Helper()

	now := time.Now()
	a := &auction.Auction{
		ID:            uuid.New(),
		ItemName:      "vintage radio",
		SellerID:      f.seller.ID,
		Kind:          kind,
		StartingPrice: 100,
		CurrentPrice:  100,
		Status:        auction.StatusActive,
		EndTime:       endTime,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, f.store.CreateAuction(context.Background(), a))
	f.ctrl.Track(a)
	return a
}

func (f *fixture) join(t *testing.T, auctionID, bidderID uuid.UUID) {
	t.Helper()
	require.NoError(t, f.store.Join(context.Background(), auctionID, bidderID))
}

// placeBid commits a bid and rearms the cascade, the same guarded unit the
// bid service executes
func (f *fixture) placeBid(t *testing.T, auctionID, bidderID uuid.UUID, amount float64) error {
	t.Helper()

	unlock := f.ctrl.Guard(auctionID)
	defer unlock()

	_, a, err := f.store.AppendBidIfHighest(context.Background(), auctionID, bidderID, amount)
	if err != nil {
		return err
	}
	f.ctrl.BidAccepted(a)
	return nil
}

func (f *fixture) waitClosed(t *testing.T, auctionID uuid.UUID) *auction.Auction {
	t.Helper()

	var got *auction.Auction
	require.Eventually(t, func() bool {
		a, err := f.store.GetAuction(context.Background(), auctionID)
		if err != nil || !a.IsClosed() {
			return false
		}
		got = a
		return true
	}, 3*time.Second, 5*time.Millisecond, "auction did not close")
	return got
}

func fastCascade() CascadeConfig {
	return CascadeConfig{
		GoingOnceDelay:  60 * time.Millisecond,
		GoingTwiceDelay: 40 * time.Millisecond,
		FinalizeDelay:   40 * time.Millisecond,
	}
}

func TestOpenEnded_QuietUntilFirstBid(t *testing.T) {
	f := newFixture(t, fastCascade())
	a := f.createAuction(t, auction.KindOpenEnded, nil)

	assert.False(t, f.timers.Armed(a.ID), "no timer before the first bid")
	assert.Equal(t, StageQuiet, f.ctrl.CascadeStage(a.ID))

	// The auction stays open indefinitely while quiet.
	time.Sleep(200 * time.Millisecond)
	got, err := f.store.GetAuction(context.Background(), a.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive())
}

func TestOpenEnded_CascadeTerminates(t *testing.T) {
	f := newFixture(t, fastCascade())
	a := f.createAuction(t, auction.KindOpenEnded, nil)
	f.join(t, a.ID, f.bidder.ID)

	require.NoError(t, f.placeBid(t, a.ID, f.bidder.ID, 150))
	assert.Equal(t, StageGoingOnce, f.ctrl.CascadeStage(a.ID))
	assert.True(t, f.timers.Armed(a.ID))

	closed := f.waitClosed(t, a.ID)
	assert.Equal(t, 150.0, closed.CurrentPrice)
	require.NotNil(t, closed.HighestBidderID)
	assert.Equal(t, f.bidder.ID, *closed.HighestBidderID)

	// Exactly one going-once, going-twice, sold, in order, after the bid.
	var types []outbound.EventType
	for _, e := range f.rb.eventsFor(f.seller.ID) {
		types = append(types, e.Type)
	}
	assert.Equal(t, []outbound.EventType{
		outbound.EventTypeGoingOnce,
		outbound.EventTypeGoingTwice,
		outbound.EventTypeSold,
	}, types)

	sold := f.rb.eventsFor(f.seller.ID)[2]
	assert.Equal(t, 150.0, sold.Data["final_price"])
	assert.Equal(t, f.bidder.ID.String(), sold.Data["winner_id"])
	assert.Equal(t, f.bidder.Contact, sold.Data["winner_contact"])

	assert.False(t, f.timers.Armed(a.ID), "no timers may stay armed after close")
	assert.Equal(t, StageQuiet, f.ctrl.CascadeStage(a.ID), "cascade state pruned on close")
}

func TestOpenEnded_NewBidRestartsCascade(t *testing.T) {
	cfg := CascadeConfig{
		GoingOnceDelay:  60 * time.Millisecond,
		GoingTwiceDelay: 250 * time.Millisecond,
		FinalizeDelay:   40 * time.Millisecond,
	}
	f := newFixture(t, cfg)
	a := f.createAuction(t, auction.KindOpenEnded, nil)
	f.join(t, a.ID, f.bidder.ID)

	outbidder := &shared.User{ID: uuid.New(), Name: "outbidder", Contact: "outbidder@example.com"}
	require.NoError(t, f.store.Create(context.Background(), outbidder))
	f.join(t, a.ID, outbidder.ID)

	require.NoError(t, f.placeBid(t, a.ID, f.bidder.ID, 150))

	// Wait for the first going-once call, then outbid during the window.
	require.Eventually(t, func() bool {
		return f.rb.countFor(f.seller.ID, outbound.EventTypeGoingOnce) == 1
	}, 3*time.Second, 5*time.Millisecond)

	require.NoError(t, f.placeBid(t, a.ID, outbidder.ID, 200))

	closed := f.waitClosed(t, a.ID)
	assert.Equal(t, 200.0, closed.CurrentPrice)
	require.NotNil(t, closed.HighestBidderID)
	assert.Equal(t, outbidder.ID, *closed.HighestBidderID)

	events := f.rb.eventsFor(f.seller.ID)
	assert.Equal(t, 2, f.rb.countFor(f.seller.ID, outbound.EventTypeGoingOnce),
		"restarted cascade announces going-once again")
	assert.Equal(t, 1, f.rb.countFor(f.seller.ID, outbound.EventTypeGoingTwice))
	assert.Equal(t, 1, f.rb.countFor(f.seller.ID, outbound.EventTypeSold))

	// First call carried 150, the restarted one 200.
	var amounts []float64
	for _, e := range events {
		if e.Type == outbound.EventTypeGoingOnce {
			amounts = append(amounts, e.Data["amount"].(float64))
		}
	}
	assert.Equal(t, []float64{150, 200}, amounts)
}

func TestOpenEnded_BidAfterCloseRejected(t *testing.T) {
	f := newFixture(t, fastCascade())
	a := f.createAuction(t, auction.KindOpenEnded, nil)
	f.join(t, a.ID, f.bidder.ID)

	require.NoError(t, f.placeBid(t, a.ID, f.bidder.ID, 150))
	f.waitClosed(t, a.ID)

	err := f.placeBid(t, a.ID, f.bidder.ID, 300)
	assert.ErrorIs(t, err, shared.ErrAuctionClosed)
}

func TestFixedDeadline_NoBidsClosesAtStartingPrice(t *testing.T) {
	f := newFixture(t, fastCascade())
	end := time.Now().Add(60 * time.Millisecond)
	a := f.createAuction(t, auction.KindFixedDeadline, &end)

	closed := f.waitClosed(t, a.ID)
	assert.Equal(t, 100.0, closed.CurrentPrice)
	assert.Nil(t, closed.HighestBidderID)

	events := f.rb.eventsFor(f.seller.ID)
	require.Len(t, events, 1)
	assert.Equal(t, outbound.EventTypeSold, events[0].Type)
	assert.Equal(t, true, events[0].Data["no_bidders"])
}

func TestFixedDeadline_ClosesAtHighestBid(t *testing.T) {
	f := newFixture(t, fastCascade())
	end := time.Now().Add(120 * time.Millisecond)
	a := f.createAuction(t, auction.KindFixedDeadline, &end)
	f.join(t, a.ID, f.bidder.ID)

	require.NoError(t, f.placeBid(t, a.ID, f.bidder.ID, 175))

	// A bid never starts a cascade on a deadline auction.
	assert.Equal(t, StageQuiet, f.ctrl.CascadeStage(a.ID))

	closed := f.waitClosed(t, a.ID)
	assert.Equal(t, 175.0, closed.CurrentPrice)
	require.NotNil(t, closed.HighestBidderID)
	assert.Equal(t, f.bidder.ID, *closed.HighestBidderID)
	assert.Equal(t, 0, f.rb.countFor(f.seller.ID, outbound.EventTypeGoingOnce))
}

// flakyStore fails a fixed number of reads before recovering, the shape of
// a store hiccup mid-cascade.
type flakyStore struct {
	*memstore.Store
	mu       sync.Mutex
	failures int
}

func (s *flakyStore) GetAuction(ctx context.Context, id uuid.UUID) (*auction.Auction, error) {
	s.mu.Lock()
	if s.failures > 0 {
		s.failures--
		s.mu.Unlock()
		return nil, errors.New("connection reset by peer")
	}
	s.mu.Unlock()
	return s.Store.GetAuction(ctx, id)
}

func TestOpenEnded_CascadeSurvivesStoreHiccup(t *testing.T) {
	store := &flakyStore{Store: memstore.New()}
	rb := &recordingBroadcaster{}
	timers := NewTimerManager(zerolog.Nop())
	notifier := NewNotifier(NotifierParams{
		Store:       store,
		Users:       store,
		Broadcaster: rb,
		Logger:      zerolog.Nop(),
	})
	ctrl := NewController(ControllerParams{
		Store:    store,
		Timers:   timers,
		Notifier: notifier,
		Config:   fastCascade(),
		Logger:   zerolog.Nop(),
	})
	t.Cleanup(ctrl.Stop)

	seller := &shared.User{ID: uuid.New(), Name: "seller", Contact: "seller@example.com"}
	bidder := &shared.User{ID: uuid.New(), Name: "bidder", Contact: "bidder@example.com"}
	require.NoError(t, store.Create(context.Background(), seller))
	require.NoError(t, store.Create(context.Background(), bidder))

	now := time.Now()
	a := &auction.Auction{
		ID:            uuid.New(),
		ItemName:      "vintage radio",
		SellerID:      seller.ID,
		Kind:          auction.KindOpenEnded,
		StartingPrice: 100,
		CurrentPrice:  100,
		Status:        auction.StatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, store.CreateAuction(context.Background(), a))
	ctrl.Track(a)
	require.NoError(t, store.Join(context.Background(), a.ID, bidder.ID))

	unlock := ctrl.Guard(a.ID)
	_, updated, err := store.AppendBidIfHighest(context.Background(), a.ID, bidder.ID, 150)
	require.NoError(t, err)
	ctrl.BidAccepted(updated)
	unlock()

	// The next two callback reads fail; the cascade must retry, not drop.
	store.mu.Lock()
	store.failures = 2
	store.mu.Unlock()

	var closed *auction.Auction
	require.Eventually(t, func() bool {
		got, err := store.Store.GetAuction(context.Background(), a.ID)
		if err != nil || !got.IsClosed() {
			return false
		}
		closed = got
		return true
	}, 5*time.Second, 10*time.Millisecond, "cascade dropped after transient store error")

	assert.Equal(t, 150.0, closed.CurrentPrice)
	require.NotNil(t, closed.HighestBidderID)
	assert.Equal(t, bidder.ID, *closed.HighestBidderID)
	assert.Equal(t, 1, rb.countFor(seller.ID, outbound.EventTypeSold))
}

func TestStaleFinalizeCallbackIsNoop(t *testing.T) {
	f := newFixture(t, CascadeConfig{
		GoingOnceDelay:  time.Hour,
		GoingTwiceDelay: time.Hour,
		FinalizeDelay:   time.Hour,
	})
	a := f.createAuction(t, auction.KindOpenEnded, nil)
	f.join(t, a.ID, f.bidder.ID)
	require.NoError(t, f.placeBid(t, a.ID, f.bidder.ID, 150))

	// A finalize callback whose generation was superseded must not close
	// the auction, whatever it captured at scheduling time.
	f.ctrl.onFinalize(a.ID, 999)

	got, err := f.store.GetAuction(context.Background(), a.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive())
	assert.Equal(t, 0, f.rb.countFor(f.seller.ID, outbound.EventTypeSold))
}
