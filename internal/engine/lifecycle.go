package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"openlot-auction-service/internal/domain/auction"
	"openlot-auction-service/internal/domain/shared"
	"openlot-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Stage is the cascade position of an open-ended auction
type Stage string

const (
	StageQuiet      Stage = "quiet"
	StageGoingOnce  Stage = "going_once"
	StageGoingTwice Stage = "going_twice"
	StageFinalizing Stage = "finalizing"
)

// storeRetryDelay is how long a fired callback waits before retrying after
// a transient store failure.
const storeRetryDelay = 500 * time.Millisecond

// CascadeConfig holds the delays of the going-once / going-twice / sold
// sequence for open-ended auctions.
type CascadeConfig struct {
	GoingOnceDelay  time.Duration
	GoingTwiceDelay time.Duration
	FinalizeDelay   time.Duration
}

// DefaultCascadeConfig returns the reference auctioneer timings
func DefaultCascadeConfig() CascadeConfig {
	return CascadeConfig{
		GoingOnceDelay:  30 * time.Second,
		GoingTwiceDelay: 5 * time.Second,
		FinalizeDelay:   5 * time.Second,
	}
}

// cascadeState is the process-local cascade position of one open-ended
// auction. gen increments on every rearm; a fired callback carrying a stale
// gen lost a race against a newer bid and must not act.
type cascadeState struct {
	stage Stage
	gen   uint64
}

// Controller drives the per-auction state machine: deadline close for
// fixed-deadline auctions, and the bid-driven going-once / going-twice /
// sold cascade for open-ended ones. All mutating work for one auction id,
// whether it enters through a bid or through a fired timer, runs under that
// auction's guard, so a bid and a closing callback are totally ordered and
// the first to acquire the lock wins.
type Controller struct {
	store    outbound.AuctionStore
	timers   *TimerManager
	notifier *Notifier
	cfg      CascadeConfig

	locks    *auctionLocks
	mu       sync.Mutex
	cascades map[uuid.UUID]*cascadeState

	ctx    context.Context
	cancel context.CancelFunc
	logger zerolog.Logger
}

type ControllerParams struct {
	Store    outbound.AuctionStore
	Timers   *TimerManager
	Notifier *Notifier
	Config   CascadeConfig
	Logger   zerolog.Logger
}

// NewController creates a new lifecycle controller
func NewController(params ControllerParams) *Controller {
	ctx, cancel := context.WithCancel(context.Background())

	return &Controller{
		store:    params.Store,
		timers:   params.Timers,
		notifier: params.Notifier,
		cfg:      params.Config,
		locks:    newAuctionLocks(),
		cascades: make(map[uuid.UUID]*cascadeState),
		ctx:      ctx,
		cancel:   cancel,
		logger:   params.Logger.With().Str("component", "lifecycle_controller").Logger(),
	}
}

// Guard acquires the serialization lock for an auction id and returns the
// release function. Callers wrap the whole {store mutation, timer rearm,
// broadcast} sequence in one guarded section.
func (c *Controller) Guard(auctionID uuid.UUID) func() {
	m := c.locks.get(auctionID)
	m.Lock()
	return m.Unlock
}

// Track registers a newly created auction with the state machine. A
// fixed-deadline auction gets its close timer armed immediately; an
// open-ended one stays quiet, with no timer, until its first bid.
func (c *Controller) Track(a *auction.Auction) {
	switch a.Kind {
	case auction.KindFixedDeadline:
		delay := time.Until(*a.EndTime)
		if delay < 0 {
			delay = 0
		}
		id := a.ID
		c.timers.Arm(id, delay, func() { c.onDeadline(id) })

		c.logger.Info().
			Str("auction_id", id.String()).
			Time("end_time", *a.EndTime).
			Msg("Deadline timer armed")

	case auction.KindOpenEnded:
		c.mu.Lock()
		c.cascades[a.ID] = &cascadeState{stage: StageQuiet}
		c.mu.Unlock()

		c.logger.Info().
			Str("auction_id", a.ID.String()).
			Msg("Tracking open-ended auction, cascade quiet")
	}
}

// BidAccepted restarts the close cascade after a committed bid. The caller
// must hold the auction's guard; the rearm is part of the same serialized
// unit as the bid commit, which is what keeps a concurrently firing
// callback from finalizing on stale data.
func (c *Controller) BidAccepted(a *auction.Auction) {
	if a.Kind != auction.KindOpenEnded {
		// Fixed-deadline auctions close on schedule regardless of bids.
		return
	}

	c.mu.Lock()
	st, ok := c.cascades[a.ID]
	if !ok {
		st = &cascadeState{}
		c.cascades[a.ID] = st
	}
	st.gen++
	st.stage = StageGoingOnce
	gen := st.gen
	c.mu.Unlock()

	id := a.ID
	c.timers.Arm(id, c.cfg.GoingOnceDelay, func() { c.onGoingOnce(id, gen) })

	c.logger.Debug().
		Str("auction_id", id.String()).
		Uint64("gen", gen).
		Msg("Cascade restarted at going-once")
}

// Stop cancels every armed timer and prevents further transitions. In-flight
// callbacks drain as no-ops.
func (c *Controller) Stop() {
	c.cancel()
	c.timers.CancelAll()
	c.logger.Info().Msg("Lifecycle controller stopped")
}

func (c *Controller) onGoingOnce(id uuid.UUID, gen uint64) {
	unlock := c.Guard(id)
	defer unlock()

	if c.stopped() || !c.stageCurrent(id, gen, StageGoingOnce) {
		return
	}

	a, ok := c.loadActive(id, StageGoingOnce, func() { c.onGoingOnce(id, gen) })
	if !ok {
		return
	}

	c.notifier.GoingOnce(c.ctx, a)

	next := c.advance(id, StageGoingTwice)
	c.timers.Arm(id, c.cfg.GoingTwiceDelay, func() { c.onGoingTwice(id, next) })
}

func (c *Controller) onGoingTwice(id uuid.UUID, gen uint64) {
	unlock := c.Guard(id)
	defer unlock()

	if c.stopped() || !c.stageCurrent(id, gen, StageGoingTwice) {
		return
	}

	a, ok := c.loadActive(id, StageGoingTwice, func() { c.onGoingTwice(id, gen) })
	if !ok {
		return
	}

	c.notifier.GoingTwice(c.ctx, a)

	next := c.advance(id, StageFinalizing)
	c.timers.Arm(id, c.cfg.FinalizeDelay, func() { c.onFinalize(id, next) })
}

func (c *Controller) onFinalize(id uuid.UUID, gen uint64) {
	unlock := c.Guard(id)
	defer unlock()

	if c.stopped() || !c.stageCurrent(id, gen, StageFinalizing) {
		return
	}

	// Re-read under the guard: the price and bidder at scheduling time may
	// be long stale by now.
	a, ok := c.loadActive(id, StageFinalizing, func() { c.onFinalize(id, gen) })
	if !ok {
		return
	}

	c.closeAuction(a)
}

// onDeadline fires once for a fixed-deadline auction. A deadline timer is
// never superseded, so the only guard needed is the status re-check.
func (c *Controller) onDeadline(id uuid.UUID) {
	unlock := c.Guard(id)
	defer unlock()

	if c.stopped() {
		return
	}

	a, err := c.store.GetAuction(c.ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrAuctionNotFound) {
			return
		}
		c.logger.Error().Err(err).Str("auction_id", id.String()).Msg("Failed to load auction at deadline, retrying")
		c.timers.Arm(id, storeRetryDelay, func() { c.onDeadline(id) })
		return
	}
	if !a.IsActive() {
		return
	}

	c.closeAuction(a)
}

// loadActive reads the auction for a fired cascade callback. A missing or
// closed auction ends the cascade; any other store error keeps the cascade
// state and retries the same stage at the same generation, so a newer bid
// still supersedes the retry.
func (c *Controller) loadActive(id uuid.UUID, stage Stage, retry func()) (*auction.Auction, bool) {
	a, err := c.store.GetAuction(c.ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrAuctionNotFound) {
			c.forget(id)
			return nil, false
		}
		c.logger.Error().
			Err(err).
			Str("auction_id", id.String()).
			Str("stage", string(stage)).
			Msg("Store read failed, retrying stage")
		c.timers.Arm(id, storeRetryDelay, retry)
		return nil, false
	}
	if !a.IsActive() {
		c.forget(id)
		return nil, false
	}
	return a, true
}

// closeAuction commits the one-way Active -> Closed transition at the
// current price and highest bidder, tears down timers and cascade state,
// and emits the single SOLD broadcast. Caller holds the auction's guard.
func (c *Controller) closeAuction(a *auction.Auction) {
	result := &shared.AuctionCloseResult{
		AuctionID:  a.ID,
		WinnerID:   a.HighestBidderID,
		FinalPrice: a.CurrentPrice,
		Status:     string(auction.StatusClosed),
	}

	if err := c.store.CloseAuction(c.ctx, a.ID, result.FinalPrice, result.WinnerID); err != nil {
		c.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to close auction")
		return
	}

	c.timers.Cancel(a.ID)
	c.forget(a.ID)
	c.locks.drop(a.ID)

	a.Close()
	c.notifier.Sold(c.ctx, a, result)

	log := c.logger.Info().
		Str("auction_id", a.ID.String()).
		Float64("final_price", result.FinalPrice)
	if result.WinnerID != nil {
		log = log.Str("winner_id", result.WinnerID.String())
	} else {
		log = log.Bool("no_bidders", true)
	}
	log.Msg("Auction closed")
}

// stageCurrent reports whether a fired callback still owns its cascade
// stage. A mismatch means a newer bid superseded the timer after this
// callback was already dispatched; the callback exits silently.
func (c *Controller) stageCurrent(id uuid.UUID, gen uint64, stage Stage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.cascades[id]
	if !ok || st.gen != gen || st.stage != stage {
		c.logger.Debug().
			Str("auction_id", id.String()).
			Uint64("gen", gen).
			Str("stage", string(stage)).
			Msg("Stale timer callback, ignoring")
		return false
	}
	return true
}

// advance moves the cascade to the next stage and returns the new
// generation for the timer about to be armed.
func (c *Controller) advance(id uuid.UUID, next Stage) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.cascades[id]
	if !ok {
		st = &cascadeState{}
		c.cascades[id] = st
	}
	st.stage = next
	st.gen++
	return st.gen
}

func (c *Controller) forget(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cascades, id)
}

func (c *Controller) stopped() bool {
	select {
	case <-c.ctx.Done():
		return true
	default:
		return false
	}
}

// CascadeStage returns the recorded cascade stage for an auction, or
// StageQuiet when none is tracked.
func (c *Controller) CascadeStage(id uuid.UUID) Stage {
	c.mu.Lock()
	defer c.mu.Unlock()

	if st, ok := c.cascades[id]; ok {
		return st.stage
	}
	return StageQuiet
}
