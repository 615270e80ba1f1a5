package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TimerManager owns every scheduled, cancellable delayed action, keyed by
// auction id. At most one timer is armed per auction at any time: arming a
// new one first stops whatever was armed before (superseding semantics), so
// two close cascades can never run concurrently for one auction.
//
// Cancellation is best effort. A callback that was already dispatched when
// its timer was cancelled still runs; callers must re-check auction state
// inside the callback rather than rely on cancellation alone.
type TimerManager struct {
	mu     sync.Mutex
	timers map[uuid.UUID]*time.Timer
	logger zerolog.Logger
}

// NewTimerManager creates a new timer manager
func NewTimerManager(logger zerolog.Logger) *TimerManager {
	return &TimerManager{
		timers: make(map[uuid.UUID]*time.Timer),
		logger: logger.With().Str("component", "timer_manager").Logger(),
	}
}

// Arm schedules fn to run after delay on the auction's behalf, superseding
// any previously armed timer for the same auction id.
func (m *TimerManager) Arm(auctionID uuid.UUID, delay time.Duration, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.timers[auctionID]; ok {
		prev.Stop()
		m.logger.Debug().Str("auction_id", auctionID.String()).Msg("Superseded armed timer")
	}

	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		m.mu.Lock()
		// A rearm may have replaced this handle between firing and now;
		// only the current handle removes itself.
		if m.timers[auctionID] == t {
			delete(m.timers, auctionID)
		}
		m.mu.Unlock()

		fn()
	})
	m.timers[auctionID] = t

	m.logger.Debug().
		Str("auction_id", auctionID.String()).
		Dur("delay", delay).
		Msg("Timer armed")
}

// Cancel stops and removes the armed timer for an auction. It is idempotent
// and reports whether a pending timer was actually stopped.
func (m *TimerManager) Cancel(auctionID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.timers[auctionID]
	if !ok {
		return false
	}
	delete(m.timers, auctionID)

	stopped := t.Stop()
	m.logger.Debug().
		Str("auction_id", auctionID.String()).
		Bool("stopped", stopped).
		Msg("Timer cancelled")
	return stopped
}

// Armed reports whether a timer is currently armed for an auction
func (m *TimerManager) Armed(auctionID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.timers[auctionID]
	return ok
}

// CancelAll stops every armed timer. Used on shutdown.
func (m *TimerManager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, t := range m.timers {
		t.Stop()
		delete(m.timers, id)
	}
	m.logger.Info().Msg("All timers cancelled")
}
