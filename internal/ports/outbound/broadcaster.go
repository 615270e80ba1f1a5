package outbound

import (
	"context"

	"github.com/google/uuid"
)

// EventType represents the type of event being broadcasted
type EventType string

const (
	EventTypeAuctionCreated EventType = "auction.created"
	EventTypeBidAccepted    EventType = "bid.accepted"
	EventTypeGoingOnce      EventType = "auction.going_once"
	EventTypeGoingTwice     EventType = "auction.going_twice"
	EventTypeSold           EventType = "auction.sold"
	EventTypeError          EventType = "error"
)

// Event represents a single lifecycle or bid event for one auction
type Event struct {
	Type      EventType              `json:"type"`
	AuctionID uuid.UUID              `json:"auction_id"`
	Data      map[string]interface{} `json:"data"`
	Timestamp int64                  `json:"timestamp"`
}

// Broadcaster delivers events to connected users. Delivery is per user
// identity: the engine's notifier decides the recipient set for each event,
// the broadcaster only moves it to whoever is connected. Events for users
// with no open subscription are dropped, never queued.
type Broadcaster interface {
	// Subscribe registers a connected user's event channel
	Subscribe(ctx context.Context, userID uuid.UUID, clientID string, eventChan chan Event) error

	// Unsubscribe removes a connected user's event channel
	Unsubscribe(ctx context.Context, userID uuid.UUID, clientID string) error

	// Publish delivers an event to a single user, on every client they
	// have connected. Returns nil when the user is not connected.
	Publish(ctx context.Context, userID uuid.UUID, event Event) error
}
