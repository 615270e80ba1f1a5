package broadcaster

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"openlot-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisBroadcaster implements per-user event delivery over Redis pub/sub.
// Each connected client subscribes to its user's channel; publishing to a
// user with no subscribers is a successful drop. Connectivity is the
// session layer's concern, the engine never queues or retries.
type RedisBroadcaster struct {
	client  *redis.Client
	mu      sync.RWMutex
	localCh map[string]chan outbound.Event // clientID -> local channel
	pubsubs map[string]*redis.PubSub       // clientID -> pubsub instance
	ctx     context.Context
	cancel  context.CancelFunc
	logger  zerolog.Logger
}

type RedisBroadcasterParams struct {
	RedisClient *redis.Client
	Logger      zerolog.Logger
}

// NewBroadcaster creates a new Redis broadcaster
func NewBroadcaster(params RedisBroadcasterParams) *RedisBroadcaster {
	ctx, cancel := context.WithCancel(context.Background())

	return &RedisBroadcaster{
		client:  params.RedisClient,
		localCh: make(map[string]chan outbound.Event),
		pubsubs: make(map[string]*redis.PubSub),
		ctx:     ctx,
		cancel:  cancel,
		logger:  params.Logger.With().Str("component", "redis_broadcaster").Logger(),
	}
}

func userChannel(userID uuid.UUID) string {
	return fmt.Sprintf("user:%s", userID.String())
}

// Subscribe wires a connected client to its user's event channel
func (r *RedisBroadcaster) Subscribe(ctx context.Context, userID uuid.UUID, clientID string, eventChan chan outbound.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.pubsubs[clientID]; exists {
		r.logger.Info().
			Str("client_id", clientID).
			Str("user_id", userID.String()).
			Msg("Client already subscribed")
		return nil
	}

	pubsub := r.client.Subscribe(ctx, userChannel(userID))
	r.pubsubs[clientID] = pubsub
	r.localCh[clientID] = eventChan

	go r.forwardMessages(pubsub, clientID, eventChan)

	r.logger.Info().
		Str("client_id", clientID).
		Str("user_id", userID.String()).
		Msg("Client subscribed to user events")
	return nil
}

// Unsubscribe tears down a client's subscription
func (r *RedisBroadcaster) Unsubscribe(ctx context.Context, userID uuid.UUID, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pubsub, exists := r.pubsubs[clientID]
	if !exists {
		return nil
	}

	if err := pubsub.Close(); err != nil {
		r.logger.Error().Err(err).Str("client_id", clientID).Msg("Error closing Redis pubsub for client")
	}
	delete(r.pubsubs, clientID)

	if eventChan, ok := r.localCh[clientID]; ok {
		close(eventChan)
		delete(r.localCh, clientID)
	}

	r.logger.Info().
		Str("client_id", clientID).
		Str("user_id", userID.String()).
		Msg("Client unsubscribed")
	return nil
}

// Publish delivers an event to every connected client of one user
func (r *RedisBroadcaster) Publish(ctx context.Context, userID uuid.UUID, event outbound.Event) error {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	result := r.client.Publish(ctx, userChannel(userID), eventJSON)
	if err := result.Err(); err != nil {
		return fmt.Errorf("failed to publish to Redis: %w", err)
	}

	r.logger.Debug().
		Str("event_type", string(event.Type)).
		Str("user_id", userID.String()).
		Int64("subscriber_count", result.Val()).
		Msg("Published event to user")

	return nil
}

// forwardMessages moves Redis messages onto the client's local channel.
// A full local channel drops the event rather than blocking delivery to
// other clients.
func (r *RedisBroadcaster) forwardMessages(pubsub *redis.PubSub, clientID string, localChan chan outbound.Event) {
	defer func() {
		if err := recover(); err != nil {
			r.logger.Error().Interface("panic", err).Str("client_id", clientID).Msg("Message forwarder panic")
		}
	}()

	ch := pubsub.Channel()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				r.logger.Info().Str("client_id", clientID).Msg("Redis channel closed for client")
				return
			}

			var event outbound.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				r.logger.Error().Err(err).Str("client_id", clientID).Msg("Failed to unmarshal Redis message")
				continue
			}

			select {
			case localChan <- event:
			default:
				r.logger.Warn().Str("client_id", clientID).Msg("Local channel full, dropping event")
			}

		case <-r.ctx.Done():
			return
		}
	}
}

// Close shuts down all subscriptions and the underlying client
func (r *RedisBroadcaster) Close() error {
	r.cancel()

	r.mu.Lock()
	defer r.mu.Unlock()

	for clientID, eventChan := range r.localCh {
		close(eventChan)
		delete(r.localCh, clientID)
	}
	for clientID, pubsub := range r.pubsubs {
		if err := pubsub.Close(); err != nil {
			r.logger.Error().Err(err).Str("client_id", clientID).Msg("Error closing Redis pubsub for client")
		}
		delete(r.pubsubs, clientID)
	}

	return r.client.Close()
}
