package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"openlot-auction-service/internal/domain/auction"
	"openlot-auction-service/internal/domain/shared"
	"openlot-auction-service/internal/ports/inbound"
	"openlot-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WsHandler manages WebSocket connections and maps wire commands onto the
// auction and bid services.
type WsHandler struct {
	clients        map[string]*WsClient // clientID -> client
	clientsMu      sync.RWMutex
	upgrader       websocket.Upgrader
	auctionService inbound.AuctionService
	bidService     inbound.BidService
	broadcaster    outbound.Broadcaster
	logger         zerolog.Logger
}

type WsHandlerParams struct {
	Upgrader       websocket.Upgrader
	AuctionService inbound.AuctionService
	BidService     inbound.BidService
	Broadcaster    outbound.Broadcaster
	Logger         zerolog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(params WsHandlerParams) *WsHandler {
	return &WsHandler{
		clients:        make(map[string]*WsClient),
		upgrader:       params.Upgrader,
		auctionService: params.AuctionService,
		bidService:     params.BidService,
		broadcaster:    params.Broadcaster,
		logger:         params.Logger.With().Str("component", "ws_handler").Logger(),
	}
}

// HandleWebSocket handles WebSocket connection upgrades
func (h *WsHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userIDStr := r.URL.Query().Get("user_id")
	if userIDStr == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		http.Error(w, "invalid user_id format", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := NewClient(WsClientParams{
		UserID:  userID,
		Conn:    conn,
		Handler: h,
		Logger:  h.logger,
	})

	h.registerClient(client)

	eventChan := make(chan outbound.Event, 100)
	if err := h.broadcaster.Subscribe(r.Context(), userID, client.id, eventChan); err != nil {
		h.logger.Error().Err(err).Str("client_id", client.id).Msg("Failed to subscribe client to events")
		conn.Close()
		h.unregisterClient(client)
		return
	}

	client.Start()
	go h.forwardEvents(client, eventChan)

	go func() {
		<-client.ctx.Done()
		h.disconnectClient(client)
	}()

	h.logger.Info().
		Str("client_id", client.id).
		Str("user_id", client.userID.String()).
		Msg("WebSocket client connected")
}

func (h *WsHandler) registerClient(client *WsClient) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	h.clients[client.id] = client
}

func (h *WsHandler) unregisterClient(client *WsClient) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	delete(h.clients, client.id)
}

// disconnectClient tears down a session: the user leaves every auction they
// can (active auctions where they hold the highest bid keep them registered,
// as the seller must still be able to reach a winner).
func (h *WsHandler) disconnectClient(client *WsClient) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	blocked, err := h.bidService.WithdrawAll(ctx, client.userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", client.userID.String()).Msg("Failed to withdraw user on disconnect")
	}
	for _, auctionID := range blocked {
		h.logger.Info().
			Str("user_id", client.userID.String()).
			Str("auction_id", auctionID.String()).
			Msg("User stays registered: holds the highest bid")
	}

	if err := h.broadcaster.Unsubscribe(ctx, client.userID, client.id); err != nil {
		h.logger.Error().Err(err).Str("client_id", client.id).Msg("Failed to unsubscribe client")
	}

	h.unregisterClient(client)
	client.Stop()

	h.logger.Info().
		Str("client_id", client.id).
		Str("user_id", client.userID.String()).
		Msg("WebSocket client disconnected")
}

// forwardEvents moves broadcast events onto the client's WebSocket
func (h *WsHandler) forwardEvents(client *WsClient, eventChan chan outbound.Event) {
	for {
		select {
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if err := client.Send(h.convertEventToMessage(event)); err != nil {
				h.logger.Warn().Err(err).Str("client_id", client.id).Msg("Failed to forward event to client")
			}
		case <-client.ctx.Done():
			return
		}
	}
}

func (h *WsHandler) convertEventToMessage(event outbound.Event) *ServerMessage {
	msg := NewServerMessage(eventMessageType(event.Type))
	msg.AuctionID = &event.AuctionID
	msg.Data = event.Data
	msg.Timestamp = event.Timestamp

	// The SOLD message names the winner's address so the seller can reach
	// them; enrich when the winner has a live session here.
	if event.Type == outbound.EventTypeSold {
		if winnerID, ok := event.Data["winner_id"].(string); ok {
			if addr := h.remoteAddrForUser(winnerID); addr != "" {
				msg.Data["winner_addr"] = addr
			}
		}
	}
	return msg
}

func eventMessageType(t outbound.EventType) MessageType {
	switch t {
	case outbound.EventTypeBidAccepted:
		return MessageTypeBidAccepted
	case outbound.EventTypeGoingOnce:
		return MessageTypeGoingOnce
	case outbound.EventTypeGoingTwice:
		return MessageTypeGoingTwice
	case outbound.EventTypeSold:
		return MessageTypeSold
	case outbound.EventTypeAuctionCreated:
		return MessageTypeAuctionCreated
	default:
		return MessageTypeError
	}
}

func (h *WsHandler) remoteAddrForUser(userID string) string {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	for _, c := range h.clients {
		if c.userID.String() == userID {
			return c.remoteAddr
		}
	}
	return ""
}

// HandleClientMessage routes a validated client command
func (h *WsHandler) HandleClientMessage(client *WsClient, msg *ClientMessage) error {
	switch msg.Type {
	case MessageTypeJoinAuction:
		return h.handleJoin(client, msg)
	case MessageTypePlaceBid:
		return h.handlePlaceBid(client, msg)
	case MessageTypeWithdraw:
		return h.handleWithdraw(client, msg)
	case MessageTypeCreateAuction:
		return h.handleCreateAuction(client, msg)
	case MessageTypeGetAuction:
		return h.handleGetAuction(client, msg)
	case MessageTypeListAuctions:
		return h.handleListAuctions(client)
	case MessageTypeCheckBid:
		return h.handleCheckBid(client, msg)
	default:
		return shared.ErrUnknownMessageType
	}
}

func (h *WsHandler) handleJoin(client *WsClient, msg *ClientMessage) error {
	ctx := client.ctx
	if err := h.auctionService.Join(ctx, *msg.AuctionID, client.userID); err != nil {
		return err
	}

	response := NewServerMessage(MessageTypeJoined)
	response.AuctionID = msg.AuctionID
	return client.Send(response)
}

func (h *WsHandler) handlePlaceBid(client *WsClient, msg *ClientMessage) error {
	amount := msg.Data["amount"].(float64)

	newBid, err := h.bidService.PlaceBid(client.ctx, inbound.PlaceBidRequest{
		AuctionID: *msg.AuctionID,
		BidderID:  client.userID,
		Amount:    amount,
	})
	if err != nil {
		return err
	}

	response := NewServerMessage(MessageTypeBidAccepted)
	response.AuctionID = msg.AuctionID
	response.Data["bid_id"] = newBid.ID.String()
	response.Data["amount"] = newBid.Amount
	return client.Send(response)
}

func (h *WsHandler) handleWithdraw(client *WsClient, msg *ClientMessage) error {
	if err := h.bidService.Withdraw(client.ctx, *msg.AuctionID, client.userID); err != nil {
		return err
	}

	response := NewServerMessage(MessageTypeWithdrawn)
	response.AuctionID = msg.AuctionID
	return client.Send(response)
}

func (h *WsHandler) handleCreateAuction(client *WsClient, msg *ClientMessage) error {
	req := inbound.CreateAuctionRequest{
		SellerID:      client.userID,
		ItemName:      msg.Data["item_name"].(string),
		StartingPrice: msg.Data["starting_price"].(float64),
		Kind:          auction.Kind(msg.Data["kind"].(string)),
	}
	if desc, ok := msg.Data["item_description"].(string); ok {
		req.ItemDescription = desc
	}
	if endTime, ok := msg.Data["end_time"].(string); ok {
		req.EndTime = endTime
	}

	a, err := h.auctionService.CreateAuction(client.ctx, req)
	if err != nil {
		return err
	}

	return client.Send(NewAuctionInfoMessage(MessageTypeAuctionCreated, a))
}

func (h *WsHandler) handleGetAuction(client *WsClient, msg *ClientMessage) error {
	a, err := h.auctionService.GetAuction(client.ctx, *msg.AuctionID)
	if err != nil {
		return err
	}
	return client.Send(NewAuctionInfoMessage(MessageTypeAuctionInfo, a))
}

func (h *WsHandler) handleListAuctions(client *WsClient) error {
	auctions, err := h.auctionService.ListActive(client.ctx)
	if err != nil {
		return err
	}

	response := NewServerMessage(MessageTypeAuctionList)
	list := make([]map[string]interface{}, 0, len(auctions))
	for _, a := range auctions {
		list = append(list, NewAuctionInfoMessage(MessageTypeAuctionInfo, a).Data)
	}
	response.Data["auctions"] = list
	response.Data["count"] = len(auctions)
	return client.Send(response)
}

func (h *WsHandler) handleCheckBid(client *WsClient, msg *ClientMessage) error {
	response := NewServerMessage(MessageTypeBidStatus)
	response.AuctionID = msg.AuctionID

	highest, err := h.bidService.GetHighestBid(client.ctx, *msg.AuctionID)
	if err != nil {
		if !errors.Is(err, shared.ErrNoBidsFound) {
			return err
		}
		// No bids yet: report the starting price instead
		a, err := h.auctionService.GetAuction(client.ctx, *msg.AuctionID)
		if err != nil {
			return err
		}
		response.Data["amount"] = a.StartingPrice
		response.Data["no_bids"] = true
		return client.Send(response)
	}

	response.Data["amount"] = highest.Amount
	response.Data["bidder_id"] = highest.BidderID.String()
	response.Data["bid_time"] = highest.CreatedAt.Format(time.RFC3339)
	return client.Send(response)
}
