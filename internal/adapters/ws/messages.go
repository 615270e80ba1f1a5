package ws

import (
	"encoding/json"
	"fmt"
	"time"

	"openlot-auction-service/internal/domain/auction"
	"openlot-auction-service/internal/domain/shared"

	"github.com/google/uuid"
)

type MessageType string

const (
	// Client to Server message types
	MessageTypeJoinAuction   MessageType = "join_auction"
	MessageTypePlaceBid      MessageType = "place_bid"
	MessageTypeWithdraw      MessageType = "withdraw"
	MessageTypeCreateAuction MessageType = "create_auction"
	MessageTypeGetAuction    MessageType = "get_auction"
	MessageTypeListAuctions  MessageType = "list_auctions"
	MessageTypeCheckBid      MessageType = "check_bid"
	MessageTypePing          MessageType = "ping"

	// Server to Client message types
	MessageTypeBidAccepted    MessageType = "bid_accepted"
	MessageTypeGoingOnce      MessageType = "going_once"
	MessageTypeGoingTwice     MessageType = "going_twice"
	MessageTypeSold           MessageType = "sold"
	MessageTypeAuctionCreated MessageType = "auction_created"
	MessageTypeBidStatus      MessageType = "bid_status"
	MessageTypeAuctionList    MessageType = "auction_list"
	MessageTypeAuctionInfo    MessageType = "auction_info"
	MessageTypeJoined         MessageType = "joined"
	MessageTypeWithdrawn      MessageType = "withdrawn"
	MessageTypeError          MessageType = "error"
	MessageTypePong           MessageType = "pong"
)

// ClientMessage represents a command received from a client
type ClientMessage struct {
	Type      MessageType            `json:"type"`
	AuctionID *uuid.UUID             `json:"auction_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// ServerMessage represents a message sent from server to client
type ServerMessage struct {
	Type      MessageType            `json:"type"`
	AuctionID *uuid.UUID             `json:"auction_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Error     *string                `json:"error,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

func NewServerMessage(msgType MessageType) *ServerMessage {
	return &ServerMessage{
		Type:      msgType,
		Data:      make(map[string]interface{}),
		Timestamp: time.Now().Unix(),
	}
}

func NewErrorMessage(err string, auctionID *uuid.UUID) *ServerMessage {
	return &ServerMessage{
		Type:      MessageTypeError,
		AuctionID: auctionID,
		Error:     &err,
		Timestamp: time.Now().Unix(),
	}
}

// NewAuctionInfoMessage packs an auction snapshot for the client
func NewAuctionInfoMessage(msgType MessageType, a *auction.Auction) *ServerMessage {
	msg := NewServerMessage(msgType)
	msg.AuctionID = &a.ID
	msg.Data["item_name"] = a.ItemName
	msg.Data["item_description"] = a.ItemDescription
	msg.Data["seller_id"] = a.SellerID.String()
	msg.Data["kind"] = string(a.Kind)
	msg.Data["starting_price"] = a.StartingPrice
	msg.Data["current_price"] = a.CurrentPrice
	msg.Data["status"] = string(a.Status)
	if a.EndTime != nil {
		msg.Data["end_time"] = a.EndTime.Format(time.RFC3339)
	}
	return msg
}

// ParseClientMessage parses a JSON message from client
func ParseClientMessage(data []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse client message: %w", err)
	}

	if msg.Type == "" {
		return nil, shared.ErrMessageTypeRequired
	}

	return &msg, nil
}

func (m *ClientMessage) validateAuctionID() error {
	if m.AuctionID == nil || *m.AuctionID == uuid.Nil {
		return shared.ErrAuctionIDRequired
	}
	return nil
}

// Validate validates a client message
func (m *ClientMessage) Validate() error {
	switch m.Type {
	case MessageTypeJoinAuction, MessageTypeWithdraw, MessageTypeGetAuction, MessageTypeCheckBid:
		if err := m.validateAuctionID(); err != nil {
			return err
		}
	case MessageTypePlaceBid:
		if err := m.validateAuctionID(); err != nil {
			return err
		}
		amount, ok := m.Data["amount"].(float64)
		if !ok || amount <= 0 {
			return shared.ErrInvalidAmount
		}
	case MessageTypeCreateAuction:
		name, _ := m.Data["item_name"].(string)
		if name == "" {
			return shared.ErrItemNameRequired
		}
		kind, _ := m.Data["kind"].(string)
		if auction.Kind(kind) != auction.KindFixedDeadline && auction.Kind(kind) != auction.KindOpenEnded {
			return shared.ErrKindRequired
		}
		price, ok := m.Data["starting_price"].(float64)
		if !ok || price <= 0 {
			return shared.ErrStartingPriceRequired
		}
	case MessageTypeListAuctions:

	case MessageTypePing:

	default:
		return shared.ErrUnknownMessageType
	}

	return nil
}
