package app

import (
	"context"
	"testing"
	"time"

	"openlot-auction-service/internal/domain/auction"
	"openlot-auction-service/internal/domain/shared"
	"openlot-auction-service/internal/ports/inbound"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAuction_OpenEnded(t *testing.T) {
	s := newServices(t)
	seller := s.newUser(t, "seller")

	a, err := s.auctions.CreateAuction(context.Background(), inbound.CreateAuctionRequest{
		SellerID:        seller.ID,
		ItemName:        "antique clock",
		ItemDescription: "brass, working order",
		StartingPrice:   100,
		Kind:            auction.KindOpenEnded,
	})
	require.NoError(t, err)

	assert.Equal(t, auction.StatusActive, a.Status)
	assert.Equal(t, 100.0, a.CurrentPrice, "current price starts at the starting price")
	assert.Nil(t, a.HighestBidderID)
	assert.Nil(t, a.EndTime)

	got, err := s.auctions.GetAuction(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, "antique clock", got.ItemName)
}

func TestCreateAuction_FixedDeadline(t *testing.T) {
	s := newServices(t)
	seller := s.newUser(t, "seller")
	end := time.Now().Add(time.Hour).Truncate(time.Second)

	a, err := s.auctions.CreateAuction(context.Background(), inbound.CreateAuctionRequest{
		SellerID:      seller.ID,
		ItemName:      "oil painting",
		StartingPrice: 250,
		Kind:          auction.KindFixedDeadline,
		EndTime:       end.Format(time.RFC3339),
	})
	require.NoError(t, err)

	require.NotNil(t, a.EndTime)
	assert.True(t, a.EndTime.Equal(end))
}

func TestCreateAuction_Validation(t *testing.T) {
	s := newServices(t)
	seller := s.newUser(t, "seller")

	tests := []struct {
		name    string
		req     inbound.CreateAuctionRequest
		wantErr error
	}{
		{
			name: "missing item name",
			req: inbound.CreateAuctionRequest{
				SellerID: seller.ID, StartingPrice: 100, Kind: auction.KindOpenEnded,
			},
			wantErr: shared.ErrInvalidRequest,
		},
		{
			name: "non-positive starting price",
			req: inbound.CreateAuctionRequest{
				SellerID: seller.ID, ItemName: "clock", StartingPrice: 0, Kind: auction.KindOpenEnded,
			},
			wantErr: shared.ErrInvalidStartingPrice,
		},
		{
			name: "unknown kind",
			req: inbound.CreateAuctionRequest{
				SellerID: seller.ID, ItemName: "clock", StartingPrice: 100, Kind: auction.Kind("dutch"),
			},
			wantErr: shared.ErrInvalidRequest,
		},
		{
			name: "unknown seller",
			req: inbound.CreateAuctionRequest{
				SellerID: uuid.New(), ItemName: "clock", StartingPrice: 100, Kind: auction.KindOpenEnded,
			},
			wantErr: shared.ErrUserNotFound,
		},
		{
			name: "deadline kind without end time",
			req: inbound.CreateAuctionRequest{
				SellerID: seller.ID, ItemName: "clock", StartingPrice: 100, Kind: auction.KindFixedDeadline,
			},
			wantErr: shared.ErrEndTimeRequired,
		},
		{
			name: "unparseable end time",
			req: inbound.CreateAuctionRequest{
				SellerID: seller.ID, ItemName: "clock", StartingPrice: 100,
				Kind: auction.KindFixedDeadline, EndTime: "tomorrow noon",
			},
			wantErr: shared.ErrInvalidEndTime,
		},
		{
			name: "end time in the past",
			req: inbound.CreateAuctionRequest{
				SellerID: seller.ID, ItemName: "clock", StartingPrice: 100,
				Kind:    auction.KindFixedDeadline,
				EndTime: time.Now().Add(-time.Hour).Format(time.RFC3339),
			},
			wantErr: shared.ErrInvalidEndTime,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.auctions.CreateAuction(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestListActive_ExcludesClosed(t *testing.T) {
	s := newServices(t)
	seller := s.newUser(t, "seller")

	open := s.newOpenEndedAuction(t, seller, 100)
	closed := s.newOpenEndedAuction(t, seller, 100)
	require.NoError(t, s.store.CloseAuction(context.Background(), closed.ID, 100, nil))

	active, err := s.auctions.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, open.ID, active[0].ID)
}

func TestJoin(t *testing.T) {
	s := newServices(t)
	seller := s.newUser(t, "seller")
	bidder := s.newUser(t, "bidder")
	a := s.newOpenEndedAuction(t, seller, 100)

	require.NoError(t, s.auctions.Join(context.Background(), a.ID, bidder.ID))

	participants, err := s.store.Participants(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{bidder.ID}, participants)

	err = s.auctions.Join(context.Background(), a.ID, bidder.ID)
	assert.ErrorIs(t, err, shared.ErrAlreadyJoined)
}

func TestJoin_Rejections(t *testing.T) {
	s := newServices(t)
	seller := s.newUser(t, "seller")
	bidder := s.newUser(t, "bidder")
	a := s.newOpenEndedAuction(t, seller, 100)

	err := s.auctions.Join(context.Background(), a.ID, uuid.New())
	assert.ErrorIs(t, err, shared.ErrUserNotFound)

	err = s.auctions.Join(context.Background(), uuid.New(), bidder.ID)
	assert.ErrorIs(t, err, shared.ErrAuctionNotFound)

	err = s.auctions.Join(context.Background(), a.ID, seller.ID)
	assert.ErrorIs(t, err, shared.ErrSellerCannotBid)

	require.NoError(t, s.store.CloseAuction(context.Background(), a.ID, 100, nil))
	err = s.auctions.Join(context.Background(), a.ID, bidder.ID)
	assert.ErrorIs(t, err, shared.ErrAuctionClosed)
}
