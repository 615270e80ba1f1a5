package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"openlot-auction-service/internal/domain/auction"
	"openlot-auction-service/internal/domain/bid"
	"openlot-auction-service/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// AuctionStore implements the auction store interface on PostgreSQL.
// AppendBidIfHighest and CloseAuction take a row lock on the auction so the
// check-then-update is atomic; no price or bidder is ever written from a
// stale read.
type AuctionStore struct {
	conn *Connection
}

// NewAuctionStore creates a new PostgreSQL auction store
func NewAuctionStore(conn *Connection) *AuctionStore {
	return &AuctionStore{conn: conn}
}

const auctionColumns = `id, item_name, item_description, seller_id, kind,
	starting_price, current_price, highest_bidder_id, status, end_time,
	created_at, updated_at`

// CreateAuction persists a new auction
func (s *AuctionStore) CreateAuction(ctx context.Context, a *auction.Auction) error {
	query := `
		INSERT INTO auctions (` + auctionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := s.conn.GetDB().ExecContext(ctx, query,
		a.ID,
		a.ItemName,
		a.ItemDescription,
		a.SellerID,
		a.Kind,
		a.StartingPrice,
		a.CurrentPrice,
		a.HighestBidderID,
		a.Status,
		a.EndTime,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create auction: %w", err)
	}

	return nil
}

// GetAuction retrieves an auction by ID
func (s *AuctionStore) GetAuction(ctx context.Context, id uuid.UUID) (*auction.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1`

	a, err := scanAuction(s.conn.GetDB().QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrAuctionNotFound
		}
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}

	return a, nil
}

// ListActive retrieves all auctions still accepting bids
func (s *AuctionStore) ListActive(ctx context.Context) ([]*auction.Auction, error) {
	query := `
		SELECT ` + auctionColumns + `
		FROM auctions
		WHERE status = 'active'
		ORDER BY created_at ASC
	`

	rows, err := s.conn.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active auctions: %w", err)
	}
	defer rows.Close()

	var auctions []*auction.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan auction: %w", err)
		}
		auctions = append(auctions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating auctions: %w", err)
	}

	return auctions, nil
}

// AppendBidIfHighest atomically validates and commits a bid inside one
// transaction, holding the auction row lock across the checks and updates.
func (s *AuctionStore) AppendBidIfHighest(ctx context.Context, auctionID, bidderID uuid.UUID, amount float64) (*bid.Bid, *auction.Auction, error) {
	var newBid *bid.Bid
	var updated *auction.Auction

	err := s.conn.ExecuteTransaction(func(tx *sql.Tx) error {
		lockQuery := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1 FOR UPDATE`

		a, err := scanAuction(tx.QueryRowContext(ctx, lockQuery, auctionID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return shared.ErrAuctionNotFound
			}
			return fmt.Errorf("failed to lock auction: %w", err)
		}

		if !a.IsActive() {
			return shared.ErrAuctionClosed
		}

		var joined bool
		memberQuery := `
			SELECT EXISTS (
				SELECT 1 FROM auction_participants
				WHERE auction_id = $1 AND user_id = $2
			)
		`
		if err := tx.QueryRowContext(ctx, memberQuery, auctionID, bidderID).Scan(&joined); err != nil {
			return fmt.Errorf("failed to check participant: %w", err)
		}
		if !joined {
			return shared.ErrNotRegistered
		}

		if amount < a.StartingPrice {
			return shared.ErrBidTooLow
		}
		if a.HasBids() && amount <= a.CurrentPrice {
			return shared.ErrBidTooLow
		}

		b := bid.New(auctionID, bidderID, amount)
		bidQuery := `
			INSERT INTO bids (id, auction_id, bidder_id, amount, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`
		if _, err := tx.ExecContext(ctx, bidQuery, b.ID, b.AuctionID, b.BidderID, b.Amount, b.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert bid: %w", err)
		}

		updateQuery := `
			UPDATE auctions
			SET current_price = $2, highest_bidder_id = $3, updated_at = $4
			WHERE id = $1
		`
		if _, err := tx.ExecContext(ctx, updateQuery, auctionID, b.Amount, b.BidderID, b.CreatedAt); err != nil {
			return fmt.Errorf("failed to update auction price: %w", err)
		}

		a.RecordBid(bidderID, amount)
		newBid = b
		updated = a
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return newBid, updated, nil
}

// GetHighestBid retrieves the highest accepted bid for an auction
func (s *AuctionStore) GetHighestBid(ctx context.Context, auctionID uuid.UUID) (*bid.Bid, error) {
	query := `
		SELECT id, auction_id, bidder_id, amount, created_at
		FROM bids
		WHERE auction_id = $1
		ORDER BY amount DESC, created_at ASC
		LIMIT 1
	`

	var b bid.Bid
	err := s.conn.GetDB().QueryRowContext(ctx, query, auctionID).Scan(
		&b.ID,
		&b.AuctionID,
		&b.BidderID,
		&b.Amount,
		&b.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrNoBidsFound
		}
		return nil, fmt.Errorf("failed to get highest bid: %w", err)
	}

	return &b, nil
}

// GetBids retrieves all accepted bids for an auction, highest first
func (s *AuctionStore) GetBids(ctx context.Context, auctionID uuid.UUID) ([]*bid.Bid, error) {
	query := `
		SELECT id, auction_id, bidder_id, amount, created_at
		FROM bids
		WHERE auction_id = $1
		ORDER BY amount DESC, created_at ASC
	`

	rows, err := s.conn.GetDB().QueryContext(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bids: %w", err)
	}
	defer rows.Close()

	var bids []*bid.Bid
	for rows.Next() {
		var b bid.Bid
		if err := rows.Scan(&b.ID, &b.AuctionID, &b.BidderID, &b.Amount, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		bids = append(bids, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bids: %w", err)
	}

	return bids, nil
}

// CloseAuction marks an active auction closed at the final price and winner
func (s *AuctionStore) CloseAuction(ctx context.Context, auctionID uuid.UUID, finalPrice float64, winnerID *uuid.UUID) error {
	query := `
		UPDATE auctions
		SET status = 'closed', current_price = $2, highest_bidder_id = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'active'
	`

	result, err := s.conn.GetDB().ExecContext(ctx, query, auctionID, finalPrice, winnerID)
	if err != nil {
		return fmt.Errorf("failed to close auction: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return shared.ErrAuctionClosed
	}

	return nil
}

// Join registers a bidder as a participant of an active auction
func (s *AuctionStore) Join(ctx context.Context, auctionID, bidderID uuid.UUID) error {
	return s.conn.ExecuteTransaction(func(tx *sql.Tx) error {
		var status auction.Status
		if err := tx.QueryRowContext(ctx,
			`SELECT status FROM auctions WHERE id = $1 FOR UPDATE`, auctionID,
		).Scan(&status); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return shared.ErrAuctionNotFound
			}
			return fmt.Errorf("failed to lock auction: %w", err)
		}
		if status != auction.StatusActive {
			return shared.ErrAuctionClosed
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO auction_participants (auction_id, user_id) VALUES ($1, $2)`,
			auctionID, bidderID,
		)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
				return shared.ErrAlreadyJoined
			}
			return fmt.Errorf("failed to join auction: %w", err)
		}
		return nil
	})
}

// Withdraw removes a bidder from the participant set unless they hold the
// highest bid on an active auction
func (s *AuctionStore) Withdraw(ctx context.Context, auctionID, bidderID uuid.UUID) error {
	return s.conn.ExecuteTransaction(func(tx *sql.Tx) error {
		var status auction.Status
		var highestBidder *uuid.UUID
		if err := tx.QueryRowContext(ctx,
			`SELECT status, highest_bidder_id FROM auctions WHERE id = $1 FOR UPDATE`, auctionID,
		).Scan(&status, &highestBidder); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return shared.ErrAuctionNotFound
			}
			return fmt.Errorf("failed to lock auction: %w", err)
		}

		if status == auction.StatusActive && highestBidder != nil && *highestBidder == bidderID {
			return shared.ErrIsHighestBidder
		}

		_, err := tx.ExecContext(ctx,
			`DELETE FROM auction_participants WHERE auction_id = $1 AND user_id = $2`,
			auctionID, bidderID,
		)
		if err != nil {
			return fmt.Errorf("failed to withdraw from auction: %w", err)
		}
		return nil
	})
}

// Participants returns the bidder identities joined to an auction
func (s *AuctionStore) Participants(ctx context.Context, auctionID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.conn.GetDB().QueryContext(ctx,
		`SELECT user_id FROM auction_participants WHERE auction_id = $1`, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	defer rows.Close()

	var participants []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participants: %w", err)
	}

	return participants, nil
}

// AuctionsWonByHighestBidder returns active auctions where the user holds
// the highest bid
func (s *AuctionStore) AuctionsWonByHighestBidder(ctx context.Context, bidderID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.conn.GetDB().QueryContext(ctx,
		`SELECT id FROM auctions WHERE status = 'active' AND highest_bidder_id = $1`, bidderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get auctions for highest bidder: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan auction id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating auction ids: %w", err)
	}

	return ids, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAuction(row rowScanner) (*auction.Auction, error) {
	var a auction.Auction
	var highestBidder uuid.NullUUID
	var endTime sql.NullTime

	err := row.Scan(
		&a.ID,
		&a.ItemName,
		&a.ItemDescription,
		&a.SellerID,
		&a.Kind,
		&a.StartingPrice,
		&a.CurrentPrice,
		&highestBidder,
		&a.Status,
		&endTime,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if highestBidder.Valid {
		a.HighestBidderID = &highestBidder.UUID
	}
	if endTime.Valid {
		a.EndTime = &endTime.Time
	}
	return &a, nil
}
