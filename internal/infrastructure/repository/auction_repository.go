package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coregmedia/rtb-exchange-backend/internal/domain/bid"
	domainerrors "github.com/coregmedia/rtb-exchange-backend/internal/domain/errors"
	"github.com/coregmedia/rtb-exchange-backend/internal/service/auction"
)

// auctionRepository implements auction.AuctionRepository on PostgreSQL
type auctionRepository struct {
	db db
}

// NewAuctionRepository creates an auction repository
func NewAuctionRepository(database *sql.DB) auction.AuctionRepository {
	return &auctionRepository{db: database}
}

func (r *auctionRepository) Create(ctx context.Context, a *bid.Auction) error {
	if a.RequestID == "" {
		return errors.New("request_id cannot be empty")
	}

	query := `
		INSERT INTO auctions (
			request_id, winning_bid_id, winning_price, second_price,
			total_bids, duration_ms, served, clicked, converted, revenue,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9, $10,
			$11, $12
		)
	`

	var winningBidID interface{}
	if a.WinningBidID != nil {
		winningBidID = *a.WinningBidID
	}
	var secondPrice interface{}
	if a.SecondPrice != nil {
		secondPrice = a.SecondPrice.String()
	}

	_, err := r.db.ExecContext(ctx, query,
		a.RequestID, winningBidID, a.WinningPrice.String(), secondPrice,
		a.TotalBids, a.DurationMS, a.Served, a.Clicked, a.Converted, a.Revenue.String(),
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create auction: %w", err)
	}
	return nil
}

func (r *auctionRepository) GetByRequestID(ctx context.Context, requestID string) (*bid.Auction, error) {
	query := `
		SELECT
			request_id, winning_bid_id, winning_price, second_price,
			total_bids, duration_ms, served, clicked, converted, revenue,
			created_at, updated_at
		FROM auctions
		WHERE request_id = $1
	`
	return r.scanAuction(r.db.QueryRowContext(ctx, query, requestID))
}

// UpdateResult applies a partial attribution update. Nil fields are left
// untouched; set fields overwrite.
func (r *auctionRepository) UpdateResult(ctx context.Context, requestID string, update auction.ResultUpdate) (*bid.Auction, error) {
	query := `
		UPDATE auctions
		SET served    = COALESCE($2, served),
		    clicked   = COALESCE($3, clicked),
		    converted = COALESCE($4, converted),
		    revenue   = COALESCE($5, revenue),
		    updated_at = $6
		WHERE request_id = $1
		RETURNING
			request_id, winning_bid_id, winning_price, second_price,
			total_bids, duration_ms, served, clicked, converted, revenue,
			created_at, updated_at
	`

	var revenue interface{}
	if update.Revenue != nil {
		revenue = update.Revenue.String()
	}

	a, err := r.scanAuction(r.db.QueryRowContext(ctx, query,
		requestID, update.Served, update.Clicked, update.Converted, revenue, time.Now().UTC(),
	))
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, domainerrors.ErrAuctionNotFound
	}
	return a, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *auctionRepository) scanAuction(row rowScanner) (*bid.Auction, error) {
	var a bid.Auction
	var winningBidID sql.NullString
	var winningPrice, revenue string
	var secondPrice sql.NullString

	err := row.Scan(
		&a.RequestID, &winningBidID, &winningPrice, &secondPrice,
		&a.TotalBids, &a.DurationMS, &a.Served, &a.Clicked, &a.Converted, &revenue,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan auction: %w", err)
	}

	if winningBidID.Valid {
		id, err := uuid.Parse(winningBidID.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse winning bid id: %w", err)
		}
		a.WinningBidID = &id
	}
	if a.WinningPrice, err = decimal.NewFromString(winningPrice); err != nil {
		return nil, fmt.Errorf("failed to parse winning price: %w", err)
	}
	if secondPrice.Valid {
		price, err := decimal.NewFromString(secondPrice.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse second price: %w", err)
		}
		a.SecondPrice = &price
	}
	if a.Revenue, err = decimal.NewFromString(revenue); err != nil {
		return nil, fmt.Errorf("failed to parse revenue: %w", err)
	}

	return &a, nil
}
