package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coregmedia/rtb-exchange-backend/internal/domain/bid"
	"github.com/coregmedia/rtb-exchange-backend/internal/service/auction"
)

// bidRepository implements auction.BidRepository on PostgreSQL
type bidRepository struct {
	db   db
	conn *sql.DB
}

// NewBidRepository creates a bid repository
func NewBidRepository(database *sql.DB) auction.BidRepository {
	return &bidRepository{db: database, conn: database}
}

const insertBidQuery = `
	INSERT INTO bids (
		id, request_id, campaign_id, bid_price, score,
		ad_markup, click_url, impression_url, won, reason, created_at
	) VALUES (
		$1, $2, $3, $4, $5,
		$6, $7, $8, $9, $10, $11
	)
`

func (r *bidRepository) Create(ctx context.Context, b *bid.Bid) error {
	if b.CampaignID == uuid.Nil {
		return errors.New("campaign_id cannot be nil")
	}
	if b.RequestID == "" {
		return errors.New("request_id cannot be empty")
	}

	_, err := r.db.ExecContext(ctx, insertBidQuery,
		b.ID, b.RequestID, b.CampaignID, b.BidPrice.String(), b.Score.String(),
		b.AdMarkup, b.ClickURL, b.ImpressionURL, b.Won, nullString(b.Reason), b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create bid: %w", err)
	}
	return nil
}

// CreateBatch inserts all bids for one request in a single transaction so
// winner selection never runs against partially persisted bids.
func (r *bidRepository) CreateBatch(ctx context.Context, bids []*bid.Bid) error {
	if len(bids) == 0 {
		return nil
	}

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin bid batch: %w", err)
	}
	defer tx.Rollback()

	for _, b := range bids {
		_, err := tx.ExecContext(ctx, insertBidQuery,
			b.ID, b.RequestID, b.CampaignID, b.BidPrice.String(), b.Score.String(),
			b.AdMarkup, b.ClickURL, b.ImpressionURL, b.Won, nullString(b.Reason), b.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert bid %s: %w", b.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit bid batch: %w", err)
	}
	return nil
}

func (r *bidRepository) GetByRequestID(ctx context.Context, requestID string) ([]*bid.Bid, error) {
	query := `
		SELECT
			id, request_id, campaign_id, bid_price, score,
			ad_markup, click_url, impression_url, won, reason, created_at
		FROM bids
		WHERE request_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bids: %w", err)
	}
	defer rows.Close()

	var bids []*bid.Bid
	for rows.Next() {
		var b bid.Bid
		var price, score string
		var reason sql.NullString

		err := rows.Scan(
			&b.ID, &b.RequestID, &b.CampaignID, &price, &score,
			&b.AdMarkup, &b.ClickURL, &b.ImpressionURL, &b.Won, &reason, &b.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}

		b.Reason = reason.String
		if b.BidPrice, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("failed to parse bid price: %w", err)
		}
		if b.Score, err = decimal.NewFromString(score); err != nil {
			return nil, fmt.Errorf("failed to parse score: %w", err)
		}
		bids = append(bids, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bids: %w", err)
	}
	return bids, nil
}

func (r *bidRepository) UpdateOutcome(ctx context.Context, b *bid.Bid) error {
	query := `
		UPDATE bids
		SET won = $2, reason = $3
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, b.ID, b.Won, nullString(b.Reason))
	if err != nil {
		return fmt.Errorf("failed to update bid outcome: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("bid %s not found", b.ID)
	}
	return nil
}
