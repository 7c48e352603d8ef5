package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/coregmedia/rtb-exchange-backend/internal/service/auction"
)

// trackingRepository persists raw impression and click events. Attribution
// state lives on the auction row; these tables are the append-only event log.
type trackingRepository struct {
	db db
}

// NewTrackingRepository creates a tracking repository
func NewTrackingRepository(database *sql.DB) auction.TrackingRepository {
	return &trackingRepository{db: database}
}

func (r *trackingRepository) CreateImpression(ctx context.Context, requestID string, campaignID uuid.UUID) error {
	query := `
		INSERT INTO impressions (request_id, campaign_id, occurred_at)
		VALUES ($1, $2, $3)
	`
	if _, err := r.db.ExecContext(ctx, query, requestID, campaignID, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to create impression: %w", err)
	}
	return nil
}

func (r *trackingRepository) CreateClick(ctx context.Context, clickID uuid.UUID, requestID string, campaignID uuid.UUID) error {
	query := `
		INSERT INTO clicks (id, request_id, campaign_id, occurred_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.db.ExecContext(ctx, query, clickID, requestID, campaignID, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to create click: %w", err)
	}
	return nil
}
