package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/coregmedia/rtb-exchange-backend/internal/domain/campaign"
	"github.com/coregmedia/rtb-exchange-backend/internal/service/auction"
)

// campaignRepository implements auction.CampaignStore on PostgreSQL.
// Listing orders by creation time so every auction sees the same stable
// iteration order, which is also the tie-break order.
type campaignRepository struct {
	db db
}

// NewCampaignRepository creates a campaign store
func NewCampaignRepository(database *sql.DB) auction.CampaignStore {
	return &campaignRepository{db: database}
}

func (r *campaignRepository) ListActiveCampaigns(ctx context.Context) ([]*campaign.Campaign, error) {
	query := `
		SELECT
			id, name, base_bid, destination_url, ad_title, ad_body,
			image_url, targeting, active, created_at, updated_at
		FROM campaigns
		WHERE active = true
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []*campaign.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate campaigns: %w", err)
	}
	return campaigns, nil
}

func scanCampaign(rows *sql.Rows) (*campaign.Campaign, error) {
	var c campaign.Campaign
	var baseBid string
	var adTitle, adBody, imageURL sql.NullString
	var targetingJSON []byte

	err := rows.Scan(
		&c.ID, &c.Name, &baseBid, &c.DestinationURL, &adTitle, &adBody,
		&imageURL, &targetingJSON, &c.Active, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan campaign: %w", err)
	}

	c.AdTitle = adTitle.String
	c.AdBody = adBody.String
	c.ImageURL = imageURL.String
	if c.BaseBid, err = decimal.NewFromString(baseBid); err != nil {
		return nil, fmt.Errorf("failed to parse base bid: %w", err)
	}
	// Malformed targeting blobs degrade to broad targeting
	c.Targeting = campaign.ParseTargeting(targetingJSON)

	return &c, nil
}
