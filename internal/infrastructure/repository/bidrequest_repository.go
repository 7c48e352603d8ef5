package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coregmedia/rtb-exchange-backend/internal/domain/bidrequest"
	"github.com/coregmedia/rtb-exchange-backend/internal/service/auction"
)

// bidRequestRepository implements auction.BidRequestRepository on PostgreSQL
type bidRequestRepository struct {
	db db
}

// NewBidRequestRepository creates a bid request repository
func NewBidRequestRepository(database *sql.DB) auction.BidRequestRepository {
	return &bidRequestRepository{db: database}
}

func (r *bidRequestRepository) Create(ctx context.Context, req *bidrequest.BidRequest) error {
	if req.RequestID == "" {
		return errors.New("request_id cannot be empty")
	}

	geoJSON, err := json.Marshal(req.Geo)
	if err != nil {
		return fmt.Errorf("failed to marshal geo: %w", err)
	}
	profileJSON, err := json.Marshal(req.Profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	query := `
		INSERT INTO bid_requests (
			request_id, session_id, user_id, site_id, device_type,
			user_agent, ip_address, geo, profile, auction_type,
			floor_price, timeout_ms, created_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13
		)
	`

	_, err = r.db.ExecContext(ctx, query,
		req.RequestID, req.SessionID, nullString(req.UserID), nullString(req.SiteID), string(req.DeviceType),
		nullString(req.UserAgent), nullString(req.IPAddress), geoJSON, profileJSON, string(req.AuctionType),
		req.FloorPrice.String(), req.Timeout.Milliseconds(), req.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create bid request: %w", err)
	}
	return nil
}

func (r *bidRequestRepository) GetByRequestID(ctx context.Context, requestID string) (*bidrequest.BidRequest, error) {
	query := `
		SELECT
			request_id, session_id, user_id, site_id, device_type,
			user_agent, ip_address, geo, profile, auction_type,
			floor_price, timeout_ms, created_at
		FROM bid_requests
		WHERE request_id = $1
	`

	var req bidrequest.BidRequest
	var userID, siteID, userAgent, ipAddress sql.NullString
	var deviceType, auctionType, floorPrice string
	var geoJSON, profileJSON []byte
	var timeoutMS int64

	err := r.db.QueryRowContext(ctx, query, requestID).Scan(
		&req.RequestID, &req.SessionID, &userID, &siteID, &deviceType,
		&userAgent, &ipAddress, &geoJSON, &profileJSON, &auctionType,
		&floorPrice, &timeoutMS, &req.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get bid request: %w", err)
	}

	req.UserID = userID.String
	req.SiteID = siteID.String
	req.UserAgent = userAgent.String
	req.IPAddress = ipAddress.String
	req.DeviceType = bidrequest.ParseDeviceType(deviceType)
	req.AuctionType = bidrequest.AuctionType(auctionType)
	req.Timeout = time.Duration(timeoutMS) * time.Millisecond

	if req.FloorPrice, err = decimal.NewFromString(floorPrice); err != nil {
		return nil, fmt.Errorf("failed to parse floor price: %w", err)
	}
	if len(geoJSON) > 0 {
		var geo bidrequest.Geo
		if json.Unmarshal(geoJSON, &geo) == nil && geo != (bidrequest.Geo{}) {
			req.Geo = &geo
		}
	}
	if len(profileJSON) > 0 {
		_ = json.Unmarshal(profileJSON, &req.Profile)
	}

	return &req, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
