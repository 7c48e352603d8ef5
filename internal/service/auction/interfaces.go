package auction

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coregmedia/rtb-exchange-backend/internal/domain/bid"
	"github.com/coregmedia/rtb-exchange-backend/internal/domain/bidrequest"
	"github.com/coregmedia/rtb-exchange-backend/internal/domain/campaign"
)

// CampaignStore supplies the campaigns competing in auctions
type CampaignStore interface {
	// ListActiveCampaigns returns all campaigns eligible to bid, in a
	// stable iteration order. The order is the auction tie-break order.
	ListActiveCampaigns(ctx context.Context) ([]*campaign.Campaign, error)
}

// BidRequestRepository persists bid requests
type BidRequestRepository interface {
	// Create stores a new bid request
	Create(ctx context.Context, req *bidrequest.BidRequest) error
	// GetByRequestID retrieves a bid request by its opaque token
	GetByRequestID(ctx context.Context, requestID string) (*bidrequest.BidRequest, error)
}

// BidRepository persists scored bids
type BidRepository interface {
	// Create stores a single bid
	Create(ctx context.Context, b *bid.Bid) error
	// CreateBatch stores all bids for one request before winner selection
	CreateBatch(ctx context.Context, bids []*bid.Bid) error
	// GetByRequestID returns all bids recorded for a request
	GetByRequestID(ctx context.Context, requestID string) ([]*bid.Bid, error)
	// UpdateOutcome persists the won flag and outcome reason
	UpdateOutcome(ctx context.Context, b *bid.Bid) error
}

// AuctionRepository persists auction outcomes
type AuctionRepository interface {
	// Create stores a new auction outcome
	Create(ctx context.Context, a *bid.Auction) error
	// GetByRequestID retrieves the auction for a request
	GetByRequestID(ctx context.Context, requestID string) (*bid.Auction, error)
	// UpdateResult applies a partial attribution update
	UpdateResult(ctx context.Context, requestID string, update ResultUpdate) (*bid.Auction, error)
}

// TrackingRepository records raw impression and click events for reporting
type TrackingRepository interface {
	// CreateImpression records one impression event keyed by request ID
	CreateImpression(ctx context.Context, requestID string, campaignID uuid.UUID) error
	// CreateClick records one click event under a fresh click ID
	CreateClick(ctx context.Context, clickID uuid.UUID, requestID string, campaignID uuid.UUID) error
}

// ResultUpdate is a partial update to an auction outcome. Nil fields are
// left untouched; set fields overwrite (last write wins).
type ResultUpdate struct {
	Served    *bool
	Clicked   *bool
	Converted *bool
	Revenue   *decimal.Decimal
}

// MetricsCollector records auction engine metrics
type MetricsCollector interface {
	// RecordAuction records one completed auction and whether it produced
	// a winner
	RecordAuction(ctx context.Context, won bool)
	// RecordAuctionDuration records auction wall-clock timing
	RecordAuctionDuration(ctx context.Context, d time.Duration)
	// RecordBidsGenerated records the number of bids produced per auction
	RecordBidsGenerated(ctx context.Context, count int)
	// RecordWinningPrice records the winning bid price distribution
	RecordWinningPrice(ctx context.Context, price decimal.Decimal)
	// RecordTrackingEvent records an attribution event by kind
	RecordTrackingEvent(ctx context.Context, kind string)
}

// MultiplierFunc is a pluggable score multiplier. The quality and
// time-of-day factors are wired through this so future weighting can be
// dropped in without touching the scorer contract.
type MultiplierFunc func(c *campaign.Campaign, req *bidrequest.BidRequest) decimal.Decimal

// Result is the outcome of one auction run
type Result struct {
	RequestID  string
	WinningBid *bid.Bid
	TotalBids  int
	Duration   time.Duration
}

// Selector chooses a winning campaign for one request context. The scored
// RTB auction and the simple weighted-random path are separate strategies
// behind this interface.
type Selector interface {
	// SelectCampaign returns the chosen campaign, or nil when nothing is
	// eligible
	SelectCampaign(ctx context.Context, req *bidrequest.BidRequest) (*campaign.Campaign, error)
}
