package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coregmedia/rtb-exchange-backend/internal/domain/bid"
	"github.com/coregmedia/rtb-exchange-backend/internal/domain/bidrequest"
	"github.com/coregmedia/rtb-exchange-backend/internal/domain/campaign"
	"github.com/coregmedia/rtb-exchange-backend/internal/domain/errors"
	"github.com/coregmedia/rtb-exchange-backend/internal/service/auction"
)

// CampaignStore is an in-memory campaign store with stable iteration order
type CampaignStore struct {
	mu        sync.Mutex
	Campaigns []*campaign.Campaign
	Err       error
}

func (s *CampaignStore) ListActiveCampaigns(ctx context.Context) ([]*campaign.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]*campaign.Campaign, 0, len(s.Campaigns))
	for _, c := range s.Campaigns {
		if c.Active {
			out = append(out, c)
		}
	}
	return out, nil
}

// BidRequestRepo is an in-memory bid request repository
type BidRequestRepo struct {
	mu       sync.Mutex
	requests map[string]*bidrequest.BidRequest
	Err      error
}

func NewBidRequestRepo() *BidRequestRepo {
	return &BidRequestRepo{requests: make(map[string]*bidrequest.BidRequest)}
}

func (r *BidRequestRepo) Create(ctx context.Context, req *bidrequest.BidRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.requests[req.RequestID] = req
	return nil
}

func (r *BidRequestRepo) GetByRequestID(ctx context.Context, requestID string) (*bidrequest.BidRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	return r.requests[requestID], nil
}

// BidRepo is an in-memory bid repository
type BidRepo struct {
	mu        sync.Mutex
	bids      map[string][]*bid.Bid
	CreateErr error
	UpdateErr error
}

func NewBidRepo() *BidRepo {
	return &BidRepo{bids: make(map[string][]*bid.Bid)}
}

func (r *BidRepo) Create(ctx context.Context, b *bid.Bid) error {
	return r.CreateBatch(ctx, []*bid.Bid{b})
}

func (r *BidRepo) CreateBatch(ctx context.Context, bids []*bid.Bid) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CreateErr != nil {
		return r.CreateErr
	}
	for _, b := range bids {
		copied := *b
		r.bids[b.RequestID] = append(r.bids[b.RequestID], &copied)
	}
	return nil
}

func (r *BidRepo) GetByRequestID(ctx context.Context, requestID string) ([]*bid.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*bid.Bid, len(r.bids[requestID]))
	copy(out, r.bids[requestID])
	return out, nil
}

func (r *BidRepo) UpdateOutcome(ctx context.Context, b *bid.Bid) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.UpdateErr != nil {
		return r.UpdateErr
	}
	for _, stored := range r.bids[b.RequestID] {
		if stored.ID == b.ID {
			stored.Won = b.Won
			stored.Reason = b.Reason
			return nil
		}
	}
	return errors.ErrBidNotFound
}

// AuctionRepo is an in-memory auction repository
type AuctionRepo struct {
	mu        sync.Mutex
	auctions  map[string]*bid.Auction
	CreateErr error
	UpdateErr error
}

func NewAuctionRepo() *AuctionRepo {
	return &AuctionRepo{auctions: make(map[string]*bid.Auction)}
}

func (r *AuctionRepo) Create(ctx context.Context, a *bid.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CreateErr != nil {
		return r.CreateErr
	}
	copied := *a
	r.auctions[a.RequestID] = &copied
	return nil
}

func (r *AuctionRepo) GetByRequestID(ctx context.Context, requestID string) (*bid.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ar, ok := r.auctions[requestID]
	if !ok {
		return nil, nil
	}
	copied := *ar
	return &copied, nil
}

func (r *AuctionRepo) UpdateResult(ctx context.Context, requestID string, update auction.ResultUpdate) (*bid.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.UpdateErr != nil {
		return nil, r.UpdateErr
	}
	a, ok := r.auctions[requestID]
	if !ok {
		return nil, errors.ErrAuctionNotFound
	}
	if update.Served != nil {
		a.Served = *update.Served
	}
	if update.Clicked != nil {
		a.Clicked = *update.Clicked
	}
	if update.Converted != nil {
		a.Converted = *update.Converted
	}
	if update.Revenue != nil {
		a.Revenue = *update.Revenue
	}
	a.UpdatedAt = time.Now().UTC()
	copied := *a
	return &copied, nil
}

// TrackingRepo is an in-memory impression/click event store
type TrackingRepo struct {
	mu          sync.Mutex
	Impressions []TrackingEvent
	Clicks      []TrackingEvent
	Err         error
}

// TrackingEvent is one recorded impression or click
type TrackingEvent struct {
	ClickID    uuid.UUID
	RequestID  string
	CampaignID uuid.UUID
}

func (r *TrackingRepo) CreateImpression(ctx context.Context, requestID string, campaignID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Impressions = append(r.Impressions, TrackingEvent{RequestID: requestID, CampaignID: campaignID})
	return nil
}

func (r *TrackingRepo) CreateClick(ctx context.Context, clickID uuid.UUID, requestID string, campaignID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Clicks = append(r.Clicks, TrackingEvent{ClickID: clickID, RequestID: requestID, CampaignID: campaignID})
	return nil
}

// Metrics is a no-op metrics collector that counts calls
type Metrics struct {
	mu             sync.Mutex
	Auctions       int
	AuctionsWon    int
	BidsGenerated  int
	TrackingEvents map[string]int
}

func NewMetrics() *Metrics {
	return &Metrics{TrackingEvents: make(map[string]int)}
}

func (m *Metrics) RecordAuction(ctx context.Context, won bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Auctions++
	if won {
		m.AuctionsWon++
	}
}

func (m *Metrics) RecordAuctionDuration(ctx context.Context, d time.Duration) {}

func (m *Metrics) RecordBidsGenerated(ctx context.Context, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BidsGenerated += count
}

func (m *Metrics) RecordWinningPrice(ctx context.Context, price decimal.Decimal) {}

func (m *Metrics) RecordTrackingEvent(ctx context.Context, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TrackingEvents[kind]++
}
