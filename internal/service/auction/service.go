package auction

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coregmedia/rtb-exchange-backend/internal/domain/bid"
	"github.com/coregmedia/rtb-exchange-backend/internal/domain/bidrequest"
	"github.com/coregmedia/rtb-exchange-backend/internal/domain/errors"
)

// AdRequestContext is the serving layer's description of one ad
// opportunity. It is validated before a bid request is created from it.
type AdRequestContext struct {
	SessionID  string            `json:"session_id" validate:"required"`
	UserID     string            `json:"user_id,omitempty"`
	SiteID     string            `json:"site_id,omitempty"`
	DeviceType string            `json:"device_type,omitempty" validate:"omitempty,oneof=mobile desktop tablet unknown"`
	UserAgent  string            `json:"user_agent,omitempty"`
	IPAddress  string            `json:"ip_address,omitempty" validate:"omitempty,ip"`
	Geo        *bidrequest.Geo   `json:"geo,omitempty"`
	Responses  map[string]string `json:"responses,omitempty"`

	AuctionType string  `json:"auction_type,omitempty" validate:"omitempty,oneof=first_price second_price"`
	FloorPrice  string  `json:"floor_price,omitempty"`
	TimeoutMS   int     `json:"timeout_ms,omitempty" validate:"omitempty,min=1,max=10000"`
}

// ServeResult is the outcome of one ad-serving attempt. A nil WinningBid
// means "serve nothing": the caller falls back to its default experience.
type ServeResult struct {
	RequestID  string
	WinningBid *bid.Bid
	TotalBids  int
	Duration   time.Duration
}

// Service is the entry point for the serving layer: it creates the bid
// request and runs the auction as one logical operation, and exposes the
// attribution recorder for the tracking endpoints.
type Service struct {
	engine   *Engine
	requests BidRequestRepository
	recorder *Recorder
	validate *validator.Validate
	logger   *slog.Logger

	defaultFloor   decimal.Decimal
	defaultTimeout time.Duration
}

// NewService creates the auction service
func NewService(engine *Engine, requests BidRequestRepository, recorder *Recorder, logger *slog.Logger, defaultFloor decimal.Decimal, defaultTimeout time.Duration) *Service {
	if defaultTimeout <= 0 {
		defaultTimeout = bidrequest.DefaultTimeout
	}
	return &Service{
		engine:         engine,
		requests:       requests,
		recorder:       recorder,
		validate:       validator.New(),
		logger:         logger,
		defaultFloor:   defaultFloor,
		defaultTimeout: defaultTimeout,
	}
}

// Recorder exposes the attribution recorder for the tracking layer
func (s *Service) Recorder() *Recorder {
	return s.recorder
}

// ServeAd creates a bid request from the context and immediately runs the
// auction for it.
func (s *Service) ServeAd(ctx context.Context, rc *AdRequestContext) (*ServeResult, error) {
	req, err := s.CreateBidRequest(ctx, rc)
	if err != nil {
		return nil, err
	}

	result, err := s.engine.RunAuction(ctx, req.RequestID)
	if err != nil {
		return nil, err
	}

	return &ServeResult{
		RequestID:  req.RequestID,
		WinningBid: result.WinningBid,
		TotalBids:  result.TotalBids,
		Duration:   result.Duration,
	}, nil
}

// CreateBidRequest validates the context, builds an immutable bid request
// with an opaque token, and persists it.
func (s *Service) CreateBidRequest(ctx context.Context, rc *AdRequestContext) (*bidrequest.BidRequest, error) {
	if err := s.validate.Struct(rc); err != nil {
		return nil, errors.NewValidationError("INVALID_AD_REQUEST", "invalid ad request context").WithCause(err)
	}

	req := bidrequest.New(newRequestToken(), rc.SessionID)
	req.UserID = rc.UserID
	req.SiteID = rc.SiteID
	req.DeviceType = bidrequest.ParseDeviceType(rc.DeviceType)
	req.UserAgent = rc.UserAgent
	req.IPAddress = rc.IPAddress
	req.Geo = rc.Geo
	req.Profile = bidrequest.UserProfile{Responses: rc.Responses}

	if rc.AuctionType != "" {
		req.AuctionType = bidrequest.AuctionType(rc.AuctionType)
	}
	req.FloorPrice = s.parseFloor(rc.FloorPrice)
	if rc.TimeoutMS > 0 {
		req.Timeout = time.Duration(rc.TimeoutMS) * time.Millisecond
	} else {
		req.Timeout = s.defaultTimeout
	}
	req.Normalize()

	if err := s.requests.Create(ctx, req); err != nil {
		return nil, errors.NewInternalError("persisting bid request failed").WithCause(err)
	}
	return req, nil
}

// GetAuction returns the auction outcome for a request
func (s *Service) GetAuction(ctx context.Context, requestID string) (*bid.Auction, error) {
	a, err := s.engine.auctions.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, errors.NewNotFoundError("auction")
	}
	return a, nil
}

// parseFloor falls back to the configured default on absent or malformed
// input and clamps negatives to zero.
func (s *Service) parseFloor(raw string) decimal.Decimal {
	if raw == "" {
		return s.defaultFloor
	}
	floor, err := decimal.NewFromString(raw)
	if err != nil {
		s.logger.Warn("malformed floor price, using default", slog.String("floor_price", raw))
		return s.defaultFloor
	}
	if floor.IsNegative() {
		return decimal.Zero
	}
	return floor
}

// newRequestToken generates the opaque per-opportunity identifier
func newRequestToken() string {
	return "req_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
