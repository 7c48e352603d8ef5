package bidrequest

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultTimeout bounds the bid-generation phase of an auction when the
// request does not carry its own budget.
const DefaultTimeout = 100 * time.Millisecond

// BidRequest is the immutable context describing one ad-serving opportunity.
// It is created once per opportunity and read by the eligibility filter and
// the bid scorer; nothing mutates it after creation.
type BidRequest struct {
	RequestID string `json:"request_id"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id,omitempty"`
	SiteID    string `json:"site_id,omitempty"`

	DeviceType DeviceType `json:"device_type"`
	UserAgent  string     `json:"user_agent,omitempty"`
	IPAddress  string     `json:"ip_address,omitempty"`
	Geo        *Geo       `json:"geo,omitempty"`

	Profile UserProfile `json:"profile"`

	AuctionType AuctionType     `json:"auction_type"`
	FloorPrice  decimal.Decimal `json:"floor_price"`
	Timeout     time.Duration   `json:"timeout"`

	CreatedAt time.Time `json:"created_at"`
}

// DeviceType classifies the requesting device
type DeviceType string

const (
	DeviceMobile  DeviceType = "mobile"
	DeviceDesktop DeviceType = "desktop"
	DeviceTablet  DeviceType = "tablet"
	DeviceUnknown DeviceType = "unknown"
)

// ParseDeviceType maps a raw device string to a DeviceType, defaulting to
// unknown for anything unrecognized.
func ParseDeviceType(s string) DeviceType {
	switch DeviceType(s) {
	case DeviceMobile, DeviceDesktop, DeviceTablet:
		return DeviceType(s)
	default:
		return DeviceUnknown
	}
}

// AuctionType selects the pricing model for the auction
type AuctionType string

const (
	AuctionFirstPrice  AuctionType = "first_price"
	AuctionSecondPrice AuctionType = "second_price"
)

// Geo describes the request origin derived from IP lookup
type Geo struct {
	Country string  `json:"country,omitempty"`
	Region  string  `json:"region,omitempty"`
	City    string  `json:"city,omitempty"`
	Lat     float64 `json:"lat,omitempty"`
	Lon     float64 `json:"lon,omitempty"`
}

// UserProfile aggregates the user's question-response history collected by
// the co-registration widget. Responses maps question identifier to the
// recorded answer.
type UserProfile struct {
	Responses map[string]string `json:"responses,omitempty"`
}

// ResponseCount returns the number of recorded answers
func (p UserProfile) ResponseCount() int {
	return len(p.Responses)
}

// New creates a BidRequest with defaults applied. The timeout falls back to
// DefaultTimeout and a negative floor is clamped to zero.
func New(requestID, sessionID string) *BidRequest {
	return &BidRequest{
		RequestID:   requestID,
		SessionID:   sessionID,
		DeviceType:  DeviceUnknown,
		AuctionType: AuctionSecondPrice,
		FloorPrice:  decimal.Zero,
		Timeout:     DefaultTimeout,
		CreatedAt:   time.Now().UTC(),
	}
}

// Normalize applies defaults to fields left unset by the caller
func (r *BidRequest) Normalize() {
	if r.Timeout <= 0 {
		r.Timeout = DefaultTimeout
	}
	if r.FloorPrice.IsNegative() {
		r.FloorPrice = decimal.Zero
	}
	if r.DeviceType == "" {
		r.DeviceType = DeviceUnknown
	}
	if r.AuctionType == "" {
		r.AuctionType = AuctionSecondPrice
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
}
