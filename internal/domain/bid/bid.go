package bid

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Decimal precision for persisted values. Prices carry four decimal places,
// ranking scores six.
const (
	PricePrecision = 4
	ScorePrecision = 6
)

// Outcome reasons recorded on bids after winner selection
const (
	ReasonHighestScore = "highest_score"
	ReasonOutbid       = "outbid"
)

// Bid is one campaign's scored offer against one bid request. It is
// immutable once persisted except for the Won/Reason fields, which are set
// after winner selection.
type Bid struct {
	ID         uuid.UUID `json:"id"`
	RequestID  string    `json:"request_id"`
	CampaignID uuid.UUID `json:"campaign_id"`

	// BidPrice is the adjusted price offered; Score ranks bids and is
	// distinct from the price.
	BidPrice decimal.Decimal `json:"bid_price"`
	Score    decimal.Decimal `json:"score"`

	AdMarkup      string `json:"ad_markup"`
	ClickURL      string `json:"click_url"`
	ImpressionURL string `json:"impression_url"`

	Won    bool   `json:"won"`
	Reason string `json:"reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// New creates a bid with price and score rounded to their persisted
// precision.
func New(requestID string, campaignID uuid.UUID, price, score decimal.Decimal) *Bid {
	return &Bid{
		ID:         uuid.New(),
		RequestID:  requestID,
		CampaignID: campaignID,
		BidPrice:   price.Round(PricePrecision),
		Score:      score.Round(ScorePrecision),
		CreatedAt:  time.Now().UTC(),
	}
}

// MarkWon flags the bid as the auction winner
func (b *Bid) MarkWon() {
	b.Won = true
	b.Reason = ReasonHighestScore
}

// MarkLost flags the bid as outbid
func (b *Bid) MarkLost() {
	b.Won = false
	b.Reason = ReasonOutbid
}

// Auction is the outcome record for one bid request. It is created once
// after winner selection and mutated later by attribution events.
type Auction struct {
	RequestID    string           `json:"request_id"`
	WinningBidID *uuid.UUID       `json:"winning_bid_id,omitempty"`
	WinningPrice decimal.Decimal  `json:"winning_price"`
	SecondPrice  *decimal.Decimal `json:"second_price,omitempty"`
	TotalBids    int              `json:"total_bids"`
	DurationMS   int64            `json:"duration_ms"`

	Served    bool            `json:"served"`
	Clicked   bool            `json:"clicked"`
	Converted bool            `json:"converted"`
	Revenue   decimal.Decimal `json:"revenue"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewAuction creates an auction outcome with zero revenue and all
// attribution flags cleared.
func NewAuction(requestID string, totalBids int, duration time.Duration) *Auction {
	now := time.Now().UTC()
	return &Auction{
		RequestID:  requestID,
		TotalBids:  totalBids,
		DurationMS: duration.Milliseconds(),
		Revenue:    decimal.Zero,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// HasWinner reports whether a winning bid was selected
func (a *Auction) HasWinner() bool {
	return a.WinningBidID != nil
}
