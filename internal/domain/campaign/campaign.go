package campaign

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Campaign is an advertiser's line item competing in auctions. The auction
// engine treats campaigns as read-only; ownership lives with the campaign
// store.
type Campaign struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	BaseBid        decimal.Decimal `json:"base_bid"`
	DestinationURL string          `json:"destination_url"`
	AdTitle        string          `json:"ad_title,omitempty"`
	AdBody         string          `json:"ad_body,omitempty"`
	ImageURL       string          `json:"image_url,omitempty"`

	Targeting Targeting `json:"targeting"`

	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates an active campaign with the given base bid
func New(name string, baseBid decimal.Decimal, destinationURL string) *Campaign {
	now := time.Now().UTC()
	return &Campaign{
		ID:             uuid.New(),
		Name:           name,
		BaseBid:        baseBid,
		DestinationURL: destinationURL,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
